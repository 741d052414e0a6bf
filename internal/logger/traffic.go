// Package logger records bridge traffic in a JSON-Lines format for later
// inspection and replay.
package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// TrafficHeader is the first line of a traffic recording.
type TrafficHeader struct {
	Version   int    `json:"version"`
	BridgeID  string `json:"bridgeId"`
	Timestamp int64  `json:"timestamp"`
}

// TrafficEvent is a single recorded message event.
// Format: [time_offset, direction, outcome, preview]
type TrafficEvent struct {
	TimeOffset float64
	Direction  string // "in" for remote->session, "out" for session->remote
	Outcome    string // "fwd" or "drop"
	Preview    string
}

// MarshalJSON implements custom JSON marshaling for TrafficEvent.
func (e TrafficEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{e.TimeOffset, e.Direction, e.Outcome, e.Preview})
}

// UnmarshalJSON implements custom JSON unmarshaling for TrafficEvent.
func (e *TrafficEvent) UnmarshalJSON(data []byte) error {
	var arr []interface{}
	if err := json.Unmarshal(data, &arr); err != nil {
		return err
	}
	if len(arr) != 4 {
		return fmt.Errorf("invalid event format: expected 4 elements, got %d", len(arr))
	}

	timeOffset, ok := arr[0].(float64)
	if !ok {
		return fmt.Errorf("invalid time offset type")
	}
	e.TimeOffset = timeOffset

	direction, ok := arr[1].(string)
	if !ok {
		return fmt.Errorf("invalid direction type")
	}
	e.Direction = direction

	outcome, ok := arr[2].(string)
	if !ok {
		return fmt.Errorf("invalid outcome type")
	}
	e.Outcome = outcome

	preview, ok := arr[3].(string)
	if !ok {
		return fmt.Errorf("invalid preview type")
	}
	e.Preview = preview

	return nil
}

// TrafficLog records bridge message events in JSON-Lines format.
type TrafficLog struct {
	writer    io.Writer
	file      *os.File // only set if we own the file
	startTime time.Time
	mu        sync.Mutex
}

// NewTrafficLog creates a TrafficLog that writes to the given file path.
func NewTrafficLog(filePath string) (*TrafficLog, error) {
	file, err := os.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create traffic log: %w", err)
	}

	return &TrafficLog{
		writer:    file,
		file:      file,
		startTime: time.Now(),
	}, nil
}

// NewTrafficLogWithWriter creates a TrafficLog that writes to the given
// writer. This is useful for testing.
func NewTrafficLogWithWriter(w io.Writer) *TrafficLog {
	return &TrafficLog{
		writer:    w,
		startTime: time.Now(),
	}
}

// WriteHeader writes the recording header. This should be called once at the
// beginning of the recording.
func (l *TrafficLog) WriteHeader(bridgeID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	header := TrafficHeader{
		Version:   1,
		BridgeID:  bridgeID,
		Timestamp: l.startTime.Unix(),
	}

	data, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}

	if _, err := l.writer.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	return nil
}

// WriteInbound records a remote-to-session event.
func (l *TrafficLog) WriteInbound(outcome, preview string) error {
	return l.writeEvent("in", outcome, preview)
}

// WriteOutbound records a session-to-remote event.
func (l *TrafficLog) WriteOutbound(outcome, preview string) error {
	return l.writeEvent("out", outcome, preview)
}

// writeEvent writes one event line.
func (l *TrafficLog) writeEvent(direction, outcome, preview string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	event := TrafficEvent{
		TimeOffset: time.Since(l.startTime).Seconds(),
		Direction:  direction,
		Outcome:    outcome,
		Preview:    preview,
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if _, err := l.writer.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}

	return nil
}

// Close closes the log file.
func (l *TrafficLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// StartTime returns the start time of the recording.
func (l *TrafficLog) StartTime() time.Time {
	return l.startTime
}
