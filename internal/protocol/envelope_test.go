package protocol

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	t.Run("request envelope", func(t *testing.T) {
		env, err := Parse([]byte(`{"jsonrpc":"2.0","id":1,"method":"ping"}`))
		if err != nil {
			t.Fatalf("failed to parse request: %v", err)
		}
		if env.JSONRPC != "2.0" || env.Method != "ping" || string(env.ID) != "1" {
			t.Errorf("request fields mismatch: %s", env)
		}
		if env.Kind() != KindRequest {
			t.Errorf("expected request kind, got %s", env.Kind())
		}
	})

	t.Run("notification envelope", func(t *testing.T) {
		env, err := Parse([]byte(`{"jsonrpc":"2.0","method":"notifications/progress","params":{"token":"a"}}`))
		if err != nil {
			t.Fatalf("failed to parse notification: %v", err)
		}
		if env.Kind() != KindNotification {
			t.Errorf("expected notification kind, got %s", env.Kind())
		}
	})

	t.Run("response envelope", func(t *testing.T) {
		env, err := Parse([]byte(`{"jsonrpc":"2.0","id":1,"result":{}}`))
		if err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if env.Kind() != KindResponse {
			t.Errorf("expected response kind, got %s", env.Kind())
		}
	})

	t.Run("error response envelope", func(t *testing.T) {
		env, err := Parse([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32601,"message":"method not found"}}`))
		if err != nil {
			t.Fatalf("failed to parse error response: %v", err)
		}
		if env.Kind() != KindResponse {
			t.Errorf("expected response kind, got %s", env.Kind())
		}
		if env.Error == nil || env.Error.Code != -32601 {
			t.Errorf("error object mismatch: %+v", env.Error)
		}
	})

	t.Run("string IDs survive round trips", func(t *testing.T) {
		env, err := Parse([]byte(`{"jsonrpc":"2.0","id":"abc-1","method":"ping"}`))
		if err != nil {
			t.Fatalf("failed to parse: %v", err)
		}
		if string(env.ID) != `"abc-1"` {
			t.Errorf("expected raw string id preserved, got %s", env.ID)
		}
	})

	t.Run("rejects malformed input", func(t *testing.T) {
		cases := []string{
			"not json",
			"",
			"[1,2,3]",
			`"just a string"`,
			"42",
			"null",
			"{truncated",
		}
		for _, raw := range cases {
			if _, err := Parse([]byte(raw)); err == nil {
				t.Errorf("expected parse failure for %q", raw)
			}
		}
	})

	t.Run("accepts leading whitespace", func(t *testing.T) {
		if _, err := Parse([]byte("\n \t{\"jsonrpc\":\"2.0\",\"method\":\"ping\"}")); err != nil {
			t.Errorf("expected whitespace-prefixed object to parse: %v", err)
		}
	})
}

func TestNewCancelledNotification(t *testing.T) {
	env := NewCancelledNotification("session superseded by a newer client connection")

	if env.Method != MethodCancelled {
		t.Errorf("expected method %s, got %s", MethodCancelled, env.Method)
	}
	if env.JSONRPC != Version {
		t.Errorf("expected jsonrpc %s, got %s", Version, env.JSONRPC)
	}
	if len(env.ID) != 0 {
		t.Error("notification must not carry an id")
	}

	var params CancelledParams
	if err := json.Unmarshal(env.Params, &params); err != nil {
		t.Fatalf("failed to parse params: %v", err)
	}
	if params.Reason == "" {
		t.Error("expected non-empty reason")
	}

	// An empty reason gets a default.
	env = NewCancelledNotification("")
	if err := json.Unmarshal(env.Params, &params); err != nil {
		t.Fatalf("failed to parse params: %v", err)
	}
	if params.Reason == "" {
		t.Error("expected default reason for empty input")
	}
}

func TestPreview(t *testing.T) {
	t.Run("short text passes through", func(t *testing.T) {
		if got := Preview([]byte("hello"), 120); got != "hello" {
			t.Errorf("expected passthrough, got %q", got)
		}
	})

	t.Run("long text is truncated with total length", func(t *testing.T) {
		long := strings.Repeat("a", 500)
		got := Preview([]byte(long), 120)
		if len(got) >= 500 {
			t.Errorf("expected truncation, got %d bytes", len(got))
		}
		if !strings.Contains(got, "500 bytes total") {
			t.Errorf("expected total length in preview, got %q", got)
		}
	})

	t.Run("binary payload is summarized, not dumped", func(t *testing.T) {
		got := Preview([]byte{0xff, 0xfe, 0x00}, 120)
		if got != "<3 bytes binary>" {
			t.Errorf("expected binary summary, got %q", got)
		}
	})

	t.Run("truncation respects rune boundaries", func(t *testing.T) {
		payload := []byte(strings.Repeat("é", 100)) // 2 bytes per rune
		got := Preview(payload, 15)
		if !strings.HasPrefix(got, strings.Repeat("é", 7)) {
			t.Errorf("expected clean rune boundary, got %q", got)
		}
	})
}
