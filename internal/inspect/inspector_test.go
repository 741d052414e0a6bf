package inspect

import (
	"reflect"
	"testing"
)

func TestInspectorClassification(t *testing.T) {
	i := NewInspector()

	i.Observe([]byte(`{"jsonrpc":"2.0","id":1,"method":"tools/call"}`))
	i.Observe([]byte(`{"jsonrpc":"2.0","id":2,"method":"tools/call"}`))
	i.Observe([]byte(`{"jsonrpc":"2.0","method":"notifications/progress"}`))
	i.Observe([]byte(`{"jsonrpc":"2.0","id":1,"result":{}}`))
	i.Observe([]byte(`{"jsonrpc":"2.0","id":2,"error":{"code":-32000,"message":"boom"}}`))
	i.Observe([]byte("not json"))

	stats := i.Snapshot()
	if stats.Requests != 2 {
		t.Errorf("expected 2 requests, got %d", stats.Requests)
	}
	if stats.Notifications != 1 {
		t.Errorf("expected 1 notification, got %d", stats.Notifications)
	}
	if stats.Responses != 2 {
		t.Errorf("expected 2 responses, got %d", stats.Responses)
	}
	if stats.Errors != 1 {
		t.Errorf("expected 1 error response, got %d", stats.Errors)
	}
	if stats.ParseFailures != 1 {
		t.Errorf("expected 1 parse failure, got %d", stats.ParseFailures)
	}
	if stats.ByMethod["tools/call"] != 2 {
		t.Errorf("expected tools/call counted twice, got %d", stats.ByMethod["tools/call"])
	}
}

func TestInspectorTopMethods(t *testing.T) {
	i := NewInspector()

	for n := 0; n < 3; n++ {
		i.Observe([]byte(`{"jsonrpc":"2.0","id":1,"method":"tools/call"}`))
	}
	i.Observe([]byte(`{"jsonrpc":"2.0","method":"notifications/progress"}`))
	i.Observe([]byte(`{"jsonrpc":"2.0","id":1,"method":"resources/read"}`))

	got := i.TopMethods(2)
	want := []string{"tools/call", "notifications/progress"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}

	// Ties break alphabetically.
	got = i.TopMethods(3)
	if got[1] != "notifications/progress" || got[2] != "resources/read" {
		t.Errorf("expected alphabetical tie break, got %v", got)
	}
}

func TestInspectorSnapshotIsolation(t *testing.T) {
	i := NewInspector()
	i.Observe([]byte(`{"jsonrpc":"2.0","id":1,"method":"ping"}`))

	snap := i.Snapshot()
	snap.ByMethod["ping"] = 99

	if i.Snapshot().ByMethod["ping"] != 1 {
		t.Error("expected snapshot mutation to not affect the inspector")
	}
}

func TestInspectorReset(t *testing.T) {
	i := NewInspector()
	i.Observe([]byte(`{"jsonrpc":"2.0","id":1,"method":"ping"}`))
	i.Reset()

	stats := i.Snapshot()
	if stats.Requests != 0 || len(stats.ByMethod) != 0 {
		t.Errorf("expected zeroed stats after reset, got %+v", stats)
	}
}
