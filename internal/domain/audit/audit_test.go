package audit

import (
	"context"
	"testing"
)

func TestBuildBaseQueryNoFilters(t *testing.T) {
	query, args := buildBaseQuery("SELECT COUNT(1)", "acme", Filter{})
	if query != "SELECT COUNT(1) FROM audit_events WHERE company_id = $1" {
		t.Fatalf("unexpected query %q", query)
	}
	if len(args) != 1 || args[0] != "acme" {
		t.Fatalf("unexpected args %v", args)
	}
}

func TestBuildBaseQueryAllFilters(t *testing.T) {
	query, args := buildBaseQuery("SELECT id", "acme", Filter{Action: ActionDirectoryList, Outcome: "server_error", ActorUser: "ops@example.com"})
	want := "SELECT id FROM audit_events WHERE company_id = $1 AND action = $2 AND outcome = $3 AND actor_user_id = $4"
	if query != want {
		t.Fatalf("unexpected query:\n got %q\nwant %q", query, want)
	}
	if len(args) != 4 || args[1] != ActionDirectoryList || args[2] != "server_error" || args[3] != "ops@example.com" {
		t.Fatalf("unexpected args %v", args)
	}
}

func TestNopRecorder(t *testing.T) {
	var recorder Recorder = Nop{}
	if err := recorder.Record(context.Background(), Event{Action: ActionDirectoryList}, map[string]any{"page": 1}); err != nil {
		t.Fatalf("nop recorder failed: %v", err)
	}
}
