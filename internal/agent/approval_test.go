package agent

import (
	"context"
	"testing"
	"time"
)

func TestMatchesPattern(t *testing.T) {
	tests := []struct {
		pattern string
		name    string
		want    bool
	}{
		{"shell", "shell", true},
		{"shell", "shellx", false},
		{"*", "anything", true},
		{"mcp_*", "mcp_search", true},
		{"mcp_*", "shell", false},
		{"*_file", "write_file", true},
		{"*_file", "file_info", false},
		{"*write*", "overwrite_all", true},
		{"*write*", "read", false},
	}
	for _, tt := range tests {
		t.Run(tt.pattern+"/"+tt.name, func(t *testing.T) {
			if got := matchesPattern(tt.pattern, tt.name); got != tt.want {
				t.Errorf("matchesPattern(%q, %q) = %v, want %v", tt.pattern, tt.name, got, tt.want)
			}
		})
	}
}

func TestApplyApprovalDoesNotMutate(t *testing.T) {
	tool := &Tool{Name: "shell"}
	out := ApplyApproval(ApprovalConfig{Enabled: true}, []*Tool{tool})
	if tool.NeedsApproval {
		t.Error("input tool was mutated")
	}
	if !out[0].NeedsApproval {
		t.Error("derived tool not marked for approval")
	}
	if out[0] == tool {
		t.Error("derived tool is the same value as the input")
	}
}

func TestApplyApprovalDisabled(t *testing.T) {
	tool := &Tool{Name: "shell"}
	out := ApplyApproval(ApprovalConfig{}, []*Tool{tool})
	if out[0] != tool || out[0].NeedsApproval {
		t.Errorf("disabled gating changed the tool: %+v", out[0])
	}
}

func TestDefaultDangerousSet(t *testing.T) {
	tools := []*Tool{
		{Name: "shell"}, {Name: "browser"}, {Name: "write_file"},
		{Name: "create_directory"}, {Name: "read_file"},
	}
	out := ApplyApproval(ApprovalConfig{Enabled: true}, tools)
	for i, want := range []bool{true, true, true, true, false} {
		if out[i].NeedsApproval != want {
			t.Errorf("%s: NeedsApproval = %v, want %v", out[i].Name, out[i].NeedsApproval, want)
		}
	}
}

func TestApprovalStateOnceOnly(t *testing.T) {
	s := newApprovalState()
	if !s.respond("c1", true) {
		t.Error("first respond rejected")
	}
	if s.respond("c1", false) {
		t.Error("second respond accepted")
	}
	// The recorded decision wins for a later wait.
	got := s.wait(context.Background(), ApprovalConfig{}, ApprovalRequest{CallID: "c1"})
	if !got {
		t.Error("wait returned the overwritten decision")
	}
}

func TestApprovalWaitReleasedByRespond(t *testing.T) {
	s := newApprovalState()
	done := make(chan bool, 1)
	go func() {
		done <- s.wait(context.Background(), ApprovalConfig{}, ApprovalRequest{CallID: "c2"})
	}()
	time.Sleep(10 * time.Millisecond)
	s.respond("c2", true)
	select {
	case got := <-done:
		if !got {
			t.Error("wait = false, want true")
		}
	case <-time.After(time.Second):
		t.Fatal("wait never released")
	}
}

func TestResolvePendingDenied(t *testing.T) {
	s := newApprovalState()
	done := make(chan bool, 1)
	go func() {
		done <- s.wait(context.Background(), ApprovalConfig{}, ApprovalRequest{CallID: "c3"})
	}()
	time.Sleep(10 * time.Millisecond)
	s.resolvePendingDenied()
	select {
	case got := <-done:
		if got {
			t.Error("pending wait resolved as approved")
		}
	case <-time.After(time.Second):
		t.Fatal("wait never released")
	}
}
