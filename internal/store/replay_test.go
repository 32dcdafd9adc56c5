package store

import (
	"context"
	"testing"
)

func TestSummarize(t *testing.T) {
	s := createTestStore(t)
	seedJournal(t, s)
	mustRecordCommand(t, s, createTestCommand("k3", 6, "POST", "/bridges/b-2/moh"))

	sum, err := s.Summarize(context.Background())
	if err != nil {
		t.Fatalf("Summarize() failed: %v", err)
	}

	if sum.Commands != 3 || sum.Responses != 2 || sum.Events != 1 {
		t.Errorf("counts = (%d, %d, %d), want (3, 2, 1)", sum.Commands, sum.Responses, sum.Events)
	}
	if sum.Unanswered != 1 {
		t.Errorf("Unanswered = %d, want 1", sum.Unanswered)
	}
	if sum.Outcomes["ok"] != 1 || sum.Outcomes["timeout"] != 1 {
		t.Errorf("Outcomes = %v", sum.Outcomes)
	}
	if sum.LastSeq != 6 {
		t.Errorf("LastSeq = %d, want 6", sum.LastSeq)
	}
}

func TestSummarize_Empty(t *testing.T) {
	s := createTestStore(t)

	sum, err := s.Summarize(context.Background())
	if err != nil {
		t.Fatalf("Summarize() failed: %v", err)
	}
	if sum.Commands != 0 || sum.LastSeq != 0 || len(sum.Outcomes) != 0 {
		t.Errorf("Summarize() on empty journal = %+v", sum)
	}
}

func TestUnanswered(t *testing.T) {
	s := createTestStore(t)
	seedJournal(t, s)
	mustRecordCommand(t, s, createTestCommand("k4", 8, "POST", "/bridges/b-3/play"))
	mustRecordCommand(t, s, createTestCommand("k3", 6, "POST", "/bridges/b-2/moh"))

	pending, err := s.Unanswered(context.Background())
	if err != nil {
		t.Fatalf("Unanswered() failed: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("len(pending) = %d, want 2", len(pending))
	}
	if pending[0].Key != "k3" || pending[1].Key != "k4" {
		t.Errorf("pending keys = [%s %s], want [k3 k4]", pending[0].Key, pending[1].Key)
	}
	if pending[0].Kind != KindCommand {
		t.Errorf("pending kind = %q, want %q", pending[0].Kind, KindCommand)
	}
}
