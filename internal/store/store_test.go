package store

import (
	"context"
	"testing"
	"time"

	"github.com/alfredjeanlab/chainreg/internal/model"
)

func TestMemory_RecordAndList(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"wf-a", "wf-b", "wf-c"} {
		r := &model.RunRecord{ID: id, Workflow: "registration", StartedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := m.RecordRun(ctx, r); err != nil {
			t.Fatalf("RecordRun(%s): %v", id, err)
		}
	}

	runs, err := m.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "wf-c" || runs[1].ID != "wf-b" {
		t.Fatalf("ListRuns = %v, want newest two", ids(runs))
	}
}

func TestMemory_RecordReplaces(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	r := &model.RunRecord{ID: "wf-a", Outcome: model.OutcomePending}
	m.RecordRun(ctx, r)
	r.Outcome = model.OutcomeSuccess
	m.RecordRun(ctx, r)

	runs, _ := m.ListRuns(ctx, 0)
	if len(runs) != 1 || runs[0].Outcome != model.OutcomeSuccess {
		t.Fatalf("runs = %+v", runs)
	}
}

func TestMemory_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	m.RecordRun(ctx, &model.RunRecord{ID: "wf-a", Error: "original"})

	runs, _ := m.ListRuns(ctx, 0)
	runs[0].Error = "mutated"

	again, _ := m.ListRuns(ctx, 0)
	if again[0].Error != "original" {
		t.Error("ListRuns should not expose internal records")
	}
}

func ids(runs []*model.RunRecord) []string {
	out := make([]string, len(runs))
	for i, r := range runs {
		out[i] = r.ID
	}
	return out
}
