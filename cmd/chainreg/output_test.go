package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/alfredjeanlab/chainreg/internal/events"
	"github.com/alfredjeanlab/chainreg/internal/model"
)

func TestEventStatus(t *testing.T) {
	tests := []struct {
		name   string
		event  model.EventRecord
		height uint64
		want   string
	}{
		{"inactive", model.EventRecord{IsActive: false, EventBlock: 200, MaxTickets: 5}, 100, "inactive"},
		{"past", model.EventRecord{IsActive: true, EventBlock: 100, MaxTickets: 5}, 100, "past"},
		{"sold out", model.EventRecord{IsActive: true, EventBlock: 200, MaxTickets: 5, SoldTickets: 5}, 100, "sold out"},
		{"remaining", model.EventRecord{IsActive: true, EventBlock: 200, MaxTickets: 5, SoldTickets: 2}, 100, "3 left"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := eventStatus(&tt.event, tt.height); got != tt.want {
				t.Errorf("eventStatus = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPrintEventTable(t *testing.T) {
	var buf bytes.Buffer
	printEventTable(&buf, []model.EventRecord{
		{ID: 0, Title: "Launch Party", EventBlock: 500, TicketPriceMicro: 1_500_000, MaxTickets: 10, SoldTickets: 4, IsActive: true},
	}, 100)

	out := buf.String()
	for _, want := range []string{"PRICE (STX)", "Launch Party", "1.5", "4/10", "6 left", "1 events"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintAssetTable_TruncatesTitle(t *testing.T) {
	var buf bytes.Buffer
	long := strings.Repeat("x", 80)
	printAssetTable(&buf, []model.AssetRecord{{ID: 3, Title: long, Category: "art", LicenseTag: "CC-BY", Owner: "ST1OWNER"}})

	out := buf.String()
	if strings.Contains(out, long) {
		t.Error("long title was not truncated")
	}
	if !strings.Contains(out, "…") {
		t.Error("truncated title should end in an ellipsis")
	}
	if !strings.Contains(out, "ST1OWNER") {
		t.Errorf("output missing owner:\n%s", out)
	}
}

func TestPrintNotificationTable_Empty(t *testing.T) {
	var buf bytes.Buffer
	printNotificationTable(&buf, nil)
	if got := strings.TrimSpace(buf.String()); got != "No notifications." {
		t.Errorf("got %q", got)
	}
}

func TestPrintRunTable(t *testing.T) {
	var buf bytes.Buffer
	printRunTable(&buf, []*model.RunRecord{{
		ID:        "run-abc",
		Workflow:  "registration",
		Outcome:   model.OutcomeFailure,
		Stage:     "submitting",
		StartedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}})
	out := buf.String()
	for _, want := range []string{"run-abc", "registration", "failure", "submitting"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestDescribeEvent(t *testing.T) {
	tests := []struct {
		topic string
		data  string
		want  string
	}{
		{
			events.TopicWorkflowTransitioned,
			`{"run_id":"r1","workflow":"registration","from":"idle","to":"validating","status":"Validating asset details..."}`,
			"r1 registration → validating: Validating asset details...",
		},
		{
			events.TopicWorkflowReported,
			`{"run":{"id":"r1","workflow":"ticket_purchase","outcome":"success","tx_id":"0xabc"}}`,
			"r1 ticket_purchase success tx 0xabc",
		},
		{
			events.TopicWorkflowReported,
			`{"run":{"id":"r2","workflow":"ticket_purchase","outcome":"failure","error":"transaction rejected (SoldOut)"}}`,
			"r2 ticket_purchase failure: transaction rejected (SoldOut)",
		},
		{
			events.TopicNotificationPushed,
			`{"notification":{"id":7,"kind":"error","title":"Purchase Failed","message":"boom"}}`,
			"✗ error Purchase Failed: boom",
		},
		{events.TopicNotificationExpired, `{"id":7}`, "notification 7"},
		{events.TopicNotificationDismissed, `{"id":8}`, "notification 8"},
		{
			events.TopicReconcileCompleted,
			`{"assets":2,"events":1,"tickets":0,"height":100000,"height_estimated":true,"duration":"12ms"}`,
			"2 assets, 1 events, 0 tickets at ~100000 (estimated) in 12ms",
		},
		{events.TopicReconcileCompleted, `{"error":"node unavailable"}`, "failed: node unavailable"},
		{"other.topic", `{"x":1}`, `{"x":1}`},
		{events.TopicWorkflowReported, `not json`, "not json"},
	}
	for _, tt := range tests {
		if got := describeEvent(tt.topic, []byte(tt.data)); got != tt.want {
			t.Errorf("describeEvent(%s, %s) = %q, want %q", tt.topic, tt.data, got, tt.want)
		}
	}
}
