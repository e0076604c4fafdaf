// Package client provides a transport-agnostic interface for the chainreg
// service and an HTTP/JSON implementation that talks to its REST API.
package client

import (
	"context"
	"time"

	"github.com/alfredjeanlab/chainreg/internal/model"
	"github.com/alfredjeanlab/chainreg/internal/reconcile"
	"github.com/alfredjeanlab/chainreg/internal/server"
	"github.com/alfredjeanlab/chainreg/internal/workflow"
)

// Client is the interface every chainreg CLI command uses to talk to a
// running server.
type Client interface {
	// Ledger view
	Status(ctx context.Context) (*server.StatusResponse, error)
	ListAssets(ctx context.Context, req *ListAssetsRequest) ([]model.AssetRecord, error)
	ListEvents(ctx context.Context, req *ListEventsRequest) (*ListEventsResponse, error)
	ListTickets(ctx context.Context, owner string) ([]model.TicketView, error)
	Refresh(ctx context.Context) (*reconcile.Snapshot, error)

	// Notifications
	ListNotifications(ctx context.Context) ([]model.Notification, error)
	DismissNotification(ctx context.Context, id int64) error
	StreamEvents(ctx context.Context, req *StreamRequest, fn func(Event) error) error

	// Workflows
	Register(ctx context.Context, in *workflow.RegistrationInput) (*workflow.Result, error)
	CreateEvent(ctx context.Context, in *workflow.EventInput) (*workflow.Result, error)
	Purchase(ctx context.Context, in *workflow.PurchaseInput) (*workflow.Result, error)
	ListRuns(ctx context.Context, limit int) ([]*model.RunRecord, error)

	// Health
	Health(ctx context.Context) (string, error)

	// Lifecycle
	Close() error
}

// ListAssetsRequest holds parameters for listing assets.
type ListAssetsRequest struct {
	Category string `json:"category,omitempty"`
	Search   string `json:"search,omitempty"`
	Sort     string `json:"sort,omitempty"`
}

// ListEventsRequest holds parameters for listing events.
type ListEventsRequest struct {
	Organizer string `json:"organizer,omitempty"`
	Category  string `json:"category,omitempty"`
	Upcoming  bool   `json:"upcoming,omitempty"`
}

// ListEventsResponse is the response from ListEvents.
type ListEventsResponse struct {
	Events          []model.EventRecord `json:"events"`
	Height          uint64              `json:"height"`
	HeightEstimated bool                `json:"height_estimated"`
	RefreshedAt     time.Time           `json:"refreshed_at"`
}

// StreamRequest selects which server events to follow.
type StreamRequest struct {
	Topics      []string // glob patterns; empty = all
	LastEventID uint64   // replay events after this id
}

// Event is one server-sent event.
type Event struct {
	ID    uint64
	Topic string
	Data  []byte
}
