package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/alfredjeanlab/chainreg/internal/model"
	"github.com/alfredjeanlab/chainreg/internal/reconcile"
	"github.com/alfredjeanlab/chainreg/internal/workflow"
)

// SnapshotSource serves the reconciled view of the ledger.
type SnapshotSource interface {
	Snapshot() *reconcile.Snapshot
	LastError() error
	Refresh(ctx context.Context) (*reconcile.Snapshot, error)
}

// TicketSource looks up the tickets of an arbitrary owner.
type TicketSource interface {
	ListTickets(ctx context.Context, owner string) ([]model.TicketView, error)
}

// NotificationQueue is the live notification list.
type NotificationQueue interface {
	List() []model.Notification
	Dismiss(id int64) bool
}

// RunLister reads the run journal.
type RunLister interface {
	ListRuns(ctx context.Context, limit int) ([]*model.RunRecord, error)
}

// Options wires a Server. Nil collaborators disable their routes with 503.
type Options struct {
	Snapshots     SnapshotSource
	Tickets       TicketSource
	Notifications NotificationQueue
	Workflows     *workflow.Deps // nil when no signer is configured
	Runs          RunLister
	Hub           *Hub

	Network         string
	ContractAddress string
	ContractName    string
	TicketOwner     string // owner whose tickets the snapshot carries

	Logger *slog.Logger
}

// Server exposes the registry over HTTP.
type Server struct {
	snapshots     SnapshotSource
	tickets       TicketSource
	notifications NotificationQueue
	workflows     *workflow.Deps
	runs          RunLister
	hub           *Hub

	network         string
	contractAddress string
	contractName    string
	ticketOwner     string
	started         time.Time

	logger *slog.Logger
}

// New returns a Server. A Hub is created when none is supplied.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Hub == nil {
		opts.Hub = NewHub()
	}
	return &Server{
		snapshots:       opts.Snapshots,
		tickets:         opts.Tickets,
		notifications:   opts.Notifications,
		workflows:       opts.Workflows,
		runs:            opts.Runs,
		hub:             opts.Hub,
		network:         opts.Network,
		contractAddress: opts.ContractAddress,
		contractName:    opts.ContractName,
		ticketOwner:     opts.TicketOwner,
		started:         time.Now().UTC(),
		logger:          opts.Logger,
	}
}

// Hub returns the SSE hub; register it as an event publisher so streamed
// clients see workflow, notification and reconcile events.
func (s *Server) Hub() *Hub { return s.hub }

// snapshot returns the current snapshot, reconciling once if none exists yet.
func (s *Server) snapshot(ctx context.Context) (*reconcile.Snapshot, error) {
	if snap := s.snapshots.Snapshot(); snap != nil {
		return snap, nil
	}
	return s.snapshots.Refresh(ctx)
}
