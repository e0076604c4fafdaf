package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/alfredjeanlab/chainreg/internal/clock"
	"github.com/alfredjeanlab/chainreg/internal/content"
	"github.com/alfredjeanlab/chainreg/internal/events"
	"github.com/alfredjeanlab/chainreg/internal/idgen"
	"github.com/alfredjeanlab/chainreg/internal/ledger"
	"github.com/alfredjeanlab/chainreg/internal/model"
	"github.com/alfredjeanlab/chainreg/internal/txbuild"
)

// ErrAlreadyRun is returned by a second Run on the same workflow instance.
var ErrAlreadyRun = errors.New("workflow already run")

// StageError tags a failure with the stage it happened in.
type StageError struct {
	Stage State
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s: %v", e.Stage, e.Err) }

func (e *StageError) Unwrap() error { return e.Err }

// Uploader pins blobs and metadata as one bundle.
type Uploader interface {
	Upload(ctx context.Context, blobs []content.Blob, metadata map[string]any) (string, error)
}

// Submitter signs and broadcasts a call.
type Submitter interface {
	Submit(ctx context.Context, d *txbuild.CallDescriptor) (string, error)
}

// EventResolver looks up an event's current ledger state.
type EventResolver interface {
	GetEvent(ctx context.Context, id uint64) (model.EventRecord, error)
}

// HeightSource reports the current block height, possibly estimated.
type HeightSource interface {
	Current(ctx context.Context) (height uint64, estimated bool)
}

// Notifier receives the terminal notification of a run.
type Notifier interface {
	Push(kind model.NotificationKind, title, message, reference string) model.Notification
}

// Journal records finished runs.
type Journal interface {
	RecordRun(ctx context.Context, r *model.RunRecord) error
}

// Deps are the collaborators shared by every workflow.
type Deps struct {
	Uploader  Uploader
	Builder   *txbuild.Builder
	Submitter Submitter
	Events    EventResolver // required by TicketPurchase
	Heights   HeightSource  // required by EventCreation
	Notifier  Notifier
	Journal   Journal // optional
	Publisher events.Publisher
	Clock     clock.Clock
	Logger    *slog.Logger

	Sender      string // principal that pays for purchases
	GatewayURL  string
	ExplorerURL string
	Network     string
}

func (d *Deps) clock() clock.Clock {
	if d.Clock == nil {
		return clock.Real()
	}
	return d.Clock
}

func (d *Deps) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}

// Result describes a finished run.
type Result struct {
	RunID        string             `json:"run_id"`
	Workflow     string             `json:"workflow"`
	State        State              `json:"state"`
	Outcome      model.Outcome      `json:"outcome"`
	Stage        State              `json:"stage,omitempty"`
	TxID         string             `json:"tx_id,omitempty"`
	ContentID    string             `json:"content_id,omitempty"`
	Statuses     []string           `json:"statuses"`
	Error        string             `json:"error,omitempty"`
	Notification model.Notification `json:"notification"`
}

// once guards single use of a workflow instance.
type once struct{ used atomic.Bool }

func (o *once) claim() error {
	if o.used.Swap(true) {
		return ErrAlreadyRun
	}
	return nil
}

// run is the per-invocation state machine shared by all workflows.
type run struct {
	deps     *Deps
	workflow string
	id       string
	state    State
	started  time.Time
	result   Result
}

func newRun(deps *Deps, workflow string) (*run, error) {
	id, err := idgen.NewRunID()
	if err != nil {
		return nil, err
	}
	return &run{
		deps:     deps,
		workflow: workflow,
		id:       id,
		state:    StateIdle,
		started:  deps.clock().Now().UTC(),
		result:   Result{RunID: id, Workflow: workflow, State: StateIdle},
	}, nil
}

// enter moves to the next stage. It fails with the context's error when
// ctx is done, before any work for the stage starts.
func (r *run) enter(ctx context.Context, to State, status string) error {
	if err := ctx.Err(); err != nil {
		return &StageError{Stage: to, Err: err}
	}
	return r.move(ctx, to, status)
}

func (r *run) move(ctx context.Context, to State, status string) error {
	if err := transition(r.state, to); err != nil {
		return &StageError{Stage: to, Err: err}
	}
	from := r.state
	r.state = to
	r.result.State = to
	r.result.Statuses = append(r.result.Statuses, status)

	ev := events.WorkflowTransitioned{
		RunID:    r.id,
		Workflow: r.workflow,
		From:     string(from),
		To:       string(to),
		Status:   status,
		At:       r.deps.clock().Now().UTC(),
	}
	r.publish(ctx, events.TopicWorkflowTransitioned, ev)
	r.deps.logger().Debug("workflow transition", "run_id", r.id, "workflow", r.workflow, "from", from, "to", to)
	return nil
}

// stage wraps err with the current stage unless it is already tagged.
func (r *run) stage(err error) error {
	var se *StageError
	if errors.As(err, &se) {
		return err
	}
	return &StageError{Stage: r.state, Err: err}
}

// succeed reports success, pushing one success notification.
func (r *run) succeed(ctx context.Context, txid, title, message string) *Result {
	r.result.TxID = txid
	r.result.Outcome = model.OutcomeSuccess
	ref := ledger.ExplorerURL(r.deps.ExplorerURL, txid, r.deps.Network)
	status := fmt.Sprintf("%s Transaction %s.", message, txid)
	r.report(ctx, status)
	r.notify(model.NotifySuccess, title, message, ref)
	r.record(ctx)
	return &r.result
}

// fail reports failure, pushing one error notification carrying the
// underlying message verbatim.
func (r *run) fail(ctx context.Context, title string, err error) (*Result, error) {
	err = r.stage(err)
	var se *StageError
	errors.As(err, &se)

	msg := FailureMessage(err)
	r.result.Outcome = model.OutcomeFailure
	r.result.Stage = se.Stage
	r.result.Error = msg
	r.report(ctx, msg)
	r.notify(model.NotifyError, title, msg, "")
	r.record(ctx)
	r.deps.logger().Warn("workflow failed", "run_id", r.id, "workflow", r.workflow, "stage", se.Stage, "err", se.Err)
	return &r.result, err
}

func (r *run) report(ctx context.Context, status string) {
	// Reporting is always allowed from a non-terminal state.
	_ = r.move(context.WithoutCancel(ctx), StateReported, status)
}

func (r *run) notify(kind model.NotificationKind, title, message, ref string) {
	if r.deps.Notifier != nil {
		r.result.Notification = r.deps.Notifier.Push(kind, title, message, ref)
	}
}

func (r *run) record(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	rec := &model.RunRecord{
		ID:         r.id,
		Workflow:   r.workflow,
		State:      string(r.state),
		Outcome:    r.result.Outcome,
		Stage:      string(r.result.Stage),
		TxID:       r.result.TxID,
		ContentID:  r.result.ContentID,
		Error:      r.result.Error,
		StartedAt:  r.started,
		FinishedAt: r.deps.clock().Now().UTC(),
	}
	if r.deps.Journal != nil {
		if err := r.deps.Journal.RecordRun(ctx, rec); err != nil {
			r.deps.logger().Warn("journal run", "run_id", r.id, "err", err)
		}
	}
	r.publish(ctx, events.TopicWorkflowReported, events.WorkflowReported{Run: rec})
	r.deps.logger().Info("workflow reported", "run_id", r.id, "workflow", r.workflow, "outcome", rec.Outcome, "tx_id", rec.TxID)
}

func (r *run) publish(ctx context.Context, topic string, event any) {
	if r.deps.Publisher == nil {
		return
	}
	if err := r.deps.Publisher.Publish(context.WithoutCancel(ctx), topic, event); err != nil {
		r.deps.logger().Warn("publish workflow event", "topic", topic, "err", err)
	}
}

// FailureMessage renders err for a user. Ledger and uploader messages are
// passed through unchanged.
func FailureMessage(err error) string {
	var ce *model.ContractError
	if errors.As(err, &ce) {
		return ce.Error()
	}
	var ue *model.UploadError
	if errors.As(err, &ue) {
		return ue.Error()
	}
	var ve *model.ValidationError
	if errors.As(err, &ve) {
		return ve.Error()
	}
	var se *StageError
	if errors.As(err, &se) {
		switch {
		case errors.Is(se.Err, context.Canceled):
			return "cancelled during " + se.Stage.String()
		case errors.Is(se.Err, context.DeadlineExceeded):
			return "timed out during " + se.Stage.String()
		}
		return se.Err.Error()
	}
	return err.Error()
}

// asBlob converts a File to a blob with the given role.
func asBlob(f *File, role content.Role) content.Blob {
	return content.Blob{Name: f.Name, Data: f.Data, MediaType: f.MediaType, Role: role}
}

// File is a named upload supplied by the caller.
type File struct {
	Name      string `json:"name"`
	MediaType string `json:"media_type"`
	Data      []byte `json:"data"`
}

func (f *File) empty() bool { return f == nil || len(f.Data) == 0 }
