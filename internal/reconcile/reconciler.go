// Package reconcile rebuilds read models from the ledger's counted,
// indexed read-only lookups.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/alfredjeanlab/chainreg/internal/clarity"
	"github.com/alfredjeanlab/chainreg/internal/model"
)

// DefaultConcurrency bounds in-flight read-only calls per refresh.
const DefaultConcurrency = 8

// ReadOnlyCaller evaluates read-only contract functions.
type ReadOnlyCaller interface {
	CallReadOnly(ctx context.Context, address, name, function, sender string, args ...clarity.Value) (clarity.Value, error)
}

// Options configures a Reconciler.
type Options struct {
	ContractAddress string
	ContractName    string
	Sender          string  // principal reads are evaluated as; defaults to the contract address
	Concurrency     int     // defaults to DefaultConcurrency
	RPS             float64 // read-only calls per second, 0 for unlimited
}

// Reconciler lists ledger records. It keeps no state between calls.
type Reconciler struct {
	caller      ReadOnlyCaller
	address     string
	name        string
	sender      string
	concurrency int
	limiter     *rate.Limiter
	logger      *slog.Logger
}

// New creates a Reconciler.
func New(caller ReadOnlyCaller, opts Options, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Sender == "" {
		opts.Sender = opts.ContractAddress
	}
	r := &Reconciler{
		caller:      caller,
		address:     opts.ContractAddress,
		name:        opts.ContractName,
		sender:      opts.Sender,
		concurrency: opts.Concurrency,
		logger:      logger,
	}
	if opts.RPS > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(opts.RPS), opts.Concurrency)
	}
	return r
}

func (r *Reconciler) call(ctx context.Context, function string, args ...clarity.Value) (clarity.Value, error) {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return clarity.Value{}, err
		}
	}
	return r.caller.CallReadOnly(ctx, r.address, r.name, function, r.sender, args...)
}

// Count returns the number of records of kind the ledger reports.
func (r *Reconciler) Count(ctx context.Context, kind Kind) (uint64, error) {
	fn, ok := countFn[kind]
	if !ok {
		return 0, fmt.Errorf("unknown kind %q", kind)
	}
	v, err := r.call(ctx, fn)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", kind, err)
	}
	n, err := decodeCount(v)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", kind, err)
	}
	return n, nil
}

// fetchIndexed runs get(kind, i) for every index concurrently and decodes
// each response. A failed call or undecodable response drops only that
// index. Only context cancellation fails the batch.
func fetchIndexed[T any](ctx context.Context, r *Reconciler, kind Kind, indices []uint64, decode func(uint64, clarity.Value) Decoded[T]) ([]T, error) {
	results := make([]Decoded[T], len(indices))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for slot, idx := range indices {
		g.Go(func() error {
			v, err := r.call(gctx, getFn[kind], clarity.UInt(idx))
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				r.logger.Warn("read-only call failed", "kind", kind, "index", idx, "err", err)
				results[slot] = Decoded[T]{Status: StatusAbsent}
				return nil
			}
			results[slot] = decode(idx, v)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]T, 0, len(indices))
	for slot, d := range results {
		switch d.Status {
		case StatusOK:
			out = append(out, d.Record)
		case StatusMalformed:
			r.logger.Warn("skipping malformed record", "kind", kind, "index", indices[slot], "err", d.Err)
		}
	}
	return out, nil
}

func listAll[T any](ctx context.Context, r *Reconciler, kind Kind, decode func(uint64, clarity.Value) Decoded[T]) ([]T, error) {
	n, err := r.Count(ctx, kind)
	if err != nil {
		return nil, err
	}
	indices := make([]uint64, n)
	for i := range indices {
		indices[i] = uint64(i)
	}
	return fetchIndexed(ctx, r, kind, indices, decode)
}

// ListAssets returns every decodable asset, ordered by ID.
func (r *Reconciler) ListAssets(ctx context.Context) ([]model.AssetRecord, error) {
	assets, err := listAll(ctx, r, KindAsset, DecodeAsset)
	if err != nil {
		return nil, err
	}
	sort.Slice(assets, func(i, j int) bool { return assets[i].ID < assets[j].ID })
	return assets, nil
}

// ListEvents returns every decodable event, ordered by ID.
func (r *Reconciler) ListEvents(ctx context.Context) ([]model.EventRecord, error) {
	evs, err := listAll(ctx, r, KindEvent, DecodeEvent)
	if err != nil {
		return nil, err
	}
	sort.Slice(evs, func(i, j int) bool { return evs[i].ID < evs[j].ID })
	return evs, nil
}

// GetEvent fetches one event. Absent and malformed records are
// model.ErrNotFound.
func (r *Reconciler) GetEvent(ctx context.Context, id uint64) (model.EventRecord, error) {
	v, err := r.call(ctx, getFn[KindEvent], clarity.UInt(id))
	if err != nil {
		return model.EventRecord{}, fmt.Errorf("get event %d: %w", id, err)
	}
	d := DecodeEvent(id, v)
	switch d.Status {
	case StatusOK:
		return d.Record, nil
	case StatusMalformed:
		r.logger.Warn("malformed event", "index", id, "err", d.Err)
	}
	return model.EventRecord{}, fmt.Errorf("event %d: %w", id, model.ErrNotFound)
}
