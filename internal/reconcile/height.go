package reconcile

import (
	"context"
	"log/slog"
	"time"
)

const (
	// DefaultFallbackHeight is used when the node's status endpoint fails.
	// It is a guess, not a tuned value.
	DefaultFallbackHeight uint64 = 100000

	// BlockInterval is the assumed average time between blocks.
	BlockInterval = 600 * time.Second
)

// HeightSource reports the ledger's current tip height.
type HeightSource interface {
	ChainHeight(ctx context.Context) (uint64, error)
}

// Heights resolves the current height, falling back to a fixed estimate.
// Results are best-effort: callers scheduling future events must treat an
// estimated height as approximate.
type Heights struct {
	src      HeightSource
	fallback uint64
	logger   *slog.Logger
}

// NewHeights creates a Heights. A zero fallback uses DefaultFallbackHeight.
func NewHeights(src HeightSource, fallback uint64, logger *slog.Logger) *Heights {
	if fallback == 0 {
		fallback = DefaultFallbackHeight
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Heights{src: src, fallback: fallback, logger: logger}
}

// Current returns the tip height, or the fallback with estimated=true.
func (h *Heights) Current(ctx context.Context) (height uint64, estimated bool) {
	n, err := h.src.ChainHeight(ctx)
	if err != nil {
		h.logger.Warn("chain height unavailable, using fallback", "fallback", h.fallback, "err", err)
		return h.fallback, true
	}
	return n, false
}

// EstimateBlock converts a wall-clock time into the block height expected
// at that moment, counting whole block intervals from now.
func EstimateBlock(now, at time.Time, height uint64) uint64 {
	if !at.After(now) {
		return height
	}
	return height + uint64(at.Sub(now)/BlockInterval)
}
