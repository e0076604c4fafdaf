package ui

import (
	"fmt"

	"github.com/alfredjeanlab/chainreg/internal/model"
)

// ANSI256 color codes matching the Ayu palette.
const (
	colorAccent  = 74  // blue
	colorMuted   = 245 // medium gray
	colorSuccess = 114 // green
	colorError   = 203 // red
	colorWarn    = 179 // amber
)

// Styler renders text for one output stream.
type Styler struct {
	color bool
}

// NewStyler returns a styler; color false renders plain text.
func NewStyler(color bool) *Styler { return &Styler{color: color} }

func (s *Styler) paint(code int, text string) string {
	if s == nil || !s.color {
		return text
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", code, text)
}

// Accent returns text in the accent (blue) color.
func (s *Styler) Accent(text string) string { return s.paint(colorAccent, text) }

// Muted returns text in the muted (gray) color.
func (s *Styler) Muted(text string) string { return s.paint(colorMuted, text) }

// Warn returns text in the warning (amber) color.
func (s *Styler) Warn(text string) string { return s.paint(colorWarn, text) }

// Kind renders a notification kind label.
func (s *Styler) Kind(k model.NotificationKind) string {
	switch k {
	case model.NotifySuccess:
		return s.paint(colorSuccess, "✓ "+k.String())
	case model.NotifyError:
		return s.paint(colorError, "✗ "+k.String())
	}
	return s.paint(colorAccent, "• "+k.String())
}

// Outcome renders a run outcome.
func (s *Styler) Outcome(o model.Outcome) string {
	switch o {
	case model.OutcomeSuccess:
		return s.paint(colorSuccess, o.String())
	case model.OutcomeFailure:
		return s.paint(colorError, o.String())
	}
	return s.paint(colorMuted, "pending")
}

// Height renders a block height, flagging estimates.
func (s *Styler) Height(h uint64, estimated bool) string {
	if estimated {
		return s.Warn(fmt.Sprintf("~%d (estimated)", h))
	}
	return fmt.Sprintf("%d", h)
}
