// Package idgen generates workflow run identifiers backed by nanoid.
package idgen

import (
	"fmt"
	"strings"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// RunPrefix marks an identifier as a workflow run id.
const RunPrefix = "wf-"

// alphabet is lowercase so ids survive case-insensitive log search.
const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// length is the number of random characters after the prefix.
const length = 12

// NewRunID returns a fresh workflow run id such as "wf-k3v9x0q2m7ab".
func NewRunID() (string, error) {
	return WithPrefix(RunPrefix)
}

// WithPrefix returns a fresh id with the given prefix.
func WithPrefix(prefix string) (string, error) {
	id, err := nanoid.Generate(alphabet, length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return prefix + id, nil
}

// IsRunID reports whether s has the shape NewRunID produces.
func IsRunID(s string) bool {
	rest, ok := strings.CutPrefix(s, RunPrefix)
	if !ok || len(rest) != length {
		return false
	}
	for _, r := range rest {
		if !strings.ContainsRune(alphabet, r) {
			return false
		}
	}
	return true
}
