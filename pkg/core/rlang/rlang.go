// Package rlang is the R language module: it moves variables between the
// notebook host and a live R kernel, expands interpolated text and
// previews R objects.
package rlang

import (
	"context"
)

const (
	// AssignmentPattern recognizes R assignments so the frontend can tell
	// which cell lines bind variables.
	AssignmentPattern = `^\s*([_A-Za-z0-9\.]+)\s*(=|<-).*$`

	// DefaultSigil is the default interpolation delimiter pair.
	DefaultSigil = "{ }"
)

type Service interface {
	// Init installs the R helper functions into a fresh kernel.
	Init(ctx context.Context) error
	// GetVars assigns host values into the kernel workspace.
	GetVars(ctx context.Context, vars map[string]any) (*GetVarsResult, error)
	// PutVars reads kernel variables back, always including sos-prefixed
	// names.
	PutVars(ctx context.Context, names []string) (*PutVarsResult, error)
	// Expand interpolates R expressions inside text using the sigil pair.
	Expand(ctx context.Context, text string, sigil string) (*ExpandResult, error)
	// Preview renders str() output for one variable.
	Preview(ctx context.Context, name string) (string, error)
	// SessionInfo returns the kernel's sessionInfo() output.
	SessionInfo(ctx context.Context) (string, error)
	// ChangeDir switches the kernel working directory.
	ChangeDir(ctx context.Context, dir string) error
}
