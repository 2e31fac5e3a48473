// Package bridge is the control plane: it owns the live kernel sessions
// and routes exchange operations to the right one.
package bridge

import (
	"context"

	"github.com/polyglotlab/sosr/pkg/common"
	"github.com/polyglotlab/sosr/pkg/common/constant"
	"github.com/polyglotlab/sosr/pkg/common/uuid"
	"github.com/polyglotlab/sosr/pkg/core/exchange"
	"github.com/polyglotlab/sosr/pkg/core/rlang"
	"github.com/polyglotlab/sosr/pkg/repo/model"
)

type Control interface {
	// CreateSession starts a gateway kernel and installs the R prelude.
	CreateSession(ctx context.Context) (*model.Session, error)
	DeleteSession(ctx context.Context, UUID uuid.UUID) error
	ListSessions(ctx context.Context, req *common.PageReq) (*common.PageResp[[]*model.Session], error)
	// InterruptSession signals the session's kernel to abort the running
	// computation.
	InterruptSession(ctx context.Context, UUID uuid.UUID) error
	// RestartSession restarts the gateway kernel and reinstalls the R
	// prelude, workspace state is lost.
	RestartSession(ctx context.Context, UUID uuid.UUID) (*model.Session, error)
	ListTransfers(ctx context.Context, UUID uuid.UUID, req *common.PageReq, order constant.SortOrder) (*common.PageResp[[]*model.Transfer], error)

	// Exchange operations against one session, transfers are recorded.
	GetVars(ctx context.Context, UUID uuid.UUID, vars *exchange.Vars) (*rlang.GetVarsResult, error)
	PutVars(ctx context.Context, UUID uuid.UUID, names []string) (*PutVarsData, error)
	Expand(ctx context.Context, UUID uuid.UUID, text string, sigil string) (*rlang.ExpandResult, error)
	Preview(ctx context.Context, UUID uuid.UUID, name string) (string, error)
	SessionInfo(ctx context.Context, UUID uuid.UUID) (*SessionInfoData, error)
	ChangeDir(ctx context.Context, UUID uuid.UUID, dir string) error

	// Attach upgrades the request to a websocket watching one session.
	Attach(ctx context.Context)
	Close(ctx context.Context)
}

// PutVarsData is PutVars output with values already enveloped.
type PutVarsData struct {
	Vars      *exchange.Vars        `json:"vars"`
	Transfers []*rlang.TransferInfo `json:"transfers"`
	Warnings  []string              `json:"warnings,omitempty"`
}

// LanguageInfo is the language metadata a notebook frontend needs to
// render and parse R cells.
type LanguageInfo struct {
	Name              string `json:"name"`
	KernelName        string `json:"kernel_name"`
	BackgroundColor   string `json:"background_color"`
	AssignmentPattern string `json:"assignment_pattern"`
	DefaultSigil      string `json:"default_sigil"`
}

// SessionInfoData is the kernel's sessionInfo() output plus the static
// language metadata.
type SessionInfoData struct {
	Output   string        `json:"output"`
	Language *LanguageInfo `json:"language"`
}
