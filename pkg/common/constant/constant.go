package constant

import "time"

const (
	// MaxMessageSize caps a single websocket frame between the bridge and
	// attached notebook clients.
	MaxMessageSize = 10 * 1024 * 1024

	// SessionHeartTime is the refresh period of the per-session liveness key.
	SessionHeartTime = 5 * time.Second

	// DefaultKernelName is the kernelspec used for R, the IRkernel.
	DefaultKernelName = "ir"

	// LanguageName is the language this bridge serves.
	LanguageName = "R"

	// BackgroundColor is the prompt color assigned to R cells by the
	// notebook frontend.
	BackgroundColor = "#DCDCDA"
)

type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)
