package rlang

// TransferInfo describes one variable that crossed the boundary.
type TransferInfo struct {
	SourceName string `json:"source_name"`
	TargetName string `json:"target_name"`
	RClass     string `json:"r_class,omitempty"`
	ByteSize   int64  `json:"byte_size"`
	Error      string `json:"error,omitempty"`
	// Warning carries the rename notice when the variable could not keep
	// its original name.
	Warning string `json:"warning,omitempty"`
}

type GetVarsResult struct {
	Transfers []*TransferInfo `json:"transfers"`
	Warnings  []string        `json:"warnings,omitempty"`
}

type PutVarsResult struct {
	Vars      map[string]any  `json:"vars"`
	Transfers []*TransferInfo `json:"transfers"`
	Warnings  []string        `json:"warnings,omitempty"`
}

type ExpandResult struct {
	Text     string   `json:"text"`
	Warnings []string `json:"warnings,omitempty"`
}
