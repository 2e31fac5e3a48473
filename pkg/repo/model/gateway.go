package model

// KernelInfo mirrors the kernel resource of the Jupyter Kernel Gateway
// REST API.
type KernelInfo struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	LastActivity   string `json:"last_activity"`
	ExecutionState string `json:"execution_state"`
	Connections    int    `json:"connections"`
}

type KernelSpec struct {
	Name string `json:"name"`
	Spec struct {
		Language    string `json:"language"`
		DisplayName string `json:"display_name"`
	} `json:"spec"`
}

type KernelSpecs struct {
	Default     string                 `json:"default"`
	KernelSpecs map[string]*KernelSpec `json:"kernelspecs"`
}
