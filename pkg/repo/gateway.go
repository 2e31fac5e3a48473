package repo

import (
	"context"

	"github.com/polyglotlab/sosr/pkg/repo/model"
)

// Gateway is the Jupyter Kernel Gateway REST surface the bridge drives
// kernels through.
type Gateway interface {
	StartKernel(ctx context.Context, name string) (*model.KernelInfo, error)
	GetKernel(ctx context.Context, kernelID string) (*model.KernelInfo, error)
	ListKernels(ctx context.Context) ([]*model.KernelInfo, error)
	DeleteKernel(ctx context.Context, kernelID string) error
	InterruptKernel(ctx context.Context, kernelID string) error
	RestartKernel(ctx context.Context, kernelID string) (*model.KernelInfo, error)
	ListKernelSpecs(ctx context.Context) (*model.KernelSpecs, error)
	ChannelsURL(kernelID string) string
	AuthHeader() (string, string)
}
