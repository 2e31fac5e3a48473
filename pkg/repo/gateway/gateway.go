package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/polyglotlab/sosr/internal/config"
	"github.com/polyglotlab/sosr/pkg/common/code"
	"github.com/polyglotlab/sosr/pkg/middleware/logger"
	"github.com/polyglotlab/sosr/pkg/repo"
	"github.com/polyglotlab/sosr/pkg/repo/model"
)

type gatewayImpl struct {
	addr   string
	token  string
	client *resty.Client
}

func New() repo.Gateway {
	conf := config.Global().Gateway
	client := resty.New().
		EnableTrace().
		SetBaseURL(conf.Addr)
	if conf.AuthToken != "" {
		client.SetHeader("Authorization", "token "+conf.AuthToken)
	}
	return &gatewayImpl{
		addr:   conf.Addr,
		token:  conf.AuthToken,
		client: client,
	}
}

func (g *gatewayImpl) StartKernel(ctx context.Context, name string) (*model.KernelInfo, error) {
	data := &model.KernelInfo{}
	resp, err := g.client.R().
		SetContext(ctx).
		SetBody(map[string]string{"name": name}).
		SetResult(data).
		Post("/api/kernels")
	if err != nil {
		logger.Errorf(ctx, "StartKernel err: %+v", err)
		return nil, code.RPCHttpErr.WithMsg(err.Error())
	}
	if resp.StatusCode() != http.StatusCreated && resp.StatusCode() != http.StatusOK {
		logger.Errorf(ctx, "StartKernel http code: %d body: %s", resp.StatusCode(), resp.String())
		return nil, code.KernelStartErr.WithMsgf("StartKernel code: %d", resp.StatusCode())
	}
	return data, nil
}

func (g *gatewayImpl) GetKernel(ctx context.Context, kernelID string) (*model.KernelInfo, error) {
	data := &model.KernelInfo{}
	resp, err := g.client.R().
		SetContext(ctx).
		SetResult(data).
		Get("/api/kernels/" + url.PathEscape(kernelID))
	if err != nil {
		logger.Errorf(ctx, "GetKernel err: %+v", err)
		return nil, code.RPCHttpErr.WithMsg(err.Error())
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, code.RecordNotFound
	}
	if resp.StatusCode() != http.StatusOK {
		logger.Errorf(ctx, "GetKernel http code: %d", resp.StatusCode())
		return nil, code.GatewayKernelErr.WithMsgf("GetKernel code: %d", resp.StatusCode())
	}
	return data, nil
}

func (g *gatewayImpl) ListKernels(ctx context.Context) ([]*model.KernelInfo, error) {
	datas := []*model.KernelInfo{}
	resp, err := g.client.R().
		SetContext(ctx).
		SetResult(&datas).
		Get("/api/kernels")
	if err != nil {
		logger.Errorf(ctx, "ListKernels err: %+v", err)
		return nil, code.RPCHttpErr.WithMsg(err.Error())
	}
	if resp.StatusCode() != http.StatusOK {
		logger.Errorf(ctx, "ListKernels http code: %d", resp.StatusCode())
		return nil, code.RPCHttpCodeErr.WithMsgf("ListKernels code: %d", resp.StatusCode())
	}
	return datas, nil
}

func (g *gatewayImpl) DeleteKernel(ctx context.Context, kernelID string) error {
	resp, err := g.client.R().
		SetContext(ctx).
		Delete("/api/kernels/" + url.PathEscape(kernelID))
	if err != nil {
		logger.Errorf(ctx, "DeleteKernel err: %+v", err)
		return code.RPCHttpErr.WithMsg(err.Error())
	}
	if resp.StatusCode() != http.StatusNoContent && resp.StatusCode() != http.StatusNotFound {
		logger.Errorf(ctx, "DeleteKernel http code: %d", resp.StatusCode())
		return code.GatewayKernelErr.WithMsgf("DeleteKernel code: %d", resp.StatusCode())
	}
	return nil
}

func (g *gatewayImpl) InterruptKernel(ctx context.Context, kernelID string) error {
	resp, err := g.client.R().
		SetContext(ctx).
		Post("/api/kernels/" + url.PathEscape(kernelID) + "/interrupt")
	if err != nil {
		logger.Errorf(ctx, "InterruptKernel err: %+v", err)
		return code.RPCHttpErr.WithMsg(err.Error())
	}
	if resp.StatusCode() != http.StatusNoContent {
		logger.Errorf(ctx, "InterruptKernel http code: %d", resp.StatusCode())
		return code.GatewayKernelErr.WithMsgf("InterruptKernel code: %d", resp.StatusCode())
	}
	return nil
}

func (g *gatewayImpl) RestartKernel(ctx context.Context, kernelID string) (*model.KernelInfo, error) {
	data := &model.KernelInfo{}
	resp, err := g.client.R().
		SetContext(ctx).
		SetResult(data).
		Post("/api/kernels/" + url.PathEscape(kernelID) + "/restart")
	if err != nil {
		logger.Errorf(ctx, "RestartKernel err: %+v", err)
		return nil, code.RPCHttpErr.WithMsg(err.Error())
	}
	if resp.StatusCode() != http.StatusOK {
		logger.Errorf(ctx, "RestartKernel http code: %d", resp.StatusCode())
		return nil, code.GatewayKernelErr.WithMsgf("RestartKernel code: %d", resp.StatusCode())
	}
	return data, nil
}

func (g *gatewayImpl) ListKernelSpecs(ctx context.Context) (*model.KernelSpecs, error) {
	data := &model.KernelSpecs{}
	resp, err := g.client.R().
		SetContext(ctx).
		SetResult(data).
		Get("/api/kernelspecs")
	if err != nil {
		logger.Errorf(ctx, "ListKernelSpecs err: %+v", err)
		return nil, code.RPCHttpErr.WithMsg(err.Error())
	}
	if resp.StatusCode() != http.StatusOK {
		logger.Errorf(ctx, "ListKernelSpecs http code: %d", resp.StatusCode())
		return nil, code.RPCHttpCodeErr.WithMsgf("ListKernelSpecs code: %d", resp.StatusCode())
	}
	return data, nil
}

// ChannelsURL maps the gateway http address onto the websocket channels
// endpoint of one kernel.
func (g *gatewayImpl) ChannelsURL(kernelID string) string {
	ws := g.addr
	switch {
	case strings.HasPrefix(ws, "https://"):
		ws = "wss://" + strings.TrimPrefix(ws, "https://")
	case strings.HasPrefix(ws, "http://"):
		ws = "ws://" + strings.TrimPrefix(ws, "http://")
	}
	return fmt.Sprintf("%s/api/kernels/%s/channels", strings.TrimRight(ws, "/"), url.PathEscape(kernelID))
}

func (g *gatewayImpl) AuthHeader() (string, string) {
	if g.token == "" {
		return "", ""
	}
	return "Authorization", "token " + g.token
}
