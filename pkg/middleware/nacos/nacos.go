// Package nacos watches one config-center document and hands every
// revision to a callback.
package nacos

import (
	"context"

	"github.com/nacos-group/nacos-sdk-go/v2/clients"
	nconst "github.com/nacos-group/nacos-sdk-go/v2/common/constant"
	"github.com/nacos-group/nacos-sdk-go/v2/vo"

	"github.com/polyglotlab/sosr/pkg/middleware/logger"
)

type Conf struct {
	Endpoint    string
	Port        uint64
	User        string
	Password    string
	NamespaceID string
	DataID      string
	Group       string
	NeedWatch   bool
}

type OnChange func(content []byte) error

// MustInit pulls the document once and, when watching, keeps pushing new
// revisions through onChange. The bridge must not run on stale config,
// failures are fatal.
func MustInit(ctx context.Context, conf *Conf, onChange OnChange) {
	client, err := clients.NewConfigClient(vo.NacosClientParam{
		ClientConfig: &nconst.ClientConfig{
			NamespaceId:         conf.NamespaceID,
			Username:            conf.User,
			Password:            conf.Password,
			TimeoutMs:           5000,
			NotLoadCacheAtStart: true,
			LogLevel:            "warn",
		},
		ServerConfigs: []nconst.ServerConfig{
			*nconst.NewServerConfig(conf.Endpoint, conf.Port),
		},
	})
	if err != nil {
		logger.Fatalf(ctx, "create nacos client err: %+v", err)
		return
	}

	content, err := client.GetConfig(vo.ConfigParam{DataId: conf.DataID, Group: conf.Group})
	if err != nil {
		logger.Fatalf(ctx, "pull nacos config dataID: %s group: %s err: %+v", conf.DataID, conf.Group, err)
		return
	}
	if err := onChange([]byte(content)); err != nil {
		logger.Errorf(ctx, "apply nacos config dataID: %s group: %s err: %+v", conf.DataID, conf.Group, err)
	}

	if !conf.NeedWatch {
		return
	}
	err = client.ListenConfig(vo.ConfigParam{
		DataId: conf.DataID,
		Group:  conf.Group,
		OnChange: func(_, group, dataID, data string) {
			if err := onChange([]byte(data)); err != nil {
				logger.Errorf(ctx, "apply nacos config dataID: %s group: %s err: %+v", dataID, group, err)
			}
		},
	})
	if err != nil {
		logger.Fatalf(ctx, "watch nacos config dataID: %s group: %s err: %+v", conf.DataID, conf.Group, err)
	}
}
