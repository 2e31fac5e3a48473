package bridge

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	_ "github.com/polyglotlab/sosr/docs" // swagger generated docs

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"

	"github.com/polyglotlab/sosr/internal/config"
	"github.com/polyglotlab/sosr/pkg/middleware/db"
	"github.com/polyglotlab/sosr/pkg/middleware/logger"
	"github.com/polyglotlab/sosr/pkg/middleware/nacos"
	"github.com/polyglotlab/sosr/pkg/middleware/redis"
	"github.com/polyglotlab/sosr/pkg/middleware/trace"
	"github.com/polyglotlab/sosr/pkg/repo/migrate"
	"github.com/polyglotlab/sosr/pkg/utils"
	"github.com/polyglotlab/sosr/pkg/web"
)

func NewWeb() *cobra.Command {
	return &cobra.Command{
		Use:          "bridge",
		Long:         "Start the R bridge API server",
		SilenceUsage: true,
		PreRunE:      initWeb,
		RunE:         newRouter,
		PostRunE:     cleanWebResource,
	}
}

func NewMigrate() *cobra.Command {
	return &cobra.Command{
		Use:          "migrate",
		Long:         "Run database migrations",
		SilenceUsage: true,
		PreRunE:      initMigrate,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return migrate.Table(cmd.Root().Context())
		},
		PostRunE: func(cmd *cobra.Command, _ []string) error {
			db.ClosePostgres(cmd.Context())
			return nil
		},
	}
}

func initMigrate(cmd *cobra.Command, _ []string) error {
	conf := config.Global()
	db.InitPostgres(cmd.Context(), &db.Config{
		Host: conf.Database.Host, Port: conf.Database.Port,
		User: conf.Database.User, PW: conf.Database.Password,
		DBName: conf.Database.Name, LogConf: db.LogConf{Level: conf.Log.LogLevel},
	})
	return nil
}

func initWeb(cmd *cobra.Command, _ []string) error {
	conf := config.Global()
	if conf.Nacos.Endpoint != "" {
		nacos.MustInit(cmd.Context(), &nacos.Conf{
			Endpoint:    conf.Nacos.Endpoint,
			Port:        conf.Nacos.Port,
			User:        conf.Nacos.User,
			Password:    conf.Nacos.Password,
			NamespaceID: conf.Nacos.NamespaceID,
			DataID:      conf.Nacos.DataID,
			Group:       conf.Nacos.Group,
			NeedWatch:   conf.Nacos.NeedWatch,
		}, func(content []byte) error {
			d := &config.DynamicConfig{}
			if err := yaml.Unmarshal(content, d); err != nil {
				logger.Errorf(cmd.Context(), "unmarshal dynamic config dataID: %s err: %+v", conf.Nacos.DataID, err)
				return err
			}
			config.SetDynamic(d)
			return nil
		})
	}
	trace.InitTrace(cmd.Context(), &trace.InitConfig{
		ServiceName:    fmt.Sprintf("%s-%s", conf.Server.Service, conf.Server.Platform),
		Version:        conf.Trace.Version,
		TraceEndpoint:  conf.Trace.TraceEndpoint,
		MetricEndpoint: conf.Trace.MetricEndpoint,
	})
	db.InitPostgres(cmd.Context(), &db.Config{
		Host: conf.Database.Host, Port: conf.Database.Port,
		User: conf.Database.User, PW: conf.Database.Password,
		DBName: conf.Database.Name, LogConf: db.LogConf{Level: conf.Log.LogLevel},
	})
	redis.InitRedis(cmd.Context(), &redis.Redis{
		Host: conf.Redis.Host, Port: conf.Redis.Port,
		Password: conf.Redis.Password, DB: conf.Redis.DB,
	})
	return nil
}

func newRouter(cmd *cobra.Command, _ []string) error {
	router := gin.Default()
	closeControl := web.NewRouter(cmd.Root().Context(), router)
	conf := config.Global()
	port := conf.Server.Port
	addr := ":" + strconv.Itoa(port)

	httpServer := http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 30 * time.Second,
		IdleTimeout:       30 * time.Second,
		TLSNextProto:      make(map[string]func(*http.Server, *tls.Conn, http.Handler)),
	}

	fmt.Printf("Bridge server starting on http://0.0.0.0:%d\n", port)

	utils.SafelyGo(func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf(cmd.Context(), "start server err: %v", err)
			os.Exit(1)
		}
	})

	fmt.Printf("Server started. Press Ctrl+C to shutdown.\n")
	<-cmd.Context().Done()

	closeControl()
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		fmt.Printf("shut down server err: %+v", err)
	}
	return nil
}

func cleanWebResource(cmd *cobra.Command, _ []string) error {
	redis.CloseRedis(cmd.Context())
	db.ClosePostgres(cmd.Context())
	trace.CloseTrace()
	return nil
}
