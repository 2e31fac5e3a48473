package health

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/polyglotlab/sosr/internal/config"
	"github.com/polyglotlab/sosr/pkg/middleware/db"
	"github.com/polyglotlab/sosr/pkg/middleware/redis"
	"github.com/polyglotlab/sosr/pkg/repo/gateway"
)

// Health reports the process is up.
func Health(g *gin.Context) {
	g.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Live is a lightweight liveness probe, the process is alive.
func Live(g *gin.Context) {
	g.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready verifies the bridge's downstream dependencies.
func Ready(g *gin.Context) {
	checks := gin.H{}
	healthy := true

	if ds := db.DB(); ds != nil {
		sqlDB, err := ds.DBIns().DB()
		if err != nil || sqlDB.PingContext(g.Request.Context()) != nil {
			checks["postgres"] = "unhealthy"
			healthy = false
		} else {
			checks["postgres"] = "ok"
		}
	} else {
		checks["postgres"] = "not_initialized"
		healthy = false
	}

	if rc := redis.GetClient(); rc != nil {
		if err := rc.Ping(g.Request.Context()).Err(); err != nil {
			checks["redis"] = "unhealthy"
			healthy = false
		} else {
			checks["redis"] = "ok"
		}
	} else {
		checks["redis"] = "not_initialized"
		healthy = false
	}

	specs, err := gateway.New().ListKernelSpecs(g.Request.Context())
	switch {
	case err != nil:
		checks["gateway"] = "unhealthy"
		healthy = false
	case specs.KernelSpecs[config.Global().Gateway.KernelName] == nil:
		checks["gateway"] = "missing_kernelspec"
		healthy = false
	default:
		checks["gateway"] = "ok"
	}

	status := http.StatusOK
	msg := "ready"
	if !healthy {
		status = http.StatusServiceUnavailable
		msg = "not_ready"
	}

	g.JSON(status, gin.H{
		"status": msg,
		"checks": checks,
	})
}
