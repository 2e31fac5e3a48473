package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v2"
)

func TestDefaults(t *testing.T) {
	conf := Global()

	assert.Equal(t, "sosr", conf.Server.Platform)
	assert.Equal(t, "bridge", conf.Server.Service)
	assert.Equal(t, 8028, conf.Server.Port)

	assert.Equal(t, "http://127.0.0.1:8888", conf.Gateway.Addr)
	assert.Equal(t, "ir", conf.Gateway.KernelName)
	assert.Equal(t, 60, conf.Gateway.StartTimeout)
	assert.Equal(t, 30, conf.Gateway.ExecuteTimeout)

	assert.Equal(t, "localhost", conf.Database.Host)
	assert.Equal(t, 5432, conf.Database.Port)
	assert.Equal(t, "127.0.0.1", conf.Redis.Host)
}

func TestExchangeDefaults(t *testing.T) {
	ex := Exchange()

	assert.NotEmpty(t, ex.TempDir)
	assert.Equal(t, 32<<20, ex.MaxReprBytes)
	assert.Equal(t, 16, ex.PoolSize)
}

func TestDynamicOverridesExchange(t *testing.T) {
	base := Exchange()
	t.Cleanup(func() { SetDynamic(nil) })

	d := &DynamicConfig{}
	require.NoError(t, yaml.Unmarshal([]byte("exchange:\n  max_repr_bytes: 1024\n  pool_size: 4\n"), d))
	SetDynamic(d)

	conf := Exchange()
	assert.Equal(t, 1024, conf.MaxReprBytes)
	assert.Equal(t, 4, conf.PoolSize)
	// unset fields keep the environment baseline
	assert.Equal(t, base.TempDir, conf.TempDir)

	SetDynamic(nil)
	assert.Equal(t, base.MaxReprBytes, Exchange().MaxReprBytes)
}
