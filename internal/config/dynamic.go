package config

import (
	"context"
	"os"
	"sync"
	"sync/atomic"

	"github.com/sethvargo/go-envconfig"
)

// ExchangeConfig holds the tunables of the variable-exchange path. The
// environment supplies the baseline, a config-center document may
// override it at runtime through SetDynamic.
type ExchangeConfig struct {
	// TempDir receives the feather files moving frames between the bridge
	// and R. Empty means the OS temp dir.
	TempDir string `env:"EXCHANGE_TEMP_DIR"`
	// MaxReprBytes caps the size of a single repr payload read back from R.
	MaxReprBytes int `env:"EXCHANGE_MAX_REPR_BYTES, default=33554432"`
	// PoolSize bounds concurrent per-variable transfers of one request.
	PoolSize int `env:"EXCHANGE_POOL_SIZE, default=16"`
}

// DynamicConfig is the hot-reloaded document watched on the config
// center. Zero fields keep the environment baseline.
type DynamicConfig struct {
	Exchange struct {
		TempDir      string `yaml:"temp_dir"`
		MaxReprBytes int    `yaml:"max_repr_bytes"`
		PoolSize     int    `yaml:"pool_size"`
	} `yaml:"exchange"`
}

var (
	exchangeConf ExchangeConfig
	exchangeOnce sync.Once
	dynamicConf  atomic.Pointer[DynamicConfig]
)

// SetDynamic swaps in a new hot config document, nil drops back to the
// environment baseline.
func SetDynamic(d *DynamicConfig) {
	dynamicConf.Store(d)
}

func Exchange() *ExchangeConfig {
	exchangeOnce.Do(func() {
		if err := envconfig.Process(context.Background(), &exchangeConf); err != nil {
			exchangeConf = ExchangeConfig{MaxReprBytes: 32 << 20, PoolSize: 16}
		}
		if exchangeConf.TempDir == "" {
			exchangeConf.TempDir = os.TempDir()
		}
	})

	d := dynamicConf.Load()
	if d == nil {
		return &exchangeConf
	}
	merged := exchangeConf
	if d.Exchange.TempDir != "" {
		merged.TempDir = d.Exchange.TempDir
	}
	if d.Exchange.MaxReprBytes > 0 {
		merged.MaxReprBytes = d.Exchange.MaxReprBytes
	}
	if d.Exchange.PoolSize > 0 {
		merged.PoolSize = d.Exchange.PoolSize
	}
	return &merged
}
