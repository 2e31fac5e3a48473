package config

type Database struct {
	Host     string `mapstructure:"DATABASE_HOST" default:"localhost"`
	Port     int    `mapstructure:"DATABASE_PORT" default:"5432"`
	Name     string `mapstructure:"DATABASE_NAME" default:"sosr"`
	User     string `mapstructure:"DATABASE_USER" default:"postgres"`
	Password string `mapstructure:"DATABASE_PASSWORD" default:"sosr"`
}

type Redis struct {
	Host     string `mapstructure:"REDIS_HOST" default:"127.0.0.1"`
	Port     int    `mapstructure:"REDIS_PORT" default:"6379"`
	Password string `mapstructure:"REDIS_PASSWORD"`
	DB       int    `mapstructure:"REDIS_DB" default:"0"`
}

type Server struct {
	Platform string `mapstructure:"PLATFORM" default:"sosr"`
	Service  string `mapstructure:"SERVICE" default:"bridge"`
	Port     int    `mapstructure:"WEB_PORT" default:"8028"`
	Env      string `mapstructure:"ENV" default:"dev"`
}

// Gateway points the bridge at a Jupyter Kernel Gateway that hosts the
// IRkernel instances.
type Gateway struct {
	Addr           string `mapstructure:"GATEWAY_ADDR" default:"http://127.0.0.1:8888"`
	AuthToken      string `mapstructure:"GATEWAY_AUTH_TOKEN"`
	KernelName     string `mapstructure:"GATEWAY_KERNEL_NAME" default:"ir"`
	StartTimeout   int    `mapstructure:"GATEWAY_START_TIMEOUT" default:"60"`   // seconds
	ExecuteTimeout int    `mapstructure:"GATEWAY_EXECUTE_TIMEOUT" default:"30"` // seconds
}

// Nacos locates the config center that hot-reloads DynamicConfig. An
// empty endpoint disables the watch.
type Nacos struct {
	Endpoint    string `mapstructure:"NACOS_ENDPOINT"`
	Port        uint64 `mapstructure:"NACOS_PORT" default:"8848"`
	User        string `mapstructure:"NACOS_USER"`
	Password    string `mapstructure:"NACOS_PASSWORD"`
	NamespaceID string `mapstructure:"NACOS_NAMESPACE_ID"`
	DataID      string `mapstructure:"NACOS_DATA_ID" default:"sosr-bridge"`
	Group       string `mapstructure:"NACOS_GROUP" default:"DEFAULT_GROUP"`
	NeedWatch   bool   `mapstructure:"NACOS_NEED_WATCH" default:"true"`
}

type Auth struct {
	Secret string `mapstructure:"AUTH_SECRET" default:"sosr-dev-secret"`
	ApiKey string `mapstructure:"AUTH_API_KEY"`
}

type Log struct {
	LogPath  string `mapstructure:"LOG_PATH" default:"./info.log"`
	LogLevel string `mapstructure:"LOG_LEVEL" default:"info"`
}

type Trace struct {
	Version        string `mapstructure:"TRACE_VERSION" default:"0.0.1"`
	TraceEndpoint  string `mapstructure:"TRACE_TRACEENDPOINT" default:""`
	MetricEndpoint string `mapstructure:"TRACE_METRICENDPOINT" default:""`
}
