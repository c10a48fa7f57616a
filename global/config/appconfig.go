package config

import "time"

// AppConfig is the relay's static configuration, read from the environment
// (and an optional .env file) at start-up.
type AppConfig struct {
	NodeId   int64  `envconfig:"NODE_ID" default:"1"` // snowflake node for session ids
	Addr     string `envconfig:"ADDR" default:":8000"`
	GrpcAddr string `envconfig:"GRPC_ADDR"` // empty disables the gRPC health server
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// delivery
	LossProbability      float64       `envconfig:"LOSS_PROBABILITY" default:"0.5"`
	EnqueueOnUnreachable bool          `envconfig:"ENQUEUE_ON_UNREACHABLE" default:"true"`
	IdemTTL              time.Duration `envconfig:"IDEM_TTL" default:"10m"`
	IdemSize             int           `envconfig:"IDEM_SIZE" default:"100000"`
	SignalValidateSDP    bool          `envconfig:"SIGNAL_VALIDATE_SDP" default:"false"`

	// registry
	RegistryEvictAfter time.Duration `envconfig:"REGISTRY_EVICT_AFTER" default:"24h"`
	RegistrySweepEvery time.Duration `envconfig:"REGISTRY_SWEEP_EVERY" default:"1m"`

	// websocket
	PingEvery      time.Duration `envconfig:"WS_PING_EVERY" default:"25s"`
	PongWait       time.Duration `envconfig:"WS_PONG_WAIT" default:"60s"`
	WriteWait      time.Duration `envconfig:"WS_WRITE_WAIT" default:"10s"`
	ReadLimit      int64         `envconfig:"WS_READ_LIMIT" default:"65536"`
	AllowedOrigins []string      `envconfig:"ALLOWED_ORIGINS"`

	// pending store
	StoreBackend         string        `envconfig:"STORE_BACKEND" default:"redis"` // redis | memory
	RedisAddr            string        `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	RedisPassword        string        `envconfig:"REDIS_PASSWORD"`
	RedisDB              int           `envconfig:"REDIS_DB" default:"0"`
	RedisPoolSize        int           `envconfig:"REDIS_POOL_SIZE" default:"20"`
	PendingPrefix        string        `envconfig:"PENDING_PREFIX" default:"pending"`
	StoreRetryMaxElapsed time.Duration `envconfig:"STORE_RETRY_MAX_ELAPSED" default:"5s"`

	// auth
	Users        string        `envconfig:"USERS" default:"alice:password123,bob:password456"`
	JwtSecret    string        `envconfig:"JWT_SECRET"`
	JwtTTL       time.Duration `envconfig:"JWT_TTL" default:"2h"`
	AuthRequired bool          `envconfig:"AUTH_REQUIRED" default:"false"`

	// live overrides
	NacosAddr      string `envconfig:"NACOS_ADDR"` // host:port; empty disables
	NacosNamespace string `envconfig:"NACOS_NAMESPACE"`
	NacosUsername  string `envconfig:"NACOS_USERNAME"`
	NacosPassword  string `envconfig:"NACOS_PASSWORD"`
	NacosDataId    string `envconfig:"NACOS_DATA_ID" default:"pprelay"`
	NacosGroup     string `envconfig:"NACOS_GROUP" default:"DEFAULT_GROUP"`
	NacosRegister  bool   `envconfig:"NACOS_REGISTER" default:"false"`
}
