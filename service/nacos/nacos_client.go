package nacos

import (
	"fmt"
	"net"
	"strconv"

	"github.com/nacos-group/nacos-sdk-go/v2/clients"
	"github.com/nacos-group/nacos-sdk-go/v2/clients/config_client"
	"github.com/nacos-group/nacos-sdk-go/v2/clients/naming_client"
	"github.com/nacos-group/nacos-sdk-go/v2/common/constant"
	"github.com/nacos-group/nacos-sdk-go/v2/vo"
)

type Options struct {
	Addr      string // host:port
	Namespace string
	Username  string
	Password  string
	TimeoutMs uint64
	CacheDir  string
	LogDir    string
	LogLevel  string
}

// Client bundles the config and naming clients of one Nacos server.
type Client struct {
	Config config_client.IConfigClient
	Naming naming_client.INamingClient
}

func NewClient(o Options) (*Client, error) {
	server, err := serverConfig(o.Addr)
	if err != nil {
		return nil, err
	}
	param := vo.NacosClientParam{
		ClientConfig:  clientConfig(o),
		ServerConfigs: []constant.ServerConfig{server},
	}
	cc, err := clients.NewConfigClient(param)
	if err != nil {
		return nil, fmt.Errorf("create nacos config client: %w", err)
	}
	nc, err := clients.NewNamingClient(param)
	if err != nil {
		return nil, fmt.Errorf("create nacos naming client: %w", err)
	}
	return &Client{Config: cc, Naming: nc}, nil
}

func serverConfig(addr string) (constant.ServerConfig, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return constant.ServerConfig{}, fmt.Errorf("nacos addr %q: %w", addr, err)
	}
	port, err := strconv.ParseUint(portStr, 10, 64)
	if err != nil || port == 0 {
		return constant.ServerConfig{}, fmt.Errorf("nacos addr %q: bad port", addr)
	}
	return *constant.NewServerConfig(host, port), nil
}

func clientConfig(o Options) *constant.ClientConfig {
	if o.TimeoutMs == 0 {
		o.TimeoutMs = 5000
	}
	if o.CacheDir == "" {
		o.CacheDir = "nacos/cache"
	}
	if o.LogDir == "" {
		o.LogDir = "nacos/log"
	}
	if o.LogLevel == "" {
		o.LogLevel = "warn"
	}
	return constant.NewClientConfig(
		constant.WithNamespaceId(o.Namespace),
		constant.WithTimeoutMs(o.TimeoutMs),
		constant.WithNotLoadCacheAtStart(true),
		constant.WithLogLevel(o.LogLevel),
		constant.WithCacheDir(o.CacheDir),
		constant.WithLogDir(o.LogDir),
		constant.WithUsername(o.Username),
		constant.WithPassword(o.Password),
	)
}
