package nacos

import (
	"fmt"

	"PPRelay/logger"

	"github.com/nacos-group/nacos-sdk-go/v2/clients/naming_client"
	"github.com/nacos-group/nacos-sdk-go/v2/vo"
	"go.uber.org/zap"
)

// Registry announces this relay node in Nacos naming so load balancers can
// discover it.
type Registry struct {
	ServiceName string
	Port        uint64
	IP          string
	Group       string
	Metadata    map[string]string

	client naming_client.INamingClient
}

func NewRegistry(client naming_client.INamingClient, serviceName, ip string, port uint64) *Registry {
	return &Registry{
		ServiceName: serviceName,
		Port:        port,
		IP:          ip,
		Group:       "DEFAULT_GROUP",
		Metadata:    map[string]string{"protocol": "ws"},
		client:      client,
	}
}

func (r *Registry) Register() error {
	ok, err := r.client.RegisterInstance(vo.RegisterInstanceParam{
		Ip:          r.IP,
		Port:        r.Port,
		ServiceName: r.ServiceName,
		GroupName:   r.Group,
		ClusterName: "DEFAULT",
		Weight:      1,
		Enable:      true,
		Healthy:     true,
		Ephemeral:   true,
		Metadata:    r.Metadata,
	})
	if err != nil {
		return fmt.Errorf("register failed: %w", err)
	}
	if !ok {
		return fmt.Errorf("register failed: returned false")
	}
	logger.Info("registered in nacos", zap.String("service", r.ServiceName),
		zap.String("ip", r.IP), zap.Uint64("port", r.Port))
	return nil
}

func (r *Registry) Deregister() error {
	_, err := r.client.DeregisterInstance(vo.DeregisterInstanceParam{
		Ip:          r.IP,
		Port:        r.Port,
		ServiceName: r.ServiceName,
		GroupName:   r.Group,
		Cluster:     "DEFAULT",
		Ephemeral:   true,
	})
	return err
}
