package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"PPRelay/global/config"
	"PPRelay/logger"
	mid "PPRelay/middleware"
	midsec "PPRelay/middleware/security"
	"PPRelay/module/user"
	usersvc "PPRelay/module/user/service"
	"PPRelay/service/chat"
	"PPRelay/service/metrics"
	"PPRelay/service/nacos"
	"PPRelay/service/storage"
	redisstore "PPRelay/service/storage/redis"
	jwtlib "PPRelay/tools/security"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const serviceName = "pprelay"

// App owns every long-lived component of one relay process.
type App struct {
	cfg     *config.AppConfig
	metrics *metrics.Metrics
	rdb     *redis.Client // nil with the memory backend

	engine *chat.Engine
	relay  *chat.SignalRelay
	disp   *chat.Dispatcher
	ws     *chat.Server
	users  *usersvc.Service
	live   *config.LiveConfig

	nacosWatch *nacos.Watcher
	nacosReg   *nacos.Registry
}

// NewApp builds the relay from cfg. Nothing listens yet.
func NewApp(ctx context.Context, cfg *config.AppConfig) (*App, error) {
	a := &App{cfg: cfg, metrics: metrics.New()}

	store, idem, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}

	chatReg := chat.NewConnManager(chat.ManagerConf{
		Name:       "chat",
		EvictAfter: cfg.RegistryEvictAfter,
		SweepEvery: cfg.RegistrySweepEvery,
	})
	sigReg := chat.NewConnManager(chat.ManagerConf{
		Name:       "signaling",
		EvictAfter: cfg.RegistryEvictAfter,
		SweepEvery: cfg.RegistrySweepEvery,
	})
	a.engine = chat.NewEngine(chatReg, store, idem, chat.NewLossPolicy(cfg.LossProbability), a.metrics,
		chat.EngineConf{EnqueueOnUnreachable: cfg.EnqueueOnUnreachable})
	a.relay = chat.NewSignalRelay(sigReg, a.metrics, cfg.SignalValidateSDP)
	a.disp = chat.NewDispatcher(a.engine, a.relay)
	a.ws = chat.NewServer(a.disp, a.metrics, chat.ServerConf{
		PingEvery:   cfg.PingEvery,
		PongWait:    cfg.PongWait,
		WriteWait:   cfg.WriteWait,
		ReadLimit:   cfg.ReadLimit,
		CheckOrigin: mid.OriginChecker(cfg.AllowedOrigins),
	})

	plain, err := usersvc.ParseUsers(cfg.Users)
	if err != nil {
		a.Close()
		return nil, err
	}
	creds, err := usersvc.NewCredentialStore(plain, bcrypt.DefaultCost)
	if err != nil {
		a.Close()
		return nil, err
	}
	jwtOpts := jwtlib.DefaultOptions(cfg.JwtKey())
	if cfg.JwtTTL > 0 {
		jwtOpts.TTL = cfg.JwtTTL
	}
	a.users = usersvc.NewService(creds, jwtOpts)

	a.live = config.NewLiveConfig(config.Tunables{
		SetLossProbability:      a.engine.Loss().Set,
		SetEnqueueOnUnreachable: a.engine.SetEnqueueOnUnreachable,
		SetSignalValidateSDP:    a.relay.SetValidate,
	})

	logger.Info("relay ready",
		zap.String("store", cfg.StoreBackend),
		zap.Float64("loss_probability", cfg.LossProbability),
		zap.Bool("enqueue_on_unreachable", cfg.EnqueueOnUnreachable),
		zap.Bool("auth_required", cfg.AuthRequired),
		zap.Strings("users", creds.Names()))
	return a, nil
}

func (a *App) openStore(ctx context.Context) (storage.PendingStore, storage.IdemStore, error) {
	cfg := a.cfg
	if cfg.StoreBackend == config.StoreMemory {
		logger.Warn("memory store: pending messages are lost on restart")
		return storage.NewMemPendingStore(), storage.NewMemIdem(cfg.IdemSize, cfg.IdemTTL), nil
	}
	rdb, err := redisstore.NewClient(ctx, redisstore.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		PoolSize: cfg.RedisPoolSize,
	})
	if err != nil {
		return nil, nil, err
	}
	a.rdb = rdb
	retry := storage.DefaultRetryPolicy()
	retry.MaxElapsed = cfg.StoreRetryMaxElapsed
	store := storage.NewRedisPendingStore(rdb, cfg.PendingPrefix, retry)
	return store, storage.NewRedisIdem(rdb, cfg.PendingPrefix+":idem", cfg.IdemTTL), nil
}

// Router builds the HTTP surface.
func (a *App) Router() *gin.Engine {
	r := gin.New()
	r.Use(mid.Recovery(), mid.AccessLog())

	uh := user.NewHandler(a.users, a.disp)
	mid.POST(r, "/login", uh.HandlerLogin, mid.RouteOpt{})
	mid.GET(r, "/users", uh.HandlerUsers, mid.RouteOpt{})

	wsOpt := mid.RouteOpt{}
	if a.cfg.AuthRequired {
		auth := midsec.DefaultOptions(a.users.Verify)
		auth.MatchParam = "username"
		wsOpt = mid.RouteOpt{IsAuth: true, Auth: auth}
	}
	mid.GET(r, "/ws/chat/:username", a.ws.HandleChatWS, wsOpt)
	mid.GET(r, "/ws/signaling/:username", a.ws.HandleSignalingWS, wsOpt)

	r.GET("/metrics", gin.WrapH(a.metrics.Handler()))
	r.GET("/healthz", a.healthz)
	return r
}

func (a *App) healthz(c *gin.Context) {
	if a.rdb != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
		defer cancel()
		if err := a.rdb.Ping(ctx).Err(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "store unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "online": len(a.disp.Online())})
}

// StartNacos subscribes to live overrides and, when enabled, registers this
// node. A no-op without NACOS_ADDR.
func (a *App) StartNacos() error {
	cfg := a.cfg
	if cfg.NacosAddr == "" {
		return nil
	}
	cli, err := nacos.NewClient(nacos.Options{
		Addr:      cfg.NacosAddr,
		Namespace: cfg.NacosNamespace,
		Username:  cfg.NacosUsername,
		Password:  cfg.NacosPassword,
		LogLevel:  cfg.LogLevel,
	})
	if err != nil {
		return err
	}
	a.nacosWatch = nacos.NewWatcher(cli.Config, cfg.NacosDataId, cfg.NacosGroup)
	if err := a.live.Watch(a.nacosWatch); err != nil {
		return err
	}
	if !cfg.NacosRegister {
		return nil
	}
	ip, port, err := advertiseAddr(cfg.Addr)
	if err != nil {
		return err
	}
	reg := nacos.NewRegistry(cli.Naming, serviceName, ip, port)
	reg.Metadata["node_id"] = strconv.FormatInt(cfg.NodeId, 10)
	if err := reg.Register(); err != nil {
		return err
	}
	a.nacosReg = reg
	return nil
}

// Shutdown closes sessions first so peers see the close frame, then releases
// the stores.
func (a *App) Shutdown() {
	if a.nacosReg != nil {
		if err := a.nacosReg.Deregister(); err != nil {
			logger.Warn("nacos deregister", zap.Error(err))
		}
	}
	if a.nacosWatch != nil {
		_ = a.nacosWatch.Stop()
	}
	a.ws.Shutdown()
	a.Close()
}

// Close releases registries and the store connection.
func (a *App) Close() {
	if a.disp != nil {
		a.disp.Close()
	}
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
}

// advertiseAddr turns a listen address into the ip:port peers should dial.
// An empty or wildcard host picks the first non-loopback IPv4 address.
func advertiseAddr(listen string) (string, uint64, error) {
	host, portStr, err := net.SplitHostPort(listen)
	if err != nil {
		return "", 0, fmt.Errorf("listen address %q: %w", listen, err)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return "", 0, fmt.Errorf("listen port %q: %w", portStr, err)
	}
	if host != "" && host != "0.0.0.0" && host != "::" {
		return host, port, nil
	}
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "", 0, err
	}
	for _, a := range addrs {
		if ipn, ok := a.(*net.IPNet); ok && !ipn.IP.IsLoopback() && ipn.IP.To4() != nil {
			return ipn.IP.String(), port, nil
		}
	}
	return "127.0.0.1", port, nil
}
