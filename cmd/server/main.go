package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	database "github.com/tera-bt/teraland-gateway/internal"
	"github.com/tera-bt/teraland-gateway/internal/api"
	"github.com/tera-bt/teraland-gateway/internal/audit"
	"github.com/tera-bt/teraland-gateway/internal/config"
	"github.com/tera-bt/teraland-gateway/internal/fabric"
	"github.com/tera-bt/teraland-gateway/internal/land"
	"github.com/tera-bt/teraland-gateway/internal/logging"
	"github.com/tera-bt/teraland-gateway/internal/mesh"
	"github.com/tera-bt/teraland-gateway/internal/wallet"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("config: %v", err)
	}
	logging.SetLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var db *sqlx.DB
	if cfg.DB.DSN != "" {
		db, err = database.Connect(ctx, cfg.DB.DSN)
		if err != nil {
			logging.Fatal("database: %v", err)
		}
		defer db.Close()
	}

	var store wallet.Store
	switch cfg.Wallet.Backend {
	case "postgres":
		store = wallet.NewSQLStore(db)
	default:
		fs, err := wallet.NewFileStore(cfg.Wallet.Dir)
		if err != nil {
			logging.Fatal("wallet: %v", err)
		}
		store = fs
	}
	w := wallet.New(store)

	factory := &fabric.Factory{
		Identities:  w,
		ProfilePath: cfg.Fabric.Profile,
		Channel:     cfg.Fabric.Channel,
		Contract:    cfg.Fabric.Contract,
		Peer:        cfg.Fabric.Peer,
		Discovery:   fabric.Discovery{Enabled: cfg.Fabric.Discovery, AsLocalhost: cfg.Fabric.AsLocalhost},
		Connector:   fabric.GatewayConnector{},
	}

	bus := mesh.Bus(mesh.NewLocalBus())
	if cfg.NATS.URL != "" {
		nb, err := mesh.NewNatsBus(cfg.NATS.URL)
		if err != nil {
			logging.Warn("nats unavailable, using in-process bus: %v", err)
		} else {
			bus = nb
		}
	}
	defer bus.Close()
	for _, topic := range []string{mesh.TopicLandListed, mesh.TopicLandForSale, mesh.TopicLandSold, mesh.TopicLandTransferred} {
		if _, err := bus.Subscribe(topic, func(_ context.Context, e mesh.Event) {
			logging.Info("event %s id=%s %s", e.Topic, e.ID, e.Payload)
		}); err != nil {
			logging.Warn("subscribe %s: %v", topic, err)
		}
	}

	var (
		rec      audit.Recorder = audit.Nop{}
		verifier audit.Verifier
	)
	if db != nil {
		l := &audit.Ledger{DB: db}
		rec, verifier = l, l
		if cfg.Audit.VerifyCron != "" {
			sched, err := audit.NewScheduler(l, cfg.Audit.VerifyCron, cfg.Fabric.Channel)
			if err != nil {
				logging.Fatal("audit.verify_cron: %v", err)
			}
			sched.Start()
			defer sched.Stop()
		}
	}

	var rc *redis.Client
	if cfg.Redis.Addr != "" {
		rc = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rc.Close()
	}

	shutdownTracing, tracing := api.SetupOTel(cfg.OTel.Enable, cfg.OTel.Endpoint)
	if tracing {
		defer shutdownTracing(context.Background())
	}

	controller := &land.Controller{
		Gateway:         &fabric.Gateway{Sessions: factory, Timeout: cfg.Gateway.Timeout},
		Bus:             bus,
		Audit:           rec,
		Channel:         cfg.Fabric.Channel,
		ServiceIdentity: cfg.Gateway.ServiceIdentity,
		ReadIdentity:    cfg.Gateway.ReadIdentity,
	}
	server := &api.Server{
		Lands:       controller,
		Wallet:      w,
		Audit:       verifier,
		Channel:     cfg.Fabric.Channel,
		ProfilePath: cfg.Fabric.Profile,
	}
	router := api.NewRouter(server, api.RouterConfig{
		CORSOrigins:    cfg.HTTP.CORSOrigins,
		TrustedProxies: cfg.HTTP.TrustedProxies,
		RatePerMinute:  cfg.HTTP.RatePerMinute,
		Redis:          rc,
		JWTSecret:      []byte(cfg.JWT.Secret),
		Tracing:        tracing,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTP.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logging.Info("TeraLand gateway listening on :%s channel=%s contract=%s", cfg.HTTP.Port, cfg.Fabric.Channel, cfg.Fabric.Contract)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("server: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	logging.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), cfg.Gateway.Timeout+5*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		logging.Error("shutdown: %v", err)
	}
}
