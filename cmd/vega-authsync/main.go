package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/dd0wney/vega-authsync/pkg/authphase"
	"github.com/dd0wney/vega-authsync/pkg/authstate"
	"github.com/dd0wney/vega-authsync/pkg/bootstrap"
	"github.com/dd0wney/vega-authsync/pkg/broadcast"
	"github.com/dd0wney/vega-authsync/pkg/config"
	"github.com/dd0wney/vega-authsync/pkg/coordinator"
	"github.com/dd0wney/vega-authsync/pkg/health"
	"github.com/dd0wney/vega-authsync/pkg/logging"
	"github.com/dd0wney/vega-authsync/pkg/metrics"
	"github.com/dd0wney/vega-authsync/pkg/server"
	"github.com/dd0wney/vega-authsync/pkg/transport"
)

func main() {
	configPath := flag.String("config", "", "YAML config file")
	tabID := flag.String("tab-id", "", "Tab id (default: random UUID)")
	sessionID := flag.String("session-id", "", "Session id shared by every tab of the origin")
	listen := flag.String("listen", "", "HTTP listen address for metrics, health and guard")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.ErrorLog("Failed to load configuration", logging.Error(err))
		os.Exit(1)
	}
	if *tabID != "" {
		cfg.Tab.ID = *tabID
	}
	if *sessionID != "" {
		cfg.Tab.SessionID = *sessionID
	}
	if *listen != "" {
		cfg.HTTP.Listen = *listen
	}
	if cfg.Tab.ID == "" {
		cfg.Tab.ID = uuid.NewString()
	}
	if err := cfg.Validate(); err != nil {
		logging.ErrorLog("Invalid configuration", logging.Error(err))
		os.Exit(1)
	}

	logger := logging.NewJSONLogger(os.Stdout, logging.ParseLevel(cfg.LogLevel))
	logging.SetDefaultLogger(logger)
	reg := metrics.DefaultRegistry()

	logger.Info("vega-authsync starting",
		logging.TabID(cfg.Tab.ID),
		logging.String("channel", cfg.Channel.Name),
		logging.Kind(cfg.Channel.Kind))

	port, err := cfg.OpenPort(
		broadcast.WithLogger(logger),
		broadcast.WithMetrics(reg),
		broadcast.WithSelf(cfg.Tab.ID))
	if err != nil {
		logger.Error("Failed to open replication channel", logging.Error(err))
		os.Exit(1)
	}

	clientTLS, err := cfg.ClientTLSConfig()
	if err != nil {
		logger.Error("Invalid client TLS settings", logging.Error(err))
		os.Exit(1)
	}
	serverTLS, err := cfg.ServerTLSConfig()
	if err != nil {
		logger.Error("Invalid listener TLS settings", logging.Error(err))
		os.Exit(1)
	}

	httpClient := &http.Client{Transport: &http.Transport{
		Proxy:           http.ProxyFromEnvironment,
		TLSClientConfig: clientTLS,
	}}
	fetcher, err := bootstrap.NewHTTPFetcher(cfg.BootstrapSettings(), httpClient)
	if err != nil {
		logger.Error("Invalid bootstrap settings", logging.Error(err))
		os.Exit(1)
	}

	dialer := transport.NewWebSocketDialer(clientTLS, cfg.Transport.HandshakeTimeout)
	tab, err := coordinator.New(cfg.CoordinatorConfig(), port, dialer, fetcher,
		coordinator.WithLogger(logger),
		coordinator.WithMetrics(reg))
	if err != nil {
		logger.Error("Failed to create tab", logging.Error(err))
		os.Exit(1)
	}
	coordinator.SetDefault(tab)

	tab.Subscribe(func(s authstate.State) {
		logger.Debug("Auth state changed",
			logging.Phase(string(authphase.Derive(s))),
			logging.LastSeq(s.LastSeq),
			logging.Bool("leader", s.IsLeader),
			logging.Bool("connected", s.Connected))
	})

	if err := tab.Start(); err != nil {
		logger.Error("Failed to start tab", logging.Error(err))
		os.Exit(1)
	}

	hc := health.NewHealthChecker()
	tab.RegisterHealthChecks(hc)

	gs := server.NewGracefulServer(cfg.HTTP.Listen, server.NewRouter(tab, hc, reg, logger), logger)
	gs.SetTLSConfig(serverTLS)
	gs.SetConfigReloadFunc(func() error {
		next, err := config.Load(*configPath)
		if err != nil {
			return err
		}
		logger.SetLevel(logging.ParseLevel(next.LogLevel))
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go gs.HandleSignals(ctx)

	go func() {
		if err := gs.Start(); err != nil {
			logger.Error("HTTP server failed", logging.Error(err))
			gs.Shutdown(5 * time.Second)
		}
	}()

	<-gs.ShutdownChannel()

	if err := tab.Close(); err != nil {
		logger.Warn("Tab close error", logging.Error(err))
	}
	logger.Info("vega-authsync stopped", logging.TabID(tab.ID()))
}
