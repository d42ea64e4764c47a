package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"time"

	"github.com/dd0wney/vega-authsync/pkg/authstate"
	"github.com/dd0wney/vega-authsync/pkg/authtest"
	"github.com/dd0wney/vega-authsync/pkg/logging"
	"github.com/dd0wney/vega-authsync/pkg/server"
	authtls "github.com/dd0wney/vega-authsync/pkg/tls"
)

// secondaryAPIs are generated after PRIMARY, one per interval
var secondaryAPIs = []string{"WS_MD", "WS_OR", "OPT", "HIST", "BK"}

func main() {
	listen := flag.String("listen", ":8080", "Listen address")
	session := flag.String("session-id", "dev-session", "Session to emit events for")
	interval := flag.Duration("interval", 2*time.Second, "Delay between scripted events")
	expireAfter := flag.Duration("expire-after", 0, "Invalidate the session after this long (0 = never)")
	useTLS := flag.Bool("tls", false, "Serve wss:// and https:// with a self-signed certificate")
	certOut := flag.String("cert-out", "", "Write the generated certificate here for clients to trust")
	flag.Parse()

	logger := logging.NewJSONLogger(os.Stdout, logging.ParseLevel(os.Getenv("LOG_LEVEL")))

	srv := authtest.NewServer(
		authtest.WithLogger(logger),
		authtest.WithSnapshot(snapshotAfter(0)))

	gs := server.NewGracefulServer(*listen, srv, logger)
	if *useTLS {
		tlsCfg := authtls.DefaultConfig()
		tlsCfg.Enabled = true
		serverTLS, err := authtls.LoadServerConfig(tlsCfg)
		if err != nil {
			logger.Error("Failed to generate certificate", logging.Error(err))
			os.Exit(1)
		}
		if *certOut != "" {
			if err := authtls.SaveCertificate(serverTLS.Certificates[0], *certOut, ""); err != nil {
				logger.Error("Failed to write certificate", logging.Error(err))
				os.Exit(1)
			}
			logger.Info("Wrote dev certificate", logging.String("path", *certOut))
		}
		gs.SetTLSConfig(serverTLS)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go gs.HandleSignals(ctx)
	go script(ctx, srv, *session, *interval, *expireAfter, logger)

	logger.Info("Dev auth server listening",
		logging.String("addr", *listen),
		logging.SessionID(*session))

	if err := gs.Start(); err != nil {
		logger.Error("Server failed", logging.Error(err))
		os.Exit(1)
	}
}

// script emits the token generation sequence once a client connects, then
// heartbeats.
func script(ctx context.Context, srv *authtest.Server, session string, interval, expireAfter time.Duration, logger logging.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var expire <-chan time.Time
	if expireAfter > 0 {
		timer := time.NewTimer(expireAfter)
		defer timer.Stop()
		expire = timer.C
	}

	next := 0
	for {
		select {
		case <-ctx.Done():
			return

		case <-expire:
			if _, err := srv.Emit(session, authstate.SessionInvalidated{Reason: authstate.ReasonExpired}); err != nil {
				logger.Warn("Expiry not delivered", logging.Error(err))
			}
			srv.SetSessionStatus(http.StatusUnauthorized)
			expire = nil

		case <-ticker.C:
			var payload authstate.Payload = authstate.Heartbeat{}
			if next < len(secondaryAPIs) {
				payload = authstate.TokenReady{API: secondaryAPIs[next]}
			}

			event, err := srv.Emit(session, payload)
			if errors.Is(err, authtest.ErrNoSession) {
				continue
			}
			if err != nil {
				logger.Warn("Emit failed", logging.Error(err))
				continue
			}
			if next < len(secondaryAPIs) {
				next++
				srv.SetSnapshot(snapshotAfter(next))
			}
			logger.Debug("Emitted", logging.Seq(event.Seq), logging.EventType(string(event.Type())))
		}
	}
}

// snapshotAfter is the session endpoint view once ready secondary tokens
// have been generated
func snapshotAfter(ready int) authstate.Snapshot {
	valid := append([]string{authstate.PrimaryAPI}, secondaryAPIs[:ready]...)
	required := len(secondaryAPIs) + 1

	return authstate.Snapshot{
		Status:          "SUCCESS",
		State:           "PRIMARY_VALIDATED",
		PrimaryReady:    true,
		FullyReady:      len(valid) >= required,
		GeneratedTokens: len(valid),
		RequiredTokens:  required,
		ValidTokens:     valid,
		MissingAPIs:     append([]string(nil), secondaryAPIs[ready:]...),
	}
}
