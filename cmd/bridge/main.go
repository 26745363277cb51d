package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sheetbridge.dev/internal/adapter"
	"sheetbridge.dev/internal/admin"
	"sheetbridge.dev/internal/api"
	"sheetbridge.dev/internal/config"
	"sheetbridge.dev/internal/dispatch"
	"sheetbridge.dev/internal/host"
	"sheetbridge.dev/internal/reconcile"
	"sheetbridge.dev/internal/session"
)

const appVersion = "0.4.0"

// sessionControl couples the token store with the socket hub so that bulk
// revocation also tears down the host channels behind those tokens.
type sessionControl struct {
	store *session.Store
	hub   *host.SocketHub
}

func (c *sessionControl) PrimaryCredential() (host.Credential, bool) {
	return c.store.PrimaryCredential()
}

func (c *sessionControl) HasSessions() bool {
	return c.store.Len() > 0
}

func (c *sessionControl) RevokeAll(reason string) int {
	n := c.store.RevokeAll(reason)
	c.hub.CloseAll()
	return n
}

func (c *sessionControl) RevokeOnWorldChange(worldID string) int {
	n := c.store.RevokeOnWorldChange(worldID)
	c.hub.CloseAll()
	return n
}

func main() {
	var (
		cfgPath    = flag.String("config", "", "path to bridge.yaml")
		listenAddr = flag.String("listen", "", "bridge API address (overrides config)")
		adminAddr  = flag.String("admin", "", "admin API address (overrides config)")
		hostURL    = flag.String("host", "", "host base URL (overrides config)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bridge] ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logger.Fatalf("config: %v", err)
	}
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}
	if *adminAddr != "" {
		cfg.AdminAddr = *adminAddr
	}
	if *hostURL != "" {
		cfg.HostURL = *hostURL
	}

	client := host.NewClient(cfg.HostURL, cfg.RequestTimeout, cfg.LoginTimeout)
	hub := host.NewSocketHub(client.SocketURL(), log.New(os.Stdout, "[socket] ", log.LstdFlags))
	store := session.NewStore(cfg.SessionIdleExpiry, log.New(os.Stdout, "[session] ", log.LstdFlags))
	registry := adapter.NewRegistry()
	dispatcher := dispatch.New(client, dispatch.DefaultCatalog(), log.New(os.Stdout, "[dispatch] ", log.LstdFlags))

	ctrl := &sessionControl{store: store, hub: hub}
	loop := reconcile.NewLoop(client, ctrl, hub.AnyAuthenticated, reconcile.Cadence{
		Status: cfg.PollStatusEvery,
		Users:  cfg.PollUsersEvery,
		Chat:   cfg.PollChatEvery,
		Combat: cfg.PollCombatEvery,
	}, appVersion, log.New(os.Stdout, "[reconcile] ", log.LstdFlags))

	cache, err := admin.OpenCache(cfg.CacheDB)
	if err != nil {
		logger.Fatalf("cache: %v", err)
	}
	defer cache.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	loop.Start(ctx)

	apiSrv := api.NewServer(client, store, registry, dispatcher, hub, loop.Snapshot, cfg.DebugLevel, logger)
	adminSrv := admin.NewServer(cfg.AdminKey, cfg.DataRoot, client, cache, loop.Snapshot, log.New(os.Stdout, "[admin] ", log.LstdFlags))

	bridgeHTTP := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           apiSrv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	adminHTTP := &http.Server{
		Addr:              cfg.AdminAddr,
		Handler:           adminSrv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Printf("bridge API on %s (host %s)", cfg.ListenAddr, cfg.HostURL)
		if err := bridgeHTTP.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	go func() {
		logger.Printf("admin API on %s", cfg.AdminAddr)
		if err := adminHTTP.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		logger.Fatalf("serve: %v", err)
	case <-stop:
	}

	logger.Printf("shutting down")
	shCtx, shCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shCancel()
	_ = bridgeHTTP.Shutdown(shCtx)
	_ = adminHTTP.Shutdown(shCtx)
	loop.Stop()
	hub.CloseAll()
}
