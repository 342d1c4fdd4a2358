// Command reqcache-proxy serves a registry of named upstream requests over
// HTTP, answering from the cache when it can.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sternrassler/reqcache/pkg/api"
	"github.com/Sternrassler/reqcache/pkg/cache"
	"github.com/Sternrassler/reqcache/pkg/client"
	"github.com/Sternrassler/reqcache/pkg/logging"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2/clientcredentials"
)

func main() {
	cfg, err := loadConfig(nil)
	if err != nil {
		logging.Setup(logging.DefaultConfig())
		logger := logging.NewLogger(logging.ComponentProxy)
		logger.Fatal().Err(err).Msg("Invalid configuration")
	}

	logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.LogLevel),
		Pretty: cfg.LogPretty,
		Output: os.Stdout,
	})
	logger := logging.NewLogger(logging.ComponentProxy)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("Proxy failed")
	}
}

func run(ctx context.Context, cfg Config, logger zerolog.Logger) error {
	fileCfg, err := api.LoadConfig(cfg.ConfigPath)
	if err != nil {
		return err
	}
	registryCfg, err := fileCfg.Build(map[string]api.Validator{"any": api.AnyJSON()})
	if err != nil {
		return err
	}

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	transport, err := newTransport(ctx, cfg)
	if err != nil {
		return err
	}

	coordinator, err := cache.NewCoordinator(st.responses, st.metadata, transport,
		cache.WithFetchTimeout(cfg.FetchTimeout),
	)
	if err != nil {
		return err
	}

	registry, err := api.New(registryCfg, coordinator)
	if err != nil {
		return err
	}

	if cfg.SweepInterval > 0 {
		go sweep(ctx, coordinator, cfg.SweepInterval, logger)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newRouter(registry, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", srv.Addr).
			Str("store", cfg.Store).
			Strs("requests", registry.Names()).
			Msg("Starting reqcache proxy")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newTransport(ctx context.Context, cfg Config) (*client.HTTPTransport, error) {
	tcfg := client.DefaultConfig(cfg.UserAgent)
	if cfg.OAuth2.Enabled() {
		cc := clientcredentials.Config{
			ClientID:     cfg.OAuth2.ClientID,
			ClientSecret: cfg.OAuth2.ClientSecret,
			TokenURL:     cfg.OAuth2.TokenURL,
			Scopes:       cfg.OAuth2.Scopes,
		}
		tcfg.TokenSource = cc.TokenSource(context.WithoutCancel(ctx))
	}
	return client.New(tcfg)
}

// sweep evicts stale responses every interval until ctx is done.
func sweep(ctx context.Context, c *cache.Coordinator, interval time.Duration, logger zerolog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := c.Sweep(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn().Err(err).Msg("Sweep failed")
				continue
			}
			if n > 0 {
				logger.Debug().Int("evicted", n).Msg("Swept stale responses")
			}
		}
	}
}
