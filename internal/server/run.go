package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/funnelhq/funnel360/internal/store"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// ShutdownTimeout bounds how long in-flight requests may take to finish.
const ShutdownTimeout = 10 * time.Second

// Configure returns an http.Server with conservative timeouts.
func Configure(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       time.Minute,
		WriteTimeout:      time.Minute,
		IdleTimeout:       5 * time.Minute,
		MaxHeaderBytes:    8 * 1024, // 8KiB
	}
}

// TLS names the certificate pair to serve with. The zero value serves
// plain HTTP.
type TLS struct {
	Cert string
	Key  string
}

// Run serves srv until ctx is cancelled, then shuts it down gracefully.
// Expired sessions are removed every cleanupInterval; zero disables cleanup.
func Run(ctx context.Context, srv *http.Server, tls TLS, sessions store.SessionStore, cleanupInterval time.Duration) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		if tls.Cert != "" {
			err = srv.ListenAndServeTLS(tls.Cert, tls.Key)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("Shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	if sessions != nil && cleanupInterval > 0 {
		g.Go(func() error {
			CleanupSessions(ctx, sessions, cleanupInterval)
			return nil
		})
	}

	return g.Wait()
}

// CleanupSessions deletes expired sessions every interval until ctx ends.
func CleanupSessions(ctx context.Context, sessions store.SessionStore, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := sessions.DeleteExpired(ctx)
			if err != nil {
				if ctx.Err() == nil {
					log.Error().Err(err).Msg("Failed to delete expired sessions")
				}
				continue
			}
			if n > 0 {
				log.Info().Int("count", n).Msg("Deleted expired sessions")
			}
		}
	}
}
