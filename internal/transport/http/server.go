package http

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// NewMux routes the public API through a gateway mux and adds the
// operational endpoints. ready reports whether the service can admit updates.
func NewMux(h *Handler, ready func() bool) (http.Handler, error) {
	gwMux := runtime.NewServeMux()
	if err := gwMux.HandlePath(http.MethodPost, "/api/v1/update", func(w http.ResponseWriter, r *http.Request, _ map[string]string) {
		h.ServeUpdate(w, r)
	}); err != nil {
		return nil, err
	}
	if err := gwMux.HandlePath(http.MethodGet, "/api/v1/ip", func(w http.ResponseWriter, r *http.Request, _ map[string]string) {
		ServeIP(w, r)
	}); err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/", gwMux)

	// /healthz: liveness
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// /readyz: not ready while there is nothing to admit
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if ready != nil && !ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not ready"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	mux.Handle("/metrics", promhttp.Handler())

	return mux, nil
}

// RunHTTPServer serves handler on addr until ctx is canceled.
// Request contexts derive from ctx, so a shutdown abandons pending
// convergence waits instead of holding the process for the full budget.
// maxWait is the longest an update may block and extends the write timeout.
func RunHTTPServer(ctx context.Context, addr string, handler http.Handler, maxWait time.Duration, log zerolog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      maxWait + 15*time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	// Graceful shutdown of the HTTP server when the parent context is canceled
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("graceful shutdown failed")
		}
	}()

	log.Info().Str("addr", addr).Msg("HTTP server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
