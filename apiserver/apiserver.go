// Package apiserver exposes the capture trigger and run status over HTTP.
package apiserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"landscapes2/capture"
)

const (
	shutdownTimeout = 10 * time.Second
	drainPoll       = 20 * time.Millisecond
)

// Trigger is the part of the capturer the server drives.
type Trigger interface {
	StartAsync(ctx context.Context, done func(*capture.RunState, error)) bool
	Snapshot() capture.Snapshot
	Running() bool
}

type startResponse struct {
	Started bool   `json:"started"`
	Reason  string `json:"reason,omitempty"`
}

// Server owns the routes and the context of the runs they start. Runs
// outlive the request that started them and are cancelled by Drain.
type Server struct {
	runCtx     context.Context
	cancelRuns context.CancelFunc
	trigger    Trigger
	log        zerolog.Logger
	router     *mux.Router
}

func New(trigger Trigger, log zerolog.Logger) *Server {
	runCtx, cancel := context.WithCancel(context.Background())
	s := &Server{runCtx: runCtx, cancelRuns: cancel, trigger: trigger, log: log}

	r := mux.NewRouter()
	r.HandleFunc("/capture", s.startCapture).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/capture", s.captureStatus).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/health/live", live).Methods(http.MethodGet)
	r.Use(mux.CORSMethodMiddleware(r))
	r.Use(allowAnyOrigin)
	s.router = r

	return s
}

func (s *Server) Handler() http.Handler { return s.router }

// Drain cancels any run started over HTTP and waits until the trigger is
// idle or ctx is done.
func (s *Server) Drain(ctx context.Context) error {
	s.cancelRuns()
	if !s.trigger.Running() {
		return nil
	}
	s.log.Info().Msg("Waiting for capture run to stop")

	tick := time.NewTicker(drainPoll)
	defer tick.Stop()
	for s.trigger.Running() {
		select {
		case <-ctx.Done():
			return fmt.Errorf("capture still running: %w", ctx.Err())
		case <-tick.C:
		}
	}
	return nil
}

func allowAnyOrigin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		if r.Method == http.MethodOptions {
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) startCapture(w http.ResponseWriter, r *http.Request) {
	started := s.trigger.StartAsync(s.runCtx, func(st *capture.RunState, err error) {
		if err != nil {
			s.log.Error().Err(err).Msg("http-triggered capture failed")
			return
		}
		if st != nil && st.Artifact != nil {
			s.log.Info().Str("run", st.ID.String()).Str("archive", st.Artifact.Path).Msg("http-triggered capture packaged")
		}
	})

	if !started {
		writeJSON(w, http.StatusOK, startResponse{Started: false, Reason: "disabled or already running"})
		return
	}
	s.log.Info().Str("remote", r.RemoteAddr).Msg("capture started over http")
	writeJSON(w, http.StatusAccepted, startResponse{Started: true})
}

func (s *Server) captureStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.trigger.Snapshot())
}

func live(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Run serves srv on addr until ctx is cancelled or the process gets
// SIGINT/SIGTERM. Each task runs next to the server and gets a context that
// is cancelled on shutdown. Run returns once in-flight captures have stopped.
func Run(ctx context.Context, addr string, srv *Server, log zerolog.Logger, tasks ...func(context.Context) error) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)
	stopCtx, stop := context.WithCancel(gCtx)
	defer stop()

	for _, task := range tasks {
		g.Go(func() error {
			return task(stopCtx)
		})
	}

	g.Go(func() error {
		log.Info().Str("address", addr).Msg("Running server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		case <-gCtx.Done():
			log.Info().Msg("Context cancelled, initiating shutdown")
		}
		stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("HTTP server shutdown error")
		}
		if err := srv.Drain(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Capture drain error")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info().Msg("Server stopped")
	return nil
}
