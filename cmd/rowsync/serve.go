package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rzpsarthak13/rowsync/pkg/rowsync"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the users demo API",
	Long: `Serve a small HTTP API over the cached users table:

  GET    /health
  POST   /users                        create a row and cache it
  GET    /users/{id}                   relational snapshot
  DELETE /users/{id}                   evict the cached row
  GET    /users/{id}/fields/{field}    read a cached field
  PUT    /users/{id}/fields/{field}    write a cached field ({"value": ...})
  DELETE /users/{id}/fields/{field}    drop a cached field
  POST   /users/{id}/push              push cached fields to the database
  POST   /users/{id}/schedule          queue the row for the drainer`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		client, err := connect(cmd)
		if err != nil {
			return err
		}
		defer client.Close()

		if err := client.Start(ctx); err != nil {
			return fmt.Errorf("failed to start drainer: %w", err)
		}

		srv := &http.Server{
			Addr:              serveAddr,
			Handler:           newServer(client).routes(),
			ReadHeaderTimeout: 5 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			slog.Info("http server listening", "addr", serveAddr, "drainer", client.IsRunning())
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return client.Stop()
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "listen address")
}

type server struct {
	client *rowsync.Client
	logger *slog.Logger
}

func newServer(client *rowsync.Client) *server {
	return &server{
		client: client,
		logger: slog.Default().With("component", "http"),
	}
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.health)
	mux.HandleFunc("POST /users", s.createUser)
	mux.HandleFunc("GET /users/{id}", s.getUser)
	mux.HandleFunc("DELETE /users/{id}", s.evictUser)
	mux.HandleFunc("GET /users/{id}/fields/{field}", s.getField)
	mux.HandleFunc("PUT /users/{id}/fields/{field}", s.setField)
	mux.HandleFunc("DELETE /users/{id}/fields/{field}", s.deleteField)
	mux.HandleFunc("POST /users/{id}/push", s.push)
	mux.HandleFunc("POST /users/{id}/schedule", s.schedule)
	return s.logRequests(mux)
}

func (s *server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("request", "method", r.Method, "path", r.URL.Path, "status", rec.status, "duration", time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *server) health(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status":     "ok",
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"tables":     s.client.Tables(),
		"queue_size": s.client.QueueSize(),
		"drainer": map[string]any{
			"running": s.client.IsRunning(),
		},
	}
	if d := s.client.Drainer(); d != nil {
		body["drainer"] = map[string]any{
			"running": d.IsRunning(),
			"stats":   d.Stats(),
		}
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *server) createUser(w http.ResponseWriter, r *http.Request) {
	sch, err := s.client.Schema("users")
	if err != nil {
		writeError(w, err)
		return
	}

	var body map[string]any
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}
	record, err := toRecord(sch, body)
	if err != nil {
		writeError(w, err)
		return
	}

	h, err := s.client.New(r.Context(), "users", record)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": h.ID(), "key": h.Key()})
}

func (s *server) getUser(w http.ResponseWriter, r *http.Request) {
	record, err := s.client.Get(r.Context(), "users", r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *server) evictUser(w http.ResponseWriter, r *http.Request) {
	h, err := s.client.Row("users", r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.Delete(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) getField(w http.ResponseWriter, r *http.Request) {
	h, err := s.client.Row("users", r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	field := r.PathValue("field")
	value, present, err := h.Get(r.Context(), field)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"key": h.Key(), "field": field, "present": present, "value": value})
}

func (s *server) setField(w http.ResponseWriter, r *http.Request) {
	h, err := s.client.Row("users", r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	field := r.PathValue("field")
	col, ok := h.Schema().Column(field)
	if !ok {
		writeError(w, fmt.Errorf("%w: %s", rowsync.ErrUnknownColumn, field))
		return
	}

	var body struct {
		Value any `json:"value"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}
	value, err := toValue(col, body.Value)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.Set(r.Context(), field, value); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) deleteField(w http.ResponseWriter, r *http.Request) {
	h, err := s.client.Row("users", r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.Delete(r.Context(), r.PathValue("field")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) push(w http.ResponseWriter, r *http.Request) {
	if err := s.client.Push(r.Context(), "users", r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) schedule(w http.ResponseWriter, r *http.Request) {
	if err := s.client.Schedule(r.Context(), "users", r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"queue_size": s.client.QueueSize()})
}
