package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/dispatch"
	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API for the pipeline",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.Recoverer)
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type"},
		}))

		r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Route("/api", func(r chi.Router) {
			r.Get("/status", handleStatus(env))
			r.Post("/jobs/{type}", handleDispatch(env))
			r.Get("/jobs/{id}", handleGetJob(env))
			r.Get("/jobs", handleListJobs(env))
			r.Get("/prospects", handleListProspects(env))
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: r,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func handleStatus(env *env) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		st, err := env.Aggregator.ComputeStatus(req.Context())
		if err != nil {
			zap.L().Error("status failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "status computation failed")
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

func handleDispatch(env *env) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			IDs []string `json:"ids"`
		}
		if req.ContentLength > 0 {
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}
		}

		job, err := env.Dispatcher.Dispatch(req.Context(), model.Stage(chi.URLParam(req, "type")), body.IDs)
		if err != nil {
			var nr *dispatch.NotReadyError
			switch {
			case eris.Is(err, dispatch.ErrInvalidStage):
				writeError(w, http.StatusUnprocessableEntity, "unknown job type")
			case eris.As(err, &nr):
				writeError(w, http.StatusUnprocessableEntity, nr.Reason)
			case eris.Is(err, store.ErrJobAlreadyRunning):
				writeError(w, http.StatusConflict, "a job of this type is already pending or running")
			default:
				zap.L().Error("dispatch failed", zap.Error(err))
				writeError(w, http.StatusInternalServerError, "dispatch failed")
			}
			return
		}
		writeJSON(w, http.StatusAccepted, job)
	}
}

func handleGetJob(env *env) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		job, err := env.Store.GetJob(req.Context(), chi.URLParam(req, "id"))
		if eris.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		if err != nil {
			zap.L().Error("get job failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "get job failed")
			return
		}
		writeJSON(w, http.StatusOK, job)
	}
}

func handleListJobs(env *env) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		q := req.URL.Query()
		limit, _ := strconv.Atoi(q.Get("limit"))
		jobs, err := env.Store.ListJobs(req.Context(), store.JobFilter{
			Type:   model.Stage(q.Get("type")),
			Status: model.JobStatus(q.Get("status")),
			Limit:  limit,
		})
		if err != nil {
			zap.L().Error("list jobs failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "list jobs failed")
			return
		}
		writeJSON(w, http.StatusOK, jobs)
	}
}

func handleListProspects(env *env) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		q := req.URL.Query()
		limit, _ := strconv.Atoi(q.Get("limit"))
		offset, _ := strconv.Atoi(q.Get("offset"))
		prospects, err := env.Store.ListProspects(req.Context(), store.ProspectFilter{
			Bucket: store.Bucket(q.Get("bucket")),
			Limit:  limit,
			Offset: offset,
		})
		if err != nil {
			zap.L().Error("list prospects failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "list prospects failed")
			return
		}
		writeJSON(w, http.StatusOK, prospects)
	}
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
