package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/adrata/record-sync/internal/bus"
	"github.com/adrata/record-sync/internal/model"
	"github.com/adrata/record-sync/internal/route"
	"github.com/adrata/record-sync/internal/transition"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the record edit API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		// The webview owns routing; over HTTP the navigation target is
		// published as an event instead.
		b := busNavigator{}
		a, err := initApp(ctx, &b)
		if err != nil {
			return err
		}
		defer a.Close()
		b.bus = a.bus

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.Recoverer)
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.Server.AllowedOrigins,
			AllowedMethods: []string{"GET", "PATCH", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		}))

		r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Patch("/records/{recordID}", func(w http.ResponseWriter, req *http.Request) {
			handleEdit(a, w, req)
		})

		r.Get("/cache/records/{collection}/{recordID}", func(w http.ResponseWriter, req *http.Request) {
			handleCacheLookup(a, w, req)
		})

		r.Get("/events", func(w http.ResponseWriter, req *http.Request) {
			handleEvents(a, w, req)
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: r,
		}

		g, gctx := errgroup.WithContext(ctx)

		g.Go(func() error {
			zap.L().Info("starting server", zap.Int("port", port))
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return eris.Wrap(err, "server listen")
			}
			return nil
		})

		g.Go(func() error {
			<-gctx.Done()
			zap.L().Info("shutting down server")
			return srv.Shutdown(gctx)
		})

		// Janitor: expired session-tier entries accumulate in SQLite
		// until purged.
		g.Go(func() error {
			interval := time.Duration(cfg.Cache.JanitorIntervalSecs) * time.Second
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					a.caches.PurgeExpired(gctx)
				}
			}
		})

		if err := g.Wait(); err != nil && !eris.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

// editRequest carries one field edit plus the record snapshot the client
// is editing. Value distinguishes an explicit null (field clear) from an
// absent key.
type editRequest struct {
	Record model.Record    `json:"record"`
	Field  string          `json:"field"`
	Value  json.RawMessage `json:"value"`
}

func handleEdit(a *app, w http.ResponseWriter, req *http.Request) {
	recordID := chi.URLParam(req, "recordID")

	var body editRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if body.Field == "" || body.Record == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "field and record are required"})
		return
	}
	if body.Record.ID() != recordID {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "record id mismatch"})
		return
	}

	var value any
	if len(body.Value) > 0 {
		if err := json.Unmarshal(body.Value, &value); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid value"})
			return
		}
	}

	eng := a.engines.For(body.Record)
	result, err := eng.ApplyEdit(req.Context(), body.Field, value)
	if err != nil {
		status := http.StatusBadGateway
		if eris.Is(err, route.ErrUnroutableField) {
			status = http.StatusUnprocessableEntity
		}
		writeJSON(w, status, map[string]any{
			"error":     err.Error(),
			"retryable": result.Retryable,
			"record":    result.Record,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"record":  result.Record,
		"written": result.Written,
	})
}

func handleCacheLookup(a *app, w http.ResponseWriter, req *http.Request) {
	collection := model.Collection(chi.URLParam(req, "collection"))
	recordID := chi.URLParam(req, "recordID")
	workspace := req.URL.Query().Get("workspace")
	if workspace == "" {
		workspace = cfg.Workspace
	}

	value, ok := a.caches.Lookup(req.Context(), workspace, collection, recordID)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "cache miss"})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(value)
}

// handleEvents streams domain events as server-sent events for sibling UI
// components (count badges, list views).
func handleEvents(a *app, w http.ResponseWriter, req *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming unsupported"})
		return
	}

	events, cancel := a.bus.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-req.Context().Done():
			return
		case ev, open := <-events:
			if !open {
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, payload)
			flusher.Flush()
		}
	}
}

// busNavigator publishes navigation targets on the event bus; the webview
// performs the actual routing.
type busNavigator struct {
	bus *bus.Bus
}

func (n *busNavigator) NavigateTo(path string) {
	if n.bus == nil {
		return
	}
	n.bus.Publish(bus.Event{Type: bus.EventNavigate, Path: path})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

var _ transition.Navigator = (*busNavigator)(nil)
