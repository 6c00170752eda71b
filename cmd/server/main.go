package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/templa/templa/backend-go/internal/asset"
	"github.com/templa/templa/backend-go/internal/auth"
	"github.com/templa/templa/backend-go/internal/config"
	"github.com/templa/templa/backend-go/internal/db"
	"github.com/templa/templa/backend-go/internal/export"
	"github.com/templa/templa/backend-go/internal/library"
	mw "github.com/templa/templa/backend-go/internal/middleware"
	"github.com/templa/templa/backend-go/internal/render"
	"github.com/templa/templa/backend-go/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Templates live in Postgres when configured, in memory otherwise
	var store library.Store
	if cfg.DatabaseURL != "" {
		pool, err := db.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		pgStore := library.NewPGStore(pool)
		if err := pgStore.EnsureSchema(ctx); err != nil {
			slog.Error("ensure schema", "error", err)
			os.Exit(1)
		}
		store = pgStore
	} else {
		slog.Warn("DATABASE_URL not set, templates are kept in memory")
		store = library.NewMemoryStore()
	}

	libraryService := library.NewService(store, logger)
	libraryHandler := library.NewHandler(libraryService)

	authService := auth.NewService(cfg.APIKeyHash, cfg.JWTSecret)
	if !authService.Enabled() {
		slog.Warn("API_KEY_HASH not set, API routes are open")
	}

	fonts, err := render.NewFontBook()
	if err != nil {
		slog.Error("load fonts", "error", err)
		os.Exit(1)
	}
	if cfg.FontDir != "" {
		n, err := fonts.LoadDir(cfg.FontDir)
		if err != nil {
			slog.Warn("load font dir", "dir", cfg.FontDir, "error", err)
		}
		slog.Info("fonts loaded", "dir", cfg.FontDir, "count", n)
	}

	loader := asset.NewLoader(asset.LoaderOptions{
		Dir:               cfg.AssetDir,
		MaxBytes:          cfg.MaxImageBytes,
		MaxPixels:         cfg.MaxImagePixels,
		FetchTimeout:      cfg.ImageFetchTimeout,
		Concurrency:       cfg.ImageLoadConcurrency,
		AllowPrivateHosts: cfg.AllowPrivateImageHosts,
		Logger:            logger,
	})

	exporter := export.NewExporter(loader, render.New(fonts, logger), logger)

	hub := session.NewHub(libraryService, loader, logger)
	// REST writes would be overwritten by the session's next save
	libraryService.SetInUse(hub.Holds)

	r := newRouter(routes{
		auth:    authService,
		library: libraryHandler,
		export:  export.NewHandler(exporter),
		assets:  asset.NewHandler(cfg.AssetDir, cfg.MaxImagePixels),
		hub:     hub,
		origins: cfg.Origins(),
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down server")

		// Stop sessions first so unsaved edits reach the store
		slog.Info("saving open sessions...", "count", hub.Active())
		hub.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		srv.Shutdown(shutdownCtx)
	}()

	slog.Info("server starting", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

type routes struct {
	auth    *auth.Service
	library *library.Handler
	export  *export.Handler
	assets  *asset.Handler
	hub     *session.Hub
	origins []string
}

func newRouter(rt routes) *mux.Router {
	r := mux.NewRouter()

	// Global middleware
	r.Use(mw.Recovery)
	r.Use(mw.Logger)
	r.Use(mw.CORS(rt.origins))

	r.HandleFunc("/auth/token", auth.NewHandler(rt.auth).Token).Methods("POST", "OPTIONS")

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// Asset endpoints (public, layer sources point here)
	r.HandleFunc("/assets/upload", rt.assets.Upload).Methods("POST", "OPTIONS")
	r.PathPrefix("/assets/").Handler(rt.assets.Serve()).Methods("GET")

	// Rendering takes the scene in the request body and fetches its image
	// sources, so it needs a token like the API
	r.Handle("/export/image", rt.auth.AuthMiddleware(http.HandlerFunc(rt.export.ExportImage))).Methods("POST", "OPTIONS")
	r.Handle("/render/preview", rt.auth.AuthMiddleware(http.HandlerFunc(rt.export.Preview))).Methods("POST", "OPTIONS")

	// Protected API routes
	api := r.PathPrefix("/api").Subrouter()
	api.Use(rt.auth.AuthMiddleware)

	api.HandleFunc("/templates", rt.library.List).Methods("GET")
	api.HandleFunc("/templates", rt.library.Create).Methods("POST")
	api.HandleFunc("/templates/import", rt.library.Import).Methods("POST")
	api.HandleFunc("/templates/{id}", rt.library.Get).Methods("GET")
	api.HandleFunc("/templates/{id}", rt.library.Save).Methods("PUT")
	api.HandleFunc("/templates/{id}", rt.library.Delete).Methods("DELETE")
	api.HandleFunc("/templates/{id}/export", rt.library.Export).Methods("GET")
	api.HandleFunc("/assets/{id}", rt.assets.Remove).Methods("DELETE")

	// WebSocket endpoint
	wsOrigins := originPatterns(rt.origins)
	r.HandleFunc("/ws/session/{templateId}", func(w http.ResponseWriter, r *http.Request) {
		handleWebSocket(w, r, rt.hub, rt.auth, wsOrigins)
	})
	return r
}

func handleWebSocket(w http.ResponseWriter, r *http.Request, hub *session.Hub, authSvc *auth.Service, origins []string) {
	templateID := mux.Vars(r)["templateId"]

	// Browsers cannot set headers on a websocket upgrade, so the token
	// travels as a query param
	subject, err := authSvc.Authorize(r.URL.Query().Get("token"))
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: origins,
	})
	if err != nil {
		slog.Error("websocket accept", "error", err)
		return
	}

	clientID := uuid.New().String()
	client := session.NewClient(conn, clientID)

	s, err := hub.Open(r.Context(), templateID, client)
	if err != nil {
		status := websocket.StatusInternalError
		reason := "open session failed"
		switch {
		case errors.Is(err, session.ErrSessionActive):
			status, reason = websocket.StatusPolicyViolation, "template is being edited"
		case errors.Is(err, library.ErrNotFound):
			status, reason = websocket.StatusPolicyViolation, "template not found"
		}
		slog.Warn("open session", "template", templateID, "error", err)
		conn.Close(status, reason)
		return
	}
	client.Attach(s)

	slog.Info("client connected", "client", clientID, "subject", subject, "session", s.ID)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go func() {
		select {
		case <-s.Done():
			// the hub is shutting down; let the client reconnect later
			conn.Close(websocket.StatusGoingAway, "session closed")
		case <-ctx.Done():
		}
	}()

	go client.WritePump(ctx)
	client.ReadPump(ctx)
}

// originPatterns turns allowed origins into host patterns for the
// websocket origin check.
func originPatterns(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if o == "*" {
			out = append(out, "*")
			continue
		}
		u, err := url.Parse(o)
		if err != nil || u.Host == "" {
			out = append(out, o)
			continue
		}
		out = append(out, u.Host)
	}
	return out
}
