// Command iganalyzer serves the follower-analysis pipeline: archive upload,
// relationship/timeline queries, CSV export, and an optional MCP tool
// surface over stdio.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/tushrpal/instagram-follower-analyzer/pipeline"
	"github.com/tushrpal/instagram-follower-analyzer/store"
	"github.com/tushrpal/instagram-follower-analyzer/webapi"
)

func main() {
	cfg := webapi.DefaultConfig()
	if path := os.Getenv("CONFIG"); path != "" {
		loaded, err := webapi.LoadConfig(path)
		if err != nil {
			slog.Error("load config", "error", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	cfg.Listen = env("LISTEN", cfg.Listen)
	cfg.DBPath = env("DB_PATH", cfg.DBPath)
	cfg.LogLevel = env("LOG_LEVEL", cfg.LogLevel)

	var lvl slog.Level
	switch cfg.LogLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	st, err := store.Open(cfg.DBPath, logger)
	if err != nil {
		slog.Error("open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	events := store.NewEventLogger(st.DB())
	pipe := pipeline.New(st, logger, pipeline.WithEvents(events))
	srv := webapi.New(st, pipe, cfg, logger)

	// Optional MCP tool surface for agent clients.
	if env("MCP_TRANSPORT", "") == "stdio" {
		mcpSrv := mcp.NewServer(&mcp.Implementation{
			Name:    "iganalyzer",
			Version: "1.0.0",
		}, nil)
		srv.RegisterMCP(mcpSrv)
		go func() {
			if err := mcpSrv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
				slog.Error("MCP server", "error", err)
			}
		}()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	srv.RegisterHTTP(r)

	httpSrv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown", "error", err)
		}
	}()

	slog.Info("iganalyzer listening", "addr", cfg.Listen, "db", cfg.DBPath)
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
