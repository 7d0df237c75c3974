package main

import (
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/blueberrycongee/recall/internal/api"
	"github.com/blueberrycongee/recall/internal/config"
)

const indexFile = "index.html"

func buildMux(cfg *config.Config, a *app, logger *slog.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	if a != nil && a.api != nil {
		a.api.RegisterRoutes(mux)
	}

	if cfg.Metrics.Enabled {
		mux.Handle("GET "+cfg.Metrics.Path, promhttp.Handler())
	}
	if a != nil && a.mcp != nil {
		mux.Handle(cfg.MCP.Path, a.mcp)
		logger.Info("mcp endpoint enabled", "path", cfg.MCP.Path)
	}

	mux.Handle("/", staticHandler(cfg.Server.StaticDir))
	return mux
}

// staticHandler serves files from dir. Unknown paths outside /api fall back
// to index.html so client-side routes keep working; everything else is a
// JSON 404.
func staticHandler(dir string) http.Handler {
	if dir == "" {
		return http.HandlerFunc(api.NotFound)
	}
	files := http.FileServer(http.Dir(dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			api.NotFound(w, r)
			return
		}
		if strings.HasPrefix(r.URL.Path, "/api/") {
			api.NotFound(w, r)
			return
		}
		name := path.Clean("/" + r.URL.Path)
		if name != "/" && fileExists(filepath.Join(dir, filepath.FromSlash(name))) {
			files.ServeHTTP(w, r)
			return
		}
		index := filepath.Join(dir, indexFile)
		if !fileExists(index) {
			api.NotFound(w, r)
			return
		}
		http.ServeFile(w, r, index)
	})
}

func fileExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}
