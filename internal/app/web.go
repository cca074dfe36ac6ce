// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/relabs-tech/leveler/internal/calibration"
)

const indexPage = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Leveler</title>
<style>body{font-family:sans-serif;background:#222;color:#eee;text-align:center}img{width:45vw;max-width:512px;margin:1vw}</style>
</head>
<body>
<h1>Leveler</h1>
<img id="roll" src="/roll.png" alt="roll"><img id="pitch" src="/pitch.png" alt="pitch">
<p id="state"></p>
<script>
setInterval(function () {
  var t = Date.now();
  document.getElementById("roll").src = "/roll.png?t=" + t;
  document.getElementById("pitch").src = "/pitch.png?t=" + t;
  fetch("/api/tilt").then(function (r) { return r.ok ? r.json() : null; }).then(function (m) {
    document.getElementById("state").textContent = m ? m.state : "no data yet";
  });
}, 500);
</script>
</body>
</html>
`

// NewViewHandler serves the latest rendered views. form may be nil and
// registry may be nil.
func NewViewHandler(store *ViewStore, form *calibration.Form, registry *prometheus.Registry, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/tilt", func(w http.ResponseWriter, r *http.Request) {
		u, ok := store.Latest()
		if !ok {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, logger, u.Message(store.State().String()))
	})

	if form != nil {
		mux.HandleFunc("/api/form", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, logger, form.Values())
		})
	}

	mux.HandleFunc("/roll.png", func(w http.ResponseWriter, r *http.Request) {
		u, ok := store.Latest()
		servePNG(w, u.RollPNG, ok)
	})
	mux.HandleFunc("/pitch.png", func(w http.ResponseWriter, r *http.Request) {
		u, ok := store.Latest()
		servePNG(w, u.PitchPNG, ok)
	})

	if registry != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(indexPage))
	})

	return mux
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("json encode error", "error", err)
	}
}

func servePNG(w http.ResponseWriter, data []byte, ok bool) {
	if !ok || len(data) == 0 {
		http.Error(w, "no data yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(data)
}

// serveHTTP runs srv until ctx is done.
func serveHTTP(ctx context.Context, srv *http.Server, logger *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server shutdown", "error", err)
	}
	return nil
}
