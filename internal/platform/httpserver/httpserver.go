package httpserver

import (
	"log/slog"
	"net/http"
	"time"
)

// New builds the API server. Validation answers within about a second, so the
// write timeout only guards against stuck clients. Server-level errors (TLS
// handshakes, bad connections) go to logger at warn.
func New(addr string, handler http.Handler, logger *slog.Logger) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 2 * time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       90 * time.Second,
		MaxHeaderBytes:    16 << 10,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}
}
