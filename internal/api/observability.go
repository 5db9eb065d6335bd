package api

import (
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"survivor-arena/internal/config"
)

const defaultDebugAddr = "127.0.0.1:6060"

// debugAddr keeps pprof off public interfaces unless ALLOW_DEBUG_EXTERNAL=true
func debugAddr(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		log.Printf("⚠️ Invalid debug address %q, using %s", addr, defaultDebugAddr)
		return defaultDebugAddr
	}
	if host == "localhost" {
		return addr
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
		return addr
	}
	if os.Getenv("ALLOW_DEBUG_EXTERNAL") == "true" {
		return addr
	}
	log.Println("⚠️ Debug server forced to localhost for security")
	return defaultDebugAddr
}

// NewDebugServer returns the pprof + /metrics server, or nil when disabled.
// The caller runs ListenAndServe and Shutdown.
func NewDebugServer(cfg config.ObservabilityConfig) *http.Server {
	if !cfg.DebugEnabled {
		log.Println("📊 Debug server disabled")
		return nil
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	addr := debugAddr(cfg.DebugAddr)
	log.Printf("📊 Debug server on %s (pprof: /debug/pprof/, metrics: /metrics)", addr)

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
