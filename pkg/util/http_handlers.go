package util

import (
	"net/http"
	_ "net/http/pprof"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterAdministrativeHTTPEndpoints registers the /metrics, /healthz and
// pprof endpoints every blobmuxd process exposes, regardless of which
// multiplex it's serving.
func RegisterAdministrativeHTTPEndpoints(router *mux.Router) {
	router.Handle("/metrics", promhttp.Handler())
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	router.PathPrefix("/debug/pprof/").Handler(http.DefaultServeMux)
}
