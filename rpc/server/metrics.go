package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ValentinKolb/dChain/rpc/common"
	"github.com/VictoriaMetrics/metrics"
	"github.com/go-chi/chi/v5"
)

// requestMetrics counts the requests of the server in prometheus format
type requestMetrics struct {
	set *metrics.Set
}

func newRequestMetrics() *requestMetrics {
	return &requestMetrics{set: metrics.NewSet()}
}

// observe records one handled request
func (m *requestMetrics) observe(shardId uint64, t common.MessageType, start time.Time, failed bool) {
	labels := fmt.Sprintf(`{shard="%d",type=%q}`, shardId, t.String())
	m.set.GetOrCreateCounter("dchain_requests_total" + labels).Inc()
	if failed {
		m.set.GetOrCreateCounter("dchain_request_errors_total" + labels).Inc()
	}
	m.set.GetOrCreateHistogram("dchain_request_duration_seconds" + labels).UpdateDuration(start)
}

// WritePrometheus writes the request metrics and the process metrics to w
func (m *requestMetrics) WritePrometheus(w io.Writer) {
	m.set.WritePrometheus(w)
	metrics.WriteProcessMetrics(w)
}

// metricsRouter serves
//   - GET /metrics: request metrics in prometheus format
//   - GET /stats: statistics of all shards as json
//   - GET /health: liveness probe
func (s *rpcServer) metricsRouter() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		s.metrics.WritePrometheus(w)
	})

	r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(s.registry.Snapshot()); err != nil {
			Logger.Errorf("failed to write stats: %v", err)
		}
	})

	return r
}

// serveMetrics starts the metrics listener in the background
func (s *rpcServer) serveMetrics(endpoint string) io.Closer {
	srv := &http.Server{Addr: endpoint, Handler: s.metricsRouter()}
	go func() {
		Logger.Infof("Starting metrics listener on %s", endpoint)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			Logger.Errorf("metrics listener failed: %v", err)
		}
	}()
	return srv
}
