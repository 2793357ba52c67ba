package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gimme_idea_api_build_info",
			Help: "Build information of the Gimme Idea API",
		},
		[]string{"version", "commit", "date"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gimme_idea_api_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gimme_idea_api_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gimme_idea_api_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	SignatureVerificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gimme_idea_api_signature_verifications_total",
			Help: "Total number of wallet signature verifications",
		},
		[]string{"result"}, // "valid", "invalid", "missing"
	)

	RankingAssignmentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gimme_idea_api_ranking_assignments_total",
			Help: "Total number of ranking assignment attempts",
		},
		[]string{"status"},
	)

	ClaimTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gimme_idea_api_claim_transitions_total",
			Help: "Total number of prize claim state transitions",
		},
		[]string{"status"}, // "pending", "confirmed", "failed"
	)

	PoolSettlementsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gimme_idea_api_pool_settlements_total",
			Help: "Total number of prize pools closed",
		},
		[]string{"settlement"}, // "settled", "force_closed"
	)

	SettlementPollsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gimme_idea_api_settlement_polls_total",
			Help: "Total number of settlement watcher polls",
		},
		[]string{"status"},
	)

	SettlementPollDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gimme_idea_api_settlement_poll_duration_seconds",
			Help:    "Duration of settlement watcher polls in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~41s
		},
	)

	SolanaRPCRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gimme_idea_api_solana_rpc_requests_total",
			Help: "Total number of Solana RPC requests",
		},
		[]string{"method", "status"},
	)

	SolanaRPCRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gimme_idea_api_solana_rpc_request_duration_seconds",
			Help:    "Duration of Solana RPC requests in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
		[]string{"method"},
	)
)

// Middleware returns a chi middleware that records HTTP metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		HTTPRequestsInFlight.Inc()
		defer HTTPRequestsInFlight.Dec()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		// Use the route pattern if available, otherwise use the path
		path := ""
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			path = rctx.RoutePattern()
		}
		if path == "" {
			path = r.URL.Path
		}

		status := strconv.Itoa(ww.Status())
		duration := time.Since(start).Seconds()

		HTTPRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordSignatureVerification records the outcome of a wallet signature check.
func RecordSignatureVerification(result string) {
	SignatureVerificationsTotal.WithLabelValues(result).Inc()
}

// RecordRankingAssignment records a ranking assignment attempt.
func RecordRankingAssignment(err error) {
	RankingAssignmentsTotal.WithLabelValues(statusLabel(err)).Inc()
}

// RecordClaimTransition records a claim entering status.
func RecordClaimTransition(status string) {
	ClaimTransitionsTotal.WithLabelValues(status).Inc()
}

// RecordPoolSettlement records a pool being closed.
func RecordPoolSettlement(settlement string) {
	PoolSettlementsTotal.WithLabelValues(settlement).Inc()
}

// RecordSettlementPoll records metrics for one watcher poll.
func RecordSettlementPoll(duration time.Duration, err error) {
	SettlementPollsTotal.WithLabelValues(statusLabel(err)).Inc()
	SettlementPollDuration.Observe(duration.Seconds())
}

// RecordSolanaRPC records metrics for a Solana RPC request.
func RecordSolanaRPC(method string, duration time.Duration, err error) {
	SolanaRPCRequestsTotal.WithLabelValues(method, statusLabel(err)).Inc()
	SolanaRPCRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}
