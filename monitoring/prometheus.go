package monitoring

import (
	"net/http"
	"time"

	"github.com/mezonai/starchain/logx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type StarRejectedReason string

var (
	StarDuplicated       StarRejectedReason = "duplicated"
	StarInvalidPayload   StarRejectedReason = "invalid_payload"
	StarSessionMissing   StarRejectedReason = "session_missing"
	StarStoreFailure     StarRejectedReason = "store_failure"
	StarInvariantFailure StarRejectedReason = "invariant"
)

type nodePromMetrics struct {
	nodeUpUnixSeconds prometheus.Gauge
	blockHeight       prometheus.Gauge
	appendDuration    prometheus.Histogram
	blockSizeBytes    prometheus.Histogram
	rejectedStarCount *prometheus.CounterVec
	sessionCount      *prometheus.GaugeVec
	signatureCheck    *prometheus.CounterVec
	panicCount        prometheus.Counter
	storeCommit       *prometheus.HistogramVec
}

func newNodePromMetrics() *nodePromMetrics {
	return &nodePromMetrics{
		nodeUpUnixSeconds: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "starchain_node_up_timestamp_unix_seconds",
				Help: "Unix timestamp of the node",
			},
		),
		blockHeight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "starchain_block_height",
				Help: "Height of the best block",
			},
		),
		appendDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "starchain_append_duration_seconds",
				Help:    "Duration of a block append including the index writes",
				Buckets: prometheus.DefBuckets,
			},
		),
		blockSizeBytes: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "starchain_block_size_bytes",
				Help:    "The serialized block size in bytes",
				Buckets: prometheus.ExponentialBuckets(64, 2, 10),
			},
		),
		rejectedStarCount: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "starchain_rejected_star_count",
				Help: "The total number of rejected star registrations",
			},
			[]string{"reason"},
		),
		sessionCount: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "starchain_sessions",
				Help: "Number of sessions held by the session store",
			},
			[]string{"state"},
		),
		signatureCheck: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "starchain_signature_check_count",
				Help: "Signature verifications by result",
			},
			[]string{"result"},
		),
		panicCount: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "starchain_panic_count",
				Help: "Recovered panics in background goroutines",
			},
		),
		storeCommit: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "starchain_store_commit_duration_seconds",
				Help:    "Duration of store batch commits",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		),
	}
}

var nodeMetrics = newNodePromMetrics()

// InitMetrics stamps the node start time.
func InitMetrics() {
	nodeMetrics.nodeUpUnixSeconds.SetToCurrentTime()
}

func RegisterMetrics(mux *http.ServeMux) {
	logx.Info("MONITORING", "Registering prometheus metrics")
	mux.Handle("/metrics", promhttp.Handler())
}

func SetBlockHeight(blockHeight uint64) {
	nodeMetrics.blockHeight.Set(float64(blockHeight))
}

func RecordAppendDuration(duration time.Duration) {
	nodeMetrics.appendDuration.Observe(duration.Seconds())
}

func RecordBlockSizeBytes(sizeBytes int) {
	nodeMetrics.blockSizeBytes.Observe(float64(sizeBytes))
}

func RecordRejectedStar(reason StarRejectedReason) {
	nodeMetrics.rejectedStarCount.With(prometheus.Labels{
		"reason": string(reason),
	}).Inc()
}

func SetSessionCount(state string, count int) {
	nodeMetrics.sessionCount.With(prometheus.Labels{
		"state": state,
	}).Set(float64(count))
}

func RecordSignatureCheck(ok bool) {
	result := "rejected"
	if ok {
		result = "accepted"
	}
	nodeMetrics.signatureCheck.With(prometheus.Labels{
		"result": result,
	}).Inc()
}

func IncreasePanicCount() {
	nodeMetrics.panicCount.Inc()
}

func RecordStoreCommit(duration time.Duration, ok bool) {
	result := "failed"
	if ok {
		result = "committed"
	}
	nodeMetrics.storeCommit.With(prometheus.Labels{
		"result": result,
	}).Observe(duration.Seconds())
}
