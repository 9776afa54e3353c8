package metrics

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every collector exported by this process.
var Registry = prometheus.NewRegistry()

var (
	analysisStartedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "analysis_started_total",
		Help: "Total analyses started",
	})
	analysisCompletedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "analysis_completed_total",
		Help: "Total analyses completed",
	})
	analysisFailedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "analysis_failed_total",
		Help: "Total analyses failed",
	})
	analysisDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "analysis_duration_ms",
		Help:    "Analysis duration in milliseconds",
		Buckets: []float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000, 60000, 120000},
	})

	jobsReceivedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "analysis_jobs_received_total",
		Help: "Queue items dequeued by workers",
	})
	jobsCompletedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "analysis_jobs_completed_total",
		Help: "Queue items committed after processing",
	})
	jobsFailedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "analysis_jobs_failed_total",
		Help: "Queue items released for redelivery",
	})
	jobsDeletedUnrecoverableTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "analysis_jobs_deleted_unrecoverable_total",
		Help: "Queue items dropped because their payload could not be decoded",
	})
	queueEmptyPollsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "queue_empty_polls_total",
		Help: "Dequeue attempts that found an empty partition",
	}, []string{"partition"})

	modelCallsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "model_calls_total",
		Help: "Model API calls by outcome",
	}, []string{"outcome"})
	modelChunkFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "model_chunk_failures_total",
		Help: "Chunks skipped because the model call or its response failed",
	})

	submissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "submissions_total",
		Help: "Document submissions by result",
	}, []string{"result"})
)

func init() {
	Registry.MustRegister(
		analysisStartedTotal,
		analysisCompletedTotal,
		analysisFailedTotal,
		analysisDuration,
		jobsReceivedTotal,
		jobsCompletedTotal,
		jobsFailedTotal,
		jobsDeletedUnrecoverableTotal,
		queueEmptyPollsTotal,
		modelCallsTotal,
		modelChunkFailuresTotal,
		submissionsTotal,
	)
}

// IncAnalysisStarted increments the started counter.
func IncAnalysisStarted() {
	analysisStartedTotal.Inc()
}

// IncAnalysisCompleted increments the completed counter.
func IncAnalysisCompleted() {
	analysisCompletedTotal.Inc()
}

// IncAnalysisFailed increments the failed counter.
func IncAnalysisFailed() {
	analysisFailedTotal.Inc()
}

// ObserveAnalysisDurationMs records an analysis duration in milliseconds.
func ObserveAnalysisDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	analysisDuration.Observe(value)
}

func IncAnalysisJobsReceived() { jobsReceivedTotal.Inc() }
func IncAnalysisJobsCompleted() { jobsCompletedTotal.Inc() }
func IncAnalysisJobsFailed() { jobsFailedTotal.Inc() }
func IncAnalysisJobsDeletedUnrecoverable() { jobsDeletedUnrecoverableTotal.Inc() }
func IncQueueEmptyPoll(partition int) { queueEmptyPollsTotal.WithLabelValues(strconv.Itoa(partition)).Inc() }
func IncModelCall(outcome string) { modelCallsTotal.WithLabelValues(outcome).Inc() }
func IncModelChunkFailure() { modelChunkFailuresTotal.Inc() }
func IncSubmission(result string) { submissionsTotal.WithLabelValues(result).Inc() }

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(Registry, promhttp.HandlerOpts{}))
}
