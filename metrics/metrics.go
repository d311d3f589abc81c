package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// FittingsCreatedTotal tracks the total number of fitting controls created.
var FittingsCreatedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "fitting_pipeline_fittings_created_total",
		Help: "Total number of fitting controls created",
	},
	[]string{"pipeline"},
)

// WorkersStartedTotal tracks the total number of workers admitted to a
// stage roster.
var WorkersStartedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "fitting_pipeline_workers_started_total",
		Help: "Total workers admitted to stage rosters",
	},
	[]string{"pipeline", "stage"},
)

// WorkersDoneTotal tracks the total number of workers that reported done.
var WorkersDoneTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "fitting_pipeline_workers_done_total",
		Help: "Total workers that reported done",
	},
	[]string{"pipeline", "stage"},
)

// WorkersVanishedTotal tracks workers removed from a roster because their
// liveness monitor fired rather than an explicit done report.
var WorkersVanishedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "fitting_pipeline_workers_vanished_total",
		Help: "Total workers removed by liveness monitor",
	},
	[]string{"pipeline", "stage"},
)

// LateArrivalsTotal tracks workers that requested details after the stage
// had already observed end-of-inputs.
var LateArrivalsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "fitting_pipeline_late_arrivals_total",
		Help: "Total workers admitted after end-of-inputs",
	},
	[]string{"pipeline", "stage"},
)

// EOIForwardedTotal tracks end-of-inputs signals forwarded downstream.
var EOIForwardedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "fitting_pipeline_eoi_forwarded_total",
		Help: "Total end-of-inputs signals forwarded downstream",
	},
	[]string{"pipeline", "stage"},
)

// InputsProcessedTotal tracks the total number of inputs handed to workers.
var InputsProcessedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "fitting_pipeline_inputs_processed_total",
		Help: "Total inputs processed by workers",
	},
	[]string{"pipeline", "stage"},
)

// InputsQueuedTotal tracks the total number of inputs queued for stage workers.
var InputsQueuedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "fitting_pipeline_inputs_queued_total",
		Help: "Total inputs queued for stage workers",
	},
	[]string{"pipeline", "stage"},
)

// HandoffsTotal tracks the total number of worker handoffs between vnodes.
var HandoffsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "fitting_pipeline_handoffs_total",
		Help: "Total worker handoffs between vnodes",
	},
	[]string{"pipeline", "stage"},
)

// RosterSize tracks the current number of roster entries per stage.
var RosterSize = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "fitting_pipeline_roster_size",
		Help: "Current roster entries per stage",
	},
	[]string{"pipeline", "stage"},
)

// ProcessDuration tracks per-input processing latency.
var ProcessDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "fitting_pipeline_process_duration_seconds",
		Help:    "Per-input processing latency",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"pipeline", "stage"},
)

// DrainDuration tracks time between a stage observing end-of-inputs and
// forwarding it downstream.
var DrainDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "fitting_pipeline_drain_duration_seconds",
		Help:    "Time from observing end-of-inputs to forwarding it",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"pipeline", "stage"},
)
