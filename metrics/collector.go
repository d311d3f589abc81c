package metrics

// Collector wraps metrics and provides helper methods with a pre-filled
// pipeline label. Per-stage metrics take the stage name as an argument.
type Collector struct {
	pipeline string
}

// NewCollector creates a new Collector for the given pipeline.
func NewCollector(pipeline string) *Collector {
	return &Collector{pipeline: pipeline}
}

// IncFittingsCreated increments the fittings created counter.
func (c *Collector) IncFittingsCreated() {
	FittingsCreatedTotal.WithLabelValues(c.pipeline).Inc()
}

// IncWorkersStarted increments the workers started counter for a stage.
func (c *Collector) IncWorkersStarted(stage string) {
	WorkersStartedTotal.WithLabelValues(c.pipeline, stage).Inc()
}

// IncWorkersDone increments the workers done counter for a stage.
func (c *Collector) IncWorkersDone(stage string) {
	WorkersDoneTotal.WithLabelValues(c.pipeline, stage).Inc()
}

// IncWorkersVanished increments the vanished workers counter for a stage.
func (c *Collector) IncWorkersVanished(stage string) {
	WorkersVanishedTotal.WithLabelValues(c.pipeline, stage).Inc()
}

// IncLateArrivals increments the late arrivals counter for a stage.
func (c *Collector) IncLateArrivals(stage string) {
	LateArrivalsTotal.WithLabelValues(c.pipeline, stage).Inc()
}

// IncEOIForwarded increments the end-of-inputs forwarded counter for a stage.
func (c *Collector) IncEOIForwarded(stage string) {
	EOIForwardedTotal.WithLabelValues(c.pipeline, stage).Inc()
}

// IncInputsProcessed increments the inputs processed counter for a stage.
func (c *Collector) IncInputsProcessed(stage string) {
	InputsProcessedTotal.WithLabelValues(c.pipeline, stage).Inc()
}

// IncInputsQueued increments the inputs queued counter for a stage.
func (c *Collector) IncInputsQueued(stage string) {
	InputsQueuedTotal.WithLabelValues(c.pipeline, stage).Inc()
}

// IncHandoffs increments the handoffs counter for a stage.
func (c *Collector) IncHandoffs(stage string) {
	HandoffsTotal.WithLabelValues(c.pipeline, stage).Inc()
}

// SetRosterSize sets the roster size gauge for a stage.
func (c *Collector) SetRosterSize(stage string, size int) {
	RosterSize.WithLabelValues(c.pipeline, stage).Set(float64(size))
}

// ObserveProcessDuration records a per-input processing duration.
func (c *Collector) ObserveProcessDuration(stage string, seconds float64) {
	ProcessDuration.WithLabelValues(c.pipeline, stage).Observe(seconds)
}

// ObserveDrainDuration records a stage drain duration.
func (c *Collector) ObserveDrainDuration(stage string, seconds float64) {
	DrainDuration.WithLabelValues(c.pipeline, stage).Observe(seconds)
}
