package result

const (
	PrepareRun         = "[pre-run]: failed to prepare the run"
	ResolveComponents  = "[pre-run]: failed to resolve the run components"
	StartRun           = "[run]: failed to start the workloads"
	WaitRun            = "[run]: interrupted while waiting for the run duration"
	StopRun            = "[post-run]: failed to stop and archive the run"
	VerifyRun          = "[post-run]: failed in run verification"
	CollectMetrics     = "[calibrate]: failed to collect calibration metrics"
	EvaluateRatio      = "[calibrate]: failed to evaluate the ratio checks"
	PersistSuggestions = "[calibrate]: failed to persist the suggested configuration"
)
