package metrics

import "time"

// ResultLabel classifies an operation outcome.
type ResultLabel string

const (
	ResultSuccess ResultLabel = "success"
	ResultError   ResultLabel = "error"
)

// Result maps a success flag to its label.
func Result(success bool) ResultLabel {
	if success {
		return ResultSuccess
	}
	return ResultError
}

// Recorder defines the observability hooks of the nest service.
type Recorder interface {
	ObserveOperation(op string, d time.Duration, success bool)
	IncEggsDeposited(n int)
	IncEggsCollected(n int)
	IncChicksHatched(n int)
	IncEggsDropped(n int)
	IncTicks()
	SetIncubationRemaining(nestID string, days float64)
	ForgetNest(nestID string)
	SetLoadedNests(n int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveOperation(string, time.Duration, bool) {}
func (NoopRecorder) IncEggsDeposited(int)                         {}
func (NoopRecorder) IncEggsCollected(int)                         {}
func (NoopRecorder) IncChicksHatched(int)                         {}
func (NoopRecorder) IncEggsDropped(int)                           {}
func (NoopRecorder) IncTicks()                                    {}
func (NoopRecorder) SetIncubationRemaining(string, float64)       {}
func (NoopRecorder) ForgetNest(string)                            {}
func (NoopRecorder) SetLoadedNests(int)                           {}
