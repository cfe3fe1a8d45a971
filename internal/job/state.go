package job

// State is the job runner's position in its strictly sequential state
// machine. Builds, conversions and flash attempts never overlap: they
// share one serial port and one build directory.
type State int

const (
	StatePending State = iota
	StateBuilding
	StateConverting
	StateFlashing
	StateRecovering
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateBuilding:
		return "building"
	case StateConverting:
		return "converting"
	case StateFlashing:
		return "flashing"
	case StateRecovering:
		return "recovering"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
