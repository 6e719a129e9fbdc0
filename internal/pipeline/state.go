package pipeline

// State is the phase a pipeline run is in.
type State string

// Run phases, in the order a run moves through them.
const (
	StateIdle          State = "idle"
	StateScanning      State = "scanning"
	StateExtracting    State = "extracting"
	StateNormalizing   State = "normalizing"
	StateOptimizing    State = "optimizing"
	StateWriting       State = "writing"
	StateConsolidating State = "consolidating"
	StateReporting     State = "reporting"
)

var stateOrder = map[State]int{
	StateIdle:          0,
	StateScanning:      1,
	StateExtracting:    2,
	StateNormalizing:   3,
	StateOptimizing:    4,
	StateWriting:       5,
	StateConsolidating: 6,
	StateReporting:     7,
}

// canAdvance reports whether a run may move from one state to the next.
// Phases may be skipped but never revisited; any state may return to Idle.
func canAdvance(from, to State) bool {
	if to == StateIdle {
		return true
	}
	return stateOrder[to] > stateOrder[from]
}
