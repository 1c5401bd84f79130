package speech

// Stage represents the position of a request within the synthesis pipeline.
type Stage int

const (
	// StagePending indicates the request has been accepted but not started.
	StagePending Stage = iota
	// StageSelectingProvider indicates candidate selection is in progress.
	StageSelectingProvider
	// StageSynthesizing indicates a provider invocation is in flight.
	StageSynthesizing
	// StageMeasuring indicates audio decoding and duration analysis.
	StageMeasuring
	// StageLipSync indicates animation track generation.
	StageLipSync
	// StageExpressionMapping indicates emotion bridge mapping.
	StageExpressionMapping
	// StageCaching indicates the result is being stored.
	StageCaching
	// StageDone indicates the request completed successfully.
	StageDone
	// StageFailed indicates the request terminated with an error.
	StageFailed
)

// String returns the stage name used in logs.
func (s Stage) String() string {
	switch s {
	case StagePending:
		return "pending"
	case StageSelectingProvider:
		return "selecting_provider"
	case StageSynthesizing:
		return "synthesizing"
	case StageMeasuring:
		return "measuring"
	case StageLipSync:
		return "lipsync_generating"
	case StageExpressionMapping:
		return "expression_mapping"
	case StageCaching:
		return "caching"
	case StageDone:
		return "done"
	case StageFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// stageTransitions lists the valid successors of each stage. Failure is
// reachable only from the stages where the fallback chain or timeout can
// terminate the request; later stages degrade instead of failing.
var stageTransitions = map[Stage][]Stage{
	StagePending:           {StageSelectingProvider},
	StageSelectingProvider: {StageSynthesizing, StageFailed},
	StageSynthesizing:      {StageMeasuring, StageSelectingProvider, StageFailed},
	StageMeasuring:         {StageLipSync, StageExpressionMapping, StageCaching},
	StageLipSync:           {StageExpressionMapping, StageCaching},
	StageExpressionMapping: {StageCaching},
	StageCaching:           {StageDone},
}

// stageTracker walks a request through the pipeline stages, enforcing the
// transition table.
type stageTracker struct {
	current Stage
	onEnter func(Stage)
}

func newStageTracker(onEnter func(Stage)) *stageTracker {
	return &stageTracker{current: StagePending, onEnter: onEnter}
}

// advance moves to the given stage, returning false if the transition is not
// listed in the table.
func (t *stageTracker) advance(to Stage) bool {
	valid := false
	for _, s := range stageTransitions[t.current] {
		if s == to {
			valid = true
			break
		}
	}
	if !valid {
		return false
	}
	t.current = to
	if t.onEnter != nil {
		t.onEnter(to)
	}
	return true
}

// Current returns the current stage.
func (t *stageTracker) Current() Stage {
	return t.current
}
