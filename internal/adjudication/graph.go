package adjudication

import "fmt"

// Stage is a node of the adjudication state machine.
type Stage int

const (
	StageSetup Stage = iota
	StageValidating
	StageRouting
	StageProcessing
	StageDeciding
	StageDone
)

var stageNames = [...]string{
	StageSetup:      "setup",
	StageValidating: "validating",
	StageRouting:    "routing",
	StageProcessing: "processing",
	StageDeciding:   "deciding",
	StageDone:       "done",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("stage(%d)", int(s))
	}
	return stageNames[s]
}

// transitions lists the legal successors of each stage. Setup and
// Validating may short-circuit straight to Deciding; everything else is
// linear.
var transitions = map[Stage][]Stage{
	StageSetup:      {StageValidating, StageDeciding},
	StageValidating: {StageRouting, StageDeciding},
	StageRouting:    {StageProcessing},
	StageProcessing: {StageDeciding},
	StageDeciding:   {StageDone},
}

// CanTransition reports whether the machine may move from one stage to
// another.
func CanTransition(from, to Stage) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// next picks the successor of a stage that may short-circuit: a terminal
// outcome jumps to Deciding.
func next(terminal bool, onward Stage) Stage {
	if terminal {
		return StageDeciding
	}
	return onward
}
