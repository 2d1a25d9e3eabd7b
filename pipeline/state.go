package pipeline

import "fmt"

// State of one pipeline run.
//
//	Built -> Simulating -> SimulateFailed
//	                    -> SimulateOk -> (write) Signing -> SignFailed
//	                                                     -> Signed -> Submitting -> SubmitFailed
//	                                                                             -> Submitted -> Confirmed
//	                                                                                          -> ConfirmTimeout
//	                                                                                          -> SubmitFailed (failed on ledger)
type State uint8

const (
	StateBuilt State = iota
	StateSimulating
	StateSimulateFailed
	StateSimulateOk
	StateSigning
	StateSignFailed
	StateSigned
	StateSubmitting
	StateSubmitFailed
	StateSubmitted
	StateConfirmed
	StateConfirmTimeout
)

func (s State) String() string {
	switch s {
	case StateBuilt:
		return "Built"
	case StateSimulating:
		return "Simulating"
	case StateSimulateFailed:
		return "SimulateFailed"
	case StateSimulateOk:
		return "SimulateOk"
	case StateSigning:
		return "Signing"
	case StateSignFailed:
		return "SignFailed"
	case StateSigned:
		return "Signed"
	case StateSubmitting:
		return "Submitting"
	case StateSubmitFailed:
		return "SubmitFailed"
	case StateSubmitted:
		return "Submitted"
	case StateConfirmed:
		return "Confirmed"
	case StateConfirmTimeout:
		return "ConfirmTimeout"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// transitions lists the legal successors of every state.
var transitions = map[State][]State{
	StateBuilt:      {StateSimulating},
	StateSimulating: {StateSimulateFailed, StateSimulateOk},
	StateSimulateOk: {StateSigning},
	StateSigning:    {StateSignFailed, StateSigned},
	StateSigned:     {StateSubmitting},
	StateSubmitting: {StateSubmitFailed, StateSubmitted},
	StateSubmitted:  {StateConfirmed, StateConfirmTimeout, StateSubmitFailed},
}

// CanTransition reports whether to directly follows from.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Stage names the step a run failed in.
type Stage string

const (
	StageSimulate Stage = "simulate"
	StageSign     Stage = "sign"
	StageSubmit   Stage = "submit"
	StageConfirm  Stage = "confirm"
)

// StageError is a pipeline failure with the failing stage named.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s: %v", e.Stage, e.Err) }

func (e *StageError) Unwrap() error { return e.Err }
