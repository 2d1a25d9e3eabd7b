package pipeline

import (
	"errors"
	"fmt"

	"github.com/energymarket/marketclient/types"
)

// OutcomeKind tags an Outcome.
type OutcomeKind uint8

const (
	OutcomeFailed OutcomeKind = iota
	OutcomeSimulated
	OutcomeSigned
	OutcomeSubmitted
	OutcomeConfirmed
	// OutcomeConfirmTimeout means the outcome is unknown: the transaction
	// may still land. Callers should query again rather than resubmit.
	OutcomeConfirmTimeout
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeFailed:
		return "failed"
	case OutcomeSimulated:
		return "simulated"
	case OutcomeSigned:
		return "signed"
	case OutcomeSubmitted:
		return "submitted"
	case OutcomeConfirmed:
		return "confirmed"
	case OutcomeConfirmTimeout:
		return "confirm-timeout"
	default:
		return fmt.Sprintf("OutcomeKind(%d)", uint8(k))
	}
}

// Outcome is the result of a pipeline run. Which fields are set depends on
// Kind:
//
//	Simulated:      Effect
//	Signed:         Envelope
//	Submitted:      Envelope, TxHash
//	Confirmed:      TxHash, Ledger, Effect
//	ConfirmTimeout: TxHash, Err
//	Failed:         Err (a *StageError)
type Outcome struct {
	RunID string
	Kind  OutcomeKind

	Effect   types.Value
	Envelope string
	TxHash   string
	Ledger   uint32

	Err error

	// States is the path the run took, starting at StateBuilt.
	States []State
}

// Final returns the last state reached.
func (o Outcome) Final() State {
	if len(o.States) == 0 {
		return StateBuilt
	}
	return o.States[len(o.States)-1]
}

// Stage returns the failing stage, or "" if the run did not fail.
func (o Outcome) Stage() Stage {
	var se *StageError
	if errors.As(o.Err, &se) {
		return se.Stage
	}
	return ""
}

func (o Outcome) String() string {
	switch o.Kind {
	case OutcomeFailed, OutcomeConfirmTimeout:
		return fmt.Sprintf("Outcome{%s %v}", o.Kind, o.Err)
	case OutcomeSubmitted, OutcomeConfirmed:
		return fmt.Sprintf("Outcome{%s %s}", o.Kind, o.TxHash)
	default:
		return fmt.Sprintf("Outcome{%s}", o.Kind)
	}
}
