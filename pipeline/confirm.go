package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/energymarket/marketclient/ledger"
	"github.com/energymarket/marketclient/types"
)

// Confirm polls the ledger for the transaction hash until it is included,
// fails on ledger, or the confirm timeout passes. Transient lookup errors are
// logged and polling continues.
//
// A timeout yields OutcomeConfirmTimeout with an error matching
// types.ErrConfirmTimeout: the transaction may still land. A transaction the
// ledger rejected yields OutcomeFailed with an error matching
// types.ErrSubmitFailed.
func (p *Pipeline) Confirm(ctx context.Context, hash string) (Outcome, error) {
	start := p.now()
	logger := p.logger.With("hash", hash)
	o := Outcome{States: []State{StateSubmitted}}
	defer func() {
		p.metrics.ConfirmDurationSeconds.Observe(p.now().Sub(start).Seconds())
	}()

	ctx, cancel := context.WithTimeout(ctx, p.confirmTimeout)
	defer cancel()

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	var lastErr error
	for {
		res, err := p.ledger.GetTransaction(ctx, hash)
		switch {
		case err != nil:
			lastErr = err
			logger.Debug("transaction lookup failed", "err", err)
		case res.Status == ledger.TxStatusSuccess:
			o.Kind = OutcomeConfirmed
			o.TxHash = hash
			o.Ledger = res.Ledger
			o.Effect = res.ReturnValue
			o.States = append(o.States, StateConfirmed)
			logger.Info("transaction confirmed", "ledger", res.Ledger)
			return o, nil
		case res.Status == ledger.TxStatusFailed:
			// Included but failed. The result is final, so reporting it as a
			// timeout would invite a pointless re-query.
			o.Kind = OutcomeFailed
			o.TxHash = hash
			o.Ledger = res.Ledger
			o.Err = &StageError{Stage: StageConfirm, Err: fmt.Errorf("%w: transaction failed in ledger %d", types.ErrSubmitFailed, res.Ledger)}
			o.States = append(o.States, StateSubmitFailed)
			logger.Error("transaction failed on ledger", "ledger", res.Ledger)
			return o, o.Err
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			var err error
			if ctx.Err() == context.Canceled {
				err = ctx.Err()
			} else {
				err = fmt.Errorf("%w after %v", types.ErrConfirmTimeout, p.confirmTimeout)
			}
			if lastErr != nil {
				err = fmt.Errorf("%w (last lookup error: %v)", err, lastErr)
			}
			o.Kind = OutcomeConfirmTimeout
			o.TxHash = hash
			o.Err = &StageError{Stage: StageConfirm, Err: err}
			o.States = append(o.States, StateConfirmTimeout)
			logger.Info("transaction not confirmed in time", "timeout", p.confirmTimeout)
			return o, o.Err
		}
	}
}
