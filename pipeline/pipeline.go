// Package pipeline turns a transaction intent into a simulated, signed,
// submitted and confirmed ledger transaction.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/energymarket/marketclient/ledger"
	"github.com/energymarket/marketclient/libs/log"
	"github.com/energymarket/marketclient/types"
)

const (
	DefaultConfirmTimeout = 30 * time.Second
	DefaultPollInterval   = time.Second
)

// Signer signs a transaction sourced from the connected account.
// *wallet.Session implements it.
type Signer interface {
	Sign(ctx context.Context, tx types.Transaction, networkPassphrase string) (string, error)
}

// Runner is the part of Pipeline used by callers that only run intents.
type Runner interface {
	Run(ctx context.Context, intent types.TransactionIntent) (Outcome, error)
}

// Pipeline orchestrates runs. It owns no persistent state beyond the guard
// that keeps writes for the same action from overlapping, so one Pipeline
// may serve concurrent runs.
type Pipeline struct {
	ledger ledger.Client
	signer Signer

	logger  log.Logger
	metrics *Metrics
	guard   *Guard
	now     func() time.Time

	confirmTimeout time.Duration
	pollInterval   time.Duration

	onTransition func(runID string, from, to State)
}

var _ Runner = (*Pipeline)(nil)

// Option sets an optional parameter on the Pipeline.
type Option func(*Pipeline)

func WithLogger(logger log.Logger) Option { return func(p *Pipeline) { p.logger = logger } }

func WithMetrics(metrics *Metrics) Option { return func(p *Pipeline) { p.metrics = metrics } }

func WithGuard(g *Guard) Option { return func(p *Pipeline) { p.guard = g } }

func WithClock(now func() time.Time) Option { return func(p *Pipeline) { p.now = now } }

// WithConfirmTimeout bounds Confirm. It is independent of the transaction
// time bounds.
func WithConfirmTimeout(d time.Duration) Option { return func(p *Pipeline) { p.confirmTimeout = d } }

func WithPollInterval(d time.Duration) Option { return func(p *Pipeline) { p.pollInterval = d } }

// WithTransitionHook registers fn to be called on every state change.
func WithTransitionHook(fn func(runID string, from, to State)) Option {
	return func(p *Pipeline) { p.onTransition = fn }
}

// New returns a Pipeline over the ledger. signer may be nil for a read-only
// pipeline; writes then fail with types.ErrNotConnected.
func New(lc ledger.Client, signer Signer, options ...Option) *Pipeline {
	p := &Pipeline{
		ledger:         lc,
		signer:         signer,
		logger:         log.NewNopLogger(),
		metrics:        NopMetrics(),
		guard:          NewGuard(),
		now:            time.Now,
		confirmTimeout: DefaultConfirmTimeout,
		pollInterval:   DefaultPollInterval,
	}
	for _, option := range options {
		option(p)
	}
	p.logger = p.logger.With("module", "pipeline")
	return p
}

// run tracks one intent through the state machine.
type run struct {
	p      *Pipeline
	id     string
	intent types.TransactionIntent
	states []State
	start  time.Time
	logger log.Logger
}

func (p *Pipeline) newRun(intent types.TransactionIntent) *run {
	id := uuid.NewString()
	return &run{
		p:      p,
		id:     id,
		intent: intent,
		states: []State{StateBuilt},
		start:  p.now(),
		logger: p.logger.With("run", id, "op", intent.Operation()),
	}
}

func (r *run) to(s State) {
	from := r.states[len(r.states)-1]
	if !CanTransition(from, s) {
		panic(fmt.Sprintf("pipeline: illegal transition %v -> %v", from, s))
	}
	r.states = append(r.states, s)
	r.logger.Debug("pipeline transition", "from", from, "to", s)
	if r.p.onTransition != nil {
		r.p.onTransition(r.id, from, s)
	}
}

func (r *run) outcome(kind OutcomeKind) Outcome {
	return Outcome{
		RunID:  r.id,
		Kind:   kind,
		States: append([]State(nil), r.states...),
	}
}

func (r *run) fail(state State, stage Stage, err error) (Outcome, error) {
	r.to(state)
	o := r.outcome(OutcomeFailed)
	o.Err = &StageError{Stage: stage, Err: err}
	r.logger.Error("pipeline run failed", "stage", stage, "err", err)
	r.finish(o)
	return o, o.Err
}

func (r *run) finish(o Outcome) {
	op := r.intent.Operation()
	r.p.metrics.Runs.With("operation", op, "outcome", o.Kind.String()).Add(1)
	if o.Kind == OutcomeFailed {
		r.p.metrics.Failures.With("operation", op, "stage", string(o.Stage())).Add(1)
	}
	r.p.metrics.RunDurationSeconds.With("operation", op).Observe(r.p.now().Sub(r.start).Seconds())
}

// Run drives intent through the pipeline. A read intent ends after
// simulation with an OutcomeSimulated carrying the decoded-ready effect. A
// write intent is signed and submitted and ends with OutcomeSubmitted; use
// Confirm to wait for inclusion. The error is non-nil exactly when the
// outcome is OutcomeFailed.
//
// Submission is never retried.
func (p *Pipeline) Run(ctx context.Context, intent types.TransactionIntent) (Outcome, error) {
	return p.run(ctx, intent, StateSubmitted)
}

// Sign drives a write intent up to StateSigned and returns the envelope
// without submitting it.
func (p *Pipeline) Sign(ctx context.Context, intent types.TransactionIntent) (Outcome, error) {
	if intent.ReadOnly() {
		return Outcome{}, fmt.Errorf("pipeline: %s is a read intent", intent.Operation())
	}
	return p.run(ctx, intent, StateSigned)
}

// RunAndConfirm is Run followed by Confirm for writes.
func (p *Pipeline) RunAndConfirm(ctx context.Context, intent types.TransactionIntent) (Outcome, error) {
	o, err := p.Run(ctx, intent)
	if err != nil || o.Kind != OutcomeSubmitted {
		return o, err
	}
	c, err := p.Confirm(ctx, o.TxHash)
	c.RunID = o.RunID
	c.Envelope = o.Envelope
	c.States = append(o.States, c.States[1:]...)
	return c, err
}

func (p *Pipeline) run(ctx context.Context, intent types.TransactionIntent, until State) (Outcome, error) {
	if !intent.ReadOnly() {
		release, err := p.guard.Acquire(intent.ActionKey())
		if err != nil {
			p.metrics.BusyRejections.With("operation", intent.Operation()).Add(1)
			return Outcome{Kind: OutcomeFailed, Err: err}, err
		}
		defer release()
	}

	r := p.newRun(intent)
	r.logger.Debug("pipeline run", "intent", intent)

	// Simulating
	r.to(StateSimulating)
	tx, sim, err := p.simulate(ctx, intent)
	if err != nil {
		return r.fail(StateSimulateFailed, StageSimulate, err)
	}
	r.to(StateSimulateOk)

	if intent.ReadOnly() {
		o := r.outcome(OutcomeSimulated)
		o.Effect = sim.Result
		r.finish(o)
		return o, nil
	}

	// Signing
	tx.Fee = intent.Fee() + sim.MinResourceFee
	tx.ResourceData = sim.TransactionData
	tx.Auth = sim.Auth

	r.to(StateSigning)
	if p.signer == nil {
		return r.fail(StateSignFailed, StageSign, types.ErrNotConnected)
	}
	envelope, err := p.signer.Sign(ctx, tx, intent.NetworkPassphrase())
	if err != nil {
		return r.fail(StateSignFailed, StageSign, err)
	}
	r.to(StateSigned)

	if until == StateSigned {
		o := r.outcome(OutcomeSigned)
		o.Envelope = envelope
		r.finish(o)
		return o, nil
	}

	// Submitting
	r.to(StateSubmitting)
	hash, err := p.submit(ctx, tx, envelope, intent.NetworkPassphrase(), r.logger)
	if err != nil {
		return r.fail(StateSubmitFailed, StageSubmit, err)
	}
	r.to(StateSubmitted)

	o := r.outcome(OutcomeSubmitted)
	o.Envelope = envelope
	o.TxHash = hash
	r.logger.Info("transaction submitted", "hash", hash)
	r.finish(o)
	return o, nil
}

// simulate builds the transaction for intent and dry-runs it. Writes use
// the source account's next sequence number; reads come from a disposable
// account that need not exist on the ledger, so no lookup is made.
func (p *Pipeline) simulate(ctx context.Context, intent types.TransactionIntent) (types.Transaction, *ledger.SimulateResult, error) {
	var seq int64
	if !intent.ReadOnly() {
		acc, err := p.ledger.GetAccount(detach(ctx), intent.Source())
		if err := discarded(ctx, err); err != nil {
			return types.Transaction{}, nil, err
		}
		seq = acc.NextSequence()
	}

	tx := intent.Transaction(seq, p.now())
	sim, err := p.ledger.SimulateTransaction(detach(ctx), tx)
	if err := discarded(ctx, err); err != nil {
		return tx, nil, err
	}
	if sim.Failed() {
		return tx, nil, fmt.Errorf("%w: %s", types.ErrSimulateFailed, sim.Error)
	}
	return tx, sim, nil
}

func (p *Pipeline) submit(
	ctx context.Context,
	tx types.Transaction,
	envelope, networkPassphrase string,
	logger log.Logger,
) (string, error) {
	res, err := p.ledger.SendTransaction(detach(ctx), envelope)
	if err != nil {
		return "", err
	}
	if ctx.Err() != nil {
		// The envelope reached the ledger; only the caller is gone.
		logger.Info("discarding submission result after cancellation", "hash", res.Hash)
		return "", ctx.Err()
	}
	if !res.Status.Accepted() {
		return "", fmt.Errorf("%w: status %s %s", types.ErrSubmitFailed, res.Status, res.ErrorResult)
	}

	if res.Hash != "" {
		return res.Hash, nil
	}
	return tx.Hash(networkPassphrase)
}

// discarded returns err, or ctx.Err() when the caller went away while the
// call was in flight.
func discarded(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}

// detachedContext keeps the values of its parent but not its cancellation,
// so in-flight ledger calls run to completion.
type detachedContext struct{ parent context.Context }

func detach(ctx context.Context) context.Context { return detachedContext{parent: ctx} }

func (detachedContext) Deadline() (time.Time, bool)         { return time.Time{}, false }
func (detachedContext) Done() <-chan struct{}               { return nil }
func (detachedContext) Err() error                          { return nil }
func (c detachedContext) Value(key interface{}) interface{} { return c.parent.Value(key) }
