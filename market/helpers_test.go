package market

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/energymarket/marketclient/contract"
	"github.com/energymarket/marketclient/pipeline"
	"github.com/energymarket/marketclient/types"
	"github.com/energymarket/marketclient/wallet"
)

const (
	testContractID = "CAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAABSC4"
	testSeller     = "GAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAWHF"
)

var errLedgerDown = errors.New("ledger down")

func testContract(t *testing.T) *contract.Client {
	t.Helper()
	cc, err := contract.NewClient(contract.Config{
		ContractID:        testContractID,
		NetworkPassphrase: "Test SDF Network ; September 2015",
		BaseFee:           100,
		TxTimeout:         30 * time.Second,
	})
	require.NoError(t, err)
	return cc
}

type staticIdentity wallet.Identity

func (id staticIdentity) Identity() wallet.Identity { return wallet.Identity(id) }

var connected = staticIdentity{PublicKey: testSeller, State: wallet.StateConnected}

func offerValue(id uint64, src string, expiry time.Time) types.Value {
	return types.MapValue(
		types.Field("offer_id", types.U64Value(id)),
		types.Field("seller", types.MustAddressValue(testSeller)),
		types.Field("energy_amount", types.U64Value(100*id)),
		types.Field("price_per_unit", types.U64Value(10-id)),
		types.Field("energy_type", types.EnumValue(src)),
		types.Field("creation_time", types.U64Value(1700000000)),
		types.Field("expiration_time", types.U64Value(uint64(expiry.Unix()))),
		types.Field("is_active", types.BoolValue(true)),
	)
}

func statusValue(active uint64) types.Value {
	return types.MapValue(
		types.Field("active_offers", types.U64Value(active)),
		types.Field("completed_trades", types.U64Value(2)),
		types.Field("total_energy_traded", types.U64Value(300)),
		types.Field("total_offers_created", types.U64Value(5)),
	)
}

func idsValue(ids ...uint64) types.Value {
	vs := make([]types.Value, len(ids))
	for i, id := range ids {
		vs[i] = types.U64Value(id)
	}
	return types.VecValue(vs...)
}

// fakePipeline answers intents from a table keyed by operation and
// arguments, e.g. "get_offer 7".
type fakePipeline struct {
	mtx     sync.Mutex
	results map[string]types.Value
	errs    map[string]error
	calls   []string
	writes  []types.TransactionIntent
}

func newFakePipeline() *fakePipeline {
	return &fakePipeline{
		results: make(map[string]types.Value),
		errs:    make(map[string]error),
	}
}

func intentKey(intent types.TransactionIntent) string {
	parts := []string{intent.Operation()}
	for _, a := range intent.Args() {
		parts = append(parts, a.String())
	}
	return strings.Join(parts, " ")
}

func (f *fakePipeline) set(key string, v types.Value) {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	f.results[key] = v
	delete(f.errs, key)
}

func (f *fakePipeline) fail(key string, err error) {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	f.errs[key] = err
}

func (f *fakePipeline) callCount() int {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	return len(f.calls)
}

func (f *fakePipeline) Run(ctx context.Context, intent types.TransactionIntent) (pipeline.Outcome, error) {
	if err := ctx.Err(); err != nil {
		return pipeline.Outcome{Kind: pipeline.OutcomeFailed, Err: err}, err
	}
	key := intentKey(intent)

	f.mtx.Lock()
	defer f.mtx.Unlock()
	f.calls = append(f.calls, key)
	if err := f.errs[key]; err != nil {
		se := &pipeline.StageError{Stage: pipeline.StageSimulate, Err: err}
		return pipeline.Outcome{Kind: pipeline.OutcomeFailed, Err: se}, se
	}
	if !intent.ReadOnly() {
		f.writes = append(f.writes, intent)
		return pipeline.Outcome{Kind: pipeline.OutcomeSubmitted, TxHash: "abcd"}, nil
	}
	return pipeline.Outcome{Kind: pipeline.OutcomeSimulated, Effect: f.results[key]}, nil
}

func (f *fakePipeline) RunAndConfirm(ctx context.Context, intent types.TransactionIntent) (pipeline.Outcome, error) {
	o, err := f.Run(ctx, intent)
	if err != nil {
		return o, err
	}
	f.mtx.Lock()
	defer f.mtx.Unlock()
	o.Kind = pipeline.OutcomeConfirmed
	o.Ledger = 12
	o.Effect = f.results[intent.Operation()]
	return o, nil
}
