package types

import (
	"testing"
	"time"

	"github.com/stellar/go/network"
	"github.com/stellar/go/xdr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testPassphrase = network.TestNetworkPassphrase
	testContract   = "CAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAABSC4"
	testAccount    = "GAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAWHF"
)

func testIntent(t *testing.T) TransactionIntent {
	t.Helper()
	intent, err := NewWriteIntent(IntentParams{
		ContractID:        testContract,
		Operation:         "create_offer",
		Args:              []Value{MustAddressValue(testAccount), U64Value(100), U64Value(5), EnumValue("Solar")},
		Source:            testAccount,
		Fee:               100,
		Timeout:           30 * time.Second,
		NetworkPassphrase: testPassphrase,
	})
	require.NoError(t, err)
	return intent
}

func testResourceData(t *testing.T) string {
	t.Helper()
	s, err := xdr.MarshalBase64(xdr.SorobanTransactionData{
		Resources:   xdr.SorobanResources{Instructions: 1000, ReadBytes: 10, WriteBytes: 20},
		ResourceFee: 4321,
	})
	require.NoError(t, err)
	return s
}

func testAuthEntry(t *testing.T) string {
	t.Helper()
	contract, err := ScAddress(testContract)
	require.NoError(t, err)
	s, err := xdr.MarshalBase64(xdr.SorobanAuthorizationEntry{
		Credentials: xdr.SorobanCredentials{Type: xdr.SorobanCredentialsTypeSorobanCredentialsSourceAccount},
		RootInvocation: xdr.SorobanAuthorizedInvocation{
			Function: xdr.SorobanAuthorizedFunction{
				Type: xdr.SorobanAuthorizedFunctionTypeSorobanAuthorizedFunctionTypeContractFn,
				ContractFn: &xdr.InvokeContractArgs{
					ContractAddress: contract,
					FunctionName:    "create_offer",
				},
			},
		},
	})
	require.NoError(t, err)
	return s
}

func TestTransactionEncodesAsEnvelopeXDR(t *testing.T) {
	now := time.Unix(1700000000, 0)
	tx := testIntent(t).Transaction(42, now)
	assert.EqualValues(t, 1700000030, tx.MaxTime)
	assert.EqualValues(t, 42, tx.Sequence)

	s, err := tx.Encode()
	require.NoError(t, err)

	var env xdr.TransactionEnvelope
	require.NoError(t, xdr.SafeUnmarshalBase64(s, &env))
	require.Equal(t, xdr.EnvelopeTypeEnvelopeTypeTx, env.Type)
	ops := env.Operations()
	require.Len(t, ops, 1)
	assert.Equal(t, xdr.OperationTypeInvokeHostFunction, ops[0].Body.Type)
	assert.EqualValues(t, 42, env.SeqNum())
	assert.EqualValues(t, 100, env.Fee())

	got, err := DecodeTransaction(s)
	require.NoError(t, err)
	assert.Equal(t, tx.SourceAccount, got.SourceAccount)
	assert.Equal(t, tx.ContractID, got.ContractID)
	assert.Equal(t, tx.Function, got.Function)
	assert.Equal(t, tx.MaxTime, got.MaxTime)
	require.Len(t, got.Args, len(tx.Args))
	for i := range tx.Args {
		assert.True(t, tx.Args[i].Equal(got.Args[i]), "arg %d", i)
	}

	h1, err := tx.Hash(testPassphrase)
	require.NoError(t, err)
	h2, err := got.Hash(testPassphrase)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)

	other, err := tx.Hash(network.PublicNetworkPassphrase)
	require.NoError(t, err)
	assert.NotEqual(t, h1, other, "hash must commit to the network")

	_, err = tx.Hash("")
	require.Error(t, err)
	_, err = DecodeTransaction("%%%")
	require.Error(t, err)
}

func TestTransactionCarriesSimulationResults(t *testing.T) {
	tx := testIntent(t).Transaction(7, time.Unix(1700000000, 0))
	before, err := tx.Hash(testPassphrase)
	require.NoError(t, err)

	tx.Fee = 100 + 4321
	tx.ResourceData = testResourceData(t)
	tx.Auth = []string{testAuthEntry(t)}

	s, err := tx.Encode()
	require.NoError(t, err)
	var env xdr.TransactionEnvelope
	require.NoError(t, xdr.SafeUnmarshalBase64(s, &env))
	require.NotNil(t, env.V1.Tx.Ext.SorobanData)
	assert.EqualValues(t, 4321, env.V1.Tx.Ext.SorobanData.ResourceFee)

	got, err := DecodeTransaction(s)
	require.NoError(t, err)
	assert.Equal(t, tx.ResourceData, got.ResourceData)
	assert.Equal(t, tx.Auth, got.Auth)
	assert.EqualValues(t, 4421, got.Fee)

	after, err := tx.Hash(testPassphrase)
	require.NoError(t, err)
	assert.NotEqual(t, before, after)

	tx.ResourceData = "not xdr"
	_, err = tx.Encode()
	require.Error(t, err)
}

func TestTransactionRejectsBadAddresses(t *testing.T) {
	tx := testIntent(t).Transaction(1, time.Now())
	tx.ContractID = testAccount
	_, err := tx.Encode()
	require.NoError(t, err, "an account is a valid ScAddress")

	tx.ContractID = "CBAD"
	_, err = tx.Encode()
	require.Error(t, err)

	tx = testIntent(t).Transaction(1, time.Now())
	tx.SourceAccount = "GBAD"
	_, err = tx.Encode()
	require.Error(t, err)
}

func TestDecodeEnvelopeRequiresSignature(t *testing.T) {
	built, err := testIntent(t).Transaction(1, time.Now()).Build()
	require.NoError(t, err)
	unsigned, err := built.Base64()
	require.NoError(t, err)

	_, err = DecodeEnvelope(unsigned)
	require.Error(t, err)

	signed, err := built.AddSignatureDecorated(xdr.DecoratedSignature{
		Hint:      xdr.SignatureHint{1, 2, 3, 4},
		Signature: make([]byte, 64),
	})
	require.NoError(t, err)
	s, err := signed.Base64()
	require.NoError(t, err)

	got, err := DecodeEnvelope(s)
	require.NoError(t, err)
	require.Len(t, got.Signatures(), 1)
	assert.Equal(t, xdr.SignatureHint{1, 2, 3, 4}, got.Signatures()[0].Hint)
}

func TestIntentIsImmutable(t *testing.T) {
	args := []Value{U64Value(1)}
	intent, err := NewReadIntent(IntentParams{
		ContractID:        testContract,
		Operation:         "get_offer",
		Args:              args,
		Source:            testAccount,
		Timeout:           time.Second,
		NetworkPassphrase: testPassphrase,
	})
	require.NoError(t, err)

	args[0] = U64Value(2)
	got := intent.Args()
	got[0] = U64Value(3)

	n, _ := intent.Args()[0].U64()
	assert.EqualValues(t, 1, n)
	assert.True(t, intent.ReadOnly())

	_, err = NewReadIntent(IntentParams{Operation: "x"})
	require.Error(t, err)
}

func TestOfferStatusAt(t *testing.T) {
	now := time.Unix(1000, 0)
	o := Offer{ID: 1, Seller: testAccount, EnergyAmount: 10, PricePerUnit: 2, Source: EnergySourceWind, Expiry: now.Add(time.Minute), Status: OfferStatusActive}
	require.NoError(t, o.ValidateBasic())
	assert.Equal(t, OfferStatusActive, o.StatusAt(now))
	assert.Equal(t, OfferStatusExpired, o.StatusAt(now.Add(2*time.Minute)))
	assert.EqualValues(t, 20, o.TotalPrice())

	o.PricePerUnit = 0
	require.ErrorIs(t, o.ValidateBasic(), ErrInvalidQuantity)
}
