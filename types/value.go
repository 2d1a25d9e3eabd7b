package types

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/stellar/go/strkey"
	"github.com/stellar/go/xdr"
)

// Value is a contract call argument or result: an immutable wrapper around
// the ledger's host value (xdr.ScVal). The zero Value is void.
// Unit enum variants are encoded as a vector holding the variant symbol.
type Value struct {
	sc *xdr.ScVal
}

// MapEntry is one key/value pair of a map Value. Entries keep the order the
// ledger returned them in.
type MapEntry struct {
	Key Value
	Val Value
}

// FromScVal wraps a decoded host value.
func FromScVal(sc xdr.ScVal) Value { return Value{sc: &sc} }

// ScVal returns the host value for encoding.
func (v Value) ScVal() xdr.ScVal {
	if v.sc == nil {
		return xdr.ScVal{Type: xdr.ScValTypeScvVoid}
	}
	return *v.sc
}

func VoidValue() Value { return FromScVal(xdr.ScVal{Type: xdr.ScValTypeScvVoid}) }

func BoolValue(b bool) Value { return FromScVal(xdr.ScVal{Type: xdr.ScValTypeScvBool, B: &b}) }

func U32Value(u uint32) Value {
	n := xdr.Uint32(u)
	return FromScVal(xdr.ScVal{Type: xdr.ScValTypeScvU32, U32: &n})
}

func U64Value(u uint64) Value {
	n := xdr.Uint64(u)
	return FromScVal(xdr.ScVal{Type: xdr.ScValTypeScvU64, U64: &n})
}

func SymbolValue(s string) Value {
	sym := xdr.ScSymbol(s)
	return FromScVal(xdr.ScVal{Type: xdr.ScValTypeScvSymbol, Sym: &sym})
}

func StringValue(s string) Value {
	str := xdr.ScString(s)
	return FromScVal(xdr.ScVal{Type: xdr.ScValTypeScvString, Str: &str})
}

// AddressValue encodes an account (G...) or contract (C...) address.
func AddressValue(addr string) (Value, error) {
	sa, err := ScAddress(addr)
	if err != nil {
		return Value{}, err
	}
	return FromScVal(xdr.ScVal{Type: xdr.ScValTypeScvAddress, Address: &sa}), nil
}

// MustAddressValue is AddressValue that panics on an invalid address.
func MustAddressValue(addr string) Value {
	v, err := AddressValue(addr)
	if err != nil {
		panic(err)
	}
	return v
}

func VecValue(vs ...Value) Value {
	vec := make(xdr.ScVec, len(vs))
	for i, v := range vs {
		vec[i] = v.ScVal()
	}
	p := &vec
	return FromScVal(xdr.ScVal{Type: xdr.ScValTypeScvVec, Vec: &p})
}

func MapValue(es ...MapEntry) Value {
	m := make(xdr.ScMap, len(es))
	for i, e := range es {
		m[i] = xdr.ScMapEntry{Key: e.Key.ScVal(), Val: e.Val.ScVal()}
	}
	p := &m
	return FromScVal(xdr.ScVal{Type: xdr.ScValTypeScvMap, Map: &p})
}

func Field(name string, v Value) MapEntry { return MapEntry{Key: SymbolValue(name), Val: v} }

// EnumValue encodes a contract enum variant.
func EnumValue(variant string, fields ...Value) Value {
	return VecValue(append([]Value{SymbolValue(variant)}, fields...)...)
}

// ScAddress parses a strkey account or contract address.
func ScAddress(addr string) (xdr.ScAddress, error) {
	version, raw, err := strkey.DecodeAny(addr)
	if err != nil {
		return xdr.ScAddress{}, fmt.Errorf("address %q: %w", addr, err)
	}
	switch version {
	case strkey.VersionByteAccountID:
		aid, err := xdr.AddressToAccountId(addr)
		if err != nil {
			return xdr.ScAddress{}, fmt.Errorf("address %q: %w", addr, err)
		}
		return xdr.NewScAddress(xdr.ScAddressTypeScAddressTypeAccount, aid)
	case strkey.VersionByteContract:
		var h xdr.Hash
		if len(raw) != len(h) {
			return xdr.ScAddress{}, fmt.Errorf("address %q: contract id is %d bytes", addr, len(raw))
		}
		copy(h[:], raw)
		return xdr.NewScAddress(xdr.ScAddressTypeScAddressTypeContract, h)
	default:
		return xdr.ScAddress{}, fmt.Errorf("address %q: not an account or contract", addr)
	}
}

func (v Value) Type() xdr.ScValType { return v.ScVal().Type }

func (v Value) IsVoid() bool { return v.Type() == xdr.ScValTypeScvVoid }

func (v Value) Bool() (bool, bool) { return v.ScVal().GetB() }

// U64 returns unsigned integers of either width.
func (v Value) U64() (uint64, bool) {
	sc := v.ScVal()
	if n, ok := sc.GetU64(); ok {
		return uint64(n), true
	}
	if n, ok := sc.GetU32(); ok {
		return uint64(n), true
	}
	return 0, false
}

func (v Value) Symbol() (string, bool) {
	sym, ok := v.ScVal().GetSym()
	return string(sym), ok
}

// Str returns the contents of a string or symbol.
func (v Value) Str() (string, bool) {
	if str, ok := v.ScVal().GetStr(); ok {
		return string(str), true
	}
	return v.Symbol()
}

func (v Value) Address() (string, bool) {
	sa, ok := v.ScVal().GetAddress()
	if !ok {
		return "", false
	}
	s, err := sa.String()
	return s, err == nil
}

func (v Value) Vec() ([]Value, bool) {
	p, ok := v.ScVal().GetVec()
	if !ok {
		return nil, false
	}
	if p == nil {
		return []Value{}, true
	}
	out := make([]Value, len(*p))
	for i, sc := range *p {
		out[i] = FromScVal(sc)
	}
	return out, true
}

func (v Value) Map() ([]MapEntry, bool) {
	p, ok := v.ScVal().GetMap()
	if !ok {
		return nil, false
	}
	if p == nil {
		return []MapEntry{}, true
	}
	out := make([]MapEntry, len(*p))
	for i, e := range *p {
		out[i] = MapEntry{Key: FromScVal(e.Key), Val: FromScVal(e.Val)}
	}
	return out, true
}

// Lookup returns the value stored under the symbol key name of a map.
func (v Value) Lookup(name string) (Value, bool) {
	entries, _ := v.Map()
	for _, e := range entries {
		if k, ok := e.Key.Symbol(); ok && k == name {
			return e.Val, true
		}
	}
	return Value{}, false
}

// Enum returns the variant name of a unit enum value.
func (v Value) Enum() (string, bool) {
	vec, ok := v.Vec()
	if !ok || len(vec) == 0 {
		return "", false
	}
	return vec[0].Symbol()
}

// Describe is a short shape description used in decode errors.
func (v Value) Describe() string {
	name := strings.ToLower(strings.TrimPrefix(v.Type().String(), "ScValTypeScv"))
	if vec, ok := v.Vec(); ok {
		return fmt.Sprintf("%s[%d]", name, len(vec))
	}
	if m, ok := v.Map(); ok {
		return fmt.Sprintf("%s[%d]", name, len(m))
	}
	return name
}

// Equal reports deep equality.
func (v Value) Equal(o Value) bool {
	return v.ScVal().Equals(o.ScVal())
}

func (v Value) String() string { return v.ScVal().String() }

// Encode returns the base64 XDR form of the value.
func (v Value) Encode() (string, error) {
	return xdr.MarshalBase64(v.ScVal())
}

// DecodeValue parses a base64 XDR host value.
func DecodeValue(s string) (Value, error) {
	var sc xdr.ScVal
	if err := xdr.SafeUnmarshalBase64(s, &sc); err != nil {
		return Value{}, fmt.Errorf("decoding host value: %w", err)
	}
	return FromScVal(sc), nil
}

// MarshalJSON encodes the value as a base64 XDR string.
func (v Value) MarshalJSON() ([]byte, error) {
	s, err := v.Encode()
	if err != nil {
		return nil, err
	}
	return json.Marshal(s)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	got, err := DecodeValue(s)
	if err != nil {
		return err
	}
	*v = got
	return nil
}
