package abi

import (
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tokenABI = `[
  {"type":"constructor","inputs":[{"name":"_name","type":"string"},{"name":"_supply","type":"uint256"}]},
  {"type":"function","name":"transfer","stateMutability":"nonpayable",
   "inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],
   "outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"balanceOf","stateMutability":"view",
   "inputs":[{"name":"owner","type":"address"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"renounce","stateMutability":"payable","inputs":[],"outputs":[]},
  {"type":"event","name":"Transfer","anonymous":false,
   "inputs":[{"name":"from","type":"address","indexed":true},
             {"name":"to","type":"address","indexed":true},
             {"name":"value","type":"uint256","indexed":false}]}
]`

func mustRegistry(t *testing.T, raw string) *Registry {
	t.Helper()
	entries, err := ParseEntries([]byte(raw))
	require.NoError(t, err)
	r, err := New(entries)
	require.NoError(t, err)

	return r
}

func TestRegistry_Transfer(t *testing.T) {
	t.Parallel()

	r := mustRegistry(t, tokenABI)

	rec, ok := r.Function("transfer")
	require.True(t, ok)
	assert.Equal(t, "transfer(address,uint256)", rec.Signature)
	assert.Equal(t, "a9059cbb", rec.Selector)
	assert.Equal(t, crypto.Keccak256Hash([]byte("transfer(address,uint256)")), rec.Hash)
	assert.Equal(t, []string{"to", "amount"}, rec.ParamNames)
	assert.Equal(t, []string{"address", "uint256"}, rec.ParamTypes)
	assert.Equal(t, []string{"bool"}, rec.OutputTypes)
	assert.False(t, rec.IsGetter())

	bySel, ok := r.FunctionBySelector("a9059cbb")
	require.True(t, ok)
	assert.Same(t, rec, bySel)

	byHash, ok := r.FunctionByHash(rec.Hash)
	require.True(t, ok)
	assert.Same(t, rec, byHash)

	ok, code, msg := r.IsValidParamDict("transfer", map[string]any{
		"to":     "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		"amount": "10",
	})
	assert.True(t, ok)
	assert.Equal(t, CodeSuccess, code)
	assert.Equal(t, "Success", msg)
}

func TestRegistry_Partitions(t *testing.T) {
	t.Parallel()

	r := mustRegistry(t, tokenABI)

	getters := r.GettersByName()
	writers := r.WritersByName()
	assert.Len(t, getters, 1)
	assert.Contains(t, getters, "balanceOf")
	assert.Len(t, writers, 2)
	assert.Contains(t, writers, "transfer")
	assert.Contains(t, writers, "renounce")

	balanceOf, _ := r.Function("balanceOf")
	assert.Contains(t, r.Getters(), balanceOf.Hash)
	assert.NotContains(t, r.Writers(), balanceOf.Hash)
}

func TestRegistry_Event(t *testing.T) {
	t.Parallel()

	r := mustRegistry(t, tokenABI)

	ev, ok := r.Event("Transfer")
	require.True(t, ok)
	assert.Equal(t, "Transfer(address,address,uint256)", ev.Signature)
	assert.Equal(t, "0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef", ev.Hash.Hex())
	assert.Equal(t, "ddf252ad", ev.Selector)
	assert.Equal(t, []string{"from", "to"}, ev.IndexedNames)
	assert.Equal(t, []string{"address", "address"}, ev.IndexedTypes)
	assert.Equal(t, []string{"value"}, ev.UnindexedNames)
	assert.Equal(t, []string{"uint256"}, ev.UnindexedTypes)

	byHash, ok := r.EventByHash(ev.Hash)
	require.True(t, ok)
	assert.Same(t, ev, byHash)
}

func TestRegistry_Constructor(t *testing.T) {
	t.Parallel()

	r := mustRegistry(t, tokenABI)

	c := r.Constructor()
	require.NotNil(t, c)
	assert.Equal(t, []string{"_name", "_supply"}, c.InputNames)
	assert.Equal(t, []string{"string", "uint256"}, c.InputTypes)

	noCtor := mustRegistry(t, `[{"type":"function","name":"f","stateMutability":"view","inputs":[],"outputs":[]}]`)
	assert.Nil(t, noCtor.Constructor())
}

func TestRegistry_EmptyInputs(t *testing.T) {
	t.Parallel()

	r := mustRegistry(t, tokenABI)

	rec, ok := r.Function("renounce")
	require.True(t, ok)
	assert.Equal(t, "renounce()", rec.Signature)
	assert.Len(t, rec.Selector, 8)
}

func TestRegistry_IsValid(t *testing.T) {
	t.Parallel()

	r := mustRegistry(t, tokenABI)

	tests := []struct {
		name     string
		method   string
		args     []any
		wantOK   bool
		wantCode int
		wantMsg  string
	}{
		{name: "success", method: "balanceOf", args: []any{"0x0"}, wantOK: true, wantCode: CodeSuccess, wantMsg: "Success"},
		{name: "unknown method", method: "mint", args: []any{}, wantCode: CodeUnknownMethod, wantMsg: "Invalid method: mint"},
		{name: "too few", method: "transfer", args: []any{"0x0"}, wantCode: CodeArgumentMismatch, wantMsg: "Argument list mismatch"},
		{name: "too many", method: "renounce", args: []any{"1"}, wantCode: CodeArgumentMismatch, wantMsg: "Argument list mismatch"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ok, code, msg := r.IsValid(tt.method, tt.args)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantMsg, msg)
		})
	}
}

func TestRegistry_TupleExpansion(t *testing.T) {
	t.Parallel()

	raw := `[{"type":"function","name":"submit","stateMutability":"nonpayable",
	  "inputs":[
	    {"name":"order","type":"tuple","components":[
	      {"name":"id","type":"uint256"},
	      {"name":"legs","type":"tuple[]","components":[
	        {"name":"to","type":"address"},
	        {"name":"meta","type":"tuple","components":[{"name":"tag","type":"bytes32"},{"name":"ok","type":"bool"}]}
	      ]},
	      {"name":"note","type":"string"}
	    ]},
	    {"name":"batch","type":"tuple[]","components":[{"name":"a","type":"uint8"}]},
	    {"name":"flag","type":"bool"}
	  ],
	  "outputs":[{"name":"receipt","type":"tuple","components":[{"name":"n","type":"uint256"}]}]}]`
	r := mustRegistry(t, raw)

	rec, ok := r.Function("submit")
	require.True(t, ok)

	order := "(uint256,(address,(bytes32,bool))[],string)"
	assert.Equal(t, "submit("+order+",(uint8)[],bool)", rec.Signature)
	assert.Equal(t, []string{order, "(uint8)[]", "bool"}, rec.ParamTypes)
	assert.Equal(t, map[string]string{"order": order, "batch": "(uint8)[]"}, rec.InputTupleEncodings)
	assert.Equal(t, []string{"(uint256)"}, rec.OutputTypes)
	assert.Equal(t, map[string]string{"receipt": "(uint256)"}, rec.OutputTupleEncodings)
	assert.Equal(t, SignatureHash(rec.Signature), rec.Hash)
}

func TestRegistry_TupleArraySuffix(t *testing.T) {
	t.Parallel()

	raw := `[{"type":"function","name":"fixed","stateMutability":"nonpayable","outputs":[],
	  "inputs":[
	    {"name":"pair","type":"tuple[2]","components":[{"name":"n","type":"uint256"},{"name":"to","type":"address"}]},
	    {"name":"grid","type":"tuple[][]","components":[{"name":"ok","type":"bool"}]},
	    {"name":"mixed","type":"tuple[][3]","components":[{"name":"n","type":"uint8"}]}
	  ]}]`
	r := mustRegistry(t, raw)

	rec, ok := r.Function("fixed")
	require.True(t, ok)
	assert.Equal(t, "fixed((uint256,address)[2],(bool)[][],(uint8)[][3])", rec.Signature)
	assert.Equal(t, []string{"(uint256,address)[2]", "(bool)[][]", "(uint8)[][3]"}, rec.ParamTypes)

	sig := crypto.Keccak256([]byte("fixed((uint256,address)[2],(bool)[][],(uint8)[][3])"))
	assert.Equal(t, sig[:4], rec.Hash.Bytes()[:4])

	addr := "0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266"
	_, errs, err := r.CoerceParams("fixed", map[string]any{
		"pair":  []any{[]any{"1", addr}, []any{"2", addr}},
		"grid":  []any{[]any{[]any{true}}, []any{}},
		"mixed": []any{[]any{}, []any{[]any{"7"}}, []any{}},
	})
	require.NoError(t, err)
	assert.True(t, errs.Empty())

	_, errs, err = r.CoerceParams("fixed", map[string]any{
		"pair":  []any{"1", addr},
		"grid":  []any{},
		"mixed": []any{[]any{}, []any{}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"mixed", "pair"}, errs.Params())
}

func TestRegistry_Deterministic(t *testing.T) {
	t.Parallel()

	a := mustRegistry(t, tokenABI)
	b := mustRegistry(t, tokenABI)

	for name, rec := range a.WritersByName() {
		other, ok := b.Function(name)
		require.True(t, ok)
		assert.Equal(t, rec.Signature, other.Signature)
		assert.Equal(t, rec.Hash, other.Hash)
		assert.Equal(t, rec.Selector, other.Selector)
	}
}

func TestRegistry_LoadIsIdempotent(t *testing.T) {
	t.Parallel()

	r := mustRegistry(t, tokenABI)
	before, _ := r.Function("transfer")

	require.NoError(t, r.Load())
	after, ok := r.Function("transfer")
	require.True(t, ok)
	assert.Equal(t, before.Signature, after.Signature)
	assert.Len(t, r.WritersByName(), 2)

	entries, err := ParseEntries([]byte(`[{"type":"function","name":"ping","stateMutability":"view","inputs":[],"outputs":[]}]`))
	require.NoError(t, err)
	require.NoError(t, r.Reload(entries))

	_, ok = r.Function("transfer")
	assert.False(t, ok)
	_, ok = r.Function("ping")
	assert.True(t, ok)
	assert.Nil(t, r.Constructor())
}

func TestRegistry_SelectorCollision(t *testing.T) {
	t.Parallel()

	// Both signatures hash to the selector 0x42966c68.
	raw := `[
	  {"type":"function","name":"burn","stateMutability":"nonpayable","inputs":[{"name":"a","type":"uint256"}],"outputs":[]},
	  {"type":"function","name":"collate_propagate_storage","stateMutability":"nonpayable","inputs":[{"name":"a","type":"bytes16"}],"outputs":[]}
	]`
	entries, err := ParseEntries([]byte(raw))
	require.NoError(t, err)

	_, err = New(entries)
	var collision *SelectorCollisionError
	require.ErrorAs(t, err, &collision)
	assert.Equal(t, "42966c68", collision.Selector)
	assert.Equal(t, "burn(uint256)", collision.Existing)
	assert.Equal(t, "collate_propagate_storage(bytes16)", collision.Colliding)
}

func TestRegistry_ReloadCollisionKeepsPrevious(t *testing.T) {
	t.Parallel()

	r := mustRegistry(t, `[{"type":"function","name":"a","stateMutability":"view","inputs":[],"outputs":[]}]`)
	previous := r.Entries()

	bad, err := ParseEntries([]byte(`[
	  {"type":"function","name":"keep","stateMutability":"view","inputs":[],"outputs":[]},
	  {"type":"function","name":"burn","stateMutability":"nonpayable","inputs":[{"name":"a","type":"uint256"}],"outputs":[]},
	  {"type":"function","name":"collate_propagate_storage","stateMutability":"nonpayable","inputs":[{"name":"a","type":"bytes16"}],"outputs":[]},
	  {"type":"function","name":"after","stateMutability":"view","inputs":[],"outputs":[]}
	]`))
	require.NoError(t, err)

	var collision *SelectorCollisionError
	require.ErrorAs(t, r.Reload(bad), &collision)

	_, ok := r.Function("a")
	assert.True(t, ok)
	_, ok = r.Function("keep")
	assert.False(t, ok)
	_, ok = r.Function("burn")
	assert.False(t, ok)
	assert.Equal(t, previous, r.Entries())

	require.NoError(t, r.Load())
	_, ok = r.Function("a")
	assert.True(t, ok)
}

func TestRegistry_EventOverloads(t *testing.T) {
	t.Parallel()

	raw := `[
	  {"type":"event","name":"Moved","inputs":[{"name":"to","type":"address","indexed":true}]},
	  {"type":"event","name":"Moved","inputs":[{"name":"to","type":"address","indexed":true},{"name":"n","type":"uint256","indexed":false}]}
	]`
	r := mustRegistry(t, raw)

	ev, ok := r.Event("Moved")
	require.True(t, ok)
	assert.Equal(t, "Moved(address,uint256)", ev.Signature)

	overloads := r.EventOverloads()
	require.Contains(t, overloads, "Moved")
	assert.Len(t, overloads["Moved"], 2)
	assert.Empty(t, r.Overloads())

	first, ok := r.EventByHash(overloads["Moved"][0])
	require.True(t, ok)
	assert.Equal(t, "Moved(address)", first.Signature)
}

func TestRegistry_Overloads(t *testing.T) {
	t.Parallel()

	raw := `[
	  {"type":"function","name":"mint","stateMutability":"nonpayable","inputs":[{"name":"a","type":"uint256"}],"outputs":[]},
	  {"type":"function","name":"mint","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address"},{"name":"a","type":"uint256"}],"outputs":[]}
	]`
	r := mustRegistry(t, raw)

	rec, ok := r.Function("mint")
	require.True(t, ok)
	assert.Equal(t, "mint(address,uint256)", rec.Signature)

	overloads := r.Overloads()
	require.Contains(t, overloads, "mint")
	assert.Len(t, overloads["mint"], 2)
	assert.Len(t, r.WritersByName(), 1)
}

func TestTypeCategory(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"uint256":   "integer",
		"int":       "integer",
		"bytes32":   "string",
		"byte":      "string",
		"address":   "string",
		"string":    "string",
		"bool":      "boolean",
		"uint256[]": "array",
		"(uint8)":   " ",
	}
	for typ, want := range tests {
		assert.Equal(t, want, TypeCategory(typ), typ)
	}

	assert.Len(t, AllowedIntTypes(), 66)
	assert.Len(t, AllowedByteTypes(), 34)
}
