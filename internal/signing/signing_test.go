package signing

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"testing"

	"billine-gateway/pkg/errors"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "SecRetKey0123"

func mustFloat(f float64) Value {
	v, err := Float(f)
	if err != nil {
		panic(err)
	}
	return v
}

func payoutFields() Fields {
	return Fields{
		{Name: "merchant", Value: Text("M1VJDHSI6DYXS")},
		{Name: "method", Value: Uint(1)},
		{Name: "payout_id", Value: Text("000002")},
		{Name: "account", Value: Text("5300111122223333")},
		{Name: "amount", Value: mustFloat(1.19)},
		{Name: "currency", Value: Text("UAH")},
	}
}

func TestCanonicalize_SortsTopLevelFieldsByName(t *testing.T) {
	assert.Equal(t, "5300111122223333:1.19:UAH:M1VJDHSI6DYXS:1:000002", Canonicalize(payoutFields()))
}

func TestCanonicalize_OrderIndependent(t *testing.T) {
	fields := payoutFields()
	reversed := make(Fields, 0, len(fields))
	for i := len(fields) - 1; i >= 0; i-- {
		reversed = append(reversed, fields[i])
	}

	assert.Equal(t, Canonicalize(fields), Canonicalize(reversed))
	assert.Equal(t, Sign(fields, NewSecret(testSecret), MD5), Sign(reversed, NewSecret(testSecret), MD5))
}

func TestCanonicalize_OmitsNullFields(t *testing.T) {
	cpf := "12345678900"
	withOptional := Fields{
		{Name: "b", Value: Text("two")},
		{Name: "cpf", Value: OptionalText(&cpf)},
		{Name: "a", Value: Text("one")},
	}
	withoutOptional := Fields{
		{Name: "b", Value: Text("two")},
		{Name: "cpf", Value: OptionalText(nil)},
		{Name: "a", Value: Text("one")},
	}

	assert.Equal(t, "one:two:12345678900", Canonicalize(withOptional))
	assert.Equal(t, "one:two", Canonicalize(withoutOptional))
}

func TestCanonicalize_NullInTheMiddleLeavesNoEmptySegment(t *testing.T) {
	fields := Fields{
		{Name: "a", Value: Text("x")},
		{Name: "b", Value: Null()},
		{Name: "c", Value: Text("z")},
	}

	assert.Equal(t, "x:z", Canonicalize(fields))
}

func TestCanonicalize_EmptyPayload(t *testing.T) {
	assert.Equal(t, "", Canonicalize(Fields{}))
	assert.Equal(t, "", Canonicalize(Fields{{Name: "only", Value: Null()}}))
}

func TestCanonicalize_RendersEveryKind(t *testing.T) {
	nested, err := StructuralJSON([]string{"a<b", "c"})
	require.NoError(t, err)

	fields := Fields{
		{Name: "e_nested", Value: nested},
		{Name: "d_text", Value: Text("raw \"quoted\" text")},
		{Name: "c_number", Value: Number("10.50")},
		{Name: "b_bool", Value: Bool(false)},
		{Name: "a_int", Value: Int(-7)},
	}

	assert.Equal(t, `-7:false:10.50:raw "quoted" text:["a<b","c"]`, Canonicalize(fields))
}

func TestCanonicalize_DoesNotMutateInput(t *testing.T) {
	fields := payoutFields()
	_ = Canonicalize(fields)

	assert.Equal(t, "merchant", fields[0].Name)
}

func TestFloat_NeverUsesExponent(t *testing.T) {
	token, ok := mustFloat(1e21).Render()
	require.True(t, ok)
	assert.Equal(t, "1000000000000000000000", token)

	token, _ = mustFloat(0.000001).Render()
	assert.Equal(t, "0.000001", token)
}

func TestFloat_RejectsNonFinite(t *testing.T) {
	for _, f := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := Float(f)
		require.Error(t, err)
		assert.True(t, errors.HasCode(err, errors.CodeSerialization))
	}
}

func TestFromJSON_BoundsExponentLiterals(t *testing.T) {
	m, err := FromJSON([]byte(`{"amount":1.5e2,"tiny":15e-3}`))
	require.NoError(t, err)
	v, _ := m["amount"].Render()
	assert.Equal(t, "150", v)
	v, _ = m["tiny"].Render()
	assert.Equal(t, "0.015", v)

	for _, raw := range []string{
		`{"amount":1e100000}`,
		`{"amount":1e-100000}`,
		`{"amount":1e33}`,
		`{"amount":` + strings.Repeat("9", 200) + `}`,
	} {
		_, err := FromJSON([]byte(raw))
		require.Error(t, err, raw)
		assert.True(t, errors.HasCode(err, errors.CodeSerialization))
	}
}

func TestCheckDecimal(t *testing.T) {
	assert.NoError(t, CheckDecimal(decimal.RequireFromString("1.19")))
	assert.NoError(t, CheckDecimal(decimal.New(1, MaxDecimalExponent)))
	assert.Error(t, CheckDecimal(decimal.New(1, MaxDecimalExponent+1)))
	assert.Error(t, CheckDecimal(decimal.New(1, -MaxDecimalExponent-1)))
	assert.Error(t, CheckDecimal(decimal.RequireFromString(strings.Repeat("1", MaxDecimalDigits+1))))
}

func TestValue_ZeroIsNull(t *testing.T) {
	var v Value

	assert.True(t, v.IsNull())
	assert.Equal(t, KindNull, v.Kind())
	assert.Equal(t, "null", v.Kind().String())
}

func TestSign_KnownVectorMD5(t *testing.T) {
	assert.Equal(t, "HyTFPDEwJjcnCMmD/AE5wg==", Sign(payoutFields(), NewSecret(testSecret), MD5))
}

func TestSign_KnownVectorSHA256(t *testing.T) {
	assert.Equal(t, "S7RAVRaKV4a6zcvERHrpjdeyJ3oPA4ZZeZZB/DTYXTI=", Sign(payoutFields(), NewSecret(testSecret), SHA256))
}

func TestSign_Deterministic(t *testing.T) {
	secret := NewSecret(testSecret)
	first := Sign(payoutFields(), secret, SHA256)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Sign(payoutFields(), secret, SHA256))
	}
}

func TestSign_DependsOnSecretAndAlgorithm(t *testing.T) {
	md5Sig := Sign(payoutFields(), NewSecret(testSecret), MD5)

	assert.NotEqual(t, md5Sig, Sign(payoutFields(), NewSecret("other"), MD5))
	assert.NotEqual(t, md5Sig, Sign(payoutFields(), NewSecret(testSecret), SHA256))
}

func TestSign_UnknownAlgorithmPanics(t *testing.T) {
	assert.Panics(t, func() {
		Sign(payoutFields(), NewSecret(testSecret), Algorithm(42))
	})
}

func TestVerify(t *testing.T) {
	secret := NewSecret(testSecret)
	signature := Sign(payoutFields(), secret, MD5)

	assert.True(t, Verify(payoutFields(), secret, MD5, signature))
	assert.False(t, Verify(payoutFields(), secret, SHA256, signature))
	assert.False(t, Verify(payoutFields(), secret, MD5, ""))

	tampered := payoutFields().With("amount", Number("1.20"))
	assert.False(t, Verify(tampered, secret, MD5, signature))
}

func TestParseAlgorithm(t *testing.T) {
	tests := []struct {
		input    string
		expected Algorithm
	}{
		{"md5", MD5},
		{"MD5", MD5},
		{"sha256", SHA256},
		{" SHA-256 ", SHA256},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			alg, err := ParseAlgorithm(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, alg)
			assert.NotEqual(t, "unknown", alg.String())
		})
	}

	_, err := ParseAlgorithm("sha1")
	assert.Error(t, err)
}

func TestFields_WithAndWithout(t *testing.T) {
	fields := Fields{{Name: "a", Value: Text("1")}, {Name: "sign", Value: Text("old")}}

	replaced := fields.With("sign", Text("new"))
	v, ok := replaced.Lookup("sign")
	require.True(t, ok)
	assert.Equal(t, Text("new"), v)
	assert.Len(t, replaced, 2)

	old, _ := fields.Lookup("sign")
	assert.Equal(t, Text("old"), old)

	appended := fields.With("extra", Bool(true))
	assert.Len(t, appended, 3)

	stripped := fields.Without("sign")
	_, ok = stripped.Lookup("sign")
	assert.False(t, ok)
	assert.Len(t, stripped, 1)
}

func TestFromJSON_MatchesTypedPayload(t *testing.T) {
	raw := []byte(`{"merchant":"M1VJDHSI6DYXS","method":1,"payout_id":"000002","account":"5300111122223333","amount":1.19,"currency":"UAH"}`)

	m, err := FromJSON(raw)
	require.NoError(t, err)

	assert.Equal(t, Canonicalize(payoutFields()), Canonicalize(m))
	assert.Equal(t, "HyTFPDEwJjcnCMmD/AE5wg==", Sign(m, NewSecret(testSecret), MD5))
}

func TestFromJSON_RendersLiteralsAsReceived(t *testing.T) {
	raw := []byte(`{
		"a": 10.50,
		"b": 1.5e3,
		"c": null,
		"d": true,
		"e": { "z": 1, "y": [1, 2] },
		"f": "text with : colon"
	}`)

	m, err := FromJSON(raw)
	require.NoError(t, err)

	assert.Equal(t, `10.50:1500:true:{"z":1,"y":[1,2]}:text with : colon`, Canonicalize(m))
}

func TestFromJSON_RejectsNonObjects(t *testing.T) {
	for _, raw := range []string{`[1,2]`, `"text"`, `null`, `{broken`} {
		_, err := FromJSON([]byte(raw))
		require.Error(t, err, raw)
		assert.True(t, errors.HasCode(err, errors.CodeSerialization), raw)
	}
}

func TestSecret_IsNeverPrinted(t *testing.T) {
	secret := NewSecret(testSecret)
	holder := struct {
		Name   string
		secret Secret
		Secret Secret
	}{Name: "client", secret: secret, Secret: secret}

	outputs := []string{
		fmt.Sprint(secret),
		fmt.Sprintf("%v", secret),
		fmt.Sprintf("%+v", secret),
		fmt.Sprintf("%#v", secret),
		fmt.Sprintf("%s", secret),
		fmt.Sprintf("%q", secret),
		fmt.Sprintf("%v", holder),
		fmt.Sprintf("%+v", holder),
		fmt.Sprintf("%#v", holder),
		fmt.Sprintf("%+v", &holder),
	}
	for _, out := range outputs {
		assert.NotContains(t, out, testSecret)
	}

	encoded, err := json.Marshal(holder)
	require.NoError(t, err)
	assert.NotContains(t, string(encoded), testSecret)
	assert.Contains(t, string(encoded), redacted)
}

func TestSecret_IsZero(t *testing.T) {
	assert.True(t, Secret{}.IsZero())
	assert.True(t, NewSecret("").IsZero())
	assert.False(t, NewSecret(testSecret).IsZero())
}

func TestFields_MarshalJSON(t *testing.T) {
	nested, err := StructuralJSON(map[string]int{"b": 2, "a": 1})
	require.NoError(t, err)
	fields := Fields{
		{Name: "z", Value: Text("a \"b\"")},
		{Name: "n", Value: Number("1.10")},
		{Name: "o", Value: Null()},
		{Name: "t", Value: Bool(true)},
		{Name: "nested", Value: nested},
	}

	encoded, err := json.Marshal(fields)
	require.NoError(t, err)
	assert.Equal(t, `{"z":"a \"b\"","n":1.10,"o":null,"t":true,"nested":{"a":1,"b":2}}`, string(encoded))

	m, err := FromJSON(encoded)
	require.NoError(t, err)
	assert.Equal(t, Canonicalize(fields), Canonicalize(m))
}
