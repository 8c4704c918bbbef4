package dom

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical_KeyOrderAndEscaping(t *testing.T) {
	v := Map{
		"b":    Int(2),
		"a":    Int(1),
		"html": String("<a href=\"x\">&</a>"),
	}

	out, err := MarshalCanonical(v)
	require.NoError(t, err)

	// Keys sorted, HTML left unescaped.
	assert.Equal(t, `{"a":1,"b":2,"html":"<a href=\"x\">&</a>"}`, string(out))
}

func TestMarshalCanonical_NFCNormalization(t *testing.T) {
	// e + combining acute (NFD) normalizes to the precomposed é (NFC).
	decomposed := String("café")
	precomposed := String("café")

	a, err := MarshalCanonical(decomposed)
	require.NoError(t, err)
	b, err := MarshalCanonical(precomposed)
	require.NoError(t, err)

	assert.Equal(t, string(b), string(a))
}

func TestMarshalCanonical_Floats(t *testing.T) {
	out, err := MarshalCanonical(Float(0.5))
	require.NoError(t, err)
	assert.Equal(t, "0.5", string(out))

	_, err = MarshalCanonical(Float(math.NaN()))
	require.Error(t, err)

	_, err = MarshalCanonical(Float(math.Inf(1)))
	require.Error(t, err)
}

func TestMarshalCanonical_RejectsNilValue(t *testing.T) {
	_, err := MarshalCanonical(nil)
	require.Error(t, err)
}

func TestUnmarshalCanonical_RoundTrip(t *testing.T) {
	v := Map{
		"name":  String("loom"),
		"count": Int(42),
		"ratio": Float(0.25),
		"flags": List{Bool(true), Null{}},
		"meta":  Map{"nested": String("yes")},
	}

	data, err := MarshalCanonical(v)
	require.NoError(t, err)

	back, err := UnmarshalCanonical(data)
	require.NoError(t, err)
	assert.True(t, Equal(v, back), "decoded value differs: %s", data)
}

func TestUnmarshalCanonical_NumberVariants(t *testing.T) {
	v, err := UnmarshalCanonical([]byte(`{"i":7,"f":7.5}`))
	require.NoError(t, err)

	m := v.(Map)
	assert.Equal(t, Int(7), m["i"])
	assert.Equal(t, Float(7.5), m["f"])
}

func TestUnmarshalCanonical_Malformed(t *testing.T) {
	_, err := UnmarshalCanonical([]byte(`{"unterminated`))
	require.Error(t, err)
}
