package actor

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGUID(t *testing.T) {
	raw := uuid.New()

	id, err := Parse(raw.String())
	require.NoError(t, err)

	assert.Equal(t, KindGUID, id.Kind())
	guid, ok := id.GUID()
	assert.True(t, ok)
	assert.Equal(t, raw, guid)
	_, ok = id.GLN()
	assert.False(t, ok)
}

func TestParseGLN(t *testing.T) {
	id, err := Parse("5790000000005")
	require.NoError(t, err)

	assert.Equal(t, KindGLN, id.Kind())
	gln, ok := id.GLN()
	assert.True(t, ok)
	assert.Equal(t, "5790000000005", gln)
	assert.Equal(t, "5790000000005", id.String())
}

func TestParseRejectsGarbage(t *testing.T) {
	for _, value := range []string{"", "not-an-id", "12345", "57900000000ab"} {
		_, err := Parse(value)
		assert.Error(t, err, "value %q", value)
	}
}

func TestFromGLNValidates(t *testing.T) {
	_, err := FromGLN("123")
	require.Error(t, err)

	_, err = FromGLN("579000000000x")
	require.Error(t, err)
}

func TestFromGLNCheckDigit(t *testing.T) {
	for _, valid := range []string{"5790000000005", "5790000000012", "5790000000098"} {
		_, err := FromGLN(valid)
		assert.NoError(t, err, "gln %q", valid)
	}

	// 13 digits, but the check digit does not round the weighted sum out.
	for _, invalid := range []string{"5790000000001", "5790000000099", "5790000000123"} {
		_, err := FromGLN(invalid)
		assert.Error(t, err, "gln %q", invalid)
	}
}
