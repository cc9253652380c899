package blob

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDigestOf(t *testing.T) {
	// Known SHA-1 test vectors
	tests := []struct {
		name string
		data []byte
		hex  string
	}{
		{
			name: "hello",
			data: []byte("hello"),
			hex:  "aaf4c61ddcc5e8a2dabede0f3b482cd9aea9434d",
		},
		{
			name: "empty",
			data: []byte{},
			hex:  "da39a3ee5e6b4b0d3255bfef95601890afd80709",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := DigestOf(tt.data)
			assert.Equal(t, tt.hex, d.Hex())
			assert.Equal(t, tt.hex, d.String())
		})
	}
}

func TestDigestOfDeterministic(t *testing.T) {
	a := DigestOf([]byte("same bytes"))
	b := DigestOf([]byte("same bytes"))
	assert.Equal(t, a, b)

	c := DigestOf([]byte("different bytes"))
	assert.NotEqual(t, a, c)
}

func TestParseDigest(t *testing.T) {
	original := DigestOf([]byte("round trip"))

	parsed, err := ParseDigest(original.Hex())
	require.NoError(t, err)
	assert.Equal(t, original, parsed)
}

func TestParseDigestInvalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "not hex", input: "zzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzz"},
		{name: "too short", input: "aaf4c6"},
		{name: "too long", input: "aaf4c61ddcc5e8a2dabede0f3b482cd9aea9434daaf4"},
		{name: "empty", input: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDigest(tt.input)
			assert.Error(t, err)
		})
	}
}
