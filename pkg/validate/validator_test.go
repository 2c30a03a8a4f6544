package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ugandanNetworks() map[string][]string {
	return map[string][]string{
		"mtn":    {"25631", "25639", "25676", "25677", "25678", "25679"},
		"airtel": {"25620", "25670", "25674", "25675"},
	}
}

func TestCheckNumeric(t *testing.T) {
	v := New()

	res, err := v.Check(TypeNumeric, "12345", nil)
	require.NoError(t, err)
	assert.True(t, res.Valid)

	res, err = v.Check(TypeNumeric, "12a45", nil)
	require.NoError(t, err)
	assert.False(t, res.Valid)

	res, err = v.Check(TypeNumeric, "123", map[string]any{"exactLength": 4})
	require.NoError(t, err)
	assert.False(t, res.Valid)

	res, err = v.Check(TypeNumeric, "1234", map[string]any{"exactLength": 4})
	require.NoError(t, err)
	assert.True(t, res.Valid)
}

func TestCheckPhoneNormalization(t *testing.T) {
	v := New(WithCountryCode("256"), WithNetworks(ugandanNetworks()))

	tests := []struct {
		input      string
		normalized string
	}{
		{"0776123456", "256776123456"},
		{"256776123456", "256776123456"},
		{"776123456", "256776123456"},
	}
	for _, tt := range tests {
		res, err := v.Check(TypePhone, tt.input, nil)
		require.NoError(t, err)
		assert.True(t, res.Valid, tt.input)
		assert.Equal(t, tt.normalized, res.Normalized)
	}

	res, err := v.Check(TypePhone, "077612345", nil)
	require.NoError(t, err)
	assert.False(t, res.Valid, "11-digit normalized number is rejected")
}

func TestCheckPhoneNetworkMatching(t *testing.T) {
	v := New(WithCountryCode("256"), WithNetworks(ugandanNetworks()))

	res, err := v.Check(TypePhone, "0776123456", map[string]any{"network": "mtn"})
	require.NoError(t, err)
	assert.True(t, res.Valid)

	res, err = v.Check(TypePhone, "0706123456", map[string]any{"network": "mtn"})
	require.NoError(t, err)
	assert.False(t, res.Valid, "airtel prefix must not pass an mtn check")

	res, err = v.Check(TypePhone, "0706123456", map[string]any{"network": "airtel"})
	require.NoError(t, err)
	assert.True(t, res.Valid)
}

func TestCheckAmountBounds(t *testing.T) {
	v := New(WithAmountBounds(100, 5000000))

	tests := []struct {
		input string
		valid bool
	}{
		{"100", true},
		{"99", false},
		{"5000000", true},
		{"5000001", false},
		{"0", false},
		{"12.50", false},
		{"abc", false},
	}
	for _, tt := range tests {
		res, err := v.Check(TypeAmount, tt.input, nil)
		require.NoError(t, err)
		assert.Equal(t, tt.valid, res.Valid, tt.input)
	}
}

func TestCheckAmountNodeOverride(t *testing.T) {
	v := New(WithAmountBounds(100, 5000000))

	res, err := v.Check(TypeAmount, "300", map[string]any{"min": 500})
	require.NoError(t, err)
	assert.False(t, res.Valid, "node-level minimum overrides the global one")

	res, err = v.Check(TypeAmount, "500", map[string]any{"min": 500})
	require.NoError(t, err)
	assert.True(t, res.Valid)
}

func TestCheckMenuOption(t *testing.T) {
	v := New()

	res, err := v.Check(TypeMenuOption, "2", map[string]any{"choices": []any{"1", "2", "3"}})
	require.NoError(t, err)
	assert.True(t, res.Valid)

	res, err = v.Check(TypeMenuOption, "9", map[string]any{"choices": []any{"1", "2", "3"}})
	require.NoError(t, err)
	assert.False(t, res.Valid)
}

func TestCheckPIN(t *testing.T) {
	v := New()

	tests := []struct {
		input string
		valid bool
	}{
		{"1234", true},
		{"0000", true},
		{"123", false},
		{"12345", false},
		{"12a4", false},
		{"", false},
	}
	for _, tt := range tests {
		res, err := v.Check(TypePIN, tt.input, nil)
		require.NoError(t, err)
		assert.Equal(t, tt.valid, res.Valid, tt.input)
	}
}

func TestCheckUnknownType(t *testing.T) {
	v := New()
	_, err := v.Check("email", "x@example.com", nil)
	assert.Error(t, err)
}

func TestKnown(t *testing.T) {
	v := New()
	assert.True(t, v.Known(TypePhone))
	assert.False(t, v.Known("email"))
}
