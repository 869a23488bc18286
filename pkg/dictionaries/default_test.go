package dictionaries

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalvas/radiusd/pkg/dictionary"
	"github.com/vitalvas/radiusd/pkg/log"
)

func TestNewDefault(t *testing.T) {
	dict, err := NewDefault(dictionary.WithLogger(log.Discard()))
	require.NoError(t, err)
	require.NotNil(t, dict)

	tests := []struct {
		code     uint32
		name     string
		dataType dictionary.DataType
	}{
		{1, "User-Name", dictionary.DataTypeString},
		{2, "User-Password", dictionary.DataTypeString},
		{18, "Reply-Message", dictionary.DataTypeString},
		{27, "Session-Timeout", dictionary.DataTypeInteger},
		{40, "Acct-Status-Type", dictionary.DataTypeInteger},
		{44, "Acct-Session-Id", dictionary.DataTypeString},
		{80, "Message-Authenticator", dictionary.DataTypeOctets},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attr, ok := dict.Attribute(tt.code)
			require.True(t, ok)
			assert.Equal(t, tt.name, attr.Name)
			assert.Equal(t, tt.dataType, attr.DataType)
		})
	}
}

func TestNewDefaultVendors(t *testing.T) {
	dict, err := NewDefault(dictionary.WithLogger(log.Discard()))
	require.NoError(t, err)

	id, ok := dict.VendorID("WISPr")
	require.True(t, ok)
	assert.Equal(t, uint32(14122), id)

	up, ok := dict.VendorAttribute(14122, 7)
	require.True(t, ok)
	assert.Equal(t, "WISPr-Bandwidth-Max-Up", up.Name)

	down, ok := dict.VendorAttribute(14122, 8)
	require.True(t, ok)
	assert.Equal(t, "WISPr-Bandwidth-Max-Down", down.Name)

	rate, ok := dict.VendorAttribute(14988, 8)
	require.True(t, ok)
	assert.Equal(t, "Mikrotik-Rate-Limit", rate.Name)

	// vendor code 7 must not replace Framed-Protocol
	attr, ok := dict.Attribute(7)
	require.True(t, ok)
	assert.Equal(t, "Framed-Protocol", attr.Name)
}

func TestFS(t *testing.T) {
	entries, err := fs.ReadDir(FS(), ".")
	require.NoError(t, err)

	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Contains(t, names, Root)
	assert.Contains(t, names, "dictionary.wispr")
}
