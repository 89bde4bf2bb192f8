package utils

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeriveKey(t *testing.T) {
	a, err := DeriveKey("secret", "seat-ticket")
	require.NoError(t, err)
	require.Len(t, a, 32)

	again, err := DeriveKey("secret", "seat-ticket")
	require.NoError(t, err)
	require.Equal(t, a, again)

	other, err := DeriveKey("secret", "export-link")
	require.NoError(t, err)
	require.NotEqual(t, a, other)

	_, err = DeriveKey("", "seat-ticket")
	require.Error(t, err)
}
