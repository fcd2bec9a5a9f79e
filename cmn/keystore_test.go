package cmn

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeystoreRoundTrip(t *testing.T) {
	file := filepath.Join(t.TempDir(), KEYSTORE_NAME)
	k := &KeyRecord{
		Name:    "main",
		Entropy: "00000000000000000000000000000000",
		Path:    "m/44'/60'/0'/0/0",
	}

	assert.False(t, KeystoreExists(file))
	require.NoError(t, SaveKeystore(file, k, "secret"))
	assert.True(t, KeystoreExists(file))

	got, err := OpenKeystore(file, "secret")
	require.NoError(t, err)
	assert.Equal(t, k, got)

	_, err = OpenKeystore(file, "wrong")
	assert.ErrorIs(t, err, ErrWrongPassword)
}
