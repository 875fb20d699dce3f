package crypto

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundtrip(t *testing.T) {
	a, err := New(bytes.Repeat([]byte{7}, 32))
	require.NoError(t, err)

	ct, err := a.EncryptToString("hunter2")
	require.NoError(t, err)
	assert.NotContains(t, ct, "hunter2")

	pt, err := a.DecryptString(ct)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", pt)
}

func TestNonceVaries(t *testing.T) {
	a, err := New(bytes.Repeat([]byte{7}, 32))
	require.NoError(t, err)

	c1, err := a.EncryptToString("same")
	require.NoError(t, err)
	c2, err := a.EncryptToString("same")
	require.NoError(t, err)
	assert.NotEqual(t, c1, c2)
}

func TestWrongKeyFails(t *testing.T) {
	a, err := New(bytes.Repeat([]byte{7}, 32))
	require.NoError(t, err)
	b, err := New(bytes.Repeat([]byte{8}, 32))
	require.NoError(t, err)

	ct, err := a.EncryptToString("secret")
	require.NoError(t, err)
	_, err = b.DecryptString(ct)
	assert.Error(t, err)
}

func TestRejectsShortKey(t *testing.T) {
	_, err := New(bytes.Repeat([]byte{7}, 16))
	assert.Error(t, err)
}

func TestRejectsTruncatedCiphertext(t *testing.T) {
	a, err := New(bytes.Repeat([]byte{7}, 32))
	require.NoError(t, err)
	_, err = a.DecryptString("AAAA")
	assert.Error(t, err)
}
