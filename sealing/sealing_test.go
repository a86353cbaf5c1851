package sealing

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func testKey(t *testing.T) Key {
	t.Helper()
	material := bytes.Repeat([]byte{0x5e}, KeySize)
	key, err := NewAESSealer(StaticKeySource(material)).UnsealKey()
	require.NoError(t, err)
	return key
}

func TestAESSealRoundTrip(t *testing.T) {
	key := testKey(t)

	ciphertext, err := key.Encrypt([]byte("shard state"))
	require.NoError(t, err)
	require.NotEqual(t, []byte("shard state"), ciphertext)

	plaintext, err := key.Decrypt(ciphertext)
	require.NoError(t, err)
	require.Equal(t, []byte("shard state"), plaintext)
}

func TestAESSealRandomizedNonce(t *testing.T) {
	key := testKey(t)

	first, err := key.Encrypt([]byte("same plaintext"))
	require.NoError(t, err)
	second, err := key.Encrypt([]byte("same plaintext"))
	require.NoError(t, err)

	require.NotEqual(t, first, second)
}

func TestAESSealRejectsTamperedCiphertext(t *testing.T) {
	key := testKey(t)

	ciphertext, err := key.Encrypt([]byte("shard state"))
	require.NoError(t, err)
	ciphertext[len(ciphertext)-1] ^= 0xff

	_, err = key.Decrypt(ciphertext)
	require.ErrorIs(t, err, ErrDecrypt)
}

func TestAESSealRejectsTruncatedCiphertext(t *testing.T) {
	key := testKey(t)

	_, err := key.Decrypt([]byte("short"))
	require.ErrorIs(t, err, ErrDecrypt)
}

func TestAESSealRejectsWrongKey(t *testing.T) {
	key := testKey(t)
	other, err := NewAESSealer(StaticKeySource(bytes.Repeat([]byte{0x01}, KeySize))).UnsealKey()
	require.NoError(t, err)

	ciphertext, err := key.Encrypt([]byte("shard state"))
	require.NoError(t, err)

	_, err = other.Decrypt(ciphertext)
	require.ErrorIs(t, err, ErrDecrypt)
}

func TestUnsealKeyRejectsBadMaterial(t *testing.T) {
	_, err := NewAESSealer(StaticKeySource([]byte("too short"))).UnsealKey()
	require.ErrorIs(t, err, ErrKeyUnavailable)
}

func TestFileKeySourceGeneratesOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "state.key")
	source := FileKeySource(path)

	first, err := source()
	require.NoError(t, err)
	require.Len(t, first, KeySize)

	second, err := source()
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestInsecureSealerIsDeterministic(t *testing.T) {
	key, err := InsecureSealer{}.UnsealKey()
	require.NoError(t, err)

	first, err := key.Encrypt([]byte("payload"))
	require.NoError(t, err)
	second, err := key.Encrypt([]byte("payload"))
	require.NoError(t, err)
	require.Equal(t, first, second)

	plaintext, err := key.Decrypt(first)
	require.NoError(t, err)
	require.Equal(t, []byte("payload"), plaintext)
}
