package secretbox

import (
	"encoding/base64"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func testKey() []byte {
	raw := make([]byte, 32)
	for i := range raw {
		raw[i] = byte(i + 1)
	}
	return raw
}

func TestSealOpen_RoundTrip(t *testing.T) {
	box, err := New(base64.StdEncoding.EncodeToString(testKey()))
	require.NoError(t, err)

	msg := "client-secret ✓ con acentos"
	ct, err := box.Seal(msg)
	require.NoError(t, err)
	require.NotEqual(t, msg, ct)
	require.Contains(t, ct, sep)

	pt, err := box.Open(ct)
	require.NoError(t, err)
	require.Equal(t, msg, pt)
}

func TestNew_KeyFormats(t *testing.T) {
	for name, key := range map[string]string{
		"base64":     base64.StdEncoding.EncodeToString(testKey()),
		"base64-raw": base64.RawStdEncoding.EncodeToString(testKey()),
		"hex":        hex.EncodeToString(testKey()),
		"raw":        strings.Repeat("k", 32),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := New(key)
			require.NoError(t, err)
		})
	}

	_, err := New("")
	require.Error(t, err)
	_, err = New("short")
	require.Error(t, err)
}

func TestOpen_DetectsTamper(t *testing.T) {
	box, err := New(hex.EncodeToString(testKey()))
	require.NoError(t, err)

	ct, err := box.Seal("secreto")
	require.NoError(t, err)

	// flip del último byte del ciphertext
	nonce, body, _ := strings.Cut(ct, sep)
	raw, _ := base64.StdEncoding.DecodeString(body)
	raw[len(raw)-1] ^= 0xFF
	_, err = box.Open(nonce + sep + base64.StdEncoding.EncodeToString(raw))
	require.Error(t, err)

	_, err = box.Open("sin-separador")
	require.ErrorIs(t, err, ErrMalformed)
}

func TestSealOpen_Empty(t *testing.T) {
	box, err := New(hex.EncodeToString(testKey()))
	require.NoError(t, err)

	ct, err := box.Seal("")
	require.NoError(t, err)
	require.Empty(t, ct)
	pt, err := box.Open("")
	require.NoError(t, err)
	require.Empty(t, pt)
}
