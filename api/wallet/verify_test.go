package wallet_test

import (
	"crypto/ed25519"
	"encoding/base64"
	"testing"
	"time"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lilzahs/gimme-idea/api/wallet"
)

func newKey(t *testing.T) (string, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	return base58.Encode(pub), priv
}

func TestVerify_RoundTrip(t *testing.T) {
	t.Parallel()

	addr, priv := newKey(t)
	msg := wallet.BuildMessage("Sign in", "", time.Now(), addr)
	sig := base58.Encode(ed25519.Sign(priv, []byte(msg)))

	require.NoError(t, wallet.Verify(addr, sig, msg))
	assert.True(t, wallet.VerifySignature(addr, sig, msg))
}

func TestVerify_SingleByteMutations(t *testing.T) {
	t.Parallel()

	addr, priv := newKey(t)
	msg := "Comment on Gimme Idea\n\nTimestamp: 2025-01-01T00:00:00Z"
	rawSig := ed25519.Sign(priv, []byte(msg))
	sig := base58.Encode(rawSig)

	t.Run("message", func(t *testing.T) {
		t.Parallel()
		for i := range len(msg) {
			b := []byte(msg)
			b[i] ^= 0x01
			assert.False(t, wallet.VerifySignature(addr, sig, string(b)), "byte %d", i)
		}
	})

	t.Run("signature", func(t *testing.T) {
		t.Parallel()
		for i := range rawSig {
			b := append([]byte(nil), rawSig...)
			b[i] ^= 0x01
			assert.False(t, wallet.VerifySignature(addr, base58.Encode(b), msg), "byte %d", i)
		}
	})

	t.Run("other key", func(t *testing.T) {
		t.Parallel()
		other, _ := newKey(t)
		assert.False(t, wallet.VerifySignature(other, sig, msg))
	})
}

func TestVerify_MalformedInput(t *testing.T) {
	t.Parallel()

	addr, priv := newKey(t)
	msg := "hello"
	sig := base58.Encode(ed25519.Sign(priv, []byte(msg)))

	tests := []struct {
		name      string
		address   string
		signature string
		message   string
	}{
		{"empty address", "", sig, msg},
		{"empty signature", addr, "", msg},
		{"empty message", addr, sig, ""},
		{"address not base58", "0OIl" + addr[4:], sig, msg},
		{"address too short", base58.Encode([]byte{1, 2, 3}), sig, msg},
		{"signature not base58", addr, "0OIl", msg},
		{"signature too short", addr, base58.Encode(make([]byte, 63)), msg},
		{"signature base64", addr, base64.StdEncoding.EncodeToString(ed25519.Sign(priv, []byte(msg))), msg},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Error(t, wallet.Verify(tt.address, tt.signature, tt.message))
			require.False(t, wallet.VerifySignature(tt.address, tt.signature, tt.message))
		})
	}
}

func TestNormalizeMessage(t *testing.T) {
	t.Parallel()

	multiline := "Sign in to Gimme Idea\n\nTimestamp: 2025-01-01T00:00:00Z"

	tests := []struct {
		name   string
		body   string
		header string
		want   string
	}{
		{"body only", "from body", "", "from body"},
		{"header wins", "from body", base64.StdEncoding.EncodeToString([]byte(multiline)), multiline},
		{"header not base64 used raw", "from body", "plain text!", "plain text!"},
		{"neither", "", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, wallet.NormalizeMessage(tt.body, tt.header))
		})
	}
}

func TestBuildMessage(t *testing.T) {
	t.Parallel()

	ts := time.Date(2025, 3, 4, 5, 6, 7, 0, time.FixedZone("x", 3600))
	got := wallet.BuildMessage("Create post", "", ts, "Addr111")
	assert.Equal(t, "Create post to Gimme Idea\n\nTimestamp: 2025-03-04T04:06:07Z\nWallet: Addr111", got)
}

func TestValidTxSignature(t *testing.T) {
	t.Parallel()

	assert.True(t, wallet.ValidTxSignature(base58.Encode(make([]byte, 64))))
	assert.False(t, wallet.ValidTxSignature(""))
	assert.False(t, wallet.ValidTxSignature(base58.Encode(make([]byte, 32))))
	assert.False(t, wallet.ValidTxSignature("not-a-signature"))
}
