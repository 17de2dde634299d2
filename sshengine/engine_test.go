package sshengine

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"

	"github.com/pkg/nbsftp"
)

type keyPair struct {
	signer     ssh.Signer
	private    []byte
	authorized []byte
}

func newKeyPair(t *testing.T, passphrase string) keyPair {
	t.Helper()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	var block *pem.Block
	if passphrase == "" {
		block, err = ssh.MarshalPrivateKey(priv, "")
	} else {
		block, err = ssh.MarshalPrivateKeyWithPassphrase(priv, "", []byte(passphrase))
	}
	require.NoError(t, err)

	signer, err := ssh.NewSignerFromKey(priv)
	require.NoError(t, err)

	return keyPair{
		signer:     signer,
		private:    pem.EncodeToMemory(block),
		authorized: ssh.MarshalAuthorizedKey(signer.PublicKey()),
	}
}

func engineCode(t *testing.T, err error) nbsftp.ErrorCode {
	t.Helper()

	var ee *nbsftp.EngineError
	require.True(t, errors.As(err, &ee), "not an engine error: %v", err)

	return ee.Code
}

func TestParseSigner(t *testing.T) {
	key := newKeyPair(t, "")

	signer, err := parseSigner(key.authorized, key.private, "")
	require.NoError(t, err)
	assert.Equal(t, key.signer.PublicKey().Marshal(), signer.PublicKey().Marshal())

	signer, err = parseSigner(nil, key.private, "")
	require.NoError(t, err)
	assert.Equal(t, key.signer.PublicKey().Marshal(), signer.PublicKey().Marshal())
}

func TestParseSignerPassphrase(t *testing.T) {
	key := newKeyPair(t, "open sesame")

	_, err := parseSigner(key.authorized, key.private, "open sesame")
	require.NoError(t, err)

	_, err = parseSigner(key.authorized, key.private, "wrong")
	assert.Equal(t, nbsftp.CodeFile, engineCode(t, err))

	_, err = parseSigner(key.authorized, key.private, "")
	assert.Equal(t, nbsftp.CodeFile, engineCode(t, err))
}

func TestParseSignerFailures(t *testing.T) {
	key := newKeyPair(t, "")
	other := newKeyPair(t, "")

	_, err := parseSigner(other.authorized, key.private, "")
	assert.Equal(t, nbsftp.CodeFile, engineCode(t, err))

	_, err = parseSigner([]byte("not a key"), key.private, "")
	assert.Equal(t, nbsftp.CodeFile, engineCode(t, err))

	_, err = parseSigner(nil, []byte("not a key"), "")
	assert.Equal(t, nbsftp.CodeFile, engineCode(t, err))
}

func TestHostKeyOf(t *testing.T) {
	key := newKeyPair(t, "")

	hk := hostKeyOf(key.signer.PublicKey())
	assert.Equal(t, nbsftp.HostKeyEd25519, hk.Type)
	assert.Equal(t, key.signer.PublicKey().Marshal(), hk.Data)
}

func TestCallKey(t *testing.T) {
	assert.Equal(t, "stat\x00/a\x00true", callKey("stat", "/a", true))
	assert.NotEqual(t, callKey("rename", "a", "bc"), callKey("rename", "ab", "c"))
	assert.NotEqual(t,
		callKey("read", nbsftp.Handle("1"), uint64(10), 5),
		callKey("read", nbsftp.Handle("1"), uint64(1), 5),
	)
	assert.Equal(t, "open\x00/f\x0042\x00420", callKey("open", "/f", uint32(42), 420))
}

func TestNewRequiresUser(t *testing.T) {
	_, err := New(nbsftp.NewTransport(nil), Config{})
	assert.Equal(t, nbsftp.CodeInval, engineCode(t, err))
}

func TestEngineLibraryReference(t *testing.T) {
	refs := Library.Refs()

	e, err := New(nbsftp.NewTransport(nil), Config{User: "user"})
	require.NoError(t, err)
	assert.Equal(t, refs+1, Library.Refs())

	require.NoError(t, e.Close())
	require.NoError(t, e.Close())
	assert.Equal(t, refs, Library.Refs())

	err = e.Handshake()
	assert.Equal(t, nbsftp.CodeBadUse, engineCode(t, err))

	_, ok := e.HostKey()
	assert.False(t, ok)

	_, ok = e.Methods()
	assert.False(t, ok)
}

func TestLoginUserMismatch(t *testing.T) {
	e, err := New(nbsftp.NewTransport(nil), Config{User: "user"})
	require.NoError(t, err)
	defer e.Close()

	err = e.AuthPassword("root", "secret")
	assert.Equal(t, nbsftp.CodeBadUse, engineCode(t, err))

	err = e.AuthPublicKey("root", nil, nil, "")
	assert.Equal(t, nbsftp.CodeBadUse, engineCode(t, err))
}
