package nbsftp

import (
	"crypto/sha1"
	"crypto/sha256"
)

// HostKeyType is the algorithm family of a server host key.
type HostKeyType int

// Host key types.
const (
	HostKeyUnknown HostKeyType = iota
	HostKeyRSA
	HostKeyDSA
	HostKeyECDSA256
	HostKeyECDSA384
	HostKeyECDSA521
	HostKeyEd25519
)

func (t HostKeyType) String() string {
	switch t {
	case HostKeyRSA:
		return "rsa"
	case HostKeyDSA:
		return "dsa"
	case HostKeyECDSA256:
		return "ecdsa-256"
	case HostKeyECDSA384:
		return "ecdsa-384"
	case HostKeyECDSA521:
		return "ecdsa-521"
	case HostKeyEd25519:
		return "ed25519"
	default:
		return "unknown"
	}
}

// HostKey identifies the server.
// Data is the key in SSH wire format.
type HostKey struct {
	Type   HostKeyType
	Data   []byte
	SHA1   [sha1.Size]byte
	SHA256 [sha256.Size]byte
}

// Methods are the algorithms negotiated during key exchange, named as in RFC 4253.
type Methods struct {
	KeyExchange               string
	HostKeyAlgorithm          string
	CipherClientToServer      string
	CipherServerToClient      string
	MACClientToServer         string
	MACServerToClient         string
	CompressionClientToServer string
	CompressionServerToClient string
}

// SessionInfo describes an established secure session.
type SessionInfo struct {
	HostKey HostKey
	Methods Methods
}

// sessionInfo collects what engine learned during the handshake.
// It fills in missing host key hashes from the key data.
func sessionInfo(engine Engine) (SessionInfo, bool) {
	if engine == nil {
		return SessionInfo{}, false
	}

	key, ok := engine.HostKey()
	if !ok {
		return SessionInfo{}, false
	}

	if key.SHA1 == [sha1.Size]byte{} {
		key.SHA1 = sha1.Sum(key.Data)
	}

	if key.SHA256 == [sha256.Size]byte{} {
		key.SHA256 = sha256.Sum256(key.Data)
	}

	methods, _ := engine.Methods()

	return SessionInfo{
		HostKey: key,
		Methods: methods,
	}, true
}
