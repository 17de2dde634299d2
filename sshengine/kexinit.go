package sshengine

// The first SSH_MSG_KEXINIT of each side travels in the clear.
// see https://tools.ietf.org/html/rfc4253#section-7.1

import (
	"bytes"
	"encoding/binary"
	"strings"

	"github.com/pkg/errors"

	"github.com/pkg/nbsftp"
	sshfx "github.com/pkg/nbsftp/internal/encoding/ssh/filexfer"
)

const (
	msgKexInit = 20

	// sniffing gives up after this many bytes without a complete message.
	maxSniff = 256 * 1024
)

// kexinit holds the algorithm name-lists of an SSH_MSG_KEXINIT.
type kexinit struct {
	KexAlgos                []string
	ServerHostKeyAlgos      []string
	CiphersClientServer     []string
	CiphersServerClient     []string
	MACsClientServer        []string
	MACsServerClient        []string
	CompressionClientServer []string
	CompressionServerClient []string
}

func parseKexinit(payload []byte) (*kexinit, error) {
	if len(payload) < 17 || payload[0] != msgKexInit {
		return nil, errors.New("not a key exchange init message")
	}

	buf := sshfx.NewBuffer(payload[17:])

	msg := new(kexinit)
	for _, list := range []*[]string{
		&msg.KexAlgos,
		&msg.ServerHostKeyAlgos,
		&msg.CiphersClientServer,
		&msg.CiphersServerClient,
		&msg.MACsClientServer,
		&msg.MACsServerClient,
		&msg.CompressionClientServer,
		&msg.CompressionServerClient,
	} {
		s, err := buf.ConsumeString()
		if err != nil {
			return nil, errors.Wrap(err, "name-list")
		}

		if s != "" {
			*list = strings.Split(s, ",")
		}
	}

	return msg, nil
}

// kexinitSniffer watches one direction of the stream for its first KEXINIT.
type kexinitSniffer struct {
	buf        []byte
	identified bool
	done       bool

	msg *kexinit
}

func (s *kexinitSniffer) write(b []byte) {
	if s.done {
		return
	}

	s.buf = append(s.buf, b...)

	if !s.identified {
		for {
			i := bytes.IndexByte(s.buf, '\n')
			if i < 0 {
				break
			}

			line := s.buf[:i]
			s.buf = s.buf[i+1:]

			if bytes.HasPrefix(line, []byte("SSH-")) {
				s.identified = true
				break
			}
		}
	}

	if s.identified && len(s.buf) >= 5 {
		length := binary.BigEndian.Uint32(s.buf)
		padding := uint32(s.buf[4])

		if length < padding+1 || length > maxSniff {
			s.stop()
			return
		}

		if uint32(len(s.buf)-4) >= length {
			msg, err := parseKexinit(s.buf[5 : 4+length-padding])
			if err == nil {
				s.msg = msg
			}
			s.stop()
			return
		}
	}

	if len(s.buf) > maxSniff {
		s.stop()
	}
}

func (s *kexinitSniffer) stop() {
	s.done = true
	s.buf = nil
}

// firstMatch picks the first client algorithm the server also supports.
func firstMatch(client, server []string) string {
	for _, c := range client {
		for _, s := range server {
			if c == s {
				return c
			}
		}
	}

	return ""
}

// Ciphers with built-in integrity make the MAC negotiation moot.
var aeadCiphers = map[string]bool{
	"aes128-gcm@openssh.com":        true,
	"aes256-gcm@openssh.com":        true,
	"chacha20-poly1305@openssh.com": true,
}

// negotiate applies the RFC 4253 algorithm selection to both KEXINITs.
func negotiate(client, server *kexinit) nbsftp.Methods {
	m := nbsftp.Methods{
		KeyExchange:               firstMatch(client.KexAlgos, server.KexAlgos),
		HostKeyAlgorithm:          firstMatch(client.ServerHostKeyAlgos, server.ServerHostKeyAlgos),
		CipherClientToServer:      firstMatch(client.CiphersClientServer, server.CiphersClientServer),
		CipherServerToClient:      firstMatch(client.CiphersServerClient, server.CiphersServerClient),
		CompressionClientToServer: firstMatch(client.CompressionClientServer, server.CompressionClientServer),
		CompressionServerToClient: firstMatch(client.CompressionServerClient, server.CompressionServerClient),
	}

	if !aeadCiphers[m.CipherClientToServer] {
		m.MACClientToServer = firstMatch(client.MACsClientServer, server.MACsClientServer)
	}

	if !aeadCiphers[m.CipherServerToClient] {
		m.MACServerToClient = firstMatch(client.MACsServerClient, server.MACsServerClient)
	}

	return m
}
