package filexfer

import (
	"encoding/binary"
	"io"
)

// Packet defines the behavior of an SFTP request packet.
type Packet interface {
	// Type returns the SSH_FXP_xy value associated with the specific packet.
	Type() PacketType

	// MarshalPacket encodes the packet with the request-id set from reqid.
	//
	// It returns the main body of the encoded packet in header,
	// and optionally an additional payload to be written immediately after the header.
	// The first 4 bytes of header hold the length of the rest of header+payload.
	MarshalPacket(reqid uint32) (header, payload []byte)
}

// ComposePacket joins the two parts returned from MarshalPacket.
func ComposePacket(header, payload []byte) []byte {
	return append(header, payload...)
}

// RawPacket implements the general packet format from draft-ietf-secsh-filexfer-02
//
// Defined in https://tools.ietf.org/html/draft-ietf-secsh-filexfer-02#section-3
//
// For SSH_FXP_VERSION the RequestID holds the protocol version.
type RawPacket struct {
	Type      PacketType
	RequestID uint32
	Data      Buffer
}

// ReadFrom reads one whole packet from r into p.
// b is used as the receive buffer if it is large enough.
// Packets longer than maxPacketLength fail with ErrLongPacket.
func (p *RawPacket) ReadFrom(r io.Reader, b []byte, maxPacketLength uint32) error {
	var lb [4]byte
	if _, err := io.ReadFull(r, lb[:]); err != nil {
		return err
	}

	length := binary.BigEndian.Uint32(lb[:])
	if length < 5 {
		return ErrShortPacket
	}

	if length > maxPacketLength {
		return ErrLongPacket
	}

	if uint32(cap(b)) < length {
		b = make([]byte, length)
	}
	b = b[:length]

	if _, err := io.ReadFull(r, b); err != nil {
		if err == io.EOF {
			return io.ErrUnexpectedEOF
		}
		return err
	}

	p.Type = PacketType(b[0])
	p.RequestID = binary.BigEndian.Uint32(b[1:5])
	p.Data = Buffer{b: b, off: 5}

	return nil
}

// StatusPacket defines the SSH_FXP_STATUS packet.
//
// Specified in https://tools.ietf.org/html/draft-ietf-secsh-filexfer-02#section-7
type StatusPacket struct {
	StatusCode   Status
	ErrorMessage string
	LanguageTag  string
}

// Error makes StatusPacket an error type.
func (p *StatusPacket) Error() string {
	if p.ErrorMessage == "" {
		return "sftp: " + p.StatusCode.String()
	}

	return "sftp: " + p.StatusCode.String() + ": " + p.ErrorMessage
}

// UnmarshalPacketBody unmarshals the packet body from the given Buffer.
// Version 3 servers may omit the message and language tag.
func (p *StatusPacket) UnmarshalPacketBody(buf *Buffer) (err error) {
	statusCode, err := buf.ConsumeUint32()
	if err != nil {
		return err
	}
	p.StatusCode = Status(statusCode)

	if buf.Len() == 0 {
		return nil
	}

	if p.ErrorMessage, err = buf.ConsumeString(); err != nil {
		return err
	}

	if buf.Len() == 0 {
		return nil
	}

	p.LanguageTag, err = buf.ConsumeString()
	return err
}

// HandlePacket defines the SSH_FXP_HANDLE packet.
type HandlePacket struct {
	Handle string
}

// UnmarshalPacketBody unmarshals the packet body from the given Buffer.
func (p *HandlePacket) UnmarshalPacketBody(buf *Buffer) (err error) {
	p.Handle, err = buf.ConsumeString()
	return err
}

// DataPacket defines the SSH_FXP_DATA packet.
type DataPacket struct {
	Data []byte
}

// UnmarshalPacketBody unmarshals the packet body from the given Buffer.
//
// NOTE: Data aliases the receive buffer.
func (p *DataPacket) UnmarshalPacketBody(buf *Buffer) (err error) {
	p.Data, err = buf.ConsumeByteSlice()
	return err
}

// NamePacket defines the SSH_FXP_NAME packet.
type NamePacket struct {
	Entries []*NameEntry
}

// UnmarshalPacketBody unmarshals the packet body from the given Buffer.
func (p *NamePacket) UnmarshalPacketBody(buf *Buffer) (err error) {
	count, err := buf.ConsumeUint32()
	if err != nil {
		return err
	}

	// every entry takes at least 12 bytes.
	if int(count) > buf.Len()/12 {
		return ErrShortPacket
	}

	p.Entries = make([]*NameEntry, 0, count)

	for i := uint32(0); i < count; i++ {
		var e NameEntry
		if err := e.UnmarshalFrom(buf); err != nil {
			return err
		}

		p.Entries = append(p.Entries, &e)
	}

	return nil
}

// AttrsPacket defines the SSH_FXP_ATTRS packet.
type AttrsPacket struct {
	Attrs Attributes
}

// UnmarshalPacketBody unmarshals the packet body from the given Buffer.
func (p *AttrsPacket) UnmarshalPacketBody(buf *Buffer) error {
	return p.Attrs.UnmarshalFrom(buf)
}

// ExtensionPair defines the extension-pair type defined in draft-ietf-secsh-filexfer-13.
type ExtensionPair struct {
	Name string
	Data string
}

// InitPacket defines the SSH_FXP_INIT packet.
type InitPacket struct {
	Version    uint32
	Extensions []*ExtensionPair
}

// MarshalBinary returns p as the binary encoding of p.
func (p *InitPacket) MarshalBinary() []byte {
	buf := NewBuffer(make([]byte, 4, 4+1+4+64))

	buf.AppendUint8(uint8(PacketTypeInit))
	buf.AppendUint32(p.Version)

	for _, ext := range p.Extensions {
		buf.AppendString(ext.Name)
		buf.AppendString(ext.Data)
	}

	header, _ := buf.Packet(nil)
	return header
}

// VersionPacket defines the SSH_FXP_VERSION packet.
type VersionPacket struct {
	Version    uint32
	Extensions []*ExtensionPair
}

// UnmarshalRaw decodes a VersionPacket out of an already read RawPacket.
func (p *VersionPacket) UnmarshalRaw(raw *RawPacket) error {
	p.Version = raw.RequestID

	for raw.Data.Len() > 0 {
		var ext ExtensionPair
		var err error

		if ext.Name, err = raw.Data.ConsumeString(); err != nil {
			return err
		}

		if ext.Data, err = raw.Data.ConsumeString(); err != nil {
			return err
		}

		p.Extensions = append(p.Extensions, &ext)
	}

	return nil
}

// Has reports whether the server advertised the named extension.
func (p *VersionPacket) Has(name string) bool {
	for _, ext := range p.Extensions {
		if ext.Name == name {
			return true
		}
	}

	return false
}
