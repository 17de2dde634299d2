package filexfer

// PathPacket covers the requests that carry only a path:
// SSH_FXP_LSTAT, SSH_FXP_STAT, SSH_FXP_OPENDIR, SSH_FXP_REMOVE, SSH_FXP_RMDIR and SSH_FXP_REALPATH.
type PathPacket struct {
	PacketType PacketType
	Path       string
}

// Type returns the packet type of the request.
func (p *PathPacket) Type() PacketType {
	return p.PacketType
}

// MarshalPacket returns p as a two-part binary encoding of p.
func (p *PathPacket) MarshalPacket(reqid uint32) (header, payload []byte) {
	buf := NewMarshalBuffer(p.PacketType, reqid, 4+len(p.Path))
	buf.AppendString(p.Path)
	return buf.Packet(nil)
}

// HandleRequestPacket covers the requests that carry only a handle:
// SSH_FXP_CLOSE, SSH_FXP_READDIR and SSH_FXP_FSTAT.
type HandleRequestPacket struct {
	PacketType PacketType
	Handle     string
}

// Type returns the packet type of the request.
func (p *HandleRequestPacket) Type() PacketType {
	return p.PacketType
}

// MarshalPacket returns p as a two-part binary encoding of p.
func (p *HandleRequestPacket) MarshalPacket(reqid uint32) (header, payload []byte) {
	buf := NewMarshalBuffer(p.PacketType, reqid, 4+len(p.Handle))
	buf.AppendString(p.Handle)
	return buf.Packet(nil)
}

// OpenPacket defines the SSH_FXP_OPEN packet.
type OpenPacket struct {
	Filename string
	PFlags   uint32
	Attrs    Attributes
}

// Type returns the SSH_FXP_xy value associated with this packet type.
func (p *OpenPacket) Type() PacketType {
	return PacketTypeOpen
}

// MarshalPacket returns p as a two-part binary encoding of p.
func (p *OpenPacket) MarshalPacket(reqid uint32) (header, payload []byte) {
	buf := NewMarshalBuffer(PacketTypeOpen, reqid, 4+len(p.Filename)+4+p.Attrs.Len())

	buf.AppendString(p.Filename)
	buf.AppendUint32(p.PFlags)
	p.Attrs.MarshalInto(buf)

	return buf.Packet(nil)
}

// ReadPacket defines the SSH_FXP_READ packet.
type ReadPacket struct {
	Handle string
	Offset uint64
	Len    uint32
}

// Type returns the SSH_FXP_xy value associated with this packet type.
func (p *ReadPacket) Type() PacketType {
	return PacketTypeRead
}

// MarshalPacket returns p as a two-part binary encoding of p.
func (p *ReadPacket) MarshalPacket(reqid uint32) (header, payload []byte) {
	buf := NewMarshalBuffer(PacketTypeRead, reqid, 4+len(p.Handle)+8+4)

	buf.AppendString(p.Handle)
	buf.AppendUint64(p.Offset)
	buf.AppendUint32(p.Len)

	return buf.Packet(nil)
}

// WritePacket defines the SSH_FXP_WRITE packet.
type WritePacket struct {
	Handle string
	Offset uint64
	Data   []byte
}

// Type returns the SSH_FXP_xy value associated with this packet type.
func (p *WritePacket) Type() PacketType {
	return PacketTypeWrite
}

// MarshalPacket returns p as a two-part binary encoding of p.
// The data is passed through as payload without copying.
func (p *WritePacket) MarshalPacket(reqid uint32) (header, payload []byte) {
	buf := NewMarshalBuffer(PacketTypeWrite, reqid, 4+len(p.Handle)+8+4)

	buf.AppendString(p.Handle)
	buf.AppendUint64(p.Offset)
	buf.AppendUint32(uint32(len(p.Data)))

	return buf.Packet(p.Data)
}

// MkdirPacket defines the SSH_FXP_MKDIR packet.
type MkdirPacket struct {
	Path  string
	Attrs Attributes
}

// Type returns the SSH_FXP_xy value associated with this packet type.
func (p *MkdirPacket) Type() PacketType {
	return PacketTypeMkdir
}

// MarshalPacket returns p as a two-part binary encoding of p.
func (p *MkdirPacket) MarshalPacket(reqid uint32) (header, payload []byte) {
	buf := NewMarshalBuffer(PacketTypeMkdir, reqid, 4+len(p.Path)+p.Attrs.Len())

	buf.AppendString(p.Path)
	p.Attrs.MarshalInto(buf)

	return buf.Packet(nil)
}

// RenamePacket defines the SSH_FXP_RENAME packet.
type RenamePacket struct {
	OldPath string
	NewPath string
}

// Type returns the SSH_FXP_xy value associated with this packet type.
func (p *RenamePacket) Type() PacketType {
	return PacketTypeRename
}

// MarshalPacket returns p as a two-part binary encoding of p.
func (p *RenamePacket) MarshalPacket(reqid uint32) (header, payload []byte) {
	buf := NewMarshalBuffer(PacketTypeRename, reqid, 4+len(p.OldPath)+4+len(p.NewPath))

	buf.AppendString(p.OldPath)
	buf.AppendString(p.NewPath)

	return buf.Packet(nil)
}

// ExtendedData describes the request-specific data of an SSH_FXP_EXTENDED packet.
type ExtendedData interface {
	Len() int
	MarshalInto(buf *Buffer)
}

// ExtendedPacket defines the SSH_FXP_EXTENDED packet.
type ExtendedPacket struct {
	ExtendedRequest string
	Data            ExtendedData
}

// Type returns the SSH_FXP_xy value associated with this packet type.
func (p *ExtendedPacket) Type() PacketType {
	return PacketTypeExtended
}

// MarshalPacket returns p as a two-part binary encoding of p.
func (p *ExtendedPacket) MarshalPacket(reqid uint32) (header, payload []byte) {
	size := 4 + len(p.ExtendedRequest)
	if p.Data != nil {
		size += p.Data.Len()
	}

	buf := NewMarshalBuffer(PacketTypeExtended, reqid, size)
	buf.AppendString(p.ExtendedRequest)

	if p.Data != nil {
		p.Data.MarshalInto(buf)
	}

	return buf.Packet(nil)
}
