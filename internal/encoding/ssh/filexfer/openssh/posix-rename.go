// Package openssh implements the openssh secsh-filexfer extensions as described in https://github.com/openssh/openssh-portable/blob/master/PROTOCOL
package openssh

import (
	sshfx "github.com/pkg/nbsftp/internal/encoding/ssh/filexfer"
)

// ExtensionPosixRename is the name of the posix-rename extension,
// as advertised in the SSH_FXP_VERSION packet.
const ExtensionPosixRename = "posix-rename@openssh.com"

// PosixRenameExtendedPacket defines the posix-rename@openssh.com extend packet.
type PosixRenameExtendedPacket struct {
	OldPath string
	NewPath string
}

// Type returns the SSH_FXP_EXTENDED packet type.
func (ep *PosixRenameExtendedPacket) Type() sshfx.PacketType {
	return sshfx.PacketTypeExtended
}

// MarshalPacket returns ep as a two-part binary encoding of the full extended packet.
func (ep *PosixRenameExtendedPacket) MarshalPacket(reqid uint32) (header, payload []byte) {
	p := &sshfx.ExtendedPacket{
		ExtendedRequest: ExtensionPosixRename,

		Data: ep,
	}
	return p.MarshalPacket(reqid)
}

// Len returns the length of the packet-specific data.
func (ep *PosixRenameExtendedPacket) Len() int {
	// string(oldpath) + string(newpath)
	return 4 + len(ep.OldPath) + 4 + len(ep.NewPath)
}

// MarshalInto encodes ep into the binary encoding of the posix-rename@openssh.com extended packet-specific data.
func (ep *PosixRenameExtendedPacket) MarshalInto(buf *sshfx.Buffer) {
	buf.AppendString(ep.OldPath)
	buf.AppendString(ep.NewPath)
}
