package nbsftp

import (
	"github.com/pkg/errors"

	sshfx "github.com/pkg/nbsftp/internal/encoding/ssh/filexfer"
)

// ErrorCode identifies why a secure-session engine call failed.
type ErrorCode int

// Engine error codes.
const (
	CodeBannerRecv ErrorCode = iota + 1
	CodeBannerSend
	CodeInvalidMAC
	CodeKexFailure
	CodeAlloc
	CodeSocketSend
	CodeKeyExchangeFailure
	CodeTimeout
	CodeHostkeyInit
	CodeHostkeySign
	CodeDecrypt
	CodeSocketDisconnect
	CodeProto
	CodePasswordExpired
	CodeFile
	CodeMethodNone
	CodeAuthenticationFailed
	CodePublicKeyUnverified
	CodeChannelOutOfOrder
	CodeChannelFailure
	CodeChannelRequestDenied
	CodeChannelUnknown
	CodeChannelWindowExceeded
	CodeChannelPacketExceeded
	CodeChannelClosed
	CodeChannelEOFSent
	CodeSCPProtocol
	CodeZlib
	CodeSocketTimeout
	CodeSFTPProtocol
	CodeRequestDenied
	CodeMethodNotSupported
	CodeInval
	CodePublicKeyProtocol
	CodeBufferTooSmall
	CodeBadUse
	CodeCompress
	CodeOutOfBoundary
	CodeAgentProtocol
	CodeSocketRecv
	CodeEncrypt
	CodeBadSocket
	CodeKnownHosts
	CodeChannelWindowFull
	CodeKeyfileAuthFailed
	CodeRandGen
	CodeMissingUserauthBanner
	CodeAlgoUnsupported
)

// EngineError is returned by Engine and SFTP implementations for failures.
// A Code of CodeSFTPProtocol means the SFTP server answered with a failure
// status, which the session reads back through SFTP.LastStatus.
type EngineError struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *EngineError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}

	return e.Message
}

func (e *EngineError) Unwrap() error { return e.Err }

// ErrSocket is returned by the Transport when the socket reported an error.
var ErrSocket = errors.New("nbsftp: socket error")

var engineStatuses = map[ErrorCode]Status{
	CodeBannerRecv:            StatusSSHBannerReceive,
	CodeBannerSend:            StatusSSHBannerSend,
	CodeInvalidMAC:            StatusSSHInvalidMAC,
	CodeKexFailure:            StatusSSHKeyExchangeFailure,
	CodeAlloc:                 StatusSSHAllocation,
	CodeSocketSend:            StatusSSHSocketSend,
	CodeKeyExchangeFailure:    StatusSSHKeyExchangeFailure,
	CodeTimeout:               StatusTimeout,
	CodeHostkeyInit:           StatusSSHHostKeyInitialization,
	CodeHostkeySign:           StatusSSHHostKeySign,
	CodeDecrypt:               StatusSSHDecrypt,
	CodeSocketDisconnect:      StatusDisconnected,
	CodeProto:                 StatusSSHProtocol,
	CodePasswordExpired:       StatusSSHPasswordExpired,
	CodeFile:                  StatusSSHFile,
	CodeMethodNone:            StatusSSHMethodNone,
	CodeAuthenticationFailed:  StatusSSHAuthenticationFailed,
	CodePublicKeyUnverified:   StatusSSHPublicKeyUnverified,
	CodeChannelOutOfOrder:     StatusSSHChannelOutOfOrder,
	CodeChannelFailure:        StatusSSHChannelFailure,
	CodeChannelRequestDenied:  StatusSSHChannelRequestDenied,
	CodeChannelUnknown:        StatusSSHChannelUnknown,
	CodeChannelWindowExceeded: StatusSSHChannelWindowExceeded,
	CodeChannelPacketExceeded: StatusSSHChannelPacketExceeded,
	CodeChannelClosed:         StatusSSHChannelClosed,
	CodeChannelEOFSent:        StatusSSHChannelEOFSent,
	CodeSCPProtocol:           StatusSSHSCPProtocol,
	CodeZlib:                  StatusSSHZlib,
	CodeSocketTimeout:         StatusTimeout,
	CodeRequestDenied:         StatusSSHRequestDenied,
	CodeMethodNotSupported:    StatusSSHMethodNotSupported,
	CodeInval:                 StatusSSHInvalid,
	CodePublicKeyProtocol:     StatusSSHPublicKeyProtocol,
	CodeBufferTooSmall:        StatusSSHBufferTooSmall,
	CodeBadUse:                StatusSSHBadUse,
	CodeCompress:              StatusSSHCompress,
	CodeOutOfBoundary:         StatusSSHOutOfBoundary,
	CodeAgentProtocol:         StatusSSHAgentProtocol,
	CodeSocketRecv:            StatusSSHSocketReceive,
	CodeEncrypt:               StatusSSHEncrypt,
	CodeBadSocket:             StatusSSHBadSocket,
	CodeKnownHosts:            StatusSSHKnownHosts,
	CodeChannelWindowFull:     StatusSSHChannelWindowFull,
	CodeKeyfileAuthFailed:     StatusSSHKeyFileAuthenticationFailed,
	CodeRandGen:               StatusSSHRandomNumberGenerator,
	CodeMissingUserauthBanner: StatusSSHMissingUserAuthenticationBanner,
	CodeAlgoUnsupported:       StatusSSHAlgorithmUnsupported,
}

// engineResult translates a failed engine call into a Result.
// sftp may be nil when the subsystem has not been started.
func engineResult(err error, sftp SFTP) Result {
	var ee *EngineError
	if !errors.As(err, &ee) {
		return NewResult(StatusError, err.Error())
	}

	if ee.Code == CodeSFTPProtocol {
		return sftpResult(sftp)
	}

	status, ok := engineStatuses[ee.Code]
	if !ok {
		status = StatusError
	}

	return NewResult(status, ee.Message)
}

func sftpResult(sftp SFTP) Result {
	if sftp == nil {
		return NewResult(StatusSFTPError, "General error")
	}

	return fxResult(sshfx.Status(sftp.LastStatus()))
}

type fxMapping struct {
	status  Status
	message string
}

var fxStatuses = map[sshfx.Status]fxMapping{
	sshfx.StatusEOF:                 {StatusSFTPEndOfFile, "End of file"},
	sshfx.StatusNoSuchFile:          {StatusSFTPNoSuchFile, "No such file"},
	sshfx.StatusPermissionDenied:    {StatusSFTPPermissionDenied, "Permission denied"},
	sshfx.StatusFailure:             {StatusSFTPFailure, "Failure"},
	sshfx.StatusBadMessage:          {StatusSFTPBadMessage, "Bad message"},
	sshfx.StatusNoConnection:        {StatusSFTPNoConnection, "No connection"},
	sshfx.StatusConnectionLost:      {StatusSFTPConnectionLost, "Connection lost"},
	sshfx.StatusOPUnsupported:       {StatusSFTPOperationUnsupported, "Operation unsupported"},
	sshfx.StatusInvalidHandle:       {StatusSFTPInvalidHandle, "Invalid handle"},
	sshfx.StatusNoSuchPath:          {StatusSFTPNoSuchPath, "No such path"},
	sshfx.StatusFileAlreadyExists:   {StatusSFTPFileAlreadyExists, "File already exists"},
	sshfx.StatusWriteProtect:        {StatusSFTPWriteProtect, "Write protect"},
	sshfx.StatusNoMedia:             {StatusSFTPNoMedia, "No media"},
	sshfx.StatusNoSpaceOnFilesystem: {StatusSFTPNoSpaceOnFileSystem, "No space on filesystem"},
	sshfx.StatusQuotaExceeded:       {StatusSFTPQuotaExceeded, "Quota exceeded"},
	sshfx.StatusUnknownPrincipal:    {StatusSFTPUnknownPrincipal, "Unknown principal"},
	sshfx.StatusLockConflict:        {StatusSFTPLockConflict, "Lock conflict"},
	sshfx.StatusDirNotEmpty:         {StatusSFTPDirectoryNotEmpty, "Directory not empty"},
	sshfx.StatusNotADirectory:       {StatusSFTPNotADirectory, "Not a directory"},
	sshfx.StatusInvalidFilename:     {StatusSFTPInvalidFilename, "Invalid filename"},
	sshfx.StatusLinkLoop:            {StatusSFTPLinkLoop, "Link loop"},
}

func fxResult(code sshfx.Status) Result {
	m, ok := fxStatuses[code]
	if !ok {
		return NewResult(StatusSFTPError, "General error")
	}

	return NewResult(m.status, m.message)
}
