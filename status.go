package nbsftp

import (
	"fmt"
)

// Status classifies the outcome of a session operation.
//
// Values fall into three tiers: general outcomes, failures reported by the
// secure-session engine, and failures reported by the remote SFTP server.
// The zero value is StatusError.
type Status int

// General outcomes.
const (
	StatusError Status = iota
	StatusSuccess
	StatusDisconnected
	StatusTimeout
	StatusRefused
)

// Secure-session engine failures.
const (
	StatusSSHBannerReceive Status = iota + 100
	StatusSSHBannerSend
	StatusSSHInvalidMAC
	StatusSSHAllocation
	StatusSSHSocketSend
	StatusSSHKeyExchangeFailure
	StatusSSHHostKeyInitialization
	StatusSSHHostKeySign
	StatusSSHDecrypt
	StatusSSHProtocol
	StatusSSHPasswordExpired
	StatusSSHFile
	StatusSSHMethodNone
	StatusSSHAuthenticationFailed
	StatusSSHPublicKeyUnverified
	StatusSSHChannelOutOfOrder
	StatusSSHChannelFailure
	StatusSSHChannelRequestDenied
	StatusSSHChannelUnknown
	StatusSSHChannelWindowExceeded
	StatusSSHChannelPacketExceeded
	StatusSSHChannelClosed
	StatusSSHChannelEOFSent
	StatusSSHSCPProtocol
	StatusSSHZlib
	StatusSSHRequestDenied
	StatusSSHMethodNotSupported
	StatusSSHInvalid
	StatusSSHPublicKeyProtocol
	StatusSSHBufferTooSmall
	StatusSSHBadUse
	StatusSSHCompress
	StatusSSHOutOfBoundary
	StatusSSHAgentProtocol
	StatusSSHSocketReceive
	StatusSSHEncrypt
	StatusSSHBadSocket
	StatusSSHKnownHosts
	StatusSSHChannelWindowFull
	StatusSSHKeyFileAuthenticationFailed
	StatusSSHRandomNumberGenerator
	StatusSSHMissingUserAuthenticationBanner
	StatusSSHAlgorithmUnsupported
)

// Remote SFTP server failures.
const (
	StatusSFTPEndOfFile Status = iota + 200
	StatusSFTPNoSuchFile
	StatusSFTPPermissionDenied
	StatusSFTPFailure
	StatusSFTPBadMessage
	StatusSFTPNoConnection
	StatusSFTPConnectionLost
	StatusSFTPOperationUnsupported
	StatusSFTPInvalidHandle
	StatusSFTPNoSuchPath
	StatusSFTPFileAlreadyExists
	StatusSFTPWriteProtect
	StatusSFTPNoMedia
	StatusSFTPNoSpaceOnFileSystem
	StatusSFTPQuotaExceeded
	StatusSFTPUnknownPrincipal
	StatusSFTPLockConflict
	StatusSFTPDirectoryNotEmpty
	StatusSFTPNotADirectory
	StatusSFTPInvalidFilename
	StatusSFTPLinkLoop
	StatusSFTPError
)

var statusNames = map[Status]string{
	StatusError:        "Error",
	StatusSuccess:      "Success",
	StatusDisconnected: "Disconnected",
	StatusTimeout:      "Timeout",
	StatusRefused:      "Refused",

	StatusSSHBannerReceive:                   "SSHBannerReceive",
	StatusSSHBannerSend:                      "SSHBannerSend",
	StatusSSHInvalidMAC:                      "SSHInvalidMAC",
	StatusSSHAllocation:                      "SSHAllocation",
	StatusSSHSocketSend:                      "SSHSocketSend",
	StatusSSHKeyExchangeFailure:              "SSHKeyExchangeFailure",
	StatusSSHHostKeyInitialization:           "SSHHostKeyInitialization",
	StatusSSHHostKeySign:                     "SSHHostKeySign",
	StatusSSHDecrypt:                         "SSHDecrypt",
	StatusSSHProtocol:                        "SSHProtocol",
	StatusSSHPasswordExpired:                 "SSHPasswordExpired",
	StatusSSHFile:                            "SSHFile",
	StatusSSHMethodNone:                      "SSHMethodNone",
	StatusSSHAuthenticationFailed:            "SSHAuthenticationFailed",
	StatusSSHPublicKeyUnverified:             "SSHPublicKeyUnverified",
	StatusSSHChannelOutOfOrder:               "SSHChannelOutOfOrder",
	StatusSSHChannelFailure:                  "SSHChannelFailure",
	StatusSSHChannelRequestDenied:            "SSHChannelRequestDenied",
	StatusSSHChannelUnknown:                  "SSHChannelUnknown",
	StatusSSHChannelWindowExceeded:           "SSHChannelWindowExceeded",
	StatusSSHChannelPacketExceeded:           "SSHChannelPacketExceeded",
	StatusSSHChannelClosed:                   "SSHChannelClosed",
	StatusSSHChannelEOFSent:                  "SSHChannelEOFSent",
	StatusSSHSCPProtocol:                     "SSHSCPProtocol",
	StatusSSHZlib:                            "SSHZlib",
	StatusSSHRequestDenied:                   "SSHRequestDenied",
	StatusSSHMethodNotSupported:              "SSHMethodNotSupported",
	StatusSSHInvalid:                         "SSHInvalid",
	StatusSSHPublicKeyProtocol:               "SSHPublicKeyProtocol",
	StatusSSHBufferTooSmall:                  "SSHBufferTooSmall",
	StatusSSHBadUse:                          "SSHBadUse",
	StatusSSHCompress:                        "SSHCompress",
	StatusSSHOutOfBoundary:                   "SSHOutOfBoundary",
	StatusSSHAgentProtocol:                   "SSHAgentProtocol",
	StatusSSHSocketReceive:                   "SSHSocketReceive",
	StatusSSHEncrypt:                         "SSHEncrypt",
	StatusSSHBadSocket:                       "SSHBadSocket",
	StatusSSHKnownHosts:                      "SSHKnownHosts",
	StatusSSHChannelWindowFull:               "SSHChannelWindowFull",
	StatusSSHKeyFileAuthenticationFailed:     "SSHKeyFileAuthenticationFailed",
	StatusSSHRandomNumberGenerator:           "SSHRandomNumberGenerator",
	StatusSSHMissingUserAuthenticationBanner: "SSHMissingUserAuthenticationBanner",
	StatusSSHAlgorithmUnsupported:            "SSHAlgorithmUnsupported",

	StatusSFTPEndOfFile:            "SFTPEndOfFile",
	StatusSFTPNoSuchFile:           "SFTPNoSuchFile",
	StatusSFTPPermissionDenied:     "SFTPPermissionDenied",
	StatusSFTPFailure:              "SFTPFailure",
	StatusSFTPBadMessage:           "SFTPBadMessage",
	StatusSFTPNoConnection:         "SFTPNoConnection",
	StatusSFTPConnectionLost:       "SFTPConnectionLost",
	StatusSFTPOperationUnsupported: "SFTPOperationUnsupported",
	StatusSFTPInvalidHandle:        "SFTPInvalidHandle",
	StatusSFTPNoSuchPath:           "SFTPNoSuchPath",
	StatusSFTPFileAlreadyExists:    "SFTPFileAlreadyExists",
	StatusSFTPWriteProtect:         "SFTPWriteProtect",
	StatusSFTPNoMedia:              "SFTPNoMedia",
	StatusSFTPNoSpaceOnFileSystem:  "SFTPNoSpaceOnFileSystem",
	StatusSFTPQuotaExceeded:        "SFTPQuotaExceeded",
	StatusSFTPUnknownPrincipal:     "SFTPUnknownPrincipal",
	StatusSFTPLockConflict:         "SFTPLockConflict",
	StatusSFTPDirectoryNotEmpty:    "SFTPDirectoryNotEmpty",
	StatusSFTPNotADirectory:        "SFTPNotADirectory",
	StatusSFTPInvalidFilename:      "SFTPInvalidFilename",
	StatusSFTPLinkLoop:             "SFTPLinkLoop",
	StatusSFTPError:                "SFTPError",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}

	return fmt.Sprintf("Status(%d)", int(s))
}
