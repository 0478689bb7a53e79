// Package wire implements the HiSLIP frame codec: a fixed 16-byte header
// followed by a variable-length payload, big-endian throughout.
package wire

import "fmt"

// HeaderSize is the fixed length of a HiSLIP message header in bytes.
const HeaderSize = 16

// Magic is the two-byte ASCII marker every header must begin with.
var Magic = [2]byte{'H', 'S'}

// Type is a HiSLIP message-type code (byte 2 of the header).
type Type uint8

// Message-type codes, per spec §6.1.
const (
	TypeInitialize                     Type = 0
	TypeInitializeResponse             Type = 1
	TypeFatalError                      Type = 2
	TypeError                           Type = 3
	TypeAsyncLock                       Type = 4
	TypeAsyncLockResponse               Type = 5
	TypeData                            Type = 6
	TypeDataEnd                         Type = 7
	TypeDeviceClearComplete             Type = 8
	TypeDeviceClearAcknowledge          Type = 9
	TypeAsyncRemoteLocalControl         Type = 10
	TypeAsyncRemoteLocalResponse        Type = 11
	TypeTrigger                         Type = 12
	TypeInterrupted                     Type = 13
	TypeAsyncInterrupted                Type = 14
	TypeAsyncMaximumMessageSize         Type = 15
	TypeAsyncMaximumMessageSizeResponse Type = 16
	TypeAsyncInitialize                 Type = 17
	TypeAsyncInitializeResponse         Type = 18
	TypeAsyncDeviceClear                Type = 19
	TypeAsyncServiceRequest             Type = 20
	TypeAsyncStatusQuery                Type = 21
	TypeAsyncStatusResponse             Type = 22
	TypeAsyncDeviceClearAcknowledge     Type = 23
	TypeAsyncLockInfo                   Type = 24
	TypeAsyncLockInfoResponse           Type = 25
	TypeGetDescriptors                  Type = 26
	TypeGetDescriptorsResponse           Type = 27
	TypeStartTLS                        Type = 28
	TypeAsyncStartTLS                   Type = 29
	TypeAsyncStartTLSResponse            Type = 30
	TypeEndTLS                          Type = 31
	TypeAsyncEndTLS                     Type = 32
	TypeAsyncEndTLSResponse              Type = 33
	TypeGetSaslMechanismList              Type = 34
	TypeGetSaslMechanismListResponse      Type = 35
	TypeAuthenticationStart              Type = 36
	TypeAuthenticationExchange            Type = 37
	TypeAuthenticationResult             Type = 38
)

// VendorSpecificMin is the lowest message-type code reserved for
// vendor-defined extensions (128..255).
const VendorSpecificMin Type = 128

var typeNames = map[Type]string{
	TypeInitialize:                     "Initialize",
	TypeInitializeResponse:             "InitializeResponse",
	TypeFatalError:                      "FatalError",
	TypeError:                           "Error",
	TypeAsyncLock:                       "AsyncLock",
	TypeAsyncLockResponse:               "AsyncLockResponse",
	TypeData:                            "Data",
	TypeDataEnd:                         "DataEnd",
	TypeDeviceClearComplete:             "DeviceClearComplete",
	TypeDeviceClearAcknowledge:          "DeviceClearAcknowledge",
	TypeAsyncRemoteLocalControl:         "AsyncRemoteLocalControl",
	TypeAsyncRemoteLocalResponse:        "AsyncRemoteLocalResponse",
	TypeTrigger:                         "Trigger",
	TypeInterrupted:                     "Interrupted",
	TypeAsyncInterrupted:                "AsyncInterrupted",
	TypeAsyncMaximumMessageSize:         "AsyncMaximumMessageSize",
	TypeAsyncMaximumMessageSizeResponse: "AsyncMaximumMessageSizeResponse",
	TypeAsyncInitialize:                 "AsyncInitialize",
	TypeAsyncInitializeResponse:         "AsyncInitializeResponse",
	TypeAsyncDeviceClear:                "AsyncDeviceClear",
	TypeAsyncServiceRequest:             "AsyncServiceRequest",
	TypeAsyncStatusQuery:                "AsyncStatusQuery",
	TypeAsyncStatusResponse:             "AsyncStatusResponse",
	TypeAsyncDeviceClearAcknowledge:     "AsyncDeviceClearAcknowledge",
	TypeAsyncLockInfo:                   "AsyncLockInfo",
	TypeAsyncLockInfoResponse:           "AsyncLockInfoResponse",
	TypeGetDescriptors:                  "GetDescriptors",
	TypeGetDescriptorsResponse:          "GetDescriptorsResponse",
	TypeStartTLS:                        "StartTLS",
	TypeAsyncStartTLS:                   "AsyncStartTLS",
	TypeAsyncStartTLSResponse:           "AsyncStartTLSResponse",
	TypeEndTLS:                          "EndTLS",
	TypeAsyncEndTLS:                     "AsyncEndTLS",
	TypeAsyncEndTLSResponse:             "AsyncEndTLSResponse",
	TypeGetSaslMechanismList:            "GetSaslMechanismList",
	TypeGetSaslMechanismListResponse:    "GetSaslMechanismListResponse",
	TypeAuthenticationStart:             "AuthenticationStart",
	TypeAuthenticationExchange:          "AuthenticationExchange",
	TypeAuthenticationResult:            "AuthenticationResult",
}

// String implements fmt.Stringer, returning the vendor-specific range label
// for codes >= 128 and "Unknown(N)" for anything else unrecognized.
func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	if t >= VendorSpecificMin {
		return fmt.Sprintf("VendorSpecific(%d)", uint8(t))
	}
	return fmt.Sprintf("Unknown(%d)", uint8(t))
}

// Known reports whether t is one of the enumerated message types (0..38).
// Vendor-specific codes (128..255) are not "known" in this sense but are
// still accepted by the codec; everything else is rejected.
func (t Type) Known() bool {
	_, ok := typeNames[t]
	return ok
}

// Header is the fixed 16-byte HiSLIP frame header.
type Header struct {
	Type      Type
	Control   uint8
	Parameter uint32
	PayloadLen uint64
}

// FatalErrorCode enumerates codes carried by a FatalError message. Sending
// one of these always closes the connection after the message is flushed.
type FatalErrorCode uint8

const (
	FatalUnidentifiedError              FatalErrorCode = 0
	FatalPoorlyFormattedMessageHeader   FatalErrorCode = 1
	FatalAttemptUseWithoutBothChannels  FatalErrorCode = 2
	FatalInvalidInitialization          FatalErrorCode = 3
	FatalMaximumClientsExceeded         FatalErrorCode = 4
	FatalSecureConnectionFailed         FatalErrorCode = 5
)

// NonFatalErrorCode enumerates codes carried by an Error message. The
// connection continues after one of these is sent.
type NonFatalErrorCode uint8

const (
	NonFatalUnidentifiedError               NonFatalErrorCode = 0
	NonFatalUnrecognizedMessageType          NonFatalErrorCode = 1
	NonFatalUnrecognizedControlCode          NonFatalErrorCode = 2
	NonFatalUnrecognizedVendorDefinedMessage NonFatalErrorCode = 3
	NonFatalMessageTooLarge                  NonFatalErrorCode = 4
	NonFatalAuthenticationFailed             NonFatalErrorCode = 5
)

// FeatureBitmap bits, used by InitializeResponseControl,
// AsyncDeviceClearAcknowledge and DeviceClearAcknowledge control bytes.
const (
	FeatureOverlapped        uint8 = 1 << 0
	FeatureEncryption        uint8 = 1 << 1
	FeatureInitialEncryption uint8 = 1 << 2
)

// RequestLockControl values, carried in an AsyncLockResponse control byte.
const (
	RequestLockFailure uint8 = 0
	RequestLockSuccess uint8 = 1
	RequestLockError   uint8 = 2
)

// ReleaseLockControl values, carried in an AsyncLockResponse control byte
// when the request was a release rather than an acquire.
const (
	ReleaseLockSuccessExclusive uint8 = 1
	ReleaseLockSuccessShared    uint8 = 2
	ReleaseLockError            uint8 = 3
)
