package dhcpv4

import "errors"

// Decode/accessor error kinds (see package doc and spec §7 in the project's
// design notes). All are checkable with errors.Is; Decode and
// DecodeOption wrap them with fmt.Errorf("...: %w", ...) for context.
var (
	// ErrShortInput means a field could not be read because the input was
	// truncated.
	ErrShortInput = errors.New("dhcpv4: truncated input")

	// ErrInvalidOp means the op byte was neither BOOTREQUEST(1) nor
	// BOOTREPLY(2).
	ErrInvalidOp = errors.New("dhcpv4: invalid op code")

	// ErrInvalidHlen means hlen was not 6 (the core only supports Ethernet).
	ErrInvalidHlen = errors.New("dhcpv4: hlen must be 6 for Ethernet")

	// ErrBadMagic means the magic cookie was missing or wrong.
	ErrBadMagic = errors.New("dhcpv4: bad or missing magic cookie")

	// ErrUnrecognizedMessageType means option 53 carried a value outside
	// 1..8.
	ErrUnrecognizedMessageType = errors.New("dhcpv4: unrecognized DHCP message type")

	// ErrNonUTF8String means a text option's bytes were not valid UTF-8.
	ErrNonUTF8String = errors.New("dhcpv4: option text is not valid UTF-8")

	// ErrWrongOptionShape means an option's payload length or internal
	// structure disagreed with its code.
	ErrWrongOptionShape = errors.New("dhcpv4: option payload has the wrong shape for its code")

	// ErrMissingMessageType means Packet.MessageType found no option 53.
	ErrMissingMessageType = errors.New("dhcpv4: packet has no DHCP message type option")

	// ErrWrongType means option 53 was present but malformed.
	ErrWrongType = errors.New("dhcpv4: DHCP message type option is malformed")
)
