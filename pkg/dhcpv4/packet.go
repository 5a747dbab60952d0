package dhcpv4

import (
	"fmt"
	"net"
)

// Packet is a decoded BOOTP/DHCPv4 frame (RFC 2131 §2). Options is kept in
// wire order: the order the client sent them in on a request, or the order
// a handler built them in for a reply (callers that want Parameter Request
// List ordering apply it explicitly before Encode — see pkg/dhcpserver).
type Packet struct {
	Reply      bool // false = BOOTREQUEST (op=1), true = BOOTREPLY (op=2)
	Hops       byte
	XID        uint32
	Secs       uint16
	Broadcast  bool // bit 15 of the flags field
	CIAddr     net.IP
	YIAddr     net.IP
	SIAddr     net.IP
	GIAddr     net.IP
	CHAddr     [6]byte // Ethernet client hardware address
	Options    []Option
}

// Option returns the first option in p.Options whose code matches, or
// (nil, false).
func (p *Packet) Option(code OptionCode) (Option, bool) {
	for _, o := range p.Options {
		if o.Code() == code {
			return o, true
		}
	}
	return nil, false
}

// MessageType returns the packet's DHCP message type (option 53).
func (p *Packet) MessageType() (MessageType, error) {
	o, ok := p.Option(OptionDHCPMessageType)
	if !ok {
		return 0, ErrMissingMessageType
	}
	mt, ok := o.(DHCPMessageType)
	if !ok {
		return 0, ErrWrongType
	}
	return mt.Type, nil
}

// Decode parses a raw BOOTP/DHCPv4 datagram.
//
// Layout: a 236-byte fixed header (op, htype, hlen, hops, xid, secs, flags,
// ciaddr, yiaddr, siaddr, giaddr, chaddr, sname, file), a 4-byte magic
// cookie, then a TLV options area terminated by an END (0xFF) byte. Bytes
// after the first END are ignored. Truncated input at any point is a
// decode error.
func Decode(data []byte) (*Packet, error) {
	if len(data) < FixedHeaderSize+4 {
		return nil, fmt.Errorf("packet is %d bytes, need at least %d: %w", len(data), FixedHeaderSize+4, ErrShortInput)
	}

	op := data[0]
	switch op {
	case byte(OpCodeBootRequest):
	case byte(OpCodeBootReply):
	default:
		return nil, fmt.Errorf("op byte %d: %w", op, ErrInvalidOp)
	}

	hlen := data[2]
	if hlen != 6 {
		return nil, fmt.Errorf("hlen %d: %w", hlen, ErrInvalidHlen)
	}

	cookie := data[236:240]
	if cookie[0] != MagicCookie[0] || cookie[1] != MagicCookie[1] || cookie[2] != MagicCookie[2] || cookie[3] != MagicCookie[3] {
		return nil, fmt.Errorf("cookie %v: %w", cookie, ErrBadMagic)
	}

	p := &Packet{
		Reply:     op == byte(OpCodeBootReply),
		Hops:      data[3],
		XID:       BytesToUint32(data[4:8]),
		Secs:      BytesToUint16(data[8:10]),
		Broadcast: data[10]&0x80 != 0,
		CIAddr:    net.IPv4(data[12], data[13], data[14], data[15]),
		YIAddr:    net.IPv4(data[16], data[17], data[18], data[19]),
		SIAddr:    net.IPv4(data[20], data[21], data[22], data[23]),
		GIAddr:    net.IPv4(data[24], data[25], data[26], data[27]),
	}
	copy(p.CHAddr[:], data[28:34])

	opts, err := decodeOptions(data[240:])
	if err != nil {
		return nil, fmt.Errorf("decoding options: %w", err)
	}
	p.Options = opts

	return p, nil
}

// decodeOptions scans a TLV options area, skipping PAD bytes and stopping
// at the first END byte (or at the end of data, if no END is present —
// Decode has only checked for the 240 header and cookie bytes, so data may
// be empty).
func decodeOptions(data []byte) ([]Option, error) {
	var opts []Option
	i := 0
	for i < len(data) {
		switch OptionCode(data[i]) {
		case OptionEnd:
			return opts, nil
		case OptionPad:
			i++
			continue
		}
		rest, opt, err := DecodeOption(data[i:])
		if err != nil {
			return nil, err
		}
		opts = append(opts, opt)
		i = len(data) - len(rest)
	}
	return opts, nil
}

// Encode serializes p into scratch and returns the prefix of scratch from
// offset 0 up to and including the terminating END byte, backed by scratch
// (the caller-owned scratch buffer pattern described in pkg/dhcpserver). If
// scratch has capacity < MaxPacketSize, Encode allocates a new buffer
// instead and the returned slice is not backed by scratch. Padding beyond
// the END byte is written into the buffer but is not part of the returned
// slice.
//
// Any option whose serialized TLV would push the total length to >=
// MaxPacketSize is skipped silently — this is the DHCP core's one lossy
// emission rule; callers who care must keep their option
// list short enough to fit after PRL filtering.
func (p *Packet) Encode(scratch []byte) []byte {
	if cap(scratch) < MaxPacketSize {
		scratch = make([]byte, MaxPacketSize)
	}
	buf := scratch[:MaxPacketSize]
	for i := range buf {
		buf[i] = 0
	}

	if p.Reply {
		buf[0] = byte(OpCodeBootReply)
	} else {
		buf[0] = byte(OpCodeBootRequest)
	}
	buf[1] = byte(HardwareTypeEthernet)
	buf[2] = 6
	buf[3] = p.Hops
	copy(buf[4:8], Uint32ToBytes(p.XID))
	copy(buf[8:10], Uint16ToBytes(p.Secs))
	if p.Broadcast {
		buf[10] = 0x80
	}
	copy(buf[12:16], ipToBytes(p.CIAddr))
	copy(buf[16:20], ipToBytes(p.YIAddr))
	copy(buf[20:24], ipToBytes(p.SIAddr))
	copy(buf[24:28], ipToBytes(p.GIAddr))
	copy(buf[28:34], p.CHAddr[:])
	// bytes 34..236 (sname/file) stay zero — BOOTP file/sname overloading
	// is out of scope.

	copy(buf[236:240], MagicCookie[:])

	i := FixedHeaderSize + 4
	for _, o := range p.Options {
		raw := ToRaw(o)
		if len(raw.Data) > 255 {
			continue // cannot represent a length > 255 in one TLV byte
		}
		need := 2 + len(raw.Data)
		if i+need+1 > MaxPacketSize { // +1 reserves room for END
			continue
		}
		buf[i] = byte(raw.OptionCode)
		buf[i+1] = byte(len(raw.Data))
		copy(buf[i+2:i+2+len(raw.Data)], raw.Data)
		i += need
	}
	buf[i] = byte(OptionEnd)
	i++

	return buf[:i]
}
