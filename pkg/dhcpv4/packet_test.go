package dhcpv4

import (
	"bytes"
	"net"
	"testing"
)

// buildDiscover returns the S1 fixture: a 300-byte datagram whose op=1,
// hlen=6, xid=0xDEADBEEF, chaddr=00:11:22:33:44:55, flags=0x8000, options =
// [53,1,1, 55,3, 1,3,6, 255] followed by PAD.
func buildDiscover() []byte {
	buf := make([]byte, 300)
	buf[0] = byte(OpCodeBootRequest)
	buf[1] = byte(HardwareTypeEthernet)
	buf[2] = 6
	copy(buf[4:8], Uint32ToBytes(0xDEADBEEF))
	buf[10] = 0x80 // broadcast flag
	mac := []byte{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}
	copy(buf[28:34], mac)
	copy(buf[236:240], MagicCookie[:])

	opts := []byte{
		byte(OptionDHCPMessageType), 1, byte(MessageTypeDiscover),
		byte(OptionParameterRequestList), 3, 1, 3, 6,
		byte(OptionEnd),
	}
	copy(buf[240:], opts)
	// remaining bytes are already zero (PAD)
	return buf
}

func TestS1DiscoverRoundTrip(t *testing.T) {
	data := buildDiscover()

	p, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !p.Broadcast {
		t.Error("expected Broadcast = true")
	}
	mt, err := p.MessageType()
	if err != nil || mt != MessageTypeDiscover {
		t.Errorf("MessageType = %v, %v; want Discover", mt, err)
	}
	prlOpt, ok := p.Option(OptionParameterRequestList)
	if !ok {
		t.Fatal("expected a ParameterRequestList option")
	}
	prl := prlOpt.(ParameterRequestList)
	want := []OptionCode{1, 3, 6}
	if len(prl.Codes) != len(want) {
		t.Fatalf("PRL = %v, want %v", prl.Codes, want)
	}
	for i := range want {
		if prl.Codes[i] != want[i] {
			t.Errorf("PRL[%d] = %d, want %d", i, prl.Codes[i], want[i])
		}
	}

	scratch := make([]byte, MaxPacketSize)
	encoded := p.Encode(scratch)
	if !bytes.Equal(encoded[:240], data[:240]) {
		t.Error("fixed 240-byte header did not round trip byte-for-byte")
	}
	wantTail := []byte{
		byte(OptionDHCPMessageType), 1, byte(MessageTypeDiscover),
		byte(OptionParameterRequestList), 3, 1, 3, 6,
		byte(OptionEnd),
	}
	if !bytes.Equal(encoded[240:], wantTail) {
		t.Errorf("re-encoded options = %v, want %v", encoded[240:], wantTail)
	}
}

func TestS5UnknownOptionPreservation(t *testing.T) {
	data := buildDiscover()
	// Splice an unknown option (code 200) in before END.
	end := bytes.IndexByte(data[240:], byte(OptionEnd)) + 240
	data[end] = 200
	data[end+1] = 2
	data[end+2] = 0xAA
	data[end+3] = 0xBB
	data[end+4] = byte(OptionEnd)

	p, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	opt, ok := p.Option(200)
	if !ok {
		t.Fatal("expected option 200 to survive decode")
	}
	raw, ok := opt.(RawOption)
	if !ok || !bytes.Equal(raw.Data, []byte{0xAA, 0xBB}) {
		t.Errorf("option 200 = %#v, want RawOption{200, [0xAA 0xBB]}", opt)
	}

	scratch := make([]byte, MaxPacketSize)
	encoded := p.Encode(scratch)
	if !bytes.Contains(encoded, []byte{200, 2, 0xAA, 0xBB}) {
		t.Error("re-encoded packet lost the unknown option's bytes")
	}
}

func TestS6InvalidMessageTypeRejected(t *testing.T) {
	data := buildDiscover()
	idx := bytes.Index(data[240:], []byte{byte(OptionDHCPMessageType), 1, byte(MessageTypeDiscover)}) + 240
	data[idx+2] = 9 // outside 1..8

	if _, err := Decode(data); err == nil {
		t.Fatal("expected decode to reject DHCPMessageType value 9")
	}
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	data := buildDiscover()
	data[236] = 0
	if _, err := Decode(data); err == nil {
		t.Fatal("expected bad-magic error")
	}
}

func TestDecodeRejectsWrongHlen(t *testing.T) {
	data := buildDiscover()
	data[2] = 5
	if _, err := Decode(data); err == nil {
		t.Fatal("expected invalid-hlen error")
	}
}

func TestDecodeRejectsUnrecognizedOp(t *testing.T) {
	data := buildDiscover()
	data[0] = 7
	if _, err := Decode(data); err == nil {
		t.Fatal("expected invalid-op error for unrecognized op byte (per design decision: reject, don't default to request)")
	}
}

func TestDecodeRejectsTruncatedInput(t *testing.T) {
	data := buildDiscover()
	if _, err := Decode(data[:100]); err == nil {
		t.Fatal("expected truncation error on short input")
	}
}

func TestEncodedSizeBounds(t *testing.T) {
	p := &Packet{
		Reply: true,
		XID:   1,
		Options: []Option{
			DHCPMessageType{MessageTypeOffer},
			ServerIdentifier{net.IPv4(10, 0, 0, 1)},
		},
	}
	scratch := make([]byte, MaxPacketSize)
	encoded := p.Encode(scratch)
	if len(encoded) < 241 || len(encoded) > MaxPacketSize {
		t.Errorf("encoded length %d out of [241, %d]", len(encoded), MaxPacketSize)
	}
	if !bytes.Equal(encoded[236:240], MagicCookie[:]) {
		t.Errorf("magic cookie bytes = %v", encoded[236:240])
	}
	if encoded[len(encoded)-1] != byte(OptionEnd) {
		t.Error("last byte of the returned slice must be END")
	}
}

func TestEncodeSkipsOptionsThatWouldOverflow(t *testing.T) {
	var opts []Option
	for i := 0; i < 40; i++ {
		opts = append(opts, RawOption{OptionCode(i + 60), bytes.Repeat([]byte{0x41}, 10)})
	}
	p := &Packet{Options: opts}
	scratch := make([]byte, MaxPacketSize)
	encoded := p.Encode(scratch)
	if len(encoded) > MaxPacketSize {
		t.Fatalf("encoded length %d exceeds MaxPacketSize %d", len(encoded), MaxPacketSize)
	}
	if encoded[len(encoded)-1] != byte(OptionEnd) {
		t.Error("truncated emission must still terminate with END")
	}
}

func TestBroadcastFlagParity(t *testing.T) {
	for _, bcast := range []bool{true, false} {
		p := &Packet{Broadcast: bcast, Options: []Option{DHCPMessageType{MessageTypeDiscover}}}
		scratch := make([]byte, MaxPacketSize)
		encoded := p.Encode(scratch)
		decoded, err := Decode(encoded)
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if decoded.Broadcast != bcast {
			t.Errorf("broadcast parity: got %v, want %v", decoded.Broadcast, bcast)
		}
	}
}

func TestPacketRoundTripRecognizedOnly(t *testing.T) {
	p := &Packet{
		Reply:     true,
		Hops:      1,
		XID:       0x12345678,
		Secs:      30,
		Broadcast: false,
		CIAddr:    net.IPv4(1, 2, 3, 4),
		YIAddr:    net.IPv4(192, 168, 2, 42),
		SIAddr:    net.IPv4zero,
		GIAddr:    net.IPv4zero,
		CHAddr:    [6]byte{0xde, 0xad, 0xbe, 0xef, 0x00, 0x01},
		Options: []Option{
			DHCPMessageType{MessageTypeAck},
			ServerIdentifier{net.IPv4(192, 168, 2, 1)},
			SubnetMask{net.IPv4(255, 255, 255, 0)},
			IPAddressLeaseTime{3600},
			Router{[]net.IP{net.IPv4(192, 168, 2, 1)}},
			DomainNameServer{[]net.IP{net.IPv4(8, 8, 8, 8)}},
			HostName{"printer-1"},
		},
	}
	scratch := make([]byte, MaxPacketSize)
	encoded := p.Encode(scratch)
	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if decoded.Reply != p.Reply || decoded.XID != p.XID || decoded.Hops != p.Hops || decoded.Secs != p.Secs {
		t.Errorf("header fields did not round trip: got %+v", decoded)
	}
	if !decoded.YIAddr.Equal(p.YIAddr) || !decoded.CIAddr.Equal(p.CIAddr) {
		t.Errorf("addresses did not round trip: got %+v", decoded)
	}
	if decoded.CHAddr != p.CHAddr {
		t.Errorf("chaddr did not round trip: got %v, want %v", decoded.CHAddr, p.CHAddr)
	}
	// Only the first five options fit in the MaxPacketSize (272) frame:
	// 240 + 3+6+6+6+6 = 267 bytes, and either the 6-byte DomainNameServer
	// or the 11-byte HostName option plus END would exceed 272, so Encode
	// skips both. The five that fit round trip in order.
	want := p.Options[:5]
	if len(decoded.Options) != len(want) {
		t.Fatalf("got %d options, want %d", len(decoded.Options), len(want))
	}
	for i := range want {
		if !optionsEqual(decoded.Options[i], want[i]) {
			t.Errorf("option %d: got %#v, want %#v", i, decoded.Options[i], want[i])
		}
	}
}
