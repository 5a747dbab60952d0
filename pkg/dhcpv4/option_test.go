package dhcpv4

import (
	"bytes"
	"net"
	"testing"
)

// serialize mirrors the wire form ToRaw + DecodeOption round-trip through:
// [code, len, data...].
func serialize(o Option) []byte {
	raw := ToRaw(o)
	buf := []byte{byte(raw.OptionCode), byte(len(raw.Data))}
	return append(buf, raw.Data...)
}

func TestOptionRoundTrip(t *testing.T) {
	cases := []Option{
		DHCPMessageType{MessageTypeDiscover},
		DHCPMessageType{MessageTypeAck},
		ServerIdentifier{net.IPv4(192, 168, 1, 1)},
		ParameterRequestList{[]OptionCode{1, 3, 6, 15}},
		RequestedIPAddress{net.IPv4(192, 168, 2, 42)},
		HostName{"workstation-7"},
		Router{[]net.IP{net.IPv4(192, 168, 2, 1)}},
		Router{[]net.IP{net.IPv4(10, 0, 0, 1), net.IPv4(10, 0, 0, 2)}},
		DomainNameServer{[]net.IP{net.IPv4(8, 8, 8, 8), net.IPv4(8, 8, 4, 4)}},
		IPAddressLeaseTime{86400},
		SubnetMask{net.IPv4(255, 255, 255, 0)},
		Message{"no free addresses in pool"},
		RawOption{200, []byte{0xAA, 0xBB}},
	}

	for _, o := range cases {
		wire := serialize(o)
		rest, decoded, err := DecodeOption(wire)
		if err != nil {
			t.Fatalf("DecodeOption(%#v) error: %v", o, err)
		}
		if len(rest) != 0 {
			t.Errorf("%#v: expected empty remainder, got %d bytes", o, len(rest))
		}
		if !optionsEqual(decoded, o) {
			t.Errorf("round trip mismatch: got %#v, want %#v", decoded, o)
		}
	}
}

// optionsEqual compares options by their wire form rather than
// reflect.DeepEqual, since net.IP's internal 4-vs-16-byte representation
// would otherwise trip up a literal struct comparison.
func optionsEqual(a, b Option) bool {
	ar, br := ToRaw(a), ToRaw(b)
	return ar.OptionCode == br.OptionCode && bytes.Equal(ar.Data, br.Data)
}

func TestDecodeOptionRejectsEndAndPad(t *testing.T) {
	for _, code := range []OptionCode{OptionEnd, OptionPad} {
		if _, _, err := DecodeOption([]byte{byte(code), 0}); err == nil {
			t.Errorf("DecodeOption on code %d: expected error", code)
		}
	}
}

func TestDecodeOptionTruncated(t *testing.T) {
	// Header claims 4 bytes of payload, only 2 are present.
	data := []byte{byte(OptionServerIdentifier), 4, 1, 2}
	if _, _, err := DecodeOption(data); err == nil {
		t.Fatal("expected truncation error")
	}
}

func TestDecodeOptionS6InvalidMessageType(t *testing.T) {
	data := []byte{byte(OptionDHCPMessageType), 1, 9}
	_, _, err := DecodeOption(data)
	if err == nil {
		t.Fatal("expected UnrecognizedMessageType error")
	}
}

func TestDecodeOptionNonUTF8Hostname(t *testing.T) {
	data := []byte{byte(OptionHostname), 2, 0xff, 0xfe}
	if _, _, err := DecodeOption(data); err == nil {
		t.Fatal("expected non-UTF-8 error")
	}
}

func TestDecodeOptionUnknownCodeIsRaw(t *testing.T) {
	data := []byte{200, 2, 0xAA, 0xBB}
	rest, opt, err := DecodeOption(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rest) != 0 {
		t.Errorf("expected no remainder, got %d bytes", len(rest))
	}
	raw, ok := opt.(RawOption)
	if !ok {
		t.Fatalf("expected RawOption, got %T", opt)
	}
	if raw.OptionCode != 200 || !bytes.Equal(raw.Data, []byte{0xAA, 0xBB}) {
		t.Errorf("got %#v", raw)
	}
}

func TestTitleKnownAndUnknown(t *testing.T) {
	if name, ok := Title(OptionSubnetMask); !ok || name != "Subnet Mask" {
		t.Errorf("Title(1) = %q, %v", name, ok)
	}
	if _, ok := Title(OptionCode(199)); ok {
		t.Error("expected Title for unregistered code 199 to report not-found")
	}
}
