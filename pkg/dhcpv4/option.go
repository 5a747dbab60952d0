package dhcpv4

import (
	"fmt"
	"net"
	"unicode/utf8"
)

// Option is a decoded DHCP option. Every concrete type below has a fixed
// Code(); RawOption is the escape hatch for any code this package does not
// give a typed shape to — it carries the code and payload as-is so unknown
// options round-trip losslessly (RFC 2132 forward compatibility).
type Option interface {
	Code() OptionCode
}

// RawOption is an option this package has no typed variant for: DecodeOption
// returns it for every code outside the ten typed ones. A typed code whose
// payload fails validation is a decode error, not a RawOption.
type RawOption struct {
	OptionCode OptionCode
	Data       []byte
}

func (o RawOption) Code() OptionCode { return o.OptionCode }

// DHCPMessageType is option 53 (RFC 2131 §9.6).
type DHCPMessageType struct{ Type MessageType }

func (DHCPMessageType) Code() OptionCode { return OptionDHCPMessageType }

// ServerIdentifier is option 54.
type ServerIdentifier struct{ IP net.IP }

func (ServerIdentifier) Code() OptionCode { return OptionServerIdentifier }

// ParameterRequestList is option 55 — the client's ordered wishlist of
// option codes it wants in the reply.
type ParameterRequestList struct{ Codes []OptionCode }

func (ParameterRequestList) Code() OptionCode { return OptionParameterRequestList }

// RequestedIPAddress is option 50.
type RequestedIPAddress struct{ IP net.IP }

func (RequestedIPAddress) Code() OptionCode { return OptionRequestedIP }

// HostName is option 12 — UTF-8 text, no NUL terminator on the wire.
type HostName struct{ Name string }

func (HostName) Code() OptionCode { return OptionHostname }

// Router is option 3 — at least one IPv4 address.
type Router struct{ IPs []net.IP }

func (Router) Code() OptionCode { return OptionRouter }

// DomainNameServer is option 6 — at least one IPv4 address.
type DomainNameServer struct{ IPs []net.IP }

func (DomainNameServer) Code() OptionCode { return OptionDomainNameServer }

// IPAddressLeaseTime is option 51, seconds.
type IPAddressLeaseTime struct{ Seconds uint32 }

func (IPAddressLeaseTime) Code() OptionCode { return OptionIPLeaseTime }

// SubnetMask is option 1.
type SubnetMask struct{ Mask net.IP }

func (SubnetMask) Code() OptionCode { return OptionSubnetMask }

// Message is option 56 — a human-readable string, e.g. the reason for a
// DHCPNAK.
type Message struct{ Text string }

func (Message) Code() OptionCode { return OptionMessage }

func ipToBytes(ip net.IP) []byte {
	v4 := ip.To4()
	if v4 == nil {
		return []byte{0, 0, 0, 0}
	}
	return []byte(v4)
}

func ipListToBytes(ips []net.IP) []byte {
	buf := make([]byte, 0, len(ips)*4)
	for _, ip := range ips {
		buf = append(buf, ipToBytes(ip)...)
	}
	return buf
}

func bytesToIPList(data []byte) []net.IP {
	ips := make([]net.IP, 0, len(data)/4)
	for i := 0; i+4 <= len(data); i += 4 {
		ips = append(ips, net.IPv4(data[i], data[i+1], data[i+2], data[i+3]))
	}
	return ips
}

// ToRaw serializes a typed Option to its on-the-wire (code, data) form.
// Addresses serialize to four network-order octets; lists of addresses
// concatenate octet-quads in list order; RawOption returns unchanged.
func ToRaw(o Option) RawOption {
	switch v := o.(type) {
	case DHCPMessageType:
		return RawOption{OptionDHCPMessageType, []byte{byte(v.Type)}}
	case ServerIdentifier:
		return RawOption{OptionServerIdentifier, ipToBytes(v.IP)}
	case ParameterRequestList:
		data := make([]byte, len(v.Codes))
		for i, c := range v.Codes {
			data[i] = byte(c)
		}
		return RawOption{OptionParameterRequestList, data}
	case RequestedIPAddress:
		return RawOption{OptionRequestedIP, ipToBytes(v.IP)}
	case HostName:
		return RawOption{OptionHostname, []byte(v.Name)}
	case Router:
		return RawOption{OptionRouter, ipListToBytes(v.IPs)}
	case DomainNameServer:
		return RawOption{OptionDomainNameServer, ipListToBytes(v.IPs)}
	case IPAddressLeaseTime:
		return RawOption{OptionIPLeaseTime, Uint32ToBytes(v.Seconds)}
	case SubnetMask:
		return RawOption{OptionSubnetMask, ipToBytes(v.Mask)}
	case Message:
		return RawOption{OptionMessage, []byte(v.Text)}
	case RawOption:
		return v
	default:
		// Unreachable for the closed set above, but keeps ToRaw total.
		return RawOption{o.Code(), nil}
	}
}

// DecodeOption reads one TLV option (code, length, data) off the front of
// data and returns the remainder plus the typed option. The caller (the
// packet scanner in packet.go) must never invoke this with a leading PAD or
// END byte — those are sentinels the scanner handles itself.
func DecodeOption(data []byte) (rest []byte, opt Option, err error) {
	if len(data) == 0 {
		return nil, nil, fmt.Errorf("option code: %w", ErrShortInput)
	}
	code := OptionCode(data[0])
	if code == OptionEnd || code == OptionPad {
		return nil, nil, fmt.Errorf("option %d is a sentinel, not a TLV: %w", code, ErrWrongOptionShape)
	}
	if len(data) < 2 {
		return nil, nil, fmt.Errorf("option %d: %w", code, ErrShortInput)
	}
	length := int(data[1])
	if len(data) < 2+length {
		return nil, nil, fmt.Errorf("option %d: need %d bytes, have %d: %w", code, length, len(data)-2, ErrShortInput)
	}
	payload := make([]byte, length)
	copy(payload, data[2:2+length])
	rest = data[2+length:]

	switch code {
	case OptionDHCPMessageType:
		if length != 1 {
			return nil, nil, fmt.Errorf("option 53: expected 1 byte, got %d: %w", length, ErrWrongOptionShape)
		}
		mt := MessageType(payload[0])
		if !mt.Valid() {
			return nil, nil, fmt.Errorf("option 53 value %d: %w", payload[0], ErrUnrecognizedMessageType)
		}
		return rest, DHCPMessageType{mt}, nil

	case OptionServerIdentifier:
		ip, err := decodeIP(code, payload)
		if err != nil {
			return nil, nil, err
		}
		return rest, ServerIdentifier{ip}, nil

	case OptionParameterRequestList:
		codes := make([]OptionCode, length)
		for i, b := range payload {
			codes[i] = OptionCode(b)
		}
		return rest, ParameterRequestList{codes}, nil

	case OptionRequestedIP:
		ip, err := decodeIP(code, payload)
		if err != nil {
			return nil, nil, err
		}
		return rest, RequestedIPAddress{ip}, nil

	case OptionHostname:
		s, err := decodeText(code, payload)
		if err != nil {
			return nil, nil, err
		}
		return rest, HostName{s}, nil

	case OptionRouter:
		ips, err := decodeIPList(code, payload)
		if err != nil {
			return nil, nil, err
		}
		return rest, Router{ips}, nil

	case OptionDomainNameServer:
		ips, err := decodeIPList(code, payload)
		if err != nil {
			return nil, nil, err
		}
		return rest, DomainNameServer{ips}, nil

	case OptionIPLeaseTime:
		if length != 4 {
			return nil, nil, fmt.Errorf("option 51: expected 4 bytes, got %d: %w", length, ErrWrongOptionShape)
		}
		return rest, IPAddressLeaseTime{BytesToUint32(payload)}, nil

	case OptionSubnetMask:
		ip, err := decodeIP(code, payload)
		if err != nil {
			return nil, nil, err
		}
		return rest, SubnetMask{ip}, nil

	case OptionMessage:
		s, err := decodeText(code, payload)
		if err != nil {
			return nil, nil, err
		}
		return rest, Message{s}, nil

	default:
		return rest, RawOption{code, payload}, nil
	}
}

func decodeIP(code OptionCode, data []byte) (net.IP, error) {
	if len(data) != 4 {
		return nil, fmt.Errorf("option %d: expected 4 bytes for an address, got %d: %w", code, len(data), ErrWrongOptionShape)
	}
	return net.IPv4(data[0], data[1], data[2], data[3]), nil
}

func decodeIPList(code OptionCode, data []byte) ([]net.IP, error) {
	if len(data) == 0 || len(data)%4 != 0 {
		return nil, fmt.Errorf("option %d: address list length %d must be a positive multiple of 4: %w", code, len(data), ErrWrongOptionShape)
	}
	return bytesToIPList(data), nil
}

func decodeText(code OptionCode, data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", fmt.Errorf("option %d: %w", code, ErrNonUTF8String)
	}
	return string(data), nil
}

// Title returns a short human-readable label for a well-known option code,
// or ("", false) for codes outside the registry. Purely informational — it
// has no bearing on decode/encode behavior.
func Title(code OptionCode) (string, bool) {
	name, ok := optionTitles[code]
	return name, ok
}

var optionTitles = map[OptionCode]string{
	OptionSubnetMask:             "Subnet Mask",
	OptionTimeOffset:             "Time Offset",
	OptionRouter:                 "Router",
	OptionTimeServer:             "Time Server",
	OptionNameServer:             "Name Server",
	OptionDomainNameServer:       "Domain Name Server",
	OptionLogServer:              "Log Server",
	OptionCookieServer:           "Cookie Server",
	OptionLPRServer:              "LPR Server",
	OptionImpressServer:          "Impress Server",
	OptionResourceLocationServer: "Resource Location Server",
	OptionHostname:               "Host Name",
	OptionBootFileSize:           "Boot File Size",
	OptionMeritDumpFile:          "Merit Dump File",
	OptionDomainName:             "Domain Name",
	OptionSwapServer:             "Swap Server",
	OptionRootPath:               "Root Path",
	OptionExtensionsPath:         "Extensions Path",
	OptionIPForwarding:           "IP Forwarding",
	OptionNonLocalSourceRouting:  "Non-Local Source Routing",
	OptionPolicyFilter:           "Policy Filter",
	OptionMaxDatagramReassembly:  "Max Datagram Reassembly Size",
	OptionDefaultIPTTL:           "Default IP TTL",
	OptionPathMTUAgingTimeout:    "Path MTU Aging Timeout",
	OptionPathMTUPlateauTable:    "Path MTU Plateau Table",
	OptionInterfaceMTU:           "Interface MTU",
	OptionAllSubnetsLocal:        "All Subnets Local",
	OptionBroadcastAddress:       "Broadcast Address",
	OptionPerformMaskDiscovery:   "Perform Mask Discovery",
	OptionMaskSupplier:           "Mask Supplier",
	OptionPerformRouterDiscovery: "Perform Router Discovery",
	OptionRouterSolicitAddr:      "Router Solicitation Address",
	OptionStaticRoute:            "Static Route",
	OptionTrailerEncapsulation:   "Trailer Encapsulation",
	OptionARPCacheTimeout:        "ARP Cache Timeout",
	OptionEthernetEncapsulation:  "Ethernet Encapsulation",
	OptionTCPDefaultTTL:          "TCP Default TTL",
	OptionTCPKeepaliveInterval:   "TCP Keepalive Interval",
	OptionTCPKeepaliveGarbage:    "TCP Keepalive Garbage",
	OptionNISDomain:              "NIS Domain",
	OptionNISServers:             "NIS Servers",
	OptionNTPServers:             "NTP Servers",
	OptionVendorSpecific:         "Vendor Specific",
	OptionNetBIOSNameServer:      "NetBIOS Name Server",
	OptionNetBIOSDatagramDist:    "NetBIOS Datagram Distribution",
	OptionNetBIOSNodeType:        "NetBIOS Node Type",
	OptionNetBIOSScope:           "NetBIOS Scope",
	OptionXWindowFontServer:      "X Window Font Server",
	OptionXWindowDisplayManager:  "X Window Display Manager",
	OptionRequestedIP:            "Requested IP Address",
	OptionIPLeaseTime:            "IP Address Lease Time",
	OptionOverload:               "Overload",
	OptionDHCPMessageType:        "DHCP Message Type",
	OptionServerIdentifier:       "Server Identifier",
	OptionParameterRequestList:   "Parameter Request List",
	OptionMessage:                "Message",
	OptionMaxDHCPMessageSize:     "Max DHCP Message Size",
	OptionRenewalTime:            "Renewal Time (T1)",
	OptionRebindingTime:          "Rebinding Time (T2)",
	OptionVendorClassID:          "Vendor Class Identifier",
	OptionClientIdentifier:       "Client Identifier",
	OptionNetWareIPDomain:        "NetWare/IP Domain",
	OptionNetWareIPOption:        "NetWare/IP Option",
	OptionTFTPServerName:         "TFTP Server Name",
	OptionBootfileName:           "Bootfile Name",
	OptionUserClass:              "User Class",
	OptionClientFQDN:             "Client FQDN",
	OptionRelayAgentInfo:         "Relay Agent Information",
	OptionSubnetSelection:        "Subnet Selection",
	OptionClasslessStaticRoute:   "Classless Static Route",
	OptionVIVendorClass:          "Vendor-Identifying Vendor Class",
	OptionVIVendorSpecific:       "Vendor-Identifying Vendor Specific",
	OptionTFTPServerAddress:      "TFTP Server Address",
}
