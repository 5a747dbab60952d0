package dhcpserver

import "github.com/corvid-dhcpd/corvid-dhcpd/pkg/dhcpv4"

// administrativeCodes are always appended after the client's Parameter
// Request List is satisfied, in this fixed order.
var administrativeCodes = []dhcpv4.OptionCode{
	dhcpv4.OptionDHCPMessageType,
	dhcpv4.OptionServerIdentifier,
	dhcpv4.OptionSubnetMask,
	dhcpv4.OptionIPLeaseTime,
	dhcpv4.OptionDomainNameServer,
	dhcpv4.OptionRouter,
}

// FilterOptionsByReq reorders opts so that options matching requested
// codes come first, in the client's declared order (one per code, first
// match only), followed by the always-included administrative codes in
// their fixed order. Options matched by neither list are dropped — the
// result is implicitly truncated after the last option placed. Stable for
// codes that appear at most once in opts; if a code appears twice, only
// the first instance is promoted and the later ones are dropped.
func FilterOptionsByReq(opts []dhcpv4.Option, requested []dhcpv4.OptionCode) []dhcpv4.Option {
	used := make([]bool, len(opts))
	placed := make(map[dhcpv4.OptionCode]bool)
	result := make([]dhcpv4.Option, 0, len(opts))

	take := func(code dhcpv4.OptionCode) {
		if placed[code] {
			return
		}
		placed[code] = true
		for i, o := range opts {
			if used[i] || o.Code() != code {
				continue
			}
			result = append(result, o)
			used[i] = true
			return
		}
	}

	for _, code := range requested {
		take(code)
	}
	for _, code := range administrativeCodes {
		take(code)
	}
	return result
}
