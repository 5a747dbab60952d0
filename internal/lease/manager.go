package lease

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/corvid-dhcpd/corvid-dhcpd/internal/conflict"
	"github.com/corvid-dhcpd/corvid-dhcpd/internal/ddns"
	"github.com/corvid-dhcpd/corvid-dhcpd/internal/metrics"
	"github.com/corvid-dhcpd/corvid-dhcpd/internal/radius"
	"github.com/corvid-dhcpd/corvid-dhcpd/pkg/dhcpserver"
	"github.com/corvid-dhcpd/corvid-dhcpd/pkg/dhcpv4"
)

// Subnet describes one address range the Manager can allocate from.
type Subnet struct {
	Network   *net.IPNet
	Routers   []net.IP
	DNS       []net.IP
	LeaseTime time.Duration
	PoolStart net.IP
	PoolEnd   net.IP
}

func (sn Subnet) contains(ip net.IP) bool {
	if ip == nil {
		return false
	}
	start := ipToUint32(sn.PoolStart)
	end := ipToUint32(sn.PoolEnd)
	v := ipToUint32(ip)
	return v >= start && v <= end
}

// Manager is the reference lease-allocating dhcpserver.Handler: it runs the
// DORA cycle (Discover/Offer/Request/Ack-or-Nak) plus Release and Decline,
// against a bbolt-backed Store. RADIUS authorization, ICMP conflict
// probing, and dynamic DNS registration are each optional and nil-safe —
// omitting them degrades gracefully rather than failing requests.
type Manager struct {
	store    *Store
	subnets  []Subnet
	logger   *slog.Logger
	prober   *conflict.Prober
	radius   *radius.Client
	ddns     *ddns.Client
	fwdZone  string
	revZone  string
	probeDur time.Duration
}

// NewManager builds a Manager. prober, radiusClient, and ddnsClient may all
// be nil to disable the corresponding integration.
func NewManager(store *Store, subnets []Subnet, logger *slog.Logger,
	prober *conflict.Prober, radiusClient *radius.Client, ddnsClient *ddns.Client,
	forwardZone, reverseZone string, probeTimeout time.Duration) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if probeTimeout <= 0 {
		probeTimeout = 500 * time.Millisecond
	}
	return &Manager{
		store:    store,
		subnets:  subnets,
		logger:   logger,
		prober:   prober,
		radius:   radiusClient,
		ddns:     ddnsClient,
		fwdZone:  forwardZone,
		revZone:  reverseZone,
		probeDur: probeTimeout,
	}
}

// HandleRequest implements dhcpserver.Handler.
func (m *Manager) HandleRequest(s *dhcpserver.Server, req *dhcpv4.Packet) {
	mt, err := req.MessageType()
	if err != nil {
		return
	}
	metrics.PacketsReceived.WithLabelValues(mt.String()).Inc()

	mac := net.HardwareAddr(req.CHAddr[:])
	switch mt {
	case dhcpv4.MessageTypeDiscover:
		m.handleDiscover(s, req, mac)
	case dhcpv4.MessageTypeRequest:
		m.handleRequestMsg(s, req, mac)
	case dhcpv4.MessageTypeRelease, dhcpv4.MessageTypeDecline:
		m.handleRelinquish(req, mac)
	}
}

func (m *Manager) subnetFor(req *dhcpv4.Packet) (Subnet, bool) {
	if len(m.subnets) == 0 {
		return Subnet{}, false
	}
	if req.GIAddr != nil && !req.GIAddr.Equal(dhcpv4.ZeroIP) {
		for _, sn := range m.subnets {
			if sn.Network.Contains(req.GIAddr) {
				return sn, true
			}
		}
	}
	return m.subnets[0], true
}

func (m *Manager) handleDiscover(s *dhcpserver.Server, req *dhcpv4.Packet, mac net.HardwareAddr) {
	sn, ok := m.subnetFor(req)
	if !ok {
		return
	}

	if !m.authorize(mac) {
		m.logger.Info("RADIUS rejected client, withholding offer", "mac", mac.String())
		return
	}

	ip := m.pickAddress(sn, mac)
	if ip == nil {
		metrics.PoolExhausted.WithLabelValues(sn.Network.String()).Inc()
		m.logger.Warn("pool exhausted", "subnet", sn.Network.String(), "mac", mac.String())
		return
	}

	now := time.Now()
	l := &Lease{
		IP:          ip,
		MAC:         mac,
		Subnet:      sn.Network.String(),
		State:       StateOffered,
		Start:       now,
		Expiry:      now.Add(sn.LeaseTime),
		LastUpdated: now,
	}
	if err := m.store.Put(l); err != nil {
		m.logger.Error("failed to record offer", "ip", ip.String(), "error", err)
		return
	}
	metrics.LeaseOperations.WithLabelValues("offer").Inc()

	if _, err := s.Reply(dhcpv4.MessageTypeOffer, m.offerOptions(sn), ip, req); err != nil {
		m.logger.Error("failed to send offer", "error", err)
		return
	}
	metrics.PacketsSent.WithLabelValues(dhcpv4.MessageTypeOffer.String()).Inc()
}

func (m *Manager) handleRequestMsg(s *dhcpserver.Server, req *dhcpv4.Packet, mac net.HardwareAddr) {
	if _, ok := req.Option(dhcpv4.OptionServerIdentifier); ok && !s.ForThisServer(req) {
		return
	}

	sn, ok := m.subnetFor(req)
	if !ok {
		return
	}

	requested := requestedIP(req)
	if requested == nil {
		m.nak(s, req, "missing requested address")
		return
	}

	if !m.authorize(mac) {
		m.nak(s, req, "not authorized")
		return
	}

	existing := m.store.GetByIP(requested)
	if existing != nil && existing.MAC.String() != mac.String() && !existing.IsExpired() {
		m.nak(s, req, "address in use by another client")
		return
	}
	if !sn.contains(requested) {
		m.nak(s, req, "address outside configured pool")
		return
	}

	if (existing == nil || existing.IsExpired()) && m.conflicts(requested) {
		m.nak(s, req, "address already in use on the network")
		return
	}

	now := time.Now()
	l := &Lease{
		IP:          requested,
		MAC:         mac,
		Subnet:      sn.Network.String(),
		State:       StateBound,
		Start:       now,
		Expiry:      now.Add(sn.LeaseTime),
		LastUpdated: now,
	}
	if hostOpt, ok := req.Option(dhcpv4.OptionHostname); ok {
		if hn, ok := hostOpt.(dhcpv4.HostName); ok {
			l.Hostname = hn.Name
		}
	}
	if err := m.store.Put(l); err != nil {
		m.logger.Error("failed to record binding", "ip", requested.String(), "error", err)
		m.nak(s, req, "internal error")
		return
	}
	metrics.LeaseOperations.WithLabelValues("ack").Inc()

	if _, err := s.Reply(dhcpv4.MessageTypeAck, m.offerOptions(sn), requested, req); err != nil {
		m.logger.Error("failed to send ack", "error", err)
		return
	}
	metrics.PacketsSent.WithLabelValues(dhcpv4.MessageTypeAck.String()).Inc()

	m.registerDNS(l)
}

func (m *Manager) handleRelinquish(req *dhcpv4.Packet, mac net.HardwareAddr) {
	l := m.store.GetByMAC(mac)
	if l == nil {
		return
	}
	if err := m.store.Delete(l.IP); err != nil {
		m.logger.Error("failed to release lease", "ip", l.IP.String(), "error", err)
		return
	}
	metrics.LeaseOperations.WithLabelValues("release").Inc()
	m.retractDNS(l)
}

func (m *Manager) nak(s *dhcpserver.Server, req *dhcpv4.Packet, reason string) {
	opts := []dhcpv4.Option{dhcpv4.Message{Text: reason}}
	if _, err := s.Reply(dhcpv4.MessageTypeNak, opts, dhcpv4.ZeroIP, req); err != nil {
		m.logger.Error("failed to send nak", "error", err)
		return
	}
	metrics.PacketsSent.WithLabelValues(dhcpv4.MessageTypeNak.String()).Inc()
}

func (m *Manager) offerOptions(sn Subnet) []dhcpv4.Option {
	opts := []dhcpv4.Option{
		dhcpv4.IPAddressLeaseTime{Seconds: uint32(sn.LeaseTime.Seconds())},
		dhcpv4.SubnetMask{Mask: net.IP(sn.Network.Mask)},
	}
	if len(sn.Routers) > 0 {
		opts = append(opts, dhcpv4.Router{IPs: sn.Routers})
	}
	if len(sn.DNS) > 0 {
		opts = append(opts, dhcpv4.DomainNameServer{IPs: sn.DNS})
	}
	return opts
}

// pickAddress reuses a client's current lease if it still has one, otherwise
// walks the pool for the first free, non-conflicting address.
func (m *Manager) pickAddress(sn Subnet, mac net.HardwareAddr) net.IP {
	if existing := m.store.GetByMAC(mac); existing != nil && sn.contains(existing.IP) && !existing.IsExpired() {
		return existing.IP
	}

	start := ipToUint32(sn.PoolStart)
	end := ipToUint32(sn.PoolEnd)
	for v := start; v <= end; v++ {
		candidate := uint32ToIP(v)
		if l := m.store.GetByIP(candidate); l != nil && !l.IsExpired() {
			continue
		}
		if m.conflicts(candidate) {
			continue
		}
		return candidate
	}
	return nil
}

func (m *Manager) conflicts(ip net.IP) bool {
	if m.prober == nil || !m.prober.Available() {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), m.probeDur)
	defer cancel()
	found, err := m.prober.Probe(ctx, ip)
	if err != nil {
		m.logger.Warn("conflict probe error", "ip", ip.String(), "error", err)
		return false
	}
	return found
}

func (m *Manager) authorize(mac net.HardwareAddr) bool {
	if m.radius == nil {
		return true
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	ok, err := m.radius.Authorize(ctx, mac)
	if err != nil {
		metrics.RADIUSChecks.WithLabelValues("error").Inc()
		m.logger.Warn("RADIUS authorization error, failing open", "mac", mac.String(), "error", err)
		return true
	}
	metrics.RADIUSChecks.WithLabelValues(map[bool]string{true: "accept", false: "reject"}[ok]).Inc()
	return ok
}

func (m *Manager) registerDNS(l *Lease) {
	if m.ddns == nil || l.Hostname == "" {
		return
	}
	fqdn := fmt.Sprintf("%s.%s", l.Hostname, m.fwdZone)
	ttl := uint32(3600)
	if err := m.ddns.UpsertA(m.fwdZone, fqdn, l.IP, ttl); err != nil {
		m.logger.Warn("DDNS forward registration failed", "fqdn", fqdn, "error", err)
	}
	if m.revZone != "" {
		if err := m.ddns.UpsertPTR(m.revZone, reverseName(l.IP), fqdn, ttl); err != nil {
			m.logger.Warn("DDNS reverse registration failed", "fqdn", fqdn, "error", err)
		}
	}
}

func (m *Manager) retractDNS(l *Lease) {
	if m.ddns == nil || l.Hostname == "" {
		return
	}
	fqdn := fmt.Sprintf("%s.%s", l.Hostname, m.fwdZone)
	if err := m.ddns.RemoveA(m.fwdZone, fqdn); err != nil {
		m.logger.Warn("DDNS forward retraction failed", "fqdn", fqdn, "error", err)
	}
	if m.revZone != "" {
		if err := m.ddns.RemovePTR(m.revZone, reverseName(l.IP)); err != nil {
			m.logger.Warn("DDNS reverse retraction failed", "fqdn", fqdn, "error", err)
		}
	}
}

func requestedIP(req *dhcpv4.Packet) net.IP {
	if opt, ok := req.Option(dhcpv4.OptionRequestedIP); ok {
		if r, ok := opt.(dhcpv4.RequestedIPAddress); ok {
			return r.IP
		}
	}
	if req.CIAddr != nil && !req.CIAddr.Equal(dhcpv4.ZeroIP) {
		return req.CIAddr
	}
	return nil
}

func reverseName(ip net.IP) string {
	v4 := ip.To4()
	return fmt.Sprintf("%d.%d.%d.%d.in-addr.arpa.", v4[3], v4[2], v4[1], v4[0])
}

func ipToUint32(ip net.IP) uint32 {
	v4 := ip.To4()
	return uint32(v4[0])<<24 | uint32(v4[1])<<16 | uint32(v4[2])<<8 | uint32(v4[3])
}

func uint32ToIP(v uint32) net.IP {
	return net.IPv4(byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}
