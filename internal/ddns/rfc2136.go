// Package ddns registers and retracts DNS records for bound leases using
// RFC 2136 DNS UPDATE, optionally signed with TSIG.
package ddns

import (
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/miekg/dns"

	"github.com/corvid-dhcpd/corvid-dhcpd/internal/metrics"
)

// Client performs RFC 2136 DNS UPDATE operations against a single server.
type Client struct {
	server   string
	tsigName string
	tsigAlgo string
	tsigKey  string
	timeout  time.Duration
	logger   *slog.Logger
}

// NewClient builds a Client. tsigName and tsigKey may be empty to send
// unsigned updates.
func NewClient(server, tsigName, tsigAlgo, tsigKey string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		server:   server,
		tsigName: tsigName,
		tsigAlgo: tsigAlgo,
		tsigKey:  tsigKey,
		timeout:  timeout,
		logger:   logger,
	}
}

// UpsertA replaces fqdn's A rrset with a single record pointing at ip.
func (c *Client) UpsertA(zone, fqdn string, ip net.IP, ttl uint32) error {
	msg := c.newUpdateMsg(zone)

	remove := &dns.A{Hdr: dns.RR_Header{Name: dns.Fqdn(fqdn), Rrtype: dns.TypeA, Class: dns.ClassANY}}
	msg.RemoveRRset([]dns.RR{remove})

	add := &dns.A{
		Hdr: dns.RR_Header{Name: dns.Fqdn(fqdn), Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: ttl},
		A:   ip.To4(),
	}
	msg.Insert([]dns.RR{add})

	return c.send(msg, "A", fqdn)
}

// RemoveA retracts fqdn's A rrset.
func (c *Client) RemoveA(zone, fqdn string) error {
	msg := c.newUpdateMsg(zone)
	remove := &dns.A{Hdr: dns.RR_Header{Name: dns.Fqdn(fqdn), Rrtype: dns.TypeA, Class: dns.ClassANY}}
	msg.RemoveRRset([]dns.RR{remove})
	return c.send(msg, "A", fqdn)
}

// UpsertPTR replaces the reverse record at reverseName (an in-addr.arpa
// name) with a single PTR pointing at fqdn.
func (c *Client) UpsertPTR(zone, reverseName, fqdn string, ttl uint32) error {
	msg := c.newUpdateMsg(zone)
	name := dns.Fqdn(reverseName)

	remove := &dns.PTR{Hdr: dns.RR_Header{Name: name, Rrtype: dns.TypePTR, Class: dns.ClassANY}}
	msg.RemoveRRset([]dns.RR{remove})

	add := &dns.PTR{
		Hdr: dns.RR_Header{Name: name, Rrtype: dns.TypePTR, Class: dns.ClassINET, Ttl: ttl},
		Ptr: dns.Fqdn(fqdn),
	}
	msg.Insert([]dns.RR{add})

	return c.send(msg, "PTR", reverseName)
}

// RemovePTR retracts the reverse record at reverseName.
func (c *Client) RemovePTR(zone, reverseName string) error {
	msg := c.newUpdateMsg(zone)
	name := dns.Fqdn(reverseName)
	remove := &dns.PTR{Hdr: dns.RR_Header{Name: name, Rrtype: dns.TypePTR, Class: dns.ClassANY}}
	msg.RemoveRRset([]dns.RR{remove})
	return c.send(msg, "PTR", reverseName)
}

func (c *Client) newUpdateMsg(zone string) *dns.Msg {
	msg := new(dns.Msg)
	msg.SetUpdate(dns.Fqdn(zone))
	return msg
}

func (c *Client) send(msg *dns.Msg, rrtype, name string) error {
	client := &dns.Client{Timeout: c.timeout, Net: "tcp"}

	if c.tsigName != "" && c.tsigKey != "" {
		msg.SetTsig(dns.Fqdn(c.tsigName), c.tsigAlgorithm(), 300, time.Now().Unix())
		client.TsigSecret = map[string]string{dns.Fqdn(c.tsigName): c.tsigKey}
	}

	resp, _, err := client.Exchange(msg, c.server)
	if err != nil {
		metrics.DDNSUpdates.WithLabelValues(rrtype, "error").Inc()
		c.logger.Error("DNS update failed", "rrtype", rrtype, "name", name, "server", c.server, "error", err)
		return fmt.Errorf("ddns: update %s %s: %w", rrtype, name, err)
	}
	if resp.Rcode != dns.RcodeSuccess {
		metrics.DDNSUpdates.WithLabelValues(rrtype, "rejected").Inc()
		c.logger.Error("DNS update rejected", "rrtype", rrtype, "name", name, "server", c.server, "rcode", dns.RcodeToString[resp.Rcode])
		return fmt.Errorf("ddns: update %s %s: server returned %s", rrtype, name, dns.RcodeToString[resp.Rcode])
	}

	metrics.DDNSUpdates.WithLabelValues(rrtype, "ok").Inc()
	c.logger.Debug("DNS update succeeded", "rrtype", rrtype, "name", name, "server", c.server)
	return nil
}

func (c *Client) tsigAlgorithm() string {
	switch c.tsigAlgo {
	case "hmac-sha512":
		return dns.HmacSHA512
	case "hmac-sha1":
		return dns.HmacSHA1
	default:
		return dns.HmacSHA256
	}
}
