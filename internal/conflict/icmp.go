// Package conflict implements the pre-ACK address-liveness probe: before a
// lease is bound, the server asks whether the candidate address already
// answers on the wire.
package conflict

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"

	"github.com/corvid-dhcpd/corvid-dhcpd/internal/metrics"
)

// Prober sends ICMP Echo Requests to detect whether a candidate lease
// address is already in use (RFC 792). The socket is opened once and shared
// across probes; Probe is safe for concurrent use.
type Prober struct {
	conn      *icmp.PacketConn
	logger    *slog.Logger
	available bool
	mu        sync.Mutex
	seq       uint16
}

// NewProber opens the raw ICMP socket. If opening it fails — typically for
// lack of CAP_NET_RAW — it returns a Prober that always reports "clear"
// rather than failing lease acknowledgement outright.
func NewProber(logger *slog.Logger) (*Prober, error) {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Prober{logger: logger}

	conn, err := icmp.ListenPacket("ip4:icmp", "0.0.0.0")
	if err != nil {
		logger.Warn("ICMP conflict probing disabled: could not open raw socket",
			"error", err, "hint", "grant CAP_NET_RAW or run as root")
		return p, nil
	}

	p.conn = conn
	p.available = true
	return p, nil
}

// Available reports whether the probe has a working socket.
func (p *Prober) Available() bool {
	return p.available
}

// Close releases the ICMP socket.
func (p *Prober) Close() error {
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// Probe sends an Echo Request to target and reports whether a reply arrived
// before ctx's deadline. A reply means the address is already live and the
// candidate lease should not be handed out.
func (p *Prober) Probe(ctx context.Context, target net.IP) (bool, error) {
	if !p.available {
		return false, nil
	}
	metrics.ConflictProbesSent.Inc()

	p.mu.Lock()
	p.seq++
	seq := p.seq
	p.mu.Unlock()

	msg := &icmp.Message{
		Type: ipv4.ICMPTypeEcho,
		Code: 0,
		Body: &icmp.Echo{
			ID:   os.Getpid() & 0xffff,
			Seq:  int(seq),
			Data: []byte("corvid-dhcpd-conflict-probe"),
		},
	}
	wire, err := msg.Marshal(nil)
	if err != nil {
		return false, fmt.Errorf("conflict: marshalling echo request: %w", err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		if err := p.conn.SetDeadline(deadline); err != nil {
			return false, fmt.Errorf("conflict: setting probe deadline: %w", err)
		}
	}

	if _, err := p.conn.WriteTo(wire, &net.IPAddr{IP: target}); err != nil {
		return false, fmt.Errorf("conflict: sending echo to %s: %w", target, err)
	}

	buf := make([]byte, 1500)
	for {
		select {
		case <-ctx.Done():
			p.logger.Debug("conflict probe clear (timeout)", "target", target.String())
			return false, nil
		default:
		}

		n, peer, err := p.conn.ReadFrom(buf)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				p.logger.Debug("conflict probe clear (timeout)", "target", target.String())
				return false, nil
			}
			return false, fmt.Errorf("conflict: reading echo reply: %w", err)
		}

		reply, err := icmp.ParseMessage(1, buf[:n])
		if err != nil || reply.Type != ipv4.ICMPTypeEchoReply {
			continue
		}
		echo, ok := reply.Body.(*icmp.Echo)
		if !ok || echo.ID != os.Getpid()&0xffff || echo.Seq != int(seq) {
			continue
		}

		p.logger.Debug("conflict detected", "target", target.String(), "responder", peer.String())
		metrics.ConflictsDetected.Inc()
		return true, nil
	}
}
