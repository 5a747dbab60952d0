// Package dhcpserver implements the DHCPv4 server runtime: a UDP receive
// loop that decodes each datagram, hands it to a pluggable Handler, and
// gives the handler everything it needs to shape and send a reply (RFC
// 2131 §4). Lease storage, persistence, and address-pool arithmetic are
// policy that belongs in the Handler, not in this package.
package dhcpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"syscall"

	"github.com/corvid-dhcpd/corvid-dhcpd/pkg/dhcpv4"
)

// soBindToDevice pins a socket to a specific interface (Linux only,
// SO_BINDTODEVICE == 25). On non-Linux platforms the setsockopt call fails
// harmlessly and is logged at debug level.
const soBindToDevice = 25

// Handler processes one decoded request per invocation. It is owned by the
// Server for the loop's lifetime; there is no provision for hot-swapping
// handlers. Implementations that want concurrent dispatch must not share a
// Server's scratch buffer across goroutines — see the package doc on
// Server.
type Handler interface {
	HandleRequest(s *Server, req *dhcpv4.Packet)
}

// Server owns a bound UDP socket, the server's and broadcast's configured
// IPv4 addresses, a reusable output scratch buffer, and the source address
// of the most recently received datagram. The receive-dispatch loop is
// single-threaded and blocking: Serve never returns while the handler is
// running, so reply construction never races the next ReadFromUDP, and the
// scratch buffer needs no synchronization. An embedder that wants
// concurrent handler dispatch must give each goroutine its own Server (or
// at least its own scratch buffer).
type Server struct {
	conn        *net.UDPConn
	serverIP    net.IP
	broadcastIP net.IP
	handler     Handler
	logger      *slog.Logger

	scratch  []byte
	lastAddr *net.UDPAddr
}

// NewServer wraps an already-bound UDP socket. Use Listen to obtain one
// with the interface-binding and broadcast socket options this package's
// reference deployment relies on, or bind your own and pass it here.
func NewServer(conn *net.UDPConn, serverIP, broadcastIP net.IP, handler Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		conn:        conn,
		serverIP:    serverIP,
		broadcastIP: broadcastIP,
		handler:     handler,
		logger:      logger,
		scratch:     make([]byte, dhcpv4.MaxPacketSize),
	}
}

// Listen binds a UDP4 socket for DHCP traffic, setting SO_REUSEADDR (so
// multiple interface-pinned listeners can coexist) and SO_BROADCAST (so
// Send can target 255.255.255.255). If iface is non-empty it also attempts
// SO_BINDTODEVICE, matching a server-group pattern of one socket per
// listening interface; failure to bind to a device is logged, not fatal,
// since it is expected on non-Linux platforms.
func Listen(ctx context.Context, addr, iface string, logger *slog.Logger) (*net.UDPConn, error) {
	if logger == nil {
		logger = slog.Default()
	}
	lc := net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			var firstErr error
			c.Control(func(fd uintptr) {
				if err := syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_REUSEADDR, 1); err != nil {
					logger.Warn("failed to set SO_REUSEADDR", "error", err)
				}
				if err := syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_BROADCAST, 1); err != nil {
					logger.Warn("failed to set SO_BROADCAST", "error", err)
					firstErr = err
				}
				if iface != "" {
					if err := syscall.SetsockoptString(int(fd), syscall.SOL_SOCKET, soBindToDevice, iface); err != nil {
						logger.Debug("SO_BINDTODEVICE not available (non-Linux?)", "interface", iface, "error", err)
					} else {
						logger.Info("socket bound to interface", "interface", iface)
					}
				}
			})
			return firstErr
		},
	}

	pc, err := lc.ListenPacket(ctx, "udp4", addr)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", addr, err)
	}
	return pc.(*net.UDPConn), nil
}

// Serve is the blocking receive-dispatch loop. It receives a datagram,
// decodes it, and — on success — records the source address and invokes
// the handler synchronously before looping again. A decode failure drops
// the datagram silently and continues; a receive error is returned as
// Serve's terminal result.
func (s *Server) Serve(ctx context.Context) error {
	buf := make([]byte, dhcpv4.MaxDatagramSize)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		n, src, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			return fmt.Errorf("reading UDP packet: %w", err)
		}

		pkt, err := dhcpv4.Decode(buf[:n])
		if err != nil {
			s.logger.Debug("dropping malformed packet", "error", err, "src", src.String(), "size", n)
			continue
		}

		s.lastAddr = src
		s.handler.HandleRequest(s, pkt)
	}
}

// ForThisServer reports whether req carries a ServerIdentifier option
// equal to this server's configured address. A strict embedder treats
// "not for this server" as a reason to skip the request entirely.
func (s *Server) ForThisServer(req *dhcpv4.Packet) bool {
	opt, ok := req.Option(dhcpv4.OptionServerIdentifier)
	if !ok {
		return false
	}
	sid, ok := opt.(dhcpv4.ServerIdentifier)
	if !ok {
		return false
	}
	return sid.IP.Equal(s.serverIP)
}

// Reply builds and sends a response to req. ciaddr is zeroed for Nak,
// otherwise copied from the request; yiaddr is offerIP; siaddr is zero;
// giaddr, chaddr, xid, and the broadcast flag are copied from req. The
// option list starts with DHCPMessageType(msgType), then
// ServerIdentifier(serverIP), then additional in order; if req carries a
// Parameter Request List, the combined list is reordered and truncated by
// FilterOptionsByReq before sending.
func (s *Server) Reply(msgType dhcpv4.MessageType, additional []dhcpv4.Option, offerIP net.IP, req *dhcpv4.Packet) (int, error) {
	ciaddr := req.CIAddr
	if msgType == dhcpv4.MessageTypeNak {
		ciaddr = dhcpv4.ZeroIP
	}

	opts := make([]dhcpv4.Option, 0, 2+len(additional))
	opts = append(opts, dhcpv4.DHCPMessageType{Type: msgType}, dhcpv4.ServerIdentifier{IP: s.serverIP})
	opts = append(opts, additional...)

	if prlOpt, ok := req.Option(dhcpv4.OptionParameterRequestList); ok {
		if prl, ok := prlOpt.(dhcpv4.ParameterRequestList); ok {
			opts = FilterOptionsByReq(opts, prl.Codes)
		}
	}

	reply := &dhcpv4.Packet{
		Reply:     true,
		Hops:      0,
		XID:       req.XID,
		Secs:      0,
		Broadcast: req.Broadcast,
		CIAddr:    ciaddr,
		YIAddr:    offerIP,
		SIAddr:    dhcpv4.ZeroIP,
		GIAddr:    req.GIAddr,
		CHAddr:    req.CHAddr,
		Options:   opts,
	}

	return s.Send(reply)
}

// Send encodes p into the server's scratch buffer and sends it to the
// destination implied by the most recently received datagram: the
// broadcast address whenever p.Broadcast is set or the recorded source IP
// is 0.0.0.0, otherwise the recorded source IP; the source port is always
// preserved.
func (s *Server) Send(p *dhcpv4.Packet) (int, error) {
	if s.lastAddr == nil {
		return 0, fmt.Errorf("dhcpserver: Send called before any datagram was received")
	}

	encoded := p.Encode(s.scratch)
	dst := destinationFor(p.Broadcast, s.lastAddr, s.broadcastIP)

	n, err := s.conn.WriteToUDP(encoded, dst)
	if err != nil {
		return n, fmt.Errorf("sending to %s: %w", dst, err)
	}
	return n, nil
}

// destinationFor picks the reply's destination: broadcastIP whenever the
// reply is flagged broadcast or the recorded source had no usable address
// (0.0.0.0, as during Discover before a client has an IP), otherwise the
// recorded source IP. The source port is always preserved.
func destinationFor(broadcast bool, lastAddr *net.UDPAddr, broadcastIP net.IP) *net.UDPAddr {
	dst := &net.UDPAddr{IP: lastAddr.IP, Port: lastAddr.Port}
	if broadcast || lastAddr.IP.Equal(net.IPv4zero) {
		dst.IP = broadcastIP
	}
	return dst
}

// Close releases the underlying socket.
func (s *Server) Close() error {
	return s.conn.Close()
}
