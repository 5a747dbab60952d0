package ddns

import (
	"net"
	"testing"
	"time"

	"github.com/miekg/dns"
)

// acceptAllHandler replies success to any DNS UPDATE it receives, recording
// the last message seen so the test can inspect what was sent.
type acceptAllHandler struct {
	lastMsg *dns.Msg
	rcode   int
}

func (h *acceptAllHandler) ServeDNS(w dns.ResponseWriter, r *dns.Msg) {
	h.lastMsg = r
	resp := new(dns.Msg)
	resp.SetReply(r)
	resp.Rcode = h.rcode
	w.WriteMsg(resp)
}

// startTestDNSServer listens on TCP, matching Client.send's hard-coded
// "tcp" transport for DNS UPDATE delivery.
func startTestDNSServer(t *testing.T, rcode int) (addr string, h *acceptAllHandler) {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	h = &acceptAllHandler{rcode: rcode}
	srv := &dns.Server{Listener: ln, Handler: h}
	go srv.ActivateAndServe()
	t.Cleanup(func() { srv.Shutdown() })
	return ln.Addr().String(), h
}

func TestUpsertASuccess(t *testing.T) {
	addr, h := startTestDNSServer(t, dns.RcodeSuccess)
	c := NewClient(addr, "", "", "", time.Second, nil)

	if err := c.UpsertA("example.test.", "host1.example.test.", net.IPv4(10, 0, 0, 5), 3600); err != nil {
		t.Fatalf("UpsertA: %v", err)
	}
	if h.lastMsg == nil {
		t.Fatal("server never received the update")
	}
}

func TestUpsertARejected(t *testing.T) {
	addr, _ := startTestDNSServer(t, dns.RcodeRefused)
	c := NewClient(addr, "", "", "", time.Second, nil)

	if err := c.UpsertA("example.test.", "host1.example.test.", net.IPv4(10, 0, 0, 5), 3600); err == nil {
		t.Fatal("expected an error when the server rejects the update")
	}
}

func TestRemovePTRSuccess(t *testing.T) {
	addr, h := startTestDNSServer(t, dns.RcodeSuccess)
	c := NewClient(addr, "", "", "", time.Second, nil)

	if err := c.RemovePTR("2.0.10.in-addr.arpa.", "5.2.0.10.in-addr.arpa."); err != nil {
		t.Fatalf("RemovePTR: %v", err)
	}
	if h.lastMsg == nil {
		t.Fatal("server never received the update")
	}
}

func TestUnreachableServerReturnsError(t *testing.T) {
	c := NewClient("127.0.0.1:1", "", "", "", 200*time.Millisecond, nil)
	if err := c.UpsertA("example.test.", "host1.example.test.", net.IPv4(10, 0, 0, 5), 3600); err == nil {
		t.Fatal("expected an error for an unreachable DNS server")
	}
}
