package trust

import (
	"net"
	"testing"
	"time"

	"github.com/miekg/dns"
)

func startTestDNSServer(t *testing.T, txt map[string][]string) (addr string, shutdown func()) {
	t.Helper()

	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listening for test dns server: %v", err)
	}

	mux := dns.NewServeMux()
	mux.HandleFunc(".", func(w dns.ResponseWriter, r *dns.Msg) {
		m := new(dns.Msg)
		m.SetReply(r)
		if len(r.Question) == 1 {
			q := r.Question[0]
			if values, ok := txt[q.Name]; ok && q.Qtype == dns.TypeTXT {
				m.Answer = append(m.Answer, &dns.TXT{
					Hdr: dns.RR_Header{Name: q.Name, Rrtype: dns.TypeTXT, Class: dns.ClassINET},
					Txt: values,
				})
			}
		}
		_ = w.WriteMsg(m)
	})

	srv := &dns.Server{PacketConn: conn, Handler: mux}
	go srv.ActivateAndServe()

	return conn.LocalAddr().String(), func() { srv.Shutdown() }
}

func TestResolveDistributionPointReturnsSingleRecord(t *testing.T) {
	addr, shutdown := startTestDNSServer(t, map[string][]string{
		"crl.example.org.": {"http://crl.example.org/csca.crl"},
	})
	defer shutdown()

	r := NewDistributionPointResolver(time.Second, []string{addr})
	url, err := r.ResolveDistributionPoint("crl.example.org")
	if err != nil {
		t.Fatalf("ResolveDistributionPoint: %v", err)
	}
	if url != "http://crl.example.org/csca.crl" {
		t.Errorf("got %q, want %q", url, "http://crl.example.org/csca.crl")
	}
}

func TestResolveDistributionPointFailsOnNoRecords(t *testing.T) {
	addr, shutdown := startTestDNSServer(t, map[string][]string{})
	defer shutdown()

	r := NewDistributionPointResolver(time.Second, []string{addr})
	if _, err := r.ResolveDistributionPoint("nothing.example.org"); err == nil {
		t.Fatal("expected error for host with no TXT records, got nil")
	}
}

func TestResolveDistributionPointFailsOnMultipleRecords(t *testing.T) {
	addr, shutdown := startTestDNSServer(t, map[string][]string{
		"ambiguous.example.org.": {"http://one.example.org/a.crl", "http://two.example.org/b.crl"},
	})
	defer shutdown()

	r := NewDistributionPointResolver(time.Second, []string{addr})
	if _, err := r.ResolveDistributionPoint("ambiguous.example.org"); err == nil {
		t.Fatal("expected error for host with multiple TXT records, got nil")
	}
}

func TestResolveDistributionPointFailsWithNoServers(t *testing.T) {
	r := NewDistributionPointResolver(time.Second, nil)
	if _, err := r.ResolveDistributionPoint("crl.example.org"); err == nil {
		t.Fatal("expected error with no configured servers, got nil")
	}
}
