package trust

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// DistributionPointResolver looks up a CSCA's CRL distribution point by
// querying a TXT record, for the case where the certificate's own
// cRLDistributionPoints extension is absent or unusable and the operator
// instead publishes the URL out of band via DNS, the same shape as the
// teacher's core.DNSResolverImpl.LookupTXT built on a direct miekg/dns
// exchange rather than the standard resolver.
type DistributionPointResolver struct {
	client  *dns.Client
	servers []string
}

// NewDistributionPointResolver builds a resolver that exchanges queries
// directly with one of servers, chosen at random per query the way
// ExchangeOne does.
func NewDistributionPointResolver(dialTimeout time.Duration, servers []string) *DistributionPointResolver {
	client := new(dns.Client)
	client.DialTimeout = dialTimeout
	return &DistributionPointResolver{client: client, servers: servers}
}

// ResolveDistributionPoint returns the single TXT record value published at
// name, which callers treat as a CRL URL. It fails if zero or more than one
// TXT record is found, since a distribution point fallback is only useful
// if it is unambiguous.
func (r *DistributionPointResolver) ResolveDistributionPoint(name string) (string, error) {
	if len(r.servers) < 1 {
		return "", fmt.Errorf("trust: dns resolver has no configured servers")
	}

	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(name), dns.TypeTXT)
	m.SetEdns0(4096, true)

	server := r.servers[rand.Intn(len(r.servers))]
	resp, _, err := r.client.Exchange(m, server)
	if err != nil {
		return "", fmt.Errorf("trust: resolving TXT record for %q: %w", name, err)
	}
	if resp.Rcode != dns.RcodeSuccess {
		return "", fmt.Errorf("trust: dns failure resolving %q: %s", name, dns.RcodeToString[resp.Rcode])
	}

	var values []string
	for _, answer := range resp.Answer {
		if txt, ok := answer.(*dns.TXT); ok {
			values = append(values, strings.Join(txt.Txt, ""))
		}
	}

	switch len(values) {
	case 0:
		return "", fmt.Errorf("trust: no TXT record found at %q", name)
	case 1:
		return values[0], nil
	default:
		return "", fmt.Errorf("trust: %d TXT records found at %q, want exactly one", len(values), name)
	}
}
