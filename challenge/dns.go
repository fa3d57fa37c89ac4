package challenge

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/miekg/dns"
	log "github.com/sirupsen/logrus"
)

const defaultResolvConf = "/etc/resolv.conf"

// The resolvers used for propagation checks when the system resolv.conf
// yields none.
var defaultNameservers = []string{
	"8.8.8.8:53",
	"8.8.4.4:53",
}

// dnsTimeout bounds a single DNS query during propagation checks.
var dnsTimeout = 10 * time.Second

// RecursiveNameservers attempts to get the system's nameservers before
// falling back to well-known public resolvers.
func RecursiveNameservers() []string {
	config, err := dns.ClientConfigFromFile(defaultResolvConf)
	if err != nil || len(config.Servers) == 0 {
		return defaultNameservers
	}

	var servers []string
	for _, server := range config.Servers {
		// ensure all servers have a port number
		if _, _, err := net.SplitHostPort(server); err != nil {
			servers = append(servers, net.JoinHostPort(server, "53"))
		} else {
			servers = append(servers, server)
		}
	}
	return servers
}

// WaitForDNSPropagation polls the given nameservers until each answers the
// record's name with a TXT value matching the record, re-querying every
// interval. A dns-01 validation attempted before the record is visible fails
// at the CA, so provisioners wait here before the client notifies the server.
func WaitForDNSPropagation(ctx context.Context, record Record, nameservers []string, interval time.Duration) error {
	if len(nameservers) == 0 {
		nameservers = RecursiveNameservers()
	}

	for {
		found, err := checkTXT(record, nameservers)
		if err != nil {
			log.Printf("DNS propagation check for %q failed: %s", record.Name, err)
		} else if found {
			log.Printf("TXT record %q visible at all %d resolvers", record.Name, len(nameservers))
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("timed out waiting for TXT record %q to propagate", record.Name)
		case <-time.After(interval):
		}
	}
}

// checkTXT queries each nameserver for the record and reports whether every
// one of them answered with the expected value.
func checkTXT(record Record, nameservers []string) (bool, error) {
	for _, ns := range nameservers {
		answer, err := queryTXT(record.Name, ns)
		if err != nil {
			return false, err
		}
		matched := false
		for _, value := range answer {
			if value == record.Value {
				matched = true
				break
			}
		}
		if !matched {
			return false, nil
		}
	}
	return true, nil
}

func queryTXT(fqdn, nameserver string) ([]string, error) {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(fqdn), dns.TypeTXT)
	m.SetEdns0(4096, false)
	m.RecursionDesired = true

	client := &dns.Client{Timeout: dnsTimeout}
	in, _, err := client.Exchange(m, nameserver)
	if err != nil {
		return nil, err
	}
	// NXDOMAIN is not an error here, just propagation that hasn't happened
	// yet.
	if in.Rcode != dns.RcodeSuccess && in.Rcode != dns.RcodeNameError {
		return nil, fmt.Errorf("%q returned DNS rcode %d for %q", nameserver, in.Rcode, fqdn)
	}

	var values []string
	for _, rr := range in.Answer {
		if txt, ok := rr.(*dns.TXT); ok {
			values = append(values, txt.Txt...)
		}
	}
	return values, nil
}
