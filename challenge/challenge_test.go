package challenge

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexpeattie/letsencrypt-fromscratch/acme/codec"
)

func TestHTTPPath(t *testing.T) {
	assert.Equal(t,
		"/.well-known/acme-challenge/evaGxfADs6pSRb2LAv9IZf17Dt3juxGJ",
		HTTPPath("evaGxfADs6pSRb2LAv9IZf17Dt3juxGJ"))
}

func TestDNSRecordName(t *testing.T) {
	assert.Equal(t, "_acme-challenge.example.com.", DNSRecordName("example.com"))
	// The wildcard label never appears in the record name.
	assert.Equal(t, "_acme-challenge.example.com.", DNSRecordName("*.example.com"))
	assert.Equal(t, "_acme-challenge.www.example.com.", DNSRecordName("www.example.com"))
}

func TestDNSRecordValue(t *testing.T) {
	// The TXT value is the digest of the key authorization, never the key
	// authorization itself. SHA-256("hello") is a well known vector.
	assert.Equal(t, "LPJNul-wow4m6DsqxbninhsWHlwfp0JecwQzYpOLmCQ", DNSRecordValue("hello"))

	digest := sha256.Sum256([]byte("tok.thumbprint"))
	assert.Equal(t, codec.Base64URL(digest[:]), DNSRecordValue("tok.thumbprint"))
}

func TestDNSRecord(t *testing.T) {
	record := DNSRecord("*.example.com", "tok.thumbprint")
	assert.Equal(t, "example.com", record.Domain)
	assert.Equal(t, "_acme-challenge.example.com.", record.Name)
	assert.Equal(t, DNSRecordValue("tok.thumbprint"), record.Value)
}

// startTXTServer runs a local authoritative DNS server answering TXT queries
// from the given name -> values map, returning its address.
func startTXTServer(t *testing.T, records map[string][]string) string {
	t.Helper()
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	mux := dns.NewServeMux()
	mux.HandleFunc(".", func(w dns.ResponseWriter, r *dns.Msg) {
		m := new(dns.Msg)
		m.SetReply(r)
		q := r.Question[0]
		values, found := records[q.Name]
		if !found {
			m.Rcode = dns.RcodeNameError
		} else if q.Qtype == dns.TypeTXT {
			for _, value := range values {
				m.Answer = append(m.Answer, &dns.TXT{
					Hdr: dns.RR_Header{
						Name:   q.Name,
						Rrtype: dns.TypeTXT,
						Class:  dns.ClassINET,
					},
					Txt: []string{value},
				})
			}
		}
		_ = w.WriteMsg(m)
	})

	server := &dns.Server{PacketConn: pc, Handler: mux}
	go func() { _ = server.ActivateAndServe() }()
	t.Cleanup(func() { _ = server.Shutdown() })
	return pc.LocalAddr().String()
}

func TestWaitForDNSPropagation(t *testing.T) {
	record := DNSRecord("example.com", "tok.thumbprint")
	ns := startTXTServer(t, map[string][]string{
		record.Name: {"unrelated-value", record.Value},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := WaitForDNSPropagation(ctx, record, []string{ns}, 10*time.Millisecond)
	assert.NoError(t, err)
}

func TestWaitForDNSPropagationTimeout(t *testing.T) {
	record := DNSRecord("example.com", "tok.thumbprint")
	// The resolver has never heard of the record.
	ns := startTXTServer(t, map[string][]string{})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err := WaitForDNSPropagation(ctx, record, []string{ns}, 10*time.Millisecond)
	assert.ErrorContains(t, err, "timed out")
}

func TestWaitForDNSPropagationRequiresAllResolvers(t *testing.T) {
	record := DNSRecord("example.com", "tok.thumbprint")
	answering := startTXTServer(t, map[string][]string{
		record.Name: {record.Value},
	})
	lagging := startTXTServer(t, map[string][]string{})

	// One resolver seeing the record is not propagation.
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err := WaitForDNSPropagation(ctx, record, []string{answering, lagging}, 10*time.Millisecond)
	assert.Error(t, err)
}

// freePort reserves and releases an ephemeral port for a server that can not
// bind :0 itself.
func freePort(t *testing.T, network string) string {
	t.Helper()
	if network == "udp" {
		pc, err := net.ListenPacket("udp", "127.0.0.1:0")
		require.NoError(t, err)
		addr := pc.LocalAddr().String()
		pc.Close()
		return addr
	}
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	l.Close()
	return addr
}

func TestEmbeddedResponder(t *testing.T) {
	httpAddr := freePort(t, "tcp")
	dnsAddr := freePort(t, "udp")

	responder, err := NewTestServer(httpAddr, dnsAddr)
	require.NoError(t, err)
	go responder.Run()
	t.Cleanup(responder.Shutdown)

	ctx := context.Background()
	require.NoError(t, responder.ProvisionHTTP(ctx, "tok-1", "tok-1.thumbprint"))
	record, err := responder.ProvisionDNS(ctx, "example.com", "tok-1.thumbprint")
	require.NoError(t, err)
	require.NoError(t, responder.WaitForDNSPropagation(ctx, record))

	challengeURL := fmt.Sprintf("http://%s%s", httpAddr, HTTPPath("tok-1"))
	body := waitForHTTPBody(t, challengeURL)
	assert.Equal(t, "tok-1.thumbprint", body, "the raw key authorization is served over http-01")

	// The embedded DNS server answers with the digest, not the raw key
	// authorization.
	values := waitForTXT(t, record.Name, dnsAddr)
	assert.Contains(t, values, record.Value)

	require.NoError(t, responder.TeardownHTTP(ctx, "tok-1"))
	require.NoError(t, responder.TeardownDNS(ctx, record))
	assert.NotEqual(t, "tok-1.thumbprint", waitForHTTPBody(t, challengeURL))
}

func waitForHTTPBody(t *testing.T, url string) string {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := http.Get(url)
		if err == nil {
			body, readErr := io.ReadAll(resp.Body)
			resp.Body.Close()
			require.NoError(t, readErr)
			return string(body)
		}
		if time.Now().After(deadline) {
			t.Fatalf("challenge server at %q never came up: %s", url, err)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func waitForTXT(t *testing.T, fqdn, nameserver string) []string {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		values, err := queryTXT(fqdn, nameserver)
		if err == nil {
			return values
		}
		if time.Now().After(deadline) {
			t.Fatalf("DNS challenge server at %q never came up: %s", nameserver, err)
		}
		time.Sleep(20 * time.Millisecond)
	}
}
