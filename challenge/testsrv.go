package challenge

import (
	"context"
	"fmt"
	stdlog "log"
	"os"

	"github.com/letsencrypt/challtestsrv"
	log "github.com/sirupsen/logrus"
)

// TestServer is a Provisioner backed by an embedded
// github.com/letsencrypt/challtestsrv instance: an in-process HTTP server
// answering http-01 requests and an in-process DNS server answering dns-01
// TXT queries. It's meant for development against Pebble or another local
// ACME server that can be pointed at the test server's ports.
type TestServer struct {
	srv *challtestsrv.ChallSrv
}

// NewTestServer creates a TestServer listening on the given HTTP and DNS
// addresses (e.g. ":5002" and ":8053"). Run must be called before the server
// answers anything.
func NewTestServer(httpAddr, dnsAddr string) (*TestServer, error) {
	srv, err := challtestsrv.New(challtestsrv.Config{
		HTTPOneAddrs: []string{httpAddr},
		DNSOneAddrs:  []string{dnsAddr},
		Log:          stdlog.New(os.Stdout, "challRespSrv: ", stdlog.Ldate|stdlog.Ltime),
	})
	if err != nil {
		return nil, fmt.Errorf("unable to create challenge test server: %s", err)
	}
	return &TestServer{srv: srv}, nil
}

// Run starts the embedded challenge servers. It blocks; run it in
// a goroutine.
func (t *TestServer) Run() {
	t.srv.Run()
}

// Shutdown stops the embedded challenge servers.
func (t *TestServer) Shutdown() {
	t.srv.Shutdown()
}

// ProvisionHTTP registers the key authorization as the response body for the
// token's well-known path.
func (t *TestServer) ProvisionHTTP(_ context.Context, token, keyAuth string) error {
	t.srv.AddHTTPOneChallenge(token, keyAuth)
	log.Printf("Serving http-01 response at %q", HTTPPath(token))
	return nil
}

// TeardownHTTP removes the token's http-01 response.
func (t *TestServer) TeardownHTTP(_ context.Context, token string) error {
	t.srv.DeleteHTTPOneChallenge(token)
	return nil
}

// ProvisionDNS registers the dns-01 response for the domain. challtestsrv
// stores the raw key authorization and serves its SHA-256 digest in TXT
// answers, so the digest in the returned Record is what queries will see.
func (t *TestServer) ProvisionDNS(_ context.Context, domain, keyAuth string) (Record, error) {
	record := DNSRecord(domain, keyAuth)
	t.srv.AddDNSOneChallenge(record.Domain, keyAuth)
	log.Printf("Serving dns-01 TXT record %q", record.Name)
	return record, nil
}

// TeardownDNS removes the domain's dns-01 response.
func (t *TestServer) TeardownDNS(_ context.Context, record Record) error {
	t.srv.DeleteDNSOneChallenge(record.Domain)
	return nil
}

// WaitForDNSPropagation is immediate for the embedded server: records are
// authoritative the moment they are added.
func (t *TestServer) WaitForDNSPropagation(_ context.Context, record Record) error {
	return nil
}
