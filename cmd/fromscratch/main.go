// fromscratch is an end-to-end ACME issuance tool: it registers an account,
// proves control of the requested domains with an embedded challenge
// response server, and writes the issued certificate chain and key to disk
// as PEM files.
package main

import (
	"context"
	"encoding/pem"
	"fmt"
	"os"
	"strings"

	"github.com/jessevdk/go-flags"
	log "github.com/sirupsen/logrus"

	"github.com/alexpeattie/letsencrypt-fromscratch/acme/client"
	"github.com/alexpeattie/letsencrypt-fromscratch/acme/keys"
	"github.com/alexpeattie/letsencrypt-fromscratch/challenge"
	"github.com/alexpeattie/letsencrypt-fromscratch/cmd"
)

type options struct {
	Directory   string `short:"d" long:"directory" default:"https://acme-staging-v02.api.letsencrypt.org/directory" description:"ACME server directory URL"`
	Email       string `short:"m" long:"email" description:"Contact email address for the ACME account"`
	AccountPath string `short:"a" long:"account" description:"File path to save/restore the ACME account"`
	Challenge   string `short:"c" long:"challenge" default:"http-01" choice:"http-01" choice:"dns-01" description:"Challenge type to solve"`
	CACert      string `long:"cacert" description:"PEM CA bundle to trust for the ACME server's HTTPS (e.g. pebble.minica.pem)"`
	NoPostAsGet bool   `long:"no-post-as-get" description:"Use plain GET instead of POST-as-GET for resource fetches"`
	HTTPPort    int    `long:"http-port" default:"5002" description:"Port for the embedded http-01 response server"`
	DNSPort     int    `long:"dns-port" default:"8053" description:"Port for the embedded dns-01 response server"`
	Revoke      string `long:"revoke" description:"Revoke the certificate in this PEM file instead of issuing"`
	Verbose     bool   `short:"v" long:"verbose" description:"Enable debug logging"`

	Args struct {
		Domains []string `positional-arg-name:"domain" description:"Domain names to issue for"`
	} `positional-args:"yes"`
}

func main() {
	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		os.Exit(1)
	}
	if opts.Verbose {
		log.SetLevel(log.DebugLevel)
	}

	ctx := context.Background()

	c, err := client.NewClient(ctx, client.ClientConfig{
		DirectoryURL:       opts.Directory,
		CACert:             opts.CACert,
		ContactEmail:       opts.Email,
		AccountPath:        opts.AccountPath,
		AutoRegister:       true,
		PreferredChallenge: opts.Challenge,
		POSTAsGET:          !opts.NoPostAsGet,
	})
	cmd.FailOnError(err, "Unable to create ACME client")

	if opts.Revoke != "" {
		revoke(ctx, c, opts.Revoke)
		return
	}

	if len(opts.Args.Domains) == 0 {
		cmd.FailOnError(fmt.Errorf("no domains specified"), "Nothing to issue")
	}

	// The embedded responder answers http-01 requests and dns-01 TXT queries
	// itself; point the ACME server's validation at its ports (with Pebble:
	// -dnsserver 127.0.0.1:<dns-port>).
	responder, err := challenge.NewTestServer(
		fmt.Sprintf(":%d", opts.HTTPPort),
		fmt.Sprintf(":%d", opts.DNSPort))
	cmd.FailOnError(err, "Unable to create challenge response server")
	go responder.Run()
	defer responder.Shutdown()

	// Make sure an interrupt mid-issuance still stops the responder.
	go cmd.CatchSignals(responder.Shutdown)

	issued, err := c.IssueCertificate(ctx, opts.Args.Domains, responder)
	cmd.FailOnError(err, "Issuance failed")

	certPath, keyPath := outputPaths(opts.Args.Domains[0])
	cmd.FailOnError(os.WriteFile(certPath, issued.ChainPEM, 0644),
		"Unable to write certificate chain")
	cmd.FailOnError(saveKey(keyPath, issued), "Unable to write certificate key")
	log.Printf("Wrote certificate chain to %q and key to %q", certPath, keyPath)
}

// outputPaths derives deterministic file names from the first requested
// domain, with the wildcard label sanitized for the filesystem.
func outputPaths(domain string) (certPath, keyPath string) {
	base := strings.ReplaceAll(domain, "*", "_")
	return base + ".crt", base + ".key"
}

func saveKey(path string, issued *client.IssuedCertificate) error {
	return keys.SaveFile(path, issued.Key)
}

func revoke(ctx context.Context, c *client.Client, pemPath string) {
	pemBytes, err := os.ReadFile(pemPath)
	cmd.FailOnError(err, "Unable to read certificate to revoke")

	block, _ := pem.Decode(pemBytes)
	if block == nil || block.Type != "CERTIFICATE" {
		cmd.FailOnError(fmt.Errorf("no CERTIFICATE block in %q", pemPath),
			"Unable to parse certificate to revoke")
	}

	cmd.FailOnError(c.RevokeCertificate(ctx, block.Bytes, 0), "Revocation failed")
	log.Printf("Revoked certificate from %q", pemPath)
}
