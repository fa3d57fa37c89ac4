package client

import (
	"context"
	"encoding/json"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/alexpeattie/letsencrypt-fromscratch/acme/resources"
)

// Directory returns the client's cached copy of the ACME server's directory
// resource, fetching it first if needed.
//
// See https://tools.ietf.org/html/rfc8555#section-7.1.1
func (c *Client) Directory(ctx context.Context) (*resources.Directory, error) {
	if c.directory == nil {
		if err := c.UpdateDirectory(ctx); err != nil {
			return nil, err
		}
	}
	return c.directory, nil
}

// UpdateDirectory fetches the ACME server's directory resource and replaces
// the client's cached copy. The directory is the only unsigned request the
// client makes. A *DirectoryUnreachableError is returned when the directory
// can not be fetched or does not parse.
func (c *Client) UpdateDirectory(ctx context.Context) error {
	url := c.DirectoryURL.String()

	resp, err := c.net.GetURL(ctx, url)
	if err != nil {
		return &DirectoryUnreachableError{URL: url, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return &DirectoryUnreachableError{URL: url,
			Err: unexpectedStatusError(resp.StatusCode, http.StatusOK)}
	}

	var directory resources.Directory
	if err := json.Unmarshal(resp.Body, &directory); err != nil {
		return &DirectoryUnreachableError{URL: url, Err: err}
	}

	c.directory = &directory
	log.Printf("Updated directory from %q", url)
	return nil
}
