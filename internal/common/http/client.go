// internal/common/http/client.go
package http

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// CloudPlatformScope is the OAuth2 scope required by Vertex AI.
const CloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

type Client struct {
	httpClient *http.Client
}

// NewClient returns a plain client. A zero timeout leaves the call bounded
// only by the request context.
func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// NewAuthenticatedClient attaches a bearer token from ts to every request.
func NewAuthenticatedClient(ts oauth2.TokenSource, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Transport: &oauth2.Transport{
				Source: oauth2.ReuseTokenSource(nil, ts),
				Base:   http.DefaultTransport,
			},
			Timeout: timeout,
		},
	}
}

// NewGoogleClient authenticates with a service account key file, or with
// Application Default Credentials when credentialsFile is empty.
func NewGoogleClient(ctx context.Context, credentialsFile string, timeout time.Duration) (*Client, error) {
	var (
		creds *google.Credentials
		err   error
	)
	if credentialsFile != "" {
		data, readErr := os.ReadFile(credentialsFile)
		if readErr != nil {
			return nil, fmt.Errorf("read credentials file: %w", readErr)
		}
		creds, err = google.CredentialsFromJSON(ctx, data, CloudPlatformScope)
	} else {
		creds, err = google.FindDefaultCredentials(ctx, CloudPlatformScope)
	}
	if err != nil {
		return nil, fmt.Errorf("find google credentials: %w", err)
	}

	return NewAuthenticatedClient(creds.TokenSource, timeout), nil
}

func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.httpClient.Do(req)
}

func (c *Client) DoWithContext(ctx context.Context, req *http.Request) (*http.Response, error) {
	req = req.WithContext(ctx)
	return c.httpClient.Do(req)
}
