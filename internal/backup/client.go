// Package backup replicates ledger snapshots to a secondary remote
// target. Uploads are best-effort: failures are logged by the caller
// and never surfaced to users, since the primary write has already
// succeeded by the time an upload starts.
package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// requestTimeout bounds every remote call so backup propagation can
// never hang the process.
const requestTimeout = 10 * time.Second

var (
	// ErrDisabled is returned once a credential refresh has failed;
	// the client then fails fast until the next process restart.
	ErrDisabled = errors.New("backup disabled after failed credential refresh")
)

// Credentials holds the bearer access token and the long-lived refresh
// token for the remote target. It is injected at construction; nothing
// process-wide is mutated.
type Credentials struct {
	AccessToken  string
	RefreshToken string
}

// Client uploads snapshots to the remote backup target, refreshing its
// bearer credential lazily when it has expired.
type Client struct {
	httpClient *http.Client
	uploadURL  string
	probeURL   string
	refreshURL string

	mu       sync.Mutex
	creds    Credentials
	disabled bool
}

// New creates a backup client for the given endpoints.
func New(uploadURL, probeURL, refreshURL string, creds Credentials) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: requestTimeout},
		uploadURL:  uploadURL,
		probeURL:   probeURL,
		refreshURL: refreshURL,
		creds:      creds,
	}
}

// Validate probes the remote target with the current bearer token and,
// if the target rejects it, exchanges the refresh token for a new one.
// Called once at startup before any upload is attempted.
func (c *Client) Validate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ok, err := c.probe(ctx)
	if err != nil {
		return fmt.Errorf("backup probe: %w", err)
	}
	if ok {
		return nil
	}
	slog.Info("Backup credential rejected, refreshing")
	return c.refresh(ctx)
}

// Upload replicates one snapshot to the remote target. It ensures a
// valid credential first and retries exactly once after a refresh if
// the target rejects the token mid-flight.
func (c *Client) Upload(ctx context.Context, snapshot []byte) error {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureCredential(ctx); err != nil {
		return err
	}

	status, err := c.put(ctx, snapshot)
	if err != nil {
		return err
	}
	if status == http.StatusUnauthorized {
		if err := c.refresh(ctx); err != nil {
			return err
		}
		status, err = c.put(ctx, snapshot)
		if err != nil {
			return err
		}
	}
	if status < 200 || status > 299 {
		return fmt.Errorf("backup upload: unexpected status %d", status)
	}
	return nil
}

// ensureCredential refreshes the bearer token before an upload when it
// is known to be expired. Access tokens issued by the backup service
// are JWTs; opaque tokens fall through to the 401-retry path instead.
// Caller holds c.mu.
func (c *Client) ensureCredential(ctx context.Context) error {
	if c.disabled {
		return ErrDisabled
	}
	if c.creds.AccessToken == "" || tokenExpired(c.creds.AccessToken) {
		return c.refresh(ctx)
	}
	return nil
}

// tokenExpired reports whether the token carries an exp claim in the
// past. The signature is not verified here; the remote target is the
// authority, this is only an optimization to skip a doomed request.
func tokenExpired(token string) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return time.Now().After(exp.Time.Add(-30 * time.Second))
}

// probe checks the current bearer token against the probe endpoint.
// Returns false (no error) on 401/403 so the caller can refresh.
// Caller holds c.mu.
func (c *Client) probe(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.probeURL, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Authorization", "Bearer "+c.creds.AccessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return false, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return false, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return true, nil
}

// refresh exchanges the refresh token for a new bearer token. A failed
// exchange disables the client for the rest of the process lifetime.
// Caller holds c.mu.
func (c *Client) refresh(ctx context.Context) error {
	body, err := json.Marshal(map[string]string{
		"grant_type":    "refresh_token",
		"refresh_token": c.creds.RefreshToken,
	})
	if err != nil {
		return fmt.Errorf("marshal refresh request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.refreshURL, bytes.NewReader(body))
	if err != nil {
		c.disabled = true
		return fmt.Errorf("create refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.disabled = true
		return fmt.Errorf("refresh request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.disabled = true
		return fmt.Errorf("refresh rejected: status %d", resp.StatusCode)
	}

	var out struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		c.disabled = true
		return fmt.Errorf("decode refresh response: %w", err)
	}
	if out.AccessToken == "" {
		c.disabled = true
		return errors.New("refresh response missing access_token")
	}

	c.creds.AccessToken = out.AccessToken
	slog.Info("Backup credential refreshed")
	return nil
}

// put performs the snapshot upload and returns the HTTP status.
// Caller holds c.mu.
func (c *Client) put(ctx context.Context, snapshot []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.uploadURL, bytes.NewReader(snapshot))
	if err != nil {
		return 0, fmt.Errorf("create upload request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.creds.AccessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("upload request: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}
