package remote

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/ledgersync/internal/models"
	"github.com/mmynk/ledgersync/internal/remotesync"
)

// Client reaches the remote store for one device. It keeps the bearer token
// of the last Register or Login and sends it on every snapshot call.
type Client struct {
	snapshots  *SnapshotServiceClient
	auth       *AuthServiceClient
	httpClient connect.HTTPClient
	baseURL    string

	mu    sync.RWMutex
	token string
}

var _ remotesync.Remote = (*Client)(nil)

// NewClient creates a client for the server at baseURL. token may be empty
// until Register or Login is called.
func NewClient(httpClient connect.HTTPClient, baseURL, token string, opts ...connect.ClientOption) *Client {
	c := &Client{token: token, httpClient: httpClient, baseURL: strings.TrimRight(baseURL, "/")}
	opts = append(opts, connect.WithInterceptors(c.bearer()))
	c.snapshots = NewSnapshotServiceClient(httpClient, baseURL, opts...)
	c.auth = NewAuthServiceClient(httpClient, baseURL, opts...)
	return c
}

func (c *Client) bearer() connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			if token := c.Token(); token != "" && req.Spec().IsClient {
				req.Header().Set("Authorization", "Bearer "+token)
			}
			return next(ctx, req)
		}
	}
}

// Ping reports whether the server answers its health check. The sync
// engine uses it to notice that connectivity is back.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+HealthPath, nil)
	if err != nil {
		return fmt.Errorf("failed to build health check: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check: %s", resp.Status)
	}
	return nil
}

// Token returns the current bearer token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// SetToken replaces the bearer token.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// Register creates the owner on the server and keeps the returned token.
func (c *Client) Register(ctx context.Context, ownerID, password string) (string, error) {
	resp, err := c.auth.Register(ctx, connect.NewRequest(&RegisterRequest{OwnerID: ownerID, Password: password}))
	if err != nil {
		return "", fmt.Errorf("register %s: %w", ownerID, err)
	}
	c.SetToken(resp.Msg.Token)
	return resp.Msg.Token, nil
}

// Login authenticates the owner, keeps the returned token and returns the
// owner with its stored password hash.
func (c *Client) Login(ctx context.Context, ownerID, password string) (*models.Owner, string, error) {
	resp, err := c.auth.Login(ctx, connect.NewRequest(&LoginRequest{OwnerID: ownerID, Password: password}))
	if err != nil {
		return nil, "", fmt.Errorf("login %s: %w", ownerID, err)
	}
	c.SetToken(resp.Msg.Token)
	return &models.Owner{ID: resp.Msg.OwnerID, PasswordHash: resp.Msg.PasswordHash}, resp.Msg.Token, nil
}

// Fetch implements remotesync.Remote.
func (c *Client) Fetch(ctx context.Context, ownerID string) (*models.Snapshot, error) {
	resp, err := c.snapshots.GetSnapshot(ctx, connect.NewRequest(&GetSnapshotRequest{OwnerID: ownerID}))
	if connect.CodeOf(err) == connect.CodeNotFound {
		return nil, remotesync.ErrNoRemoteSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", models.RemotePath(ownerID), err)
	}
	if resp.Msg.Snapshot == nil {
		return nil, remotesync.ErrNoRemoteSnapshot
	}
	return resp.Msg.Snapshot, nil
}

// Store implements remotesync.Remote.
func (c *Client) Store(ctx context.Context, snap *models.Snapshot) (time.Time, error) {
	resp, err := c.snapshots.PutSnapshot(ctx, connect.NewRequest(&PutSnapshotRequest{Snapshot: snap}))
	if err != nil {
		return time.Time{}, fmt.Errorf("store %s: %w", models.RemotePath(snap.OwnerID), err)
	}
	return resp.Msg.LastSync, nil
}
