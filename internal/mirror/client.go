// Package mirror pushes incidents to the remote collection endpoint.
//
// Mirroring is one-way and best-effort: the client never pulls remote state
// back into the local store and never retries on its own.
package mirror

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"fieldreport/internal/models"

	"go.uber.org/zap"
)

var (
	// ErrOffline means the device has no usable network or the endpoint did
	// not answer the probe.
	ErrOffline = errors.New("remote endpoint unreachable")
	// ErrNotMirrored means an update was requested for an incident that has
	// no remote ID yet.
	ErrNotMirrored = errors.New("incident has no remote id")
	// ErrUnexpectedStatus wraps non-2xx responses.
	ErrUnexpectedStatus = errors.New("unexpected response status")
)

// Post is the payload exchanged with the remote collection.
type Post struct {
	ID     int64  `json:"id,omitempty"`
	UserID int64  `json:"userId"`
	Title  string `json:"title"`
	Body   string `json:"body"`
}

// Config describes the remote endpoint.
type Config struct {
	BaseURL  string
	Resource string
	Timeout  time.Duration
}

// Client talks JSON over HTTP to {BaseURL}/{Resource}.
type Client struct {
	baseURL  string
	resource string
	http     *http.Client
	network  NetworkChecker
	log      *zap.Logger
}

// New creates a Client. A nil network checker means "always connected".
func New(cfg Config, network NetworkChecker, log *zap.Logger) *Client {
	if network == nil {
		network = NetworkCheckerFunc(func() bool { return true })
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL:  cfg.BaseURL,
		resource: cfg.Resource,
		http:     &http.Client{Timeout: cfg.Timeout},
		network:  network,
		log:      log.Named("mirror"),
	}
}

func (c *Client) url(suffix string) string {
	if suffix == "" {
		return fmt.Sprintf("%s/%s", c.baseURL, c.resource)
	}
	return fmt.Sprintf("%s/%s/%s", c.baseURL, c.resource, suffix)
}

// CheckConnectivity reports whether the device has a network and the remote
// endpoint answers a lightweight probe with a 2xx status.
func (c *Client) CheckConnectivity(ctx context.Context) bool {
	if !c.network.HasNetwork() {
		c.log.Debug("no network interface available")
		return false
	}
	resp, err := c.do(ctx, http.MethodGet, c.url("1"), nil)
	if err != nil {
		c.log.Debug("connectivity probe failed", zap.Error(err))
		return false
	}
	drain(resp)
	return true
}

// PostIncident creates the incident remotely and returns the remote ID.
func (c *Client) PostIncident(ctx context.Context, incident *models.Incident) (int64, error) {
	if !c.CheckConnectivity(ctx) {
		return 0, ErrOffline
	}

	resp, err := c.do(ctx, http.MethodPost, c.url(""), payload(incident, 0))
	if err != nil {
		c.log.Warn("post incident failed", zap.Uint("incident_id", incident.ID), zap.Error(err))
		return 0, err
	}
	defer drain(resp)

	var created Post
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return 0, fmt.Errorf("failed to decode post response: %w", err)
	}
	if created.ID == 0 {
		return 0, fmt.Errorf("failed to decode post response: missing id")
	}

	c.log.Info("incident posted", zap.Uint("incident_id", incident.ID), zap.Int64("remote_id", created.ID))
	return created.ID, nil
}

// UpdateIncident replaces the remote copy of an already mirrored incident.
func (c *Client) UpdateIncident(ctx context.Context, incident *models.Incident) error {
	if !c.CheckConnectivity(ctx) {
		return ErrOffline
	}
	if incident.RemoteID == nil {
		return ErrNotMirrored
	}

	remoteID := *incident.RemoteID
	resp, err := c.do(ctx, http.MethodPut, c.url(fmt.Sprint(remoteID)), payload(incident, remoteID))
	if err != nil {
		c.log.Warn("update incident failed", zap.Int64("remote_id", remoteID), zap.Error(err))
		return err
	}
	drain(resp)

	c.log.Info("incident updated remotely", zap.Int64("remote_id", remoteID))
	return nil
}

// ListIncidents fetches the remote collection.
func (c *Client) ListIncidents(ctx context.Context) ([]Post, error) {
	resp, err := c.do(ctx, http.MethodGet, c.url(""), nil)
	if err != nil {
		return nil, err
	}
	defer drain(resp)

	var posts []Post
	if err := json.NewDecoder(resp.Body).Decode(&posts); err != nil {
		return nil, fmt.Errorf("failed to decode remote list: %w", err)
	}
	return posts, nil
}

// do sends a request and returns the response only for 2xx statuses.
func (c *Client) do(ctx context.Context, method, url string, body *Post) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode payload: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, url, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		drain(resp)
		return nil, fmt.Errorf("%s %s: %w: %d", method, url, ErrUnexpectedStatus, resp.StatusCode)
	}
	return resp, nil
}

func payload(incident *models.Incident, remoteID int64) *Post {
	return &Post{
		ID:     remoteID,
		UserID: int64(incident.UserID),
		Title:  incident.Title,
		Body:   incident.Description,
	}
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
