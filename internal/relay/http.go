package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"conclave/internal/domain"
)

// Client talks to a relay on behalf of one local address.
type Client struct {
	Base string
	HTTP *http.Client

	self domain.Contact
}

// NewClient returns a client for the relay at base acting as self.
func NewClient(base string, self domain.Address, displayName string) *Client {
	return &Client{
		Base: base,
		HTTP: http.DefaultClient,
		self: domain.Contact{Address: self, DisplayName: displayName, Provider: Provider},
	}
}

// Contact returns the local contact this client sends as.
func (c *Client) Contact() domain.Contact { return c.self }

func (c *Client) Provider() domain.ProviderID { return Provider }

func (c *Client) CreateMessage(text string) domain.Message {
	return domain.Message{ID: domain.MessageID(uuid.NewString()), Body: text, ContentType: "text/plain"}
}

// SendInstantMessage enqueues msg for to. Failures are returned unchanged in
// meaning and never retried.
func (c *Client) SendInstantMessage(ctx context.Context, to domain.Contact, msg domain.Message) error {
	env := Envelope{
		ID:          msg.ID,
		From:        c.self.Address,
		FromName:    c.self.DisplayName,
		To:          to.Address,
		Body:        msg.Body,
		ContentType: msg.ContentType,
		Timestamp:   time.Now().Unix(),
	}
	return c.post(ctx, "/msg/"+url.PathEscape(to.Address.String()), env, nil)
}

// Fetch returns up to limit queued envelopes without removing them.
// limit <= 0 fetches everything.
func (c *Client) Fetch(ctx context.Context, limit int) ([]Envelope, error) {
	path := "/msg/" + url.PathEscape(c.self.Address.String())
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var envs []Envelope
	if err := c.getJSON(ctx, path, &envs); err != nil {
		return nil, err
	}
	return envs, nil
}

// Ack drops the first count queued envelopes.
func (c *Client) Ack(ctx context.Context, count int) error {
	if count <= 0 {
		return nil
	}
	return c.post(ctx, "/msg/"+url.PathEscape(c.self.Address.String())+"/ack", struct {
		Count int `json:"count"`
	}{Count: count}, nil)
}

// Receive fetches and acknowledges up to limit envelopes and returns them as
// DirectReceived events in arrival order.
func (c *Client) Receive(ctx context.Context, limit int) ([]domain.DirectEvent, error) {
	envs, err := c.Fetch(ctx, limit)
	if err != nil {
		return nil, err
	}
	if err := c.Ack(ctx, len(envs)); err != nil {
		return nil, err
	}
	out := make([]domain.DirectEvent, 0, len(envs))
	for _, e := range envs {
		out = append(out, e.Event())
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, path string, in any, out any) error {
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(in); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Base+path, buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("relay post %s: %s", path, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Base+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("relay get %s: %s", path, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

var _ domain.DirectTransport = (*Client)(nil)
