package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aretw0/arbor/pkg/domain"
)

// DefaultClientTimeout bounds a single request when no http.Client is supplied.
const DefaultClientTimeout = 10 * time.Second

// Client implements ports.TicketBackend against the /tickets routes of a Server.
type Client struct {
	baseURL string
	http    *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) {
		cl.http = c
	}
}

// NewClient creates a client for the server at baseURL, e.g. "http://localhost:8080".
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultClientTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListTickets implements ports.TicketBackend.
func (c *Client) ListTickets(ctx context.Context) ([]domain.Ticket, error) {
	var out []domain.Ticket
	if err := c.do(ctx, http.MethodGet, "/tickets", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetTicket implements ports.TicketBackend.
func (c *Client) GetTicket(ctx context.Context, id string) (domain.Ticket, error) {
	var out domain.Ticket
	if err := c.do(ctx, http.MethodGet, "/tickets/"+url.PathEscape(id), nil, &out); err != nil {
		return domain.Ticket{}, err
	}
	return out, nil
}

// UpdateTitle implements ports.TicketBackend.
func (c *Client) UpdateTitle(ctx context.Context, id, title string) (domain.Ticket, error) {
	var out domain.Ticket
	body := UpdateTitleRequest{Title: title}
	if err := c.do(ctx, http.MethodPatch, "/tickets/"+url.PathEscape(id), body, &out); err != nil {
		return domain.Ticket{}, err
	}
	return out, nil
}

// StatusError is returned for non-2xx responses that map to no domain error.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ticket api: %d %s", e.Code, e.Message)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("ticket api request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&e)
		switch resp.StatusCode {
		case http.StatusNotFound:
			return fmt.Errorf("%w: %s", domain.ErrTicketNotFound, e.Error)
		case http.StatusBadRequest:
			return fmt.Errorf("%w: %s", domain.ErrInvalidRequest, e.Error)
		default:
			return &StatusError{Code: resp.StatusCode, Message: e.Error}
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
