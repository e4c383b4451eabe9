// Package api is the REST transport to the dashboard backend. Every response uses the envelope
// {success, message, data}.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/tcriess/neowatch/globals"
)

const (
	PathLogin       = "/auth/login"
	PathRegister    = "/auth/register"
	PathRefresh     = "/auth/refresh"
	PathProfile     = "/auth/profile"
	PathUnreadCount = "/notifications/unread-count"

	maxBodySize = 1 << 20
)

// Envelope is the common response body.
type Envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Decode unmarshals the data part into out. A nil out or an empty data part is not an error.
func (e *Envelope) Decode(out interface{}) error {
	if out == nil || len(e.Data) == 0 || string(e.Data) == "null" {
		return nil
	}
	return json.Unmarshal(e.Data, out)
}

// Request describes one outbound call. Token is sent as bearer token when not empty.
type Request struct {
	Method string
	Path   string
	Body   interface{}
	Token  string
}

// StatusError is returned for every non-2xx response and for 2xx responses with success=false. Message is the
// message of the response envelope and empty if the server did not provide one.
type StatusError struct {
	Status  int
	Message string
	Path    string
}

func (e *StatusError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Path, e.Status, msg)
}

// IsAuthFailure reports whether the server rejected the credentials of the call.
func (e *StatusError) IsAuthFailure() bool {
	return e.Status == http.StatusUnauthorized
}

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    httpClient,
	}
}

// Do performs the request. Transport failures are returned wrapped, server rejections as *StatusError.
func (c *Client) Do(ctx context.Context, r Request) (*Envelope, error) {
	var body io.Reader
	if r.Body != nil {
		raw, err := json.Marshal(r.Body)
		if err != nil {
			return nil, fmt.Errorf("could not marshal request body: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	method := r.Method
	if method == "" {
		method = http.MethodGet
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+r.Path, body)
	if err != nil {
		return nil, err
	}
	requestId := uuid.New().String()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestId)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.Token != "" {
		req.Header.Set("Authorization", "Bearer "+r.Token)
	}

	globals.AppLogger.Trace("api request", "method", method, "path", r.Path, "request_id", requestId)
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, r.Path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("%s %s: could not read response: %w", method, r.Path, err)
	}
	env := &Envelope{}
	decodeErr := json.Unmarshal(raw, env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := ""
		if decodeErr == nil {
			msg = env.Message
		}
		globals.AppLogger.Debug("api request rejected", "path", r.Path, "status", resp.StatusCode, "request_id", requestId)
		return nil, &StatusError{Status: resp.StatusCode, Message: msg, Path: r.Path}
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("%s %s: could not decode response: %w", method, r.Path, decodeErr)
	}
	if !env.Success {
		return nil, &StatusError{Status: resp.StatusCode, Message: env.Message, Path: r.Path}
	}
	return env, nil
}
