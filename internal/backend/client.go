// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jeranaias/chatly-tui/internal/config"
	"github.com/jeranaias/chatly-tui/internal/logging"
)

// Endpoint paths.
const (
	PathUpload        = "/upload_docs"
	PathQuery         = "/query_rag"
	PathHistory       = "/history"
	PathHistoryDelete = "/history/delete"
	PathHistoryClear  = "/history/clear"
)

// DefaultMaxResponseBytes caps response bodies when the config leaves it unset.
// SECURITY: Response size limit prevents memory exhaustion.
const DefaultMaxResponseBytes = 10 * 1024 * 1024

// MaxUploadBytes caps a single document upload.
const MaxUploadBytes = 50 * 1024 * 1024

// PERFORMANCE: Connection pooling shared by every client.
var sharedTransport = &http.Transport{
	Proxy:               http.ProxyFromEnvironment,
	MaxIdleConns:        20,
	MaxIdleConnsPerHost: 10,
	IdleConnTimeout:     90 * time.Second,
	TLSHandshakeTimeout: 10 * time.Second,
}

// Client calls the chat backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxBytes   int64
	log        *logging.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *Client) { c.log = l.Named("backend") }
}

// New creates a client for cfg.URL. A zero timeout means none; the core
// defines no timeouts of its own.
func New(cfg config.BackendConfig, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		httpClient: &http.Client{Transport: sharedTransport, Timeout: cfg.Timeout()},
		maxBytes:   cfg.MaxResponseBytes,
		log:        logging.Nop(),
	}
	if c.maxBytes <= 0 {
		c.maxBytes = DefaultMaxResponseBytes
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the backend root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// =============================================================================
// ENDPOINTS
// =============================================================================

// Upload sends a document for ingestion and returns the backend's message.
func (c *Client) Upload(ctx context.Context, userID, filename string, r io.Reader) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", &APIError{Op: PathUpload, Err: err}
	}
	n, err := io.Copy(part, io.LimitReader(r, MaxUploadBytes+1))
	if err != nil {
		return "", &APIError{Op: PathUpload, Err: fmt.Errorf("read document: %w", err)}
	}
	if n > MaxUploadBytes {
		return "", &APIError{Op: PathUpload, Message: fmt.Sprintf("document exceeds %d MB", MaxUploadBytes>>20)}
	}
	if err := mw.WriteField("user_id", userID); err != nil {
		return "", &APIError{Op: PathUpload, Err: err}
	}
	if err := mw.Close(); err != nil {
		return "", &APIError{Op: PathUpload, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+PathUpload, &body)
	if err != nil {
		return "", &APIError{Op: PathUpload, Err: err}
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var resp envelope
	status, err := c.do(req, &resp)
	if err != nil {
		return "", err
	}
	if !resp.Success {
		return "", &APIError{Op: PathUpload, Status: status, Message: resp.Message}
	}
	return resp.Message, nil
}

// Query asks a question against the user's documents.
func (c *Client) Query(ctx context.Context, userID, query string) (Answer, error) {
	var resp queryResponse
	status, err := c.postJSON(ctx, PathQuery, queryRequest{Query: query, UserID: userID}, &resp)
	if err != nil {
		return Answer{}, err
	}
	if !resp.Success {
		// Failed queries carry their reason in the answer field.
		return Answer{}, &APIError{Op: PathQuery, Status: status, Message: resp.Text}
	}
	return resp.Answer, nil
}

// History lists the user's records, newest first.
func (c *Client) History(ctx context.Context, userID string) ([]Record, error) {
	u := c.baseURL + PathHistory + "?" + url.Values{"user_id": {userID}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &APIError{Op: PathHistory, Err: err}
	}

	var resp historyResponse
	status, err := c.do(req, &resp)
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, &APIError{Op: PathHistory, Status: status, Message: resp.Message}
	}
	return resp.History, nil
}

// DeleteHistory removes one record and returns how many rows went.
func (c *Client) DeleteHistory(ctx context.Context, userID string, id int64) (int64, error) {
	var resp deleteResponse
	status, err := c.postJSON(ctx, PathHistoryDelete, deleteRequest{ID: id, UserID: userID}, &resp)
	if err != nil {
		return 0, err
	}
	if !resp.Success {
		return 0, &APIError{Op: PathHistoryDelete, Status: status, Message: resp.Message}
	}
	return resp.Deleted, nil
}

// ClearHistory removes all of the user's records.
func (c *Client) ClearHistory(ctx context.Context, userID string) (int64, error) {
	var resp deleteResponse
	status, err := c.postJSON(ctx, PathHistoryClear, clearRequest{UserID: userID}, &resp)
	if err != nil {
		return 0, err
	}
	if !resp.Success {
		return 0, &APIError{Op: PathHistoryClear, Status: status, Message: resp.Message}
	}
	return resp.Deleted, nil
}

// =============================================================================
// TRANSPORT
// =============================================================================

func (c *Client) postJSON(ctx context.Context, path string, body, out interface{}) (int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, &APIError{Op: path, Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return 0, &APIError{Op: path, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

// do sends req and decodes the JSON reply into out. Error statuses still
// decode when the body is JSON so the backend's message is kept.
func (c *Client) do(req *http.Request, out interface{}) (int, error) {
	op := req.URL.Path
	if c.baseURL != "" {
		if base, err := url.Parse(c.baseURL); err == nil {
			op = strings.TrimPrefix(op, strings.TrimRight(base.Path, "/"))
		}
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warn("backend unreachable", logging.Fields{"method": req.Method, "path": op, "error": err})
		return 0, &APIError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	// SECURITY: Read one byte past the cap to detect oversized bodies.
	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	c.log.Info("backend call", logging.Fields{
		"method":      req.Method,
		"path":        op,
		"status":      resp.StatusCode,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	if err != nil {
		return resp.StatusCode, &APIError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}
	if int64(len(data)) > c.maxBytes {
		return resp.StatusCode, &APIError{Op: op, Status: resp.StatusCode, Message: "response too large"}
	}

	decodeErr := json.Unmarshal(data, out)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, &APIError{Op: op, Status: resp.StatusCode, Message: messageOf(data)}
	}
	if decodeErr != nil {
		return resp.StatusCode, &APIError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", decodeErr)}
	}
	return resp.StatusCode, nil
}

// messageOf pulls a human-readable reason out of an error body.
func messageOf(data []byte) string {
	var body struct {
		Message string `json:"message"`
		Answer  string `json:"answer"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(data, &body) != nil {
		return ""
	}
	for _, s := range []string{body.Message, body.Answer, body.Error} {
		if s != "" {
			return s
		}
	}
	return ""
}
