// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jeranaias/chatly-tui/internal/util"
)

// ErrRemoteFailure matches every failed backend call.
var ErrRemoteFailure = errors.New("backend request failed")

// APIError describes one failed call.
type APIError struct {
	Op      string // endpoint path
	Status  int    // HTTP status, 0 when no response arrived
	Message string // backend-provided message, if any
	Err     error  // transport or decode cause, if any
}

// Error implements the error interface.
func (e *APIError) Error() string {
	switch {
	case e.Status == 0 && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s (HTTP %d): %s", e.Op, e.Status, e.Message)
	default:
		return fmt.Sprintf("%s: HTTP %d", e.Op, e.Status)
	}
}

// Unwrap exposes ErrRemoteFailure and the cause.
func (e *APIError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrRemoteFailure, e.Err}
	}
	return []error{ErrRemoteFailure}
}

// Confidence is a display-ready score. The backend sends a number for fresh
// answers and a string for stored ones; both decode here. A numeric zero or
// null decodes to "" so the score is omitted.
type Confidence string

// UnmarshalJSON accepts a number, a string or null.
func (c *Confidence) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*c = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = Confidence(s)
		return nil
	}
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("confidence: %w", err)
	}
	if f == 0 {
		*c = ""
		return nil
	}
	*c = Confidence(util.FormatFloat(f))
	return nil
}

// Answer is a /query_rag result.
type Answer struct {
	Text       string     `json:"answer"`
	Confidence Confidence `json:"confidence"`
	Sources    []string   `json:"sources"`
}

// Record is one stored query/answer pair.
type Record struct {
	ID         int64      `json:"id"`
	Query      string     `json:"query"`
	Answer     string     `json:"answer"`
	Confidence Confidence `json:"confidence"`
	Timestamp  string     `json:"timestamp"`
}

// timestampLayouts are the formats the backend is known to store.
var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999",
	time.RFC3339Nano,
}

// Time parses Timestamp. The zero time is returned for unknown formats.
func (r Record) Time() time.Time {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, r.Timestamp); err == nil {
			return t
		}
	}
	return time.Time{}
}

// =============================================================================
// WIRE ENVELOPES
// =============================================================================

type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type queryRequest struct {
	Query  string `json:"query"`
	UserID string `json:"user_id"`
}

type queryResponse struct {
	Success bool `json:"success"`
	Answer
}

type historyResponse struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	History []Record `json:"history"`
}

type deleteRequest struct {
	ID     int64  `json:"id"`
	UserID string `json:"user_id"`
}

type clearRequest struct {
	UserID string `json:"user_id"`
}

type deleteResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Deleted int64  `json:"deleted"`
}
