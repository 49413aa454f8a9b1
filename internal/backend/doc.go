// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package backend is the HTTP client for the chat backend.
//
// The backend exposes five JSON endpoints: document upload, question
// answering, and history list/delete/clear. Every response carries a
// "success" flag; a false flag or a non-2xx status becomes an *APIError
// that matches ErrRemoteFailure. Calls are never retried.
//
// # Key Types
//
//   - Client: the endpoint methods
//   - Answer: a /query_rag result
//   - Record: one history entry
//   - Confidence: a score that arrives as a JSON number or string
//
// # Usage
//
//	c := backend.New(cfg.Backend, backend.WithLogger(log))
//	ans, err := c.Query(ctx, userID, "What is the dosage?")
//	if errors.Is(err, backend.ErrRemoteFailure) {
//	    ...
//	}
package backend
