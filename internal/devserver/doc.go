// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package devserver is a self-contained development backend speaking the
// same HTTP contract the chat client expects.
//
// It stores query logs and document chunks in SQLite and answers questions
// by keyword overlap against the caller's uploaded text documents. No model
// is involved: the answer is the retrieved context itself.
//
// # Key Types
//
//   - Server: gin router serving /upload_docs, /query_rag and /history*
//   - Store: query_logs and chunks tables
//   - KeywordAnswerer: token-overlap retrieval with confidence labels
//
// # Usage
//
//	srv, err := devserver.New(cfg.DevServer, devserver.WithLogger(log))
//	if err != nil {
//	    return err
//	}
//	defer srv.Close()
//	return srv.Run(ctx)
package devserver
