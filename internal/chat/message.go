// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
)

// Sender is who a message is from.
type Sender string

// Senders.
const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// Kind tags what a message is so placeholders are found by tag, never by
// their text.
type Kind string

// Kinds.
const (
	KindIntro        Kind = "intro"
	KindText         Kind = "text"
	KindUploading    Kind = "uploading"
	KindUploadOK     Kind = "upload_ok"
	KindUploadFailed Kind = "upload_failed"
	KindSynthesizing Kind = "synthesizing"
	KindAnswer       Kind = "answer"
	KindAnswerFailed Kind = "answer_failed"
)

// RenderState is how far a message is through its display lifecycle.
type RenderState string

// Render states.
const (
	RenderPlain   RenderState = "plain"
	RenderTyping  RenderState = "typing"
	RenderSettled RenderState = "settled"
)

// User-facing copy.
const (
	TextIntro        = "Upload a document first, then ask your questions."
	TextUploading    = "Uploading document..."
	TextUploadOK     = "Successfully uploaded document"
	TextUploadFailed = "Upload failed. Please try again."
	TextSynthesizing = "Synthesizing answer from document context..."
	TextAnswerFailed = "An error occurred while answering."
)

// Message is one entry in a surface.
type Message struct {
	ID          string
	Sender      Sender
	Kind        Kind
	Content     string
	RenderState RenderState
}

// Placeholder reports whether m is a transient in-flight message.
func (m Message) Placeholder() bool {
	return m.Kind == KindUploading || m.Kind == KindSynthesizing
}

// Attachment is a document picked for upload.
type Attachment struct {
	Name string
	Open func() (io.ReadCloser, error)
}

// FileAttachment attaches the file at path.
func FileAttachment(path string) *Attachment {
	return &Attachment{
		Name: filepath.Base(path),
		Open: func() (io.ReadCloser, error) { return os.Open(path) },
	}
}

// BytesAttachment attaches in-memory content.
func BytesAttachment(name string, data []byte) *Attachment {
	return &Attachment{
		Name: name,
		Open: func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(data)), nil },
	}
}

// Surface is a snapshot of one chat.
type Surface struct {
	ID       string
	Messages []Message
	Pending  bool

	// Attachment is the staged document name, "" when none.
	Attachment string
}

// CanSubmit reports whether the submit affordance is enabled.
func (s Surface) CanSubmit() bool {
	return !s.Pending
}
