// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat implements the per-topic submission pipeline.
//
// Each chat surface holds an ordered message list and a pending flag. A
// submission optionally uploads a document and then asks a question; the
// upload always settles before the question is sent, and a surface with a
// pending submission rejects new ones outright.
//
// The pipeline is driven in continuation style so the UI loop owns every
// mutation:
//
//	sub, err := p.Submit("healthcare", chat.Input{Text: q})  // UI loop
//	res := p.Execute(ctx, sub)                               // any goroutine
//	switch p.Advance(sub, res) {                             // UI loop
//	case chat.StepQuery:    // Execute again
//	case chat.StepReveal:   // call Tick every sub.Reveal().Speed()
//	case chat.StepDone:
//	}
//
// Run strings the same steps together for callers that can block.
//
// # Key Types
//
//   - Pipeline: owns every surface
//   - Submission: one in-flight submit
//   - Message: a chat bubble, tagged with a Kind
package chat
