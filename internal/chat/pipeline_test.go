// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/chatly-tui/internal/backend"
)

type fakeGate struct{ blocking bool }

func (g *fakeGate) IsBlocking() bool { return g.blocking }

type fakeUsers string

func (u fakeUsers) UserID() string { return string(u) }

type call struct {
	op     string
	userID string
	arg    string
}

type fakeBackend struct {
	mu        sync.Mutex
	calls     []call
	uploadErr error
	queryErr  error
	answer    backend.Answer
}

func (b *fakeBackend) Upload(ctx context.Context, userID, filename string, r io.Reader) (string, error) {
	data, _ := io.ReadAll(r)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, call{"upload", userID, filename + ":" + string(data)})
	if b.uploadErr != nil {
		return "", b.uploadErr
	}
	return "ok", nil
}

func (b *fakeBackend) Query(ctx context.Context, userID, query string) (backend.Answer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, call{"query", userID, query})
	if b.queryErr != nil {
		return backend.Answer{}, b.queryErr
	}
	return b.answer, nil
}

func (b *fakeBackend) ops() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for _, c := range b.calls {
		out = append(out, c.op)
	}
	return out
}

func newTestPipeline(t *testing.T) (*Pipeline, *fakeGate, *fakeBackend) {
	t.Helper()
	gate := &fakeGate{}
	be := &fakeBackend{answer: backend.Answer{Text: "Hi\nthere"}}
	p := New(gate, fakeUsers("user-1"), be, Options{UploadEnabled: true, TypewriterRate: time.Millisecond},
		"healthcare", "education")
	return p, gate, be
}

func surfaceOf(t *testing.T, p *Pipeline, id string) Surface {
	t.Helper()
	s, ok := p.Surface(id)
	require.True(t, ok)
	return s
}

func kinds(s Surface) []Kind {
	out := make([]Kind, len(s.Messages))
	for i, m := range s.Messages {
		out[i] = m.Kind
	}
	return out
}

func noPace(time.Duration) {}

// =============================================================================
// SUBMIT
// =============================================================================

func TestPipeline_InitialIntro(t *testing.T) {
	p, _, _ := newTestPipeline(t)
	assert.Equal(t, []string{"healthcare", "education"}, p.SurfaceIDs())
	s := surfaceOf(t, p, "education")
	require.Len(t, s.Messages, 1)
	assert.Equal(t, TextIntro, s.Messages[0].Content)
	assert.True(t, s.CanSubmit())
}

func TestPipeline_SubmitRejections(t *testing.T) {
	p, gate, _ := newTestPipeline(t)

	_, err := p.Submit("law", Input{Text: "hi"})
	assert.ErrorIs(t, err, ErrUnknownSurface)

	_, err = p.Submit("healthcare", Input{Text: "   "})
	assert.ErrorIs(t, err, ErrEmptySubmission)
	assert.Len(t, surfaceOf(t, p, "healthcare").Messages, 1)

	gate.blocking = true
	_, err = p.Submit("healthcare", Input{Text: "hi"})
	assert.ErrorIs(t, err, ErrBlocked)
	assert.Len(t, surfaceOf(t, p, "healthcare").Messages, 1)
}

func TestPipeline_SecondSubmitRejectedWhilePending(t *testing.T) {
	p, _, _ := newTestPipeline(t)

	sub, err := p.Submit("healthcare", Input{Text: "first"})
	require.NoError(t, err)
	before := surfaceOf(t, p, "healthcare")
	assert.True(t, before.Pending)
	assert.False(t, before.CanSubmit())

	for _, in := range []Input{{Text: "second"}, {File: BytesAttachment("a.txt", []byte("x"))}} {
		_, err = p.Submit("healthcare", in)
		assert.ErrorIs(t, err, ErrSubmissionPending)
		assert.Equal(t, before, surfaceOf(t, p, "healthcare"))
	}

	// The in-flight submission is untouched and still completes.
	assert.Equal(t, StepQuery, sub.Step())
}

func TestPipeline_TextOnlySuccess(t *testing.T) {
	p, _, be := newTestPipeline(t)

	sub, err := p.Run(context.Background(), "healthcare", Input{Text: "  What? "}, noPace)
	require.NoError(t, err)
	assert.Equal(t, StepDone, sub.Step())

	s := surfaceOf(t, p, "healthcare")
	assert.Equal(t, []Kind{KindIntro, KindText, KindAnswer}, kinds(s))
	assert.Equal(t, "What?", s.Messages[1].Content)
	assert.Equal(t, SenderUser, s.Messages[1].Sender)
	assert.Equal(t, "Answer:\nHi\nthere", s.Messages[2].Content)
	assert.Equal(t, RenderSettled, s.Messages[2].RenderState)
	assert.False(t, s.Pending)

	assert.Equal(t, []call{{"query", "user-1", "What?"}}, be.calls)
}

func TestPipeline_UploadThenQuery(t *testing.T) {
	p, _, be := newTestPipeline(t)
	be.answer = backend.Answer{Text: "Yes", Confidence: "0.92", Sources: []string{"doc1.pdf"}}

	sub, err := p.Submit("healthcare", Input{Text: "Is it?", File: BytesAttachment("doc1.pdf", []byte("pdf"))})
	require.NoError(t, err)
	require.Equal(t, StepUpload, sub.Step())
	assert.Equal(t, []Kind{KindIntro, KindUploading}, kinds(surfaceOf(t, p, "healthcare")))

	require.Equal(t, StepQuery, p.Advance(sub, p.Execute(context.Background(), sub)))
	assert.Equal(t, []string{"upload"}, be.ops(), "query must wait for the upload")

	require.Equal(t, StepReveal, p.Advance(sub, p.Execute(context.Background(), sub)))
	s := surfaceOf(t, p, "healthcare")
	assert.Equal(t, RenderTyping, s.Messages[3].RenderState)
	assert.True(t, s.Pending, "pending until the reveal settles")

	for p.Tick(sub) {
		content := surfaceOf(t, p, "healthcare").Messages[3].Content
		if !strings.HasSuffix(content, "doc1.pdf") {
			assert.NotContains(t, content, "Confidence")
		}
	}

	s = surfaceOf(t, p, "healthcare")
	assert.Equal(t, []Kind{KindIntro, KindUploadOK, KindText, KindAnswer}, kinds(s))
	assert.Equal(t, TextUploadOK, s.Messages[1].Content)
	assert.Equal(t, "Is it?", s.Messages[2].Content)
	assert.Equal(t, "Answer:\nYes\n\nConfidence score:\n0.92\n\nSources:\n• doc1.pdf", s.Messages[3].Content)
	assert.False(t, s.Pending)
	assert.Equal(t, []string{"upload", "query"}, be.ops())
	assert.Equal(t, "doc1.pdf:pdf", be.calls[0].arg)
}

func TestPipeline_UploadFailureSkipsQuery(t *testing.T) {
	p, _, be := newTestPipeline(t)
	be.uploadErr = errors.New("503")

	require.NoError(t, p.Attach("healthcare", BytesAttachment("a.txt", []byte("x"))))
	assert.Equal(t, "a.txt", surfaceOf(t, p, "healthcare").Attachment)

	_, err := p.Run(context.Background(), "healthcare", Input{Text: "question"}, noPace)
	require.Error(t, err)

	s := surfaceOf(t, p, "healthcare")
	assert.Equal(t, []Kind{KindIntro, KindUploadFailed}, kinds(s))
	assert.Equal(t, TextUploadFailed, s.Messages[1].Content)
	assert.Equal(t, []string{"upload"}, be.ops())
	assert.False(t, s.Pending)
	assert.Empty(t, s.Attachment, "staged file cleared on settlement")
	for _, m := range s.Messages {
		assert.False(t, m.Placeholder())
	}
}

func TestPipeline_FileOnly(t *testing.T) {
	p, _, be := newTestPipeline(t)
	_, err := p.Run(context.Background(), "education", Input{File: BytesAttachment("a.txt", nil)}, noPace)
	require.NoError(t, err)
	assert.Equal(t, []Kind{KindIntro, KindUploadOK}, kinds(surfaceOf(t, p, "education")))
	assert.Equal(t, []string{"upload"}, be.ops())
}

func TestPipeline_SingleUploadingPlaceholder(t *testing.T) {
	p, _, be := newTestPipeline(t)
	be.uploadErr = errors.New("down")

	// Leave a stale uploading placeholder behind by abandoning a submission.
	sub, err := p.Submit("healthcare", Input{File: BytesAttachment("a.txt", nil)})
	require.NoError(t, err)
	p.mu.Lock()
	p.surfaces["healthcare"].pending = nil
	p.mu.Unlock()

	_, err = p.Submit("healthcare", Input{File: BytesAttachment("b.txt", nil)})
	require.NoError(t, err)
	n := 0
	for _, m := range surfaceOf(t, p, "healthcare").Messages {
		if m.Kind == KindUploading {
			n++
		}
	}
	assert.Equal(t, 1, n)
	assert.Equal(t, StepDone, p.Advance(sub, Result{}), "abandoned submission is stale")
}

func TestPipeline_QueryFailure(t *testing.T) {
	p, _, be := newTestPipeline(t)
	be.queryErr = &backend.APIError{Op: backend.PathQuery, Status: 500}

	_, err := p.Run(context.Background(), "healthcare", Input{Text: "q"}, noPace)
	assert.ErrorIs(t, err, backend.ErrRemoteFailure)

	s := surfaceOf(t, p, "healthcare")
	assert.Equal(t, []Kind{KindIntro, KindText, KindAnswerFailed}, kinds(s))
	assert.Equal(t, TextAnswerFailed, s.Messages[2].Content)
	assert.False(t, s.Pending)
}

func TestPipeline_UploadDisabled(t *testing.T) {
	be := &fakeBackend{}
	p := New(nil, fakeUsers("u"), be, Options{UploadEnabled: false}, "healthcare")

	assert.ErrorIs(t, p.Attach("healthcare", BytesAttachment("a", nil)), ErrUploadDisabled)
	_, err := p.Submit("healthcare", Input{Text: "q", File: BytesAttachment("a", nil)})
	assert.ErrorIs(t, err, ErrUploadDisabled)
	assert.False(t, surfaceOf(t, p, "healthcare").Pending)
	assert.Empty(t, be.ops())
}

func TestPipeline_SurfacesIndependent(t *testing.T) {
	p, _, be := newTestPipeline(t)

	hc, err := p.Submit("healthcare", Input{Text: "a"})
	require.NoError(t, err)
	ed, err := p.Submit("education", Input{Text: "b"})
	require.NoError(t, err, "another surface may be in flight")

	be.queryErr = errors.New("boom")
	p.Advance(hc, p.Execute(context.Background(), hc))
	be.queryErr = nil
	require.Equal(t, StepReveal, p.Advance(ed, p.Execute(context.Background(), ed)))
	p.Finish(ed)

	assert.Equal(t, KindAnswerFailed, surfaceOf(t, p, "healthcare").Messages[2].Kind)
	assert.Equal(t, KindAnswer, surfaceOf(t, p, "education").Messages[2].Kind)
}

func TestPipeline_FinishAppendsMetadataOnce(t *testing.T) {
	p, _, be := newTestPipeline(t)
	be.answer = backend.Answer{Text: "abc", Sources: []string{"s.pdf"}}

	sub, err := p.Submit("healthcare", Input{Text: "q"})
	require.NoError(t, err)
	p.Advance(sub, p.Execute(context.Background(), sub))
	p.Tick(sub)
	p.Finish(sub)
	p.Finish(sub)
	assert.False(t, p.Tick(sub))

	content := surfaceOf(t, p, "healthcare").Messages[2].Content
	assert.Equal(t, 1, strings.Count(content, "Sources:"))
	assert.Equal(t, StepDone, sub.Step())
}

func TestPipeline_ResetAbandonsInFlight(t *testing.T) {
	p, _, _ := newTestPipeline(t)
	sub, err := p.Submit("healthcare", Input{Text: "q"})
	require.NoError(t, err)
	res := p.Execute(context.Background(), sub)

	p.Reset()
	assert.Equal(t, StepDone, p.Advance(sub, res))

	s := surfaceOf(t, p, "healthcare")
	assert.Equal(t, []Kind{KindIntro}, kinds(s))
	assert.False(t, s.Pending)

	_, err = p.Submit("healthcare", Input{Text: "again"})
	assert.NoError(t, err)
}

func TestPipeline_SendsCurrentUserID(t *testing.T) {
	be := &fakeBackend{}
	p := New(nil, fakeUsers("guest"), be, Options{}, "healthcare")
	_, err := p.Run(context.Background(), "healthcare", Input{Text: "q"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "guest", be.calls[0].userID)
}
