// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/chatly-tui/internal/backend"
	"github.com/jeranaias/chatly-tui/internal/logging"
	"github.com/jeranaias/chatly-tui/internal/typewriter"
)

// Submission errors.
var (
	ErrBlocked           = errors.New("interaction blocked until sign-in")
	ErrUnknownSurface    = errors.New("unknown chat surface")
	ErrSubmissionPending = errors.New("a submission is already in progress")
	ErrEmptySubmission   = errors.New("nothing to submit")
	ErrUploadDisabled    = errors.New("document upload is disabled")
)

// Blocker reports whether interaction is currently refused.
type Blocker interface {
	IsBlocking() bool
}

// UserSource supplies the id sent with remote calls.
type UserSource interface {
	UserID() string
}

// Backend is the remote work a submission performs.
type Backend interface {
	Upload(ctx context.Context, userID, filename string, r io.Reader) (string, error)
	Query(ctx context.Context, userID, query string) (backend.Answer, error)
}

// Options configures a Pipeline.
type Options struct {
	UploadEnabled  bool
	TypewriterRate time.Duration
	Logger         *logging.Logger
}

// Input is what the user submitted.
type Input struct {
	Text string

	// File overrides the surface's staged attachment when set.
	File *Attachment
}

// Step is where a submission stands.
type Step int

// Steps.
const (
	StepUpload Step = iota
	StepQuery
	StepReveal
	StepDone
)

func (s Step) String() string {
	switch s {
	case StepUpload:
		return "upload"
	case StepQuery:
		return "query"
	case StepReveal:
		return "reveal"
	default:
		return "done"
	}
}

// Submission is one in-flight submit. Its fields are owned by the Pipeline.
type Submission struct {
	ID      string
	Surface string
	UserID  string
	Text    string
	File    *Attachment

	step        Step
	gen         uint64
	placeholder string // uploading message id
	botMsg      string // synthesizing/answer message id
	reveal      *typewriter.Reveal
	err         error
}

// Step returns the submission's current step.
func (s *Submission) Step() Step { return s.step }

// Reveal returns the answer animation once the query succeeded.
func (s *Submission) Reveal() *typewriter.Reveal { return s.reveal }

// Err returns the failure that ended the submission, if any.
func (s *Submission) Err() error { return s.err }

// Result is the outcome of Execute.
type Result struct {
	Message string // upload acknowledgement
	Answer  backend.Answer
	Err     error
}

type surface struct {
	id       string
	messages []Message
	pending  *Submission
	staged   *Attachment
}

func (s *surface) find(id string) int {
	for i := range s.messages {
		if s.messages[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *surface) findKind(k Kind) int {
	for i := range s.messages {
		if s.messages[i].Kind == k {
			return i
		}
	}
	return -1
}

func (s *surface) append(sender Sender, kind Kind, content string, rs RenderState) string {
	id := uuid.NewString()
	s.messages = append(s.messages, Message{ID: id, Sender: sender, Kind: kind, Content: content, RenderState: rs})
	return id
}

func (s *surface) replace(id string, kind Kind, content string, rs RenderState) {
	if i := s.find(id); i >= 0 {
		s.messages[i].Kind = kind
		s.messages[i].Content = content
		s.messages[i].RenderState = rs
	}
}

func introMessages() []Message {
	return []Message{{
		ID:          uuid.NewString(),
		Sender:      SenderBot,
		Kind:        KindIntro,
		Content:     TextIntro,
		RenderState: RenderSettled,
	}}
}

// =============================================================================
// PIPELINE
// =============================================================================

// Pipeline owns every chat surface.
type Pipeline struct {
	mu       sync.Mutex
	gate     Blocker
	users    UserSource
	backend  Backend
	opts     Options
	log      *logging.Logger
	order    []string
	surfaces map[string]*surface
	gen      uint64
}

// New creates a pipeline with one surface per id, each showing the intro.
func New(gate Blocker, users UserSource, b Backend, opts Options, surfaceIDs ...string) *Pipeline {
	p := &Pipeline{
		gate:     gate,
		users:    users,
		backend:  b,
		opts:     opts,
		log:      opts.Logger.Named("chat"),
		surfaces: make(map[string]*surface, len(surfaceIDs)),
	}
	if p.opts.TypewriterRate <= 0 {
		p.opts.TypewriterRate = typewriter.DefaultSpeed
	}
	for _, id := range surfaceIDs {
		if _, dup := p.surfaces[id]; dup {
			continue
		}
		p.order = append(p.order, id)
		p.surfaces[id] = &surface{id: id, messages: introMessages()}
	}
	return p
}

// SurfaceIDs lists the surfaces in creation order.
func (p *Pipeline) SurfaceIDs() []string {
	return append([]string(nil), p.order...)
}

// UploadEnabled reports whether attachments are accepted.
func (p *Pipeline) UploadEnabled() bool {
	return p.opts.UploadEnabled
}

// Surface returns a snapshot of id.
func (p *Pipeline) Surface(id string) (Surface, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.surfaces[id]
	if !ok {
		return Surface{}, false
	}
	out := Surface{
		ID:       s.id,
		Messages: append([]Message(nil), s.messages...),
		Pending:  s.pending != nil,
	}
	if s.staged != nil {
		out.Attachment = s.staged.Name
	}
	return out, true
}

// Attach stages a document for the next submission on id. A nil attachment
// clears the stage.
func (p *Pipeline) Attach(id string, a *Attachment) error {
	if p.gate != nil && p.gate.IsBlocking() {
		return ErrBlocked
	}
	if a != nil && !p.opts.UploadEnabled {
		return ErrUploadDisabled
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.surfaces[id]
	if !ok {
		return ErrUnknownSurface
	}
	s.staged = a
	return nil
}

// Submit starts a submission on id. Rejections leave the surface unchanged;
// ErrEmptySubmission means the (already cleared) input had nothing to send.
func (p *Pipeline) Submit(id string, in Input) (*Submission, error) {
	if p.gate != nil && p.gate.IsBlocking() {
		return nil, ErrBlocked
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	s, ok := p.surfaces[id]
	if !ok {
		return nil, ErrUnknownSurface
	}
	if s.pending != nil {
		return nil, ErrSubmissionPending
	}

	text := strings.TrimSpace(in.Text)
	file := in.File
	if file == nil {
		file = s.staged
	}
	if text == "" && file == nil {
		return nil, ErrEmptySubmission
	}
	if file != nil && !p.opts.UploadEnabled {
		return nil, ErrUploadDisabled
	}

	sub := &Submission{
		ID:      uuid.NewString(),
		Surface: id,
		UserID:  p.userID(),
		Text:    text,
		File:    file,
		gen:     p.gen,
	}
	s.pending = sub

	if file != nil {
		// Reuse any existing uploading placeholder so there is only ever one.
		if i := s.findKind(KindUploading); i >= 0 {
			s.messages[i].Content = TextUploading
			s.messages[i].RenderState = RenderPlain
			sub.placeholder = s.messages[i].ID
		} else {
			sub.placeholder = s.append(SenderBot, KindUploading, TextUploading, RenderPlain)
		}
		sub.step = StepUpload
	} else {
		p.startQueryLocked(s, sub)
	}

	p.log.Debug("submission started", logging.Fields{
		"surface": id, "submission": sub.ID, "step": sub.step.String(), "has_file": file != nil,
	})
	return sub, nil
}

func (p *Pipeline) userID() string {
	if p.users == nil {
		return ""
	}
	return p.users.UserID()
}

func (p *Pipeline) startQueryLocked(s *surface, sub *Submission) {
	s.append(SenderUser, KindText, sub.Text, RenderSettled)
	sub.botMsg = s.append(SenderBot, KindSynthesizing, TextSynthesizing, RenderPlain)
	sub.step = StepQuery
}

// Execute performs the remote call for sub's current step. It reads no
// surface state and may run off the UI loop.
func (p *Pipeline) Execute(ctx context.Context, sub *Submission) Result {
	switch sub.step {
	case StepUpload:
		rc, err := sub.File.Open()
		if err != nil {
			return Result{Err: fmt.Errorf("open %s: %w", sub.File.Name, err)}
		}
		defer rc.Close()
		msg, err := p.backend.Upload(ctx, sub.UserID, sub.File.Name, rc)
		return Result{Message: msg, Err: err}
	case StepQuery:
		ans, err := p.backend.Query(ctx, sub.UserID, sub.Text)
		return Result{Answer: ans, Err: err}
	default:
		return Result{}
	}
}

// currentLocked returns the surface sub belongs to if sub is still its pending
// submission. Caller holds the lock.
func (p *Pipeline) currentLocked(sub *Submission) *surface {
	if sub.gen != p.gen {
		return nil
	}
	s, ok := p.surfaces[sub.Surface]
	if !ok || s.pending != sub {
		return nil
	}
	return s
}

// settleLocked ends sub and clears the surface's pending state and staged file.
func (p *Pipeline) settleLocked(s *surface, sub *Submission, err error) {
	sub.step = StepDone
	sub.err = err
	s.pending = nil
	s.staged = nil
}

// Advance applies res to sub and returns the next step. A submission that
// was superseded by Reset returns StepDone without touching anything.
func (p *Pipeline) Advance(sub *Submission, res Result) Step {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := p.currentLocked(sub)
	if s == nil {
		sub.step = StepDone
		return StepDone
	}

	switch sub.step {
	case StepUpload:
		if res.Err != nil {
			s.replace(sub.placeholder, KindUploadFailed, TextUploadFailed, RenderSettled)
			p.log.Warn("upload failed", logging.Fields{"surface": s.id, "file": sub.File.Name, "error": res.Err})
			p.settleLocked(s, sub, res.Err)
			return StepDone
		}
		s.replace(sub.placeholder, KindUploadOK, TextUploadOK, RenderSettled)
		p.log.Info("document uploaded", logging.Fields{"surface": s.id, "file": sub.File.Name})
		if sub.Text == "" {
			p.settleLocked(s, sub, nil)
			return StepDone
		}
		p.startQueryLocked(s, sub)
		return StepQuery

	case StepQuery:
		if res.Err != nil {
			s.replace(sub.botMsg, KindAnswerFailed, TextAnswerFailed, RenderSettled)
			p.log.Warn("query failed", logging.Fields{"surface": s.id, "error": res.Err})
			p.settleLocked(s, sub, res.Err)
			return StepDone
		}
		meta := typewriter.Metadata{Confidence: string(res.Answer.Confidence), Sources: res.Answer.Sources}
		sub.reveal = typewriter.New(res.Answer.Text, meta, p.opts.TypewriterRate)
		s.replace(sub.botMsg, KindAnswer, sub.reveal.Content(), RenderTyping)
		sub.step = StepReveal
		return StepReveal
	}
	return sub.step
}

// Tick reveals the next frame of sub's answer. It returns true while more
// frames remain; the call that returns false has settled the submission.
func (p *Pipeline) Tick(sub *Submission) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := p.currentLocked(sub)
	if s == nil || sub.step != StepReveal {
		return false
	}
	body, more := sub.reveal.Next()
	if !more {
		p.finishLocked(s, sub)
		return false
	}
	s.replace(sub.botMsg, KindAnswer, body, RenderTyping)
	return true
}

// Finish completes sub's reveal immediately, metadata included, and settles.
func (p *Pipeline) Finish(sub *Submission) {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := p.currentLocked(sub)
	if s == nil || sub.step != StepReveal {
		return
	}
	p.finishLocked(s, sub)
}

func (p *Pipeline) finishLocked(s *surface, sub *Submission) {
	s.replace(sub.botMsg, KindAnswer, sub.reveal.Skip(), RenderSettled)
	p.settleLocked(s, sub, nil)
	p.log.Debug("submission settled", logging.Fields{"surface": s.id, "submission": sub.ID})
}

// Run performs a whole submission, calling pace between reveal frames.
// It returns the submission's terminal error, if any.
func (p *Pipeline) Run(ctx context.Context, id string, in Input, pace func(time.Duration)) (*Submission, error) {
	sub, err := p.Submit(id, in)
	if err != nil {
		return nil, err
	}
	for {
		switch p.Advance(sub, p.Execute(ctx, sub)) {
		case StepQuery:
			continue
		case StepReveal:
			for p.Tick(sub) {
				if pace != nil {
					pace(sub.reveal.Speed())
				}
			}
			return sub, sub.Err()
		default:
			return sub, sub.Err()
		}
	}
}

// Reset restores every surface to its intro and abandons in-flight
// submissions. Used when the signed-in user changes.
func (p *Pipeline) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gen++
	for _, s := range p.surfaces {
		s.messages = introMessages()
		s.pending = nil
		s.staged = nil
	}
}
