// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package history holds the query/answer history view.
//
// Records are fetched when the history screen is entered. Deleting is a two
// step affair (request, then confirm or cancel) scoped to one record, and a
// record only leaves the list after the backend confirms. Clearing works the
// same way for the whole list.
package history

import (
	"context"
	"errors"
	"sync"

	"github.com/jeranaias/chatly-tui/internal/backend"
	"github.com/jeranaias/chatly-tui/internal/logging"
)

// User-facing copy.
const (
	TextEmpty         = "No history yet."
	TextFailed        = "Failed to load history."
	TextConfirmDelete = "Delete this entry?"
	TextConfirmClear  = "Delete all history?"
	LabelExpand       = "View full answer →"
	LabelCollapse     = "Collapse answer ↑"
)

var (
	// ErrBlocked is returned for actions attempted while signed out.
	ErrBlocked = errors.New("interaction blocked until sign-in")

	// ErrUnknownRecord is returned for ids not in the list.
	ErrUnknownRecord = errors.New("no such history record")

	// ErrNotConfirming is returned by Confirm and ConfirmClear without a
	// matching request.
	ErrNotConfirming = errors.New("no delete awaiting confirmation")

	// ErrInProgress is returned by Confirm and ConfirmClear while the same
	// remote call is already running.
	ErrInProgress = errors.New("history action already in progress")
)

// Blocker reports whether interaction is currently refused.
type Blocker interface {
	IsBlocking() bool
}

// UserSource supplies the id whose history is shown.
type UserSource interface {
	UserID() string
}

// Store is the remote history.
type Store interface {
	History(ctx context.Context, userID string) ([]backend.Record, error)
	DeleteHistory(ctx context.Context, userID string, id int64) (int64, error)
	ClearHistory(ctx context.Context, userID string) (int64, error)
}

// Status is the list's overall state.
type Status int

// Statuses.
const (
	StatusIdle Status = iota // never loaded
	StatusLoading
	StatusReady
	StatusEmpty
	StatusFailed
)

// Record is one row with its local view state.
type Record struct {
	backend.Record
	Expanded       bool
	ConfirmPending bool
	Deleting       bool // remote delete in flight
}

// ToggleLabel is the expand/collapse affordance text.
func (r Record) ToggleLabel() string {
	if r.Expanded {
		return LabelCollapse
	}
	return LabelExpand
}

// State is a snapshot of the view.
type State struct {
	Status       Status
	Records      []Record
	ClearPending bool
	Clearing     bool // remote clear in flight
}

// Placeholder is the text shown instead of a list, or "" when records show.
func (s State) Placeholder() string {
	switch s.Status {
	case StatusEmpty:
		return TextEmpty
	case StatusFailed:
		return TextFailed
	}
	return ""
}

// =============================================================================
// VIEW
// =============================================================================

// View is the history screen's state.
type View struct {
	mu    sync.Mutex
	gate  Blocker
	users UserSource
	store Store
	log   *logging.Logger
	state State
	gen   uint64
}

// New creates an unloaded view.
func New(gate Blocker, users UserSource, store Store, log *logging.Logger) *View {
	return &View{gate: gate, users: users, store: store, log: log.Named("history")}
}

func (v *View) blocked() bool {
	return v.gate != nil && v.gate.IsBlocking()
}

// State returns a snapshot.
func (v *View) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := v.state
	out.Records = append([]Record(nil), v.state.Records...)
	return out
}

// Load fetches the current user's records, replacing the list. A failure
// leaves the Failed placeholder; an empty result the Empty one.
func (v *View) Load(ctx context.Context) error {
	if v.blocked() {
		return ErrBlocked
	}
	v.mu.Lock()
	gen := v.gen
	v.state = State{Status: StatusLoading}
	v.mu.Unlock()

	userID := v.users.UserID()
	records, err := v.store.History(ctx, userID)

	v.mu.Lock()
	defer v.mu.Unlock()
	if gen != v.gen {
		// The user changed while the fetch was out.
		return nil
	}
	if err != nil {
		v.state = State{Status: StatusFailed}
		v.log.Warn("history load failed", logging.Fields{"error": err})
		return err
	}
	if len(records) == 0 {
		v.state = State{Status: StatusEmpty}
		return nil
	}
	rows := make([]Record, len(records))
	for i, r := range records {
		rows[i] = Record{Record: r}
	}
	v.state = State{Status: StatusReady, Records: rows}
	return nil
}

func (v *View) indexLocked(id int64) int {
	for i := range v.state.Records {
		if v.state.Records[i].ID == id {
			return i
		}
	}
	return -1
}

// update runs fn on record id under the lock.
func (v *View) update(id int64, fn func(*Record)) error {
	if v.blocked() {
		return ErrBlocked
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	i := v.indexLocked(id)
	if i < 0 {
		return ErrUnknownRecord
	}
	fn(&v.state.Records[i])
	return nil
}

// Toggle expands or collapses a record's answer. Purely local.
func (v *View) Toggle(id int64) error {
	return v.update(id, func(r *Record) { r.Expanded = !r.Expanded })
}

// RequestDelete shows the confirm affordance on one record.
func (v *View) RequestDelete(id int64) error {
	return v.update(id, func(r *Record) { r.ConfirmPending = true })
}

// Cancel hides a record's confirm affordance. No remote call is made.
func (v *View) Cancel(id int64) error {
	return v.update(id, func(r *Record) { r.ConfirmPending = false })
}

// Confirm deletes a record remotely. The record leaves the list only when the
// backend succeeds; on failure it stays with its confirm affordance showing.
func (v *View) Confirm(ctx context.Context, id int64) error {
	if v.blocked() {
		return ErrBlocked
	}
	v.mu.Lock()
	i := v.indexLocked(id)
	if i < 0 {
		v.mu.Unlock()
		return ErrUnknownRecord
	}
	if !v.state.Records[i].ConfirmPending {
		v.mu.Unlock()
		return ErrNotConfirming
	}
	if v.state.Records[i].Deleting {
		v.mu.Unlock()
		return ErrInProgress
	}
	v.state.Records[i].Deleting = true
	gen := v.gen
	v.mu.Unlock()

	_, err := v.store.DeleteHistory(ctx, v.users.UserID(), id)

	v.mu.Lock()
	defer v.mu.Unlock()
	if gen != v.gen {
		return nil
	}
	if err != nil {
		if i := v.indexLocked(id); i >= 0 {
			v.state.Records[i].Deleting = false
			v.state.Records[i].ConfirmPending = true
		}
		v.log.Warn("history delete failed", logging.Fields{"id": id, "error": err})
		return err
	}
	if i := v.indexLocked(id); i >= 0 {
		v.state.Records = append(v.state.Records[:i], v.state.Records[i+1:]...)
	}
	if len(v.state.Records) == 0 {
		v.state = State{Status: StatusEmpty}
	}
	return nil
}

// RequestClear prompts once for the whole list.
func (v *View) RequestClear() error {
	if v.blocked() {
		return ErrBlocked
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.state.ClearPending = true
	return nil
}

// CancelClear dismisses the clear prompt.
func (v *View) CancelClear() error {
	if v.blocked() {
		return ErrBlocked
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.state.ClearPending = false
	return nil
}

// ConfirmClear deletes every record remotely. On success the view is empty;
// on failure the list is left exactly as it was.
func (v *View) ConfirmClear(ctx context.Context) error {
	if v.blocked() {
		return ErrBlocked
	}
	v.mu.Lock()
	if !v.state.ClearPending {
		v.mu.Unlock()
		return ErrNotConfirming
	}
	if v.state.Clearing {
		v.mu.Unlock()
		return ErrInProgress
	}
	v.state.Clearing = true
	gen := v.gen
	v.mu.Unlock()

	_, err := v.store.ClearHistory(ctx, v.users.UserID())

	v.mu.Lock()
	defer v.mu.Unlock()
	if gen != v.gen {
		return nil
	}
	if err != nil {
		v.state.Clearing = false
		v.log.Warn("history clear failed", logging.Fields{"error": err})
		return err
	}
	v.state = State{Status: StatusEmpty}
	return nil
}

// Reset empties the list for a new user. In-flight calls are discarded.
func (v *View) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.gen++
	v.state = State{}
}
