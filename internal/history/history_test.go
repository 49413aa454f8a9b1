// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package history

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/chatly-tui/internal/backend"
	"github.com/jeranaias/chatly-tui/internal/logging"
)

type fakeGate struct{ blocking bool }

func (g *fakeGate) IsBlocking() bool { return g.blocking }

type fakeUsers string

func (u fakeUsers) UserID() string { return string(u) }

type fakeStore struct {
	records   []backend.Record
	loadErr   error
	deleteErr error
	clearErr  error
	deletes   []int64
	clears    int
	loads     []string

	// entered receives once a remote delete or clear starts; the call then
	// waits for release.
	entered chan struct{}
	release chan struct{}
}

func (s *fakeStore) hold() {
	if s.entered != nil {
		s.entered <- struct{}{}
		<-s.release
	}
}

func (s *fakeStore) History(ctx context.Context, userID string) ([]backend.Record, error) {
	s.loads = append(s.loads, userID)
	return s.records, s.loadErr
}

func (s *fakeStore) DeleteHistory(ctx context.Context, userID string, id int64) (int64, error) {
	s.hold()
	s.deletes = append(s.deletes, id)
	if s.deleteErr != nil {
		return 0, s.deleteErr
	}
	return 1, nil
}

func (s *fakeStore) ClearHistory(ctx context.Context, userID string) (int64, error) {
	s.hold()
	s.clears++
	if s.clearErr != nil {
		return 0, s.clearErr
	}
	return int64(len(s.records)), nil
}

func twoRecords() []backend.Record {
	return []backend.Record{
		{ID: 2, Query: "q2", Answer: "a2", Timestamp: "2025-03-02 10:00:00"},
		{ID: 1, Query: "q1", Answer: "a1", Timestamp: "2025-03-01 10:00:00"},
	}
}

func newLoadedView(t *testing.T) (*View, *fakeStore, *fakeGate) {
	t.Helper()
	store := &fakeStore{records: twoRecords()}
	gate := &fakeGate{}
	v := New(gate, fakeUsers("user-1"), store, logging.Nop())
	require.NoError(t, v.Load(context.Background()))
	return v, store, gate
}

func ids(s State) []int64 {
	out := make([]int64, len(s.Records))
	for i, r := range s.Records {
		out[i] = r.ID
	}
	return out
}

// =============================================================================
// LOAD
// =============================================================================

func TestView_Load(t *testing.T) {
	tests := []struct {
		name            string
		store           *fakeStore
		wantStatus      Status
		wantPlaceholder string
		wantErr         bool
	}{
		{"records", &fakeStore{records: twoRecords()}, StatusReady, "", false},
		{"empty", &fakeStore{records: []backend.Record{}}, StatusEmpty, TextEmpty, false},
		{"failure", &fakeStore{loadErr: errors.New("down")}, StatusFailed, TextFailed, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New(nil, fakeUsers("user-1"), tt.store, nil)
			assert.Equal(t, StatusIdle, v.State().Status)

			err := v.Load(context.Background())
			if (err != nil) != tt.wantErr {
				t.Errorf("Load() error = %v, wantErr %v", err, tt.wantErr)
			}
			s := v.State()
			assert.Equal(t, tt.wantStatus, s.Status)
			assert.Equal(t, tt.wantPlaceholder, s.Placeholder())
			assert.Equal(t, []string{"user-1"}, tt.store.loads)
		})
	}
}

func TestView_RecordsStartCollapsed(t *testing.T) {
	v, _, _ := newLoadedView(t)
	for _, r := range v.State().Records {
		assert.False(t, r.Expanded)
		assert.False(t, r.ConfirmPending)
		assert.Equal(t, LabelExpand, r.ToggleLabel())
	}
}

func TestView_Toggle(t *testing.T) {
	v, store, _ := newLoadedView(t)
	require.NoError(t, v.Toggle(2))
	s := v.State()
	assert.True(t, s.Records[0].Expanded)
	assert.Equal(t, LabelCollapse, s.Records[0].ToggleLabel())
	assert.False(t, s.Records[1].Expanded)

	require.NoError(t, v.Toggle(2))
	assert.False(t, v.State().Records[0].Expanded)
	assert.ErrorIs(t, v.Toggle(99), ErrUnknownRecord)
	assert.Empty(t, store.deletes)
}

// =============================================================================
// DELETE
// =============================================================================

func TestView_RequestThenCancel(t *testing.T) {
	v, store, _ := newLoadedView(t)
	before := v.State()

	require.NoError(t, v.RequestDelete(1))
	s := v.State()
	assert.True(t, s.Records[1].ConfirmPending)
	assert.False(t, s.Records[0].ConfirmPending, "confirm is scoped to one record")

	require.NoError(t, v.Cancel(1))
	assert.Equal(t, before, v.State())
	assert.Empty(t, store.deletes)
}

func TestView_ConfirmSuccess(t *testing.T) {
	v, store, _ := newLoadedView(t)

	require.NoError(t, v.RequestDelete(2))
	require.NoError(t, v.Confirm(context.Background(), 2))
	assert.Equal(t, []int64{1}, ids(v.State()))
	assert.Equal(t, []int64{2}, store.deletes)

	require.NoError(t, v.RequestDelete(1))
	require.NoError(t, v.Confirm(context.Background(), 1))
	s := v.State()
	assert.Empty(t, s.Records)
	assert.Equal(t, TextEmpty, s.Placeholder())
}

func TestView_ConfirmFailureKeepsRecord(t *testing.T) {
	v, store, _ := newLoadedView(t)
	store.deleteErr = &backend.APIError{Op: backend.PathHistoryDelete, Status: 500}

	require.NoError(t, v.RequestDelete(1))
	err := v.Confirm(context.Background(), 1)
	assert.ErrorIs(t, err, backend.ErrRemoteFailure)

	s := v.State()
	assert.Equal(t, []int64{2, 1}, ids(s))
	assert.True(t, s.Records[1].ConfirmPending, "confirm affordance stays visible")
}

func TestView_ConfirmTwiceIssuesOneDelete(t *testing.T) {
	v, store, _ := newLoadedView(t)
	store.entered = make(chan struct{})
	store.release = make(chan struct{})

	require.NoError(t, v.RequestDelete(1))
	done := make(chan error, 1)
	go func() { done <- v.Confirm(context.Background(), 1) }()
	<-store.entered

	assert.True(t, v.State().Records[1].Deleting)
	assert.ErrorIs(t, v.Confirm(context.Background(), 1), ErrInProgress)

	close(store.release)
	require.NoError(t, <-done)
	assert.Equal(t, []int64{1}, store.deletes)
	assert.Equal(t, []int64{2}, ids(v.State()))
}

func TestView_ConfirmFailureAllowsRetry(t *testing.T) {
	v, store, _ := newLoadedView(t)
	store.deleteErr = &backend.APIError{Op: backend.PathHistoryDelete, Status: 500}

	require.NoError(t, v.RequestDelete(1))
	require.Error(t, v.Confirm(context.Background(), 1))
	rec := v.State().Records[1]
	assert.True(t, rec.ConfirmPending)
	assert.False(t, rec.Deleting)

	store.deleteErr = nil
	require.NoError(t, v.Confirm(context.Background(), 1))
	assert.Equal(t, []int64{1, 1}, store.deletes)
	assert.Equal(t, []int64{2}, ids(v.State()))
}

func TestView_ConfirmClearTwiceIssuesOneClear(t *testing.T) {
	v, store, _ := newLoadedView(t)
	store.entered = make(chan struct{})
	store.release = make(chan struct{})

	require.NoError(t, v.RequestClear())
	done := make(chan error, 1)
	go func() { done <- v.ConfirmClear(context.Background()) }()
	<-store.entered

	assert.ErrorIs(t, v.ConfirmClear(context.Background()), ErrInProgress)

	close(store.release)
	require.NoError(t, <-done)
	assert.Equal(t, 1, store.clears)
	assert.Equal(t, TextEmpty, v.State().Placeholder())
}

func TestView_ConfirmWithoutRequest(t *testing.T) {
	v, store, _ := newLoadedView(t)
	assert.ErrorIs(t, v.Confirm(context.Background(), 1), ErrNotConfirming)
	assert.ErrorIs(t, v.Confirm(context.Background(), 42), ErrUnknownRecord)
	assert.Empty(t, store.deletes)
}

// =============================================================================
// CLEAR
// =============================================================================

func TestView_ClearAll(t *testing.T) {
	v, store, _ := newLoadedView(t)

	assert.ErrorIs(t, v.ConfirmClear(context.Background()), ErrNotConfirming)
	require.NoError(t, v.RequestClear())
	assert.True(t, v.State().ClearPending)
	require.NoError(t, v.CancelClear())
	assert.False(t, v.State().ClearPending)
	assert.Zero(t, store.clears)

	require.NoError(t, v.RequestClear())
	require.NoError(t, v.ConfirmClear(context.Background()))
	s := v.State()
	assert.Equal(t, StatusEmpty, s.Status)
	assert.Empty(t, s.Records)
	assert.False(t, s.ClearPending)
}

func TestView_ClearFailureLeavesList(t *testing.T) {
	v, store, _ := newLoadedView(t)
	store.clearErr = errors.New("down")
	v.Toggle(1)
	before := v.State()

	require.NoError(t, v.RequestClear())
	require.Error(t, v.ConfirmClear(context.Background()))

	s := v.State()
	assert.Equal(t, before.Records, s.Records)
	assert.Equal(t, StatusReady, s.Status)
}

// =============================================================================
// GATING AND RESET
// =============================================================================

func TestView_BlockedIsNoOp(t *testing.T) {
	v, store, gate := newLoadedView(t)
	before := v.State()
	gate.blocking = true

	assert.ErrorIs(t, v.Load(context.Background()), ErrBlocked)
	assert.ErrorIs(t, v.Toggle(1), ErrBlocked)
	assert.ErrorIs(t, v.RequestDelete(1), ErrBlocked)
	assert.ErrorIs(t, v.Cancel(1), ErrBlocked)
	assert.ErrorIs(t, v.Confirm(context.Background(), 1), ErrBlocked)
	assert.ErrorIs(t, v.RequestClear(), ErrBlocked)
	assert.ErrorIs(t, v.CancelClear(), ErrBlocked)
	assert.ErrorIs(t, v.ConfirmClear(context.Background()), ErrBlocked)

	assert.Equal(t, before, v.State())
	assert.Len(t, store.loads, 1)
	assert.Empty(t, store.deletes)
}

func TestView_Reset(t *testing.T) {
	v, _, _ := newLoadedView(t)
	v.RequestClear()
	v.Reset()
	s := v.State()
	assert.Equal(t, StatusIdle, s.Status)
	assert.Empty(t, s.Records)
	assert.False(t, s.ClearPending)
}

// resettingStore resets the view mid-call, as a sign-out during a fetch would.
type resettingStore struct {
	fakeStore
	view *View
}

func (s *resettingStore) History(ctx context.Context, userID string) ([]backend.Record, error) {
	s.view.Reset()
	return twoRecords(), nil
}

func TestView_StaleLoadDiscarded(t *testing.T) {
	store := &resettingStore{}
	v := New(nil, fakeUsers("u"), store, nil)
	store.view = v

	require.NoError(t, v.Load(context.Background()))
	assert.Equal(t, StatusIdle, v.State().Status)
	assert.Empty(t, v.State().Records)
}
