// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package nav tracks which screen is showing and how the user moves between
// screens.
//
// Every movement is refused while the auth gate is blocking. The navigator
// remembers the last chat screen for a "resume" action and the selected topic
// for the start action, which passes through a loading screen before landing.
//
// # Usage
//
//	n := nav.New(gate, cfg.Nav.LoadingDwell())
//	n.OnEnter(func(s nav.ScreenID) { ... })
//	if plan, ok := n.Start(); ok {
//	    time.AfterFunc(plan.Dwell, func() { n.CompleteStart(plan) })
//	}
package nav

import (
	"slices"
	"sync"
	"time"
)

// ScreenID names a screen.
type ScreenID string

// Known screens.
const (
	ScreenHome       ScreenID = "screen-home"
	ScreenHealthcare ScreenID = "screen-healthcare"
	ScreenEducation  ScreenID = "screen-education"
	ScreenHistory    ScreenID = "screen-history"
	ScreenSettings   ScreenID = "screen-settings"
	ScreenLoading    ScreenID = "screen-loading"
)

var knownScreens = []ScreenID{
	ScreenHome, ScreenHealthcare, ScreenEducation, ScreenHistory, ScreenSettings, ScreenLoading,
}

// Screens returns every known screen in display order.
func Screens() []ScreenID {
	out := make([]ScreenID, len(knownScreens))
	copy(out, knownScreens)
	return out
}

// Known reports whether id is a known screen.
func (id ScreenID) Known() bool {
	for _, s := range knownScreens {
		if s == id {
			return true
		}
	}
	return false
}

// IsChat reports whether id is one of the chat screens.
func (id ScreenID) IsChat() bool {
	return id == ScreenHealthcare || id == ScreenEducation
}

// highlightable reports whether id has a nav item of its own.
func (id ScreenID) highlightable() bool {
	return id != ScreenHome && id != ScreenLoading
}

// Topic is a chat subject.
type Topic string

// Topics.
const (
	TopicHealthcare Topic = "healthcare"
	TopicEducation  Topic = "education"
)

// Topics returns the chat topics in display order.
func Topics() []Topic {
	return []Topic{TopicHealthcare, TopicEducation}
}

// Known reports whether t is a known topic.
func (t Topic) Known() bool {
	return t == TopicHealthcare || t == TopicEducation
}

// Screen returns the chat screen for t.
func (t Topic) Screen() ScreenID {
	if t == TopicEducation {
		return ScreenEducation
	}
	return ScreenHealthcare
}

// LoadingText is the copy shown while starting a chat on t.
func (t Topic) LoadingText() string {
	if t == TopicEducation {
		return "Organising your resources..."
	}
	return "Scrubbing in..."
}

// TopicFor returns the topic whose chat screen is id.
func TopicFor(id ScreenID) (Topic, bool) {
	switch id {
	case ScreenHealthcare:
		return TopicHealthcare, true
	case ScreenEducation:
		return TopicEducation, true
	}
	return "", false
}

// Defaults.
const (
	DefaultLastChat = ScreenHealthcare
	DefaultTopic    = TopicHealthcare
)

// Blocker reports whether interaction is currently refused.
type Blocker interface {
	IsBlocking() bool
}

// State is a snapshot of the navigator.
type State struct {
	Current       ScreenID
	Highlight     ScreenID // empty when no nav item is active
	LastChat      ScreenID
	SelectedTopic Topic
}

// StartPlan describes an in-progress start action.
type StartPlan struct {
	Target      ScreenID
	LoadingText string
	Dwell       time.Duration
	seq         uint64
}

// =============================================================================
// NAVIGATOR
// =============================================================================

// Navigator owns the screen state.
type Navigator struct {
	mu        sync.Mutex
	gate      Blocker
	dwell     time.Duration
	state     State
	startSeq  uint64
	listeners []func(ScreenID)
}

// New creates a navigator on the home screen.
func New(gate Blocker, dwell time.Duration) *Navigator {
	if dwell < 0 {
		dwell = 0
	}
	return &Navigator{gate: gate, dwell: dwell, state: defaultState()}
}

func defaultState() State {
	return State{Current: ScreenHome, LastChat: DefaultLastChat, SelectedTopic: DefaultTopic}
}

// OnEnter registers fn to run after every screen change with the screen
// entered. Called outside the navigator's lock.
func (n *Navigator) OnEnter(fn func(ScreenID)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.listeners = append(n.listeners, fn)
}

// State returns a snapshot.
func (n *Navigator) State() State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// Current returns the showing screen.
func (n *Navigator) Current() ScreenID {
	return n.State().Current
}

func (n *Navigator) blocked() bool {
	return n.gate != nil && n.gate.IsBlocking()
}

// show moves to id. Caller holds the lock; returns the listeners to notify.
func (n *Navigator) showLocked(id ScreenID) []func(ScreenID) {
	n.state.Current = id
	if id.highlightable() {
		n.state.Highlight = id
	} else {
		n.state.Highlight = ""
	}
	if id.IsChat() {
		n.state.LastChat = id
	}
	return slices.Clone(n.listeners)
}

func notify(fns []func(ScreenID), id ScreenID) {
	for _, fn := range fns {
		fn(id)
	}
}

// GoTo shows id. Returns false, changing nothing, when the gate is blocking
// or id is not a known screen.
func (n *Navigator) GoTo(id ScreenID) bool {
	if !id.Known() || n.blocked() {
		return false
	}
	n.mu.Lock()
	fns := n.showLocked(id)
	n.mu.Unlock()
	notify(fns, id)
	return true
}

// GoToLastChat shows the most recently visited chat screen.
func (n *Navigator) GoToLastChat() bool {
	return n.GoTo(n.State().LastChat)
}

// SelectTopic records t as the topic for the next start. It never navigates.
func (n *Navigator) SelectTopic(t Topic) bool {
	if !t.Known() || n.blocked() {
		return false
	}
	n.mu.Lock()
	n.state.SelectedTopic = t
	n.mu.Unlock()
	return true
}

// Start shows the loading screen for the selected topic. The caller waits
// plan.Dwell and then calls CompleteStart.
func (n *Navigator) Start() (StartPlan, bool) {
	if n.blocked() {
		return StartPlan{}, false
	}
	n.mu.Lock()
	n.startSeq++
	topic := n.state.SelectedTopic
	plan := StartPlan{
		Target:      topic.Screen(),
		LoadingText: topic.LoadingText(),
		Dwell:       n.dwell,
		seq:         n.startSeq,
	}
	fns := n.showLocked(ScreenLoading)
	n.mu.Unlock()
	notify(fns, ScreenLoading)
	return plan, true
}

// CompleteStart lands on plan.Target if the loading screen from that start
// is still showing. A sign-out, a navigation or a newer start during the
// dwell cancels the landing.
func (n *Navigator) CompleteStart(plan StartPlan) bool {
	if n.blocked() {
		return false
	}
	n.mu.Lock()
	if n.state.Current != ScreenLoading || plan.seq != n.startSeq {
		n.mu.Unlock()
		return false
	}
	fns := n.showLocked(plan.Target)
	n.mu.Unlock()
	notify(fns, plan.Target)
	return true
}

// ForceHome shows the home screen with no highlight. Used right after sign-in,
// when the gate may still be settling, so it is not gated.
func (n *Navigator) ForceHome() {
	n.mu.Lock()
	n.startSeq++
	fns := n.showLocked(ScreenHome)
	n.mu.Unlock()
	notify(fns, ScreenHome)
}

// Reset restores the initial state. Listeners are not notified.
func (n *Navigator) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.startSeq++
	n.state = defaultState()
}
