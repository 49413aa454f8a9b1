// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package settings persists user preferences (answer temperature and theme)
// in a small JSON file and watches it for edits made by other processes.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"

	"github.com/muesli/termenv"

	"github.com/jeranaias/chatly-tui/internal/util"
)

// Storage keys.
const (
	KeyTemperature = "chatly-temperature"
	KeyTheme       = "chatly-theme"
)

// Temperature bounds.
const (
	MinTemperature     = 0
	MaxTemperature     = 8
	DefaultTemperature = 4
)

// Theme is the color scheme.
type Theme string

// Themes.
const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"
)

// ErrInvalidTheme is returned for themes other than dark and light.
var ErrInvalidTheme = errors.New("theme must be dark or light")

// ErrTemperatureRange is returned for temperatures outside 0-8.
var ErrTemperatureRange = fmt.Errorf("temperature must be between %d and %d", MinTemperature, MaxTemperature)

// TemperatureLabel names a temperature value.
func TemperatureLabel(v int) string {
	switch {
	case v <= 1:
		return "Strict"
	case v <= 3:
		return "Safe"
	case v == 4:
		return "Balanced"
	case v <= 6:
		return "Creative"
	default:
		return "Very Creative"
	}
}

// TemperatureText renders the slider caption.
func TemperatureText(v int) string {
	return fmt.Sprintf("Value: %d — %s", v, TemperatureLabel(v))
}

// detectTheme picks a theme from the terminal background when none is saved.
var detectTheme = func() Theme {
	if termenv.HasDarkBackground() {
		return ThemeDark
	}
	return ThemeLight
}

// Settings is the persisted state. Missing keys mean "not chosen yet".
type Settings struct {
	Temperature *int  `json:"chatly-temperature,omitempty"`
	Theme       Theme `json:"chatly-theme,omitempty"`
}

// TemperatureOrDefault returns the saved temperature or the default.
func (s Settings) TemperatureOrDefault() int {
	if s.Temperature == nil {
		return DefaultTemperature
	}
	return *s.Temperature
}

// ThemeOrDetect returns the saved theme or one matching the terminal.
func (s Settings) ThemeOrDetect() Theme {
	if s.Theme == ThemeDark || s.Theme == ThemeLight {
		return s.Theme
	}
	return detectTheme()
}

func (s Settings) equal(o Settings) bool {
	if s.Theme != o.Theme || (s.Temperature == nil) != (o.Temperature == nil) {
		return false
	}
	return s.Temperature == nil || *s.Temperature == *o.Temperature
}

// sanitize drops out-of-range values read from disk.
func (s Settings) sanitize() Settings {
	if s.Temperature != nil && (*s.Temperature < MinTemperature || *s.Temperature > MaxTemperature) {
		s.Temperature = nil
	}
	if s.Theme != ThemeDark && s.Theme != ThemeLight {
		s.Theme = ""
	}
	return s
}

// =============================================================================
// STORE
// =============================================================================

// Store reads and writes the settings file.
type Store struct {
	path string

	mu        sync.Mutex
	current   Settings
	listeners []func(Settings)
}

// Open loads path. A missing file yields empty settings; a corrupt one is
// treated the same so a bad edit never blocks startup.
func Open(path string) (*Store, error) {
	s := &Store{path: path}
	cur, err := s.read()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		var syntaxErr *json.SyntaxError
		if !errors.As(err, &syntaxErr) {
			return nil, err
		}
	}
	s.current = cur
	return s, nil
}

// Path returns the settings file.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) read() (Settings, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return Settings{}, err
	}
	var out Settings
	if err := json.Unmarshal(data, &out); err != nil {
		return Settings{}, err
	}
	return out.sanitize(), nil
}

// Get returns the current settings.
func (s *Store) Get() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.current
	if out.Temperature != nil {
		v := *out.Temperature
		out.Temperature = &v
	}
	return out
}

// Subscribe registers fn for changes made through this store or on disk.
func (s *Store) Subscribe(fn func(Settings)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// SetTemperature saves v.
func (s *Store) SetTemperature(v int) error {
	if v < MinTemperature || v > MaxTemperature {
		return ErrTemperatureRange
	}
	return s.update(func(st *Settings) { st.Temperature = &v })
}

// SetTheme saves t.
func (s *Store) SetTheme(t Theme) error {
	if t != ThemeDark && t != ThemeLight {
		return ErrInvalidTheme
	}
	return s.update(func(st *Settings) { st.Theme = t })
}

// ToggleTheme flips between dark and light, starting from the effective theme.
func (s *Store) ToggleTheme() (Theme, error) {
	next := ThemeDark
	if s.Get().ThemeOrDetect() == ThemeDark {
		next = ThemeLight
	}
	return next, s.SetTheme(next)
}

func (s *Store) update(fn func(*Settings)) error {
	s.mu.Lock()
	next := s.current
	fn(&next)
	data, err := json.MarshalIndent(next, "", "  ")
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	if err := util.AtomicWriteFile(s.path, data, 0600); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to save settings: %w", err)
	}
	changed := !next.equal(s.current)
	s.current = next
	fns := slices.Clone(s.listeners)
	s.mu.Unlock()

	if changed {
		for _, fn := range fns {
			fn(next)
		}
	}
	return nil
}

// reload rereads the file and notifies listeners when it changed.
func (s *Store) reload() (bool, error) {
	next, err := s.read()
	if err != nil {
		return false, err
	}
	s.mu.Lock()
	if next.equal(s.current) {
		s.mu.Unlock()
		return false, nil
	}
	s.current = next
	fns := slices.Clone(s.listeners)
	s.mu.Unlock()

	for _, fn := range fns {
		fn(next)
	}
	return true, nil
}
