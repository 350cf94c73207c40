// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/fitchat/internal/conversation"
	"github.com/jeranaias/fitchat/internal/ui/styles"
)

// Screen text.
const (
	Title        = "Fitness AI Assistant"
	ThinkingText = "Trainer is thinking..."
	Placeholder  = "Ask about workouts, nutrition or recovery..."
	EmptyText    = "No messages yet. Say hi to your trainer."
)

// inputHeight is the number of visible lines in the input box.
const inputHeight = 3

// Options configures the chat screen.
type Options struct {
	// Theme is auto, dark or light.
	Theme string

	// ShowTimestamps prints the send time above each bubble.
	ShowTimestamps bool

	// Markdown renders assistant replies with glamour.
	Markdown bool

	// Subtitle is shown next to the title, usually the backend URL.
	Subtitle string
}

// =============================================================================
// MESSAGES
// =============================================================================

// snapshotMsg carries a snapshot published by the controller.
type snapshotMsg struct {
	snapshot conversation.Snapshot
}

// sessionClosedMsg is sent when the controller closes the subscription.
type sessionClosedMsg struct{}

// copiedMsg reports the result of a clipboard write.
type copiedMsg struct {
	err error
}

// =============================================================================
// MODEL
// =============================================================================

// Model is the bubbletea model for the chat screen.
type Model struct {
	ctrl        *conversation.Controller
	updates     <-chan conversation.Snapshot
	unsubscribe func()
	snap        conversation.Snapshot

	opts     Options
	theme    *styles.Theme
	keys     KeyMap
	input    textarea.Model
	viewport viewport.Model
	spinner  spinner.Model
	help     help.Model
	markdown *glamour.TermRenderer

	// copy writes to the system clipboard. Tests replace it.
	copy func(string) error

	width    int
	height   int
	ready    bool
	status   string
	quitting bool
}

// New creates the chat screen over ctrl. The subscription starts here so no
// snapshot published before Init is missed.
func New(ctrl *conversation.Controller, opts Options) Model {
	theme := styles.NewTheme(opts.Theme)

	ta := textarea.New()
	ta.Placeholder = Placeholder
	ta.ShowLineNumbers = false
	ta.Prompt = "> "
	ta.CharLimit = 0
	ta.SetHeight(inputHeight)
	ta.KeyMap.InsertNewline = DefaultKeyMap().Newline
	ta.Focus()

	sp := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(theme.Spinner),
	)

	vp := viewport.New(80, 20)

	updates, unsubscribe := ctrl.Subscribe()

	m := Model{
		ctrl:        ctrl,
		updates:     updates,
		unsubscribe: unsubscribe,
		snap:        ctrl.Snapshot(),
		opts:        opts,
		theme:       theme,
		keys:        DefaultKeyMap(),
		input:       ta,
		viewport:    vp,
		spinner:     sp,
		help:        help.New(),
		copy:        clipboard.WriteAll,
	}
	m.input.SetValue(m.snap.PendingInput)
	return m
}

// Init starts the subscription reader, the cursor blink and the spinner.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		waitForSnapshot(m.updates),
		textarea.Blink,
		m.spinner.Tick,
	)
}

// Snapshot returns the snapshot the screen last rendered.
func (m Model) Snapshot() conversation.Snapshot {
	return m.snap
}

// waitForSnapshot reads the next snapshot from the subscription.
func waitForSnapshot(updates <-chan conversation.Snapshot) tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-updates
		if !ok {
			return sessionClosedMsg{}
		}
		return snapshotMsg{snapshot: snap}
	}
}

// copyCmd writes text to the clipboard off the update loop.
func copyCmd(write func(string) error, text string) tea.Cmd {
	return func() tea.Msg {
		return copiedMsg{err: write(text)}
	}
}

// newMarkdownRenderer builds a glamour renderer for the given wrap width.
// A nil renderer means replies are shown as plain text.
func newMarkdownRenderer(dark bool, wrap int) *glamour.TermRenderer {
	style := "light"
	if dark {
		style = "dark"
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(wrap),
	)
	if err != nil {
		return nil
	}
	return r
}
