// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog/log"

	"github.com/jeranaias/fitchat/internal/conversation"
)

// Update handles incoming messages and updates the model state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)

	case snapshotMsg:
		m = m.applySnapshot(msg.snapshot)
		return m, waitForSnapshot(m.updates)

	case sessionClosedMsg:
		m.quitting = true
		return m, tea.Quit

	case copiedMsg:
		if msg.err != nil {
			log.Warn().Err(msg.err).Msg("clipboard write failed")
			m.status = "Copy failed"
		} else {
			m.status = "Reply copied"
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// handleResize lays the screen out for the new terminal size.
func (m Model) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height
	m.theme.SetSize(msg.Width, msg.Height)

	m.input.SetWidth(msg.Width)

	vpHeight := msg.Height - m.chromeHeight()
	if vpHeight < 1 {
		vpHeight = 1
	}
	m.viewport.Width = msg.Width
	m.viewport.Height = vpHeight

	if m.opts.Markdown {
		m.markdown = newMarkdownRenderer(m.theme.IsDark, m.bubbleTextWidth())
	}

	atBottom := !m.ready || m.viewport.AtBottom()
	m.ready = true
	m.viewport.SetContent(m.renderHistory())
	if atBottom {
		m.viewport.GotoBottom()
	}
	return m, nil
}

// chromeHeight is the number of rows used by everything except the viewport.
func (m Model) chromeHeight() int {
	header := 1
	thinking := 1
	input := inputHeight + m.theme.InputContainer.GetVerticalFrameSize()
	footer := 1
	return header + thinking + input + footer
}

// bubbleTextWidth is the wrap width for text inside a bubble.
func (m Model) bubbleTextWidth() int {
	w := m.theme.MaxBubbleWidth() - m.theme.AssistantBubble.GetHorizontalFrameSize()
	if w < 10 {
		w = 10
	}
	return w
}

// applySnapshot renders a newer snapshot. Older or duplicate versions are
// ignored so a queued subscription value cannot undo a local refresh.
func (m Model) applySnapshot(snap conversation.Snapshot) Model {
	if snap.Version <= m.snap.Version {
		return m
	}
	prev := m.snap
	m.snap = snap
	if !m.ready {
		return m
	}
	m.viewport.SetContent(m.renderHistory())
	if snap.Grew(prev) {
		m.viewport.GotoBottom()
	}
	return m
}

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		m.ctrl.Close()
		m.unsubscribe()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Submit), key.Matches(msg, m.keys.Send):
		return m.submit()

	case key.Matches(msg, m.keys.CopyReply):
		reply, ok := m.snap.LastReply()
		if !ok {
			m.status = "Nothing to copy"
			return m, nil
		}
		return m, copyCmd(m.copy, reply.Content)

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.ViewUp()
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.ViewDown()
		return m, nil
	}

	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if after := m.input.Value(); after != before {
		m.status = ""
		m.ctrl.UpdatePendingInput(after)
	}
	return m, cmd
}

// submit hands the pending input to the controller. The controller decides
// whether the turn is accepted; the input box mirrors its pendingInput.
func (m Model) submit() (tea.Model, tea.Cmd) {
	m.ctrl.UpdatePendingInput(m.input.Value())
	m.ctrl.SubmitPendingInput()

	snap := m.ctrl.Snapshot()
	if snap.PendingInput != m.input.Value() {
		m.input.SetValue(snap.PendingInput)
	}
	m.status = ""
	return m.applySnapshot(snap), nil
}

// placeWidth returns the width used to align labels, falling back to the
// rendered width of s when the terminal size is unknown.
func (m Model) placeWidth(s string) int {
	if m.width > 0 {
		return m.width
	}
	return lipgloss.Width(s)
}
