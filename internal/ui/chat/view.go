// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/fitchat/internal/conversation"
	"github.com/jeranaias/fitchat/internal/model"
	"github.com/jeranaias/fitchat/internal/util"
)

// View renders the chat screen.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Loading..."
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		m.viewport.View(),
		m.renderThinking(),
		m.theme.InputContainer.Width(m.width).Render(m.input.View()),
		m.renderFooter(),
	)
}

// renderHeader draws the title bar. The subtitle is cut to fit one line.
func (m Model) renderHeader() string {
	title := m.theme.HeaderTitle.Render(Title)
	frame := m.theme.Header.GetHorizontalFrameSize()

	line := title
	if m.opts.Subtitle != "" {
		room := m.width - frame - lipgloss.Width(title) - 3
		if room > 3 {
			sub := util.TruncateWidth(m.opts.Subtitle, room)
			line += " · " + m.theme.HeaderSubtitle.Render(sub)
		}
	}
	return m.theme.Header.Width(m.width).MaxHeight(1).Render(line)
}

// renderThinking draws the spinner row. The row stays blank while idle.
func (m Model) renderThinking() string {
	if !m.snap.AwaitingReply {
		return ""
	}
	return m.spinner.View() + " " + m.theme.Thinking.Render(ThinkingText)
}

// renderFooter draws the send hint, the status text and the key help.
func (m Model) renderFooter() string {
	hint := m.theme.SendHint.Render("enter send")
	if m.snap.AwaitingReply {
		hint = m.theme.SendDisabled.Render("enter send")
	}

	parts := []string{hint}
	if m.status != "" {
		parts = append(parts, m.theme.Help.Render(m.status))
	}
	parts = append(parts, m.help.ShortHelpView(m.keys.ShortHelp()))

	footer := strings.Join(parts, "  ")
	if m.width > 0 {
		footer = lipgloss.NewStyle().MaxWidth(m.width).Render(footer)
	}
	return footer
}

// renderHistory draws every message as a bubble.
func (m Model) renderHistory() string {
	if len(m.snap.Messages) == 0 {
		empty := m.theme.Empty.Render(EmptyText)
		return lipgloss.PlaceHorizontal(m.placeWidth(empty), lipgloss.Center, empty)
	}

	var b strings.Builder
	for i, msg := range m.snap.Messages {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(m.renderMessage(msg))
		b.WriteString("\n")
	}
	return b.String()
}

// renderMessage draws the label line and bubble for one message.
func (m Model) renderMessage(msg model.Message) string {
	label := m.theme.RoleLabel.Render(msg.Role.DisplayName())
	if m.opts.ShowTimestamps && !msg.Timestamp.IsZero() {
		label += " " + m.theme.Timestamp.Render(msg.Timestamp.Format("15:04"))
	}

	var bubble string
	align := lipgloss.Left
	switch {
	case msg.IsUser():
		bubble = m.theme.RenderUser(msg.Content)
		align = lipgloss.Right
	case msg.Content == conversation.ErrorReplyText:
		bubble = m.theme.RenderError(msg.Content)
	default:
		bubble = m.theme.RenderAssistant(m.renderReply(msg.Content))
	}

	return lipgloss.PlaceHorizontal(m.placeWidth(label), align, label) + "\n" + bubble
}

// renderReply renders assistant markdown, falling back to the raw text.
func (m Model) renderReply(content string) string {
	if m.markdown == nil || content == conversation.NoReplyText {
		return content
	}
	out, err := m.markdown.Render(content)
	if err != nil {
		return content
	}
	out = strings.Trim(out, "\n")
	if strings.TrimSpace(out) == "" {
		return content
	}
	return out
}
