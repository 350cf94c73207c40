// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme names accepted by ParseThemeName.
const (
	ThemeAuto  = "auto"
	ThemeDark  = "dark"
	ThemeLight = "light"
)

// BubbleWidth is the fraction of the content width a message bubble may use.
const BubbleWidth = 0.75

// minBubbleWidth keeps bubbles readable in very narrow terminals.
const minBubbleWidth = 20

// ParseThemeName normalizes a theme name. The empty string means auto.
func ParseThemeName(name string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", ThemeAuto:
		return ThemeAuto, nil
	case ThemeDark:
		return ThemeDark, nil
	case ThemeLight:
		return ThemeLight, nil
	default:
		return "", fmt.Errorf("unknown theme %q (want auto, dark or light)", name)
	}
}

// Theme holds all the styled components for the chat client.
type Theme struct {
	// Terminal capabilities
	Name         string
	IsDark       bool
	ColorProfile termenv.Profile

	// Layout dimensions
	Width  int
	Height int

	Header         lipgloss.Style
	HeaderTitle    lipgloss.Style
	HeaderSubtitle lipgloss.Style

	UserBubble      lipgloss.Style
	AssistantBubble lipgloss.Style
	ErrorBubble     lipgloss.Style
	RoleLabel       lipgloss.Style
	Timestamp       lipgloss.Style

	InputContainer lipgloss.Style
	SendHint       lipgloss.Style
	SendDisabled   lipgloss.Style
	Spinner        lipgloss.Style
	Thinking       lipgloss.Style

	StatusBar lipgloss.Style
	Help      lipgloss.Style
	Empty     lipgloss.Style
}

// NewTheme creates a theme for the named mode. Unknown names fall back to
// auto detection.
func NewTheme(name string) *Theme {
	name, err := ParseThemeName(name)
	if err != nil {
		name = ThemeAuto
	}

	t := &Theme{
		Name:         name,
		ColorProfile: termenv.ColorProfile(),
	}
	switch name {
	case ThemeDark:
		t.IsDark = true
	case ThemeLight:
		t.IsDark = false
	default:
		t.IsDark = termenv.HasDarkBackground()
	}
	// AdaptiveColor resolves against the global renderer.
	lipgloss.SetHasDarkBackground(t.IsDark)

	t.initStyles()
	return t
}

func (t *Theme) initStyles() {
	t.Header = lipgloss.NewStyle().
		Bold(true).
		Foreground(Cyan).
		Background(SurfaceDim).
		Padding(0, 1)

	t.HeaderTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(Cyan)

	t.HeaderSubtitle = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Italic(true)

	t.UserBubble = lipgloss.NewStyle().
		Foreground(UserBubbleFg).
		Background(UserBubbleBg).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(UserBubbleBorder).
		Padding(0, 1)

	t.AssistantBubble = lipgloss.NewStyle().
		Foreground(AssistantBubbleFg).
		Background(AssistantBubbleBg).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(AssistantBubbleBorder).
		Padding(0, 1)

	t.ErrorBubble = t.AssistantBubble.
		BorderForeground(Rose).
		Foreground(Rose)

	t.RoleLabel = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Bold(true)

	t.Timestamp = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.InputContainer = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderTop(true).
		BorderForeground(Overlay)

	t.SendHint = lipgloss.NewStyle().
		Foreground(Emerald).
		Bold(true)

	t.SendDisabled = lipgloss.NewStyle().
		Foreground(OverlayDim)

	t.Spinner = lipgloss.NewStyle().Foreground(Cyan)

	t.Thinking = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Italic(true)

	t.StatusBar = lipgloss.NewStyle().
		Foreground(TextMuted).
		Background(SurfaceDim).
		Padding(0, 1)

	t.Help = lipgloss.NewStyle().Foreground(TextMuted)

	t.Empty = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true)
}

// SetSize updates the theme dimensions for responsive layouts.
func (t *Theme) SetSize(width, height int) {
	t.Width = width
	t.Height = height
}

// MaxBubbleWidth returns the outer width a message bubble may occupy.
func (t *Theme) MaxBubbleWidth() int {
	w := int(float64(t.Width) * BubbleWidth)
	if w < minBubbleWidth {
		w = minBubbleWidth
	}
	if t.Width > 0 && w > t.Width {
		w = t.Width
	}
	return w
}

// RenderUser renders content as a user bubble aligned to the right edge.
func (t *Theme) RenderUser(content string) string {
	return t.place(t.UserBubble, content, lipgloss.Right)
}

// RenderAssistant renders content as an assistant bubble aligned to the left.
func (t *Theme) RenderAssistant(content string) string {
	return t.place(t.AssistantBubble, content, lipgloss.Left)
}

// RenderError renders an assistant bubble flagged as a failed exchange.
func (t *Theme) RenderError(content string) string {
	return t.place(t.ErrorBubble, content, lipgloss.Left)
}

func (t *Theme) place(style lipgloss.Style, content string, pos lipgloss.Position) string {
	inner := t.MaxBubbleWidth() - style.GetHorizontalFrameSize()
	if inner < 1 {
		inner = 1
	}
	if lipgloss.Width(content) > inner {
		style = style.Width(inner)
	}
	bubble := style.Render(content)
	if t.Width <= 0 {
		return bubble
	}
	return lipgloss.PlaceHorizontal(t.Width, pos, bubble)
}
