// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling for the fitchat terminal client.

All colors use Lip Gloss AdaptiveColor so the same palette works on light and
dark terminals. The background is detected with termenv unless the user pins
a theme in the config file.

# Message Bubbles

User messages render in a green bubble aligned to the right edge. Assistant
messages render in a gray bubble aligned to the left edge. Bubbles are capped
at BubbleWidth of the available width.

# Usage

	theme := styles.NewTheme(styles.ThemeAuto)
	theme.SetSize(width, height)
	out := theme.RenderUser("3x10 squats?")
*/
package styles
