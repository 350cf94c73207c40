// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across fitchat.
//
//   - TruncateRunes: UTF-8 safe truncation with ellipsis (log previews)
//   - TruncateWidth: display-width truncation for the TUI header and hints
package util
