// SPDX-License-Identifier: MPL-2.0

package cmd

import "github.com/charmbracelet/lipgloss"

// Color palette shared by all CLI output, tuned for dark terminal backgrounds.
const (
	// ColorPrimary is purple, for titles and headers.
	ColorPrimary = lipgloss.Color("#7C3AED")
	// ColorMuted is gray, for subtitles and repository identities.
	ColorMuted = lipgloss.Color("#6B7280")
	// ColorSuccess is green, for confirmations and configuration values.
	ColorSuccess = lipgloss.Color("#10B981")
	// ColorError is red.
	ColorError = lipgloss.Color("#EF4444")
	// ColorHighlight is blue, for logical paths and configuration keys.
	ColorHighlight = lipgloss.Color("#3B82F6")
	// ColorVerbose is light gray, for diagnostics and detected languages.
	ColorVerbose = lipgloss.Color("#9CA3AF")
)

var (
	// TitleStyle is for primary headers and section titles.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary)

	// SubtitleStyle is for secondary headers and placeholders such as "(none)".
	SubtitleStyle = lipgloss.NewStyle().
			Foreground(ColorMuted)

	// SuccessStyle is for success messages and configuration values.
	SuccessStyle = lipgloss.NewStyle().
			Foreground(ColorSuccess)

	// ErrorStyle is for the "Error:" label.
	ErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorError)

	// KeyStyle is for configuration keys and labels.
	KeyStyle = lipgloss.NewStyle().
			Foreground(ColorHighlight)

	// PathStyle is for logical paths of resolved entries.
	PathStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorHighlight)

	// RepoStyle is for repository identities next to resolved entries.
	RepoStyle = lipgloss.NewStyle().
			Foreground(ColorMuted).
			Italic(true)

	// VerboseStyle is for verbose output and detected languages.
	VerboseStyle = lipgloss.NewStyle().
			Foreground(ColorVerbose)
)
