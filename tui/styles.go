// Package tui holds the terminal styles and cards the captionkit wizard prints.
package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"captionkit/caption"
)

// Color palette - Catppuccin Mocha inspired
var (
	// Primary colors
	ColorPrimary   = lipgloss.AdaptiveColor{Light: "#7C3AED", Dark: "#A78BFA"} // Violet
	ColorSecondary = lipgloss.AdaptiveColor{Light: "#0EA5E9", Dark: "#38BDF8"} // Sky blue
	ColorAccent    = lipgloss.AdaptiveColor{Light: "#F59E0B", Dark: "#FBBF24"} // Amber

	// Semantic colors
	ColorSuccess = lipgloss.AdaptiveColor{Light: "#10B981", Dark: "#34D399"}
	ColorWarning = lipgloss.AdaptiveColor{Light: "#F59E0B", Dark: "#FBBF24"}
	ColorError   = lipgloss.AdaptiveColor{Light: "#EF4444", Dark: "#F87171"}
	ColorInfo    = lipgloss.AdaptiveColor{Light: "#6366F1", Dark: "#818CF8"}

	// Neutral colors
	ColorText   = lipgloss.AdaptiveColor{Light: "#1E293B", Dark: "#F1F5F9"}
	ColorSubtle = lipgloss.AdaptiveColor{Light: "#64748B", Dark: "#94A3B8"}
	ColorMuted  = lipgloss.AdaptiveColor{Light: "#94A3B8", Dark: "#64748B"}
	ColorBorder = lipgloss.AdaptiveColor{Light: "#CBD5E1", Dark: "#334155"}

	// Hashtags
	ColorTag = lipgloss.AdaptiveColor{Light: "#DB2777", Dark: "#F472B6"}
)

// Base styles
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary).
			MarginBottom(1)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(ColorSecondary).
			MarginBottom(1)

	BodyStyle = lipgloss.NewStyle().
			Foreground(ColorText)

	MutedStyle = lipgloss.NewStyle().
			Foreground(ColorMuted)

	SuccessStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorSuccess)

	ErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorError)

	WarningStyle = lipgloss.NewStyle().
			Foreground(ColorWarning)

	InfoStyle = lipgloss.NewStyle().
			Foreground(ColorInfo)

	TagStyle = lipgloss.NewStyle().
			Foreground(ColorTag)

	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder).
			Padding(1, 2).
			MarginTop(1).
			MarginBottom(1)

	BadgeStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Background(ColorPrimary).
			Foreground(lipgloss.Color("#FFFFFF"))

	BadgeWarningStyle = lipgloss.NewStyle().
				Padding(0, 1).
				Background(ColorWarning).
				Foreground(lipgloss.Color("#000000"))
)

// Logo is the banner printed when the wizard starts.
var Logo = `
    ╭─────────────────────────────────────╮
    │  ✍  captionkit - captions to post   │
    ╰─────────────────────────────────────╯`

// Header returns the styled banner.
func Header() string {
	return lipgloss.NewStyle().
		Foreground(ColorAccent).
		Bold(true).
		Render(Logo)
}

// WizardStep represents a step in the wizard UI
type WizardStep struct {
	Title  string
	Status StepStatus
}

// StepStatus represents the status of a wizard step
type StepStatus int

const (
	StepPending StepStatus = iota
	StepActive
	StepCompleted
	StepError
)

// Steps returns the wizard steps with current marked active and earlier ones completed.
func Steps(current int) []WizardStep {
	titles := []string{"Media", "Brief", "Captions", "Style", "Share"}
	steps := make([]WizardStep, len(titles))
	for i, title := range titles {
		status := StepPending
		switch {
		case i < current:
			status = StepCompleted
		case i == current:
			status = StepActive
		}
		steps[i] = WizardStep{Title: title, Status: status}
	}
	return steps
}

// StepIndicator renders a one-line step indicator
func StepIndicator(steps []WizardStep) string {
	var sb strings.Builder

	for i, step := range steps {
		var icon string
		var style lipgloss.Style

		switch step.Status {
		case StepCompleted:
			icon = "[x]"
			style = lipgloss.NewStyle().Foreground(ColorSuccess)
		case StepActive:
			icon = "[>]"
			style = lipgloss.NewStyle().Foreground(ColorPrimary).Bold(true)
		case StepError:
			icon = "[!]"
			style = lipgloss.NewStyle().Foreground(ColorError)
		default:
			icon = "[ ]"
			style = lipgloss.NewStyle().Foreground(ColorMuted)
		}

		sb.WriteString(style.Render(icon + " " + step.Title))

		if i < len(steps)-1 {
			connector := lipgloss.NewStyle().Foreground(ColorMuted)
			if step.Status == StepCompleted {
				connector = lipgloss.NewStyle().Foreground(ColorSuccess)
			}
			sb.WriteString(connector.Render(" --- "))
		}
	}

	return sb.String()
}

// Card renders a titled box
func Card(title, content string, width int) string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorPrimary).
		MarginBottom(1)

	cardStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorBorder).
		Padding(1, 2).
		Width(width)

	return cardStyle.Render(titleStyle.Render(title) + "\n" + BodyStyle.Render(content))
}

// CaptionCard renders caption number n (1-based) as it will be shared.
func CaptionCard(n int, c caption.Caption, width int) string {
	var parts []string
	if c.Body != "" {
		parts = append(parts, BodyStyle.Render(c.Body))
	}
	if c.CallToAction != "" {
		parts = append(parts, InfoStyle.Italic(true).Render(c.CallToAction))
	}
	if tags := c.Hashtags(); tags != "" {
		parts = append(parts, TagStyle.Render(tags))
	}

	title := c.Title
	if title == "" {
		title = "Untitled"
	}
	return Card(fmt.Sprintf("%d. %s", n, title), strings.Join(parts, "\n\n"), width)
}

// OptionLabel is the one-line label used in the caption picker.
func OptionLabel(n int, c caption.Caption) string {
	label := c.Title
	if label == "" {
		label = c.Body
	}
	const limit = 60
	if r := []rune(label); len(r) > limit {
		label = string(r[:limit-3]) + "..."
	}
	return fmt.Sprintf("%d. %s", n, label)
}

// QuotaBadge shows how many requests are left today. Negative means unknown.
func QuotaBadge(remaining int) string {
	switch {
	case remaining < 0:
		return ""
	case remaining <= 2:
		return BadgeWarningStyle.Render(fmt.Sprintf("%d left today", remaining))
	default:
		return BadgeStyle.Render(fmt.Sprintf("%d left today", remaining))
	}
}

// KeyHelp renders keyboard shortcut help in key order
func KeyHelp(keys map[string]string) string {
	helpStyle := lipgloss.NewStyle().
		Foreground(ColorMuted).
		MarginTop(1)

	keyStyle := lipgloss.NewStyle().
		Foreground(ColorSubtle).
		Bold(true)

	names := make([]string, 0, len(keys))
	for key := range keys {
		names = append(names, key)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, key := range names {
		parts = append(parts, keyStyle.Render(key)+MutedStyle.Render(" "+keys[key]))
	}

	sep := lipgloss.NewStyle().Foreground(ColorBorder).Render(" | ")
	return helpStyle.Render(strings.Join(parts, sep))
}
