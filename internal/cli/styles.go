// Package cli renders terminal output for the sift commands: styled status
// lines, the batch progress bar and interrupt handling.
package cli

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"github.com/Veraticus/sift/internal/model"
)

var (
	accentColor  = lipgloss.Color("#5DADE2")
	successColor = lipgloss.Color("#4ECDC4")
	warningColor = lipgloss.Color("#FFE66D")
	errorColor   = lipgloss.Color("#FF6B6B")
	subtleColor  = lipgloss.Color("#888888")

	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(accentColor)
	successStyle = lipgloss.NewStyle().Foreground(successColor)
	warningStyle = lipgloss.NewStyle().Foreground(warningColor)
	errorStyle   = lipgloss.NewStyle().Foreground(errorColor)
	subtleStyle  = lipgloss.NewStyle().Foreground(subtleColor)
	labelStyle   = lipgloss.NewStyle().Bold(true).Width(18)
)

// Icons.
const (
	SuccessIcon = "✓"
	ErrorIcon   = "✗"
	WarningIcon = "!"
	PendingIcon = "…"
)

// FormatTitle formats a section title.
func FormatTitle(title string) string {
	return titleStyle.Render(title)
}

// FormatSuccess formats a success message with icon.
func FormatSuccess(message string) string {
	return successStyle.Render(SuccessIcon + " " + message)
}

// FormatError formats an error message with icon.
func FormatError(message string) string {
	return errorStyle.Render(ErrorIcon + " " + message)
}

// FormatWarning formats a warning message with icon.
func FormatWarning(message string) string {
	return warningStyle.Render(WarningIcon + " " + message)
}

// FormatSubtle dims secondary text.
func FormatSubtle(message string) string {
	return subtleStyle.Render(message)
}

// FormatField renders a "label  value" line for detail views.
func FormatField(label, value string) string {
	if value == "" {
		value = subtleStyle.Render("-")
	}
	return labelStyle.Render(label) + value
}

// FormatAmount renders an amount with two decimals and its currency. A nil
// amount renders empty so FormatField shows a dash.
func FormatAmount(amount *decimal.Decimal, currency string) string {
	if amount == nil {
		return ""
	}
	return strings.TrimSpace(amount.StringFixed(2) + " " + currency)
}

// FormatStatus colors a classification status.
func FormatStatus(status model.ClassificationStatus) string {
	switch status {
	case model.StatusClassified:
		return successStyle.Render(SuccessIcon + " " + string(status))
	case model.StatusError:
		return errorStyle.Render(ErrorIcon + " " + string(status))
	default:
		return subtleStyle.Render(PendingIcon + " " + string(status))
	}
}
