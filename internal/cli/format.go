// Package cli provides the command-line interface for the discipline platform.
package cli

import (
	"fmt"
	"strings"
	"time"
)

// FormatCurrency formats an amount in Indian currency format (lakhs, crores).
func FormatCurrency(amount float64) string {
	negative := amount < 0
	if negative {
		amount = -amount
	}

	str := fmt.Sprintf("%.2f", amount)
	parts := strings.Split(str, ".")
	intPart := parts[0]
	decPart := parts[1]

	result := "₹" + groupIndian(intPart) + "." + decPart
	if negative {
		result = "-" + result
	}
	return result
}

// groupIndian formats an integer string in Indian numbering system.
// Indian system: 1,00,00,000 (1 crore) vs Western: 10,000,000
func groupIndian(s string) string {
	n := len(s)
	if n <= 3 {
		return s
	}

	// First group of 3 from right, then groups of 2
	result := s[n-3:]
	s = s[:n-3]
	for len(s) > 0 {
		if len(s) >= 2 {
			result = s[len(s)-2:] + "," + result
			s = s[:len(s)-2]
		} else {
			result = s + "," + result
			s = ""
		}
	}

	return result
}

// FormatPercent formats a percentage with sign.
func FormatPercent(value float64) string {
	sign := ""
	if value > 0 {
		sign = "+"
	}
	return fmt.Sprintf("%s%.2f%%", sign, value)
}

// FormatDate formats a date.
func FormatDate(t time.Time) string {
	return t.Format("02-Jan-2006")
}

// FormatDateTime formats a datetime.
func FormatDateTime(t time.Time) string {
	return t.Format("02-Jan-2006 15:04:05")
}

// FormatDuration formats a duration in human-readable form.
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	} else if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	} else if d < 24*time.Hour {
		return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
	}
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	return fmt.Sprintf("%dd %dh", days, hours)
}

// TruncateString truncates a string to max length with ellipsis.
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
