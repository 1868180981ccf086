// Package histogram renders worked-hours bars for terminal display.
package histogram

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

const (
	barWidth = 32
	// fullDay is the reference for bar scaling and coloring; the ERP owns
	// the real attendance policy, this is display only.
	fullDay = 8.0
)

var weekdayLabels = [7]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// WeekBars renders one bar per weekday (Monday first) for the given worked
// hours. Days at or above a full day render green, partial days yellow,
// empty days a grey dot.
func WeekBars(hours [7]float64) string {
	var output strings.Builder

	maxHours := fullDay
	for _, h := range hours {
		if h > maxHours {
			maxHours = h
		}
	}

	full := color.New(color.FgGreen)
	partial := color.New(color.FgYellow)
	empty := color.New(color.FgHiBlack)

	for i, h := range hours {
		output.WriteString(weekdayLabels[i])
		output.WriteString("  ")

		if h <= 0 {
			output.WriteString(empty.Sprint("·"))
			output.WriteString("\n")
			continue
		}

		width := int(h / maxHours * barWidth)
		if width < 1 {
			width = 1
		}
		bar := strings.Repeat("█", width)
		if h >= fullDay {
			output.WriteString(full.Sprint(bar))
		} else {
			output.WriteString(partial.Sprint(bar))
		}
		output.WriteString(fmt.Sprintf(" %s", FormatHours(h)))
		output.WriteString("\n")
	}

	return output.String()
}

// FormatHours renders a decimal hour count as "7h45m".
func FormatHours(h float64) string {
	whole := int(h)
	minutes := int((h - float64(whole)) * 60)
	if minutes == 0 {
		return fmt.Sprintf("%dh", whole)
	}
	return fmt.Sprintf("%dh%02dm", whole, minutes)
}
