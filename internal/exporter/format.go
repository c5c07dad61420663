package exporter

import (
	"fmt"
)

// formatFloat formats a float64 value for export with exactly 2 decimal
// places, so values like 13.4 appear as 13.40
func formatFloat(f float64) string {
	return fmt.Sprintf("%.2f", f)
}

// formatPrice formats a per-share price with 4 decimal places; fee-adjusted
// prices carry more precision than money totals
func formatPrice(f float64) string {
	return fmt.Sprintf("%.4f", f)
}

// formatInt formats an int64 value for export
func formatInt(i int64) string {
	return fmt.Sprintf("%d", i)
}
