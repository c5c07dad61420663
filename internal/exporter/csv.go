package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"

	api "calqtrade/pkg/contracts/api/v1"
)

// Exporter renders position reports in downloadable formats
type Exporter struct {
	logger *slog.Logger
}

// New creates an exporter
func New(logger *slog.Logger) *Exporter {
	return &Exporter{
		logger: logger.With(slog.String("component", "exporter")),
	}
}

// ContentType returns the MIME type for a supported export format
func ContentType(format string) string {
	if format == "xlsx" {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// FileName builds the download file name for a session report
func FileName(sessionID, format string) string {
	short := sessionID
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("position_%s.%s", short, format)
}

// PositionCSV streams a position report as sectioned CSV with a UTF-8 BOM
// prefix for Excel compatibility
func (e *Exporter) PositionCSV(w io.Writer, report api.PositionResponse) error {
	if _, err := w.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
		return fmt.Errorf("failed to write BOM: %w", err)
	}

	writer := csv.NewWriter(w)
	defer writer.Flush()

	rows := [][]string{
		{"Lots"},
		{"Price", "Quantity", "Buy Value", "Buy Fee", "Average Price", "Total Cost"},
	}
	for _, lot := range report.Summary.Lots {
		rows = append(rows, []string{
			formatPrice(lot.Price),
			formatInt(lot.Quantity),
			formatFloat(lot.BuyValue),
			formatFloat(lot.BuyFee),
			formatPrice(lot.AveragePrice),
			formatFloat(lot.TotalCost),
		})
	}

	rows = append(rows,
		[]string{},
		[]string{"Summary"},
		[]string{"Policy", report.Policy},
		[]string{"Total Quantity", formatInt(report.Summary.TotalQuantity)},
		[]string{"Total Buy Value", formatFloat(report.Summary.TotalBuyValue)},
		[]string{"Total Buy Fee", formatFloat(report.Summary.TotalBuyFee)},
		[]string{"Total Cost", formatFloat(report.Summary.TotalCost)},
		[]string{"Overall Average Price", formatPrice(report.Summary.OverallAveragePrice)},
		[]string{"Weighted Average Price", formatPrice(report.Summary.WeightedAveragePrice)},
		[]string{"Fee Impact %", formatFloat(report.Summary.FeeImpactPct)},
		[]string{},
		[]string{"Break-even"},
		[]string{"Break-even Sell Price", formatPrice(report.BreakEven.BreakEvenSellPrice)},
		[]string{"Sell Fee At Break-even", formatFloat(report.BreakEven.SellFeeAtBreakEven)},
		[]string{"Price Increase", formatPrice(report.BreakEven.PriceIncrease)},
		[]string{"Percent Move", formatFloat(report.BreakEven.PercentMove)},
	)

	if len(report.Scenarios) > 0 {
		rows = append(rows,
			[]string{},
			[]string{"Scenarios"},
			[]string{"Basis", "Sell Price", "Sell Value", "Sell Fee", "Net Proceeds", "Gain/Loss", "Gain/Loss %"},
		)
		for _, sc := range report.Scenarios {
			rows = append(rows, []string{
				sc.Basis,
				formatPrice(sc.SellPrice),
				formatFloat(sc.SellValue),
				formatFloat(sc.SellFee),
				formatFloat(sc.NetProceeds),
				formatFloat(sc.GainLoss),
				formatFloat(sc.GainLossPct),
			})
		}
	}

	for i, row := range rows {
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i, err)
		}
	}

	return writer.Error()
}
