package exporter

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	api "calqtrade/pkg/contracts/api/v1"
)

const (
	sheetPosition  = "Position"
	sheetScenarios = "Scenarios"
)

// PositionXLSX writes a position report as a styled two-sheet workbook
func (e *Exporter) PositionXLSX(w io.Writer, report api.PositionResponse) error {
	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName("Sheet1", sheetPosition)
	if _, err := f.NewSheet(sheetScenarios); err != nil {
		return fmt.Errorf("failed to create scenarios sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"4472C4"}},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	labelStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
	})
	if err != nil {
		return fmt.Errorf("failed to create label style: %w", err)
	}

	if err := e.writePositionSheet(f, report, headerStyle, labelStyle); err != nil {
		return err
	}
	if err := e.writeScenariosSheet(f, report, headerStyle); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func (e *Exporter) writePositionSheet(f *excelize.File, report api.PositionResponse, headerStyle, labelStyle int) error {
	headers := []interface{}{"Price", "Quantity", "Buy Value", "Buy Fee", "Average Price", "Total Cost"}
	if err := f.SetSheetRow(sheetPosition, "A1", &headers); err != nil {
		return fmt.Errorf("failed to write lot headers: %w", err)
	}
	if err := f.SetCellStyle(sheetPosition, "A1", "F1", headerStyle); err != nil {
		return fmt.Errorf("failed to style lot headers: %w", err)
	}

	row := 2
	for _, lot := range report.Summary.Lots {
		values := []interface{}{lot.Price, lot.Quantity, lot.BuyValue, lot.BuyFee, lot.AveragePrice, lot.TotalCost}
		cell := fmt.Sprintf("A%d", row)
		if err := f.SetSheetRow(sheetPosition, cell, &values); err != nil {
			return fmt.Errorf("failed to write lot row %d: %w", row, err)
		}
		row++
	}

	row++
	summary := [][2]interface{}{
		{"Policy", report.Policy},
		{"Total Quantity", report.Summary.TotalQuantity},
		{"Total Buy Value", report.Summary.TotalBuyValue},
		{"Total Buy Fee", report.Summary.TotalBuyFee},
		{"Total Cost", report.Summary.TotalCost},
		{"Overall Average Price", report.Summary.OverallAveragePrice},
		{"Weighted Average Price", report.Summary.WeightedAveragePrice},
		{"Fee Impact %", report.Summary.FeeImpactPct},
		{"Break-even Sell Price", report.BreakEven.BreakEvenSellPrice},
		{"Sell Fee At Break-even", report.BreakEven.SellFeeAtBreakEven},
		{"Percent Move", report.BreakEven.PercentMove},
	}
	for _, kv := range summary {
		labelCell := fmt.Sprintf("A%d", row)
		valueCell := fmt.Sprintf("B%d", row)
		if err := f.SetCellValue(sheetPosition, labelCell, kv[0]); err != nil {
			return fmt.Errorf("failed to write summary label: %w", err)
		}
		if err := f.SetCellValue(sheetPosition, valueCell, kv[1]); err != nil {
			return fmt.Errorf("failed to write summary value: %w", err)
		}
		if err := f.SetCellStyle(sheetPosition, labelCell, labelCell, labelStyle); err != nil {
			return fmt.Errorf("failed to style summary label: %w", err)
		}
		row++
	}

	if err := f.SetColWidth(sheetPosition, "A", "F", 22); err != nil {
		return fmt.Errorf("failed to size columns: %w", err)
	}
	return nil
}

func (e *Exporter) writeScenariosSheet(f *excelize.File, report api.PositionResponse, headerStyle int) error {
	headers := []interface{}{"Basis", "Sell Price", "Sell Value", "Sell Fee", "Net Proceeds", "Gain/Loss", "Gain/Loss %"}
	if err := f.SetSheetRow(sheetScenarios, "A1", &headers); err != nil {
		return fmt.Errorf("failed to write scenario headers: %w", err)
	}
	if err := f.SetCellStyle(sheetScenarios, "A1", "G1", headerStyle); err != nil {
		return fmt.Errorf("failed to style scenario headers: %w", err)
	}

	for i, sc := range report.Scenarios {
		values := []interface{}{sc.Basis, sc.SellPrice, sc.SellValue, sc.SellFee, sc.NetProceeds, sc.GainLoss, sc.GainLossPct}
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(sheetScenarios, cell, &values); err != nil {
			return fmt.Errorf("failed to write scenario row %d: %w", i, err)
		}
	}

	if err := f.SetColWidth(sheetScenarios, "A", "G", 18); err != nil {
		return fmt.Errorf("failed to size columns: %w", err)
	}
	return nil
}
