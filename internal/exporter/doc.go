// Package exporter renders position reports as downloadable artifacts.
//
// Two formats are supported:
//
// CSV: streamed to the response writer with a UTF-8 BOM prefix so Excel
// recognises the encoding, sectioned into lots, summary, break-even and
// the sell scenario table.
//
// XLSX: a styled excelize workbook with one sheet for the cost basis and
// one for the scenario table.
package exporter
