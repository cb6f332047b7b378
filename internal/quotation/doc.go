// Package quotation turns generated quotation data into an editable table
// and exports it as PDF, XLSX or a Google Sheet.
//
// The generator answer is parsed leniently: code fences are stripped and
// anything that does not decode becomes a single placeholder row, so the
// user can always continue editing. Tables shorter than three rows are
// padded with blank rows.
//
// # Exports
//
//   - RenderPDF: header image, seven-column body, paginated terms and a
//     footer image on the last page
//   - RenderXLSX: the same table as a workbook
//   - SheetsExporter: writes the table into a spreadsheet
package quotation
