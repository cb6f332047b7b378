package compose

import "github.com/msmeflow/quoteflow/internal/quotation"

// MessageShowEditor asks the content script to show the table overlay.
const MessageShowEditor = "SHOW_EXCEL_EDITOR"

// OverlayCellWidth is the fixed pixel width of every overlay cell.
const OverlayCellWidth = 120

// OverlayCell is one cell of the overlay table.
type OverlayCell struct {
	Value string `json:"value"`
	Width int    `json:"width"`
}

// OverlayMessage is the payload sent from the popup to the content script.
// The first row holds the column headers.
type OverlayMessage struct {
	Type string          `json:"type"`
	Data [][]OverlayCell `json:"data"`
}

// NewOverlayMessage lays out a quotation table for the overlay.
func NewOverlayMessage(t *quotation.Table) OverlayMessage {
	matrix := t.Matrix()
	data := make([][]OverlayCell, len(matrix))
	for i, row := range matrix {
		data[i] = make([]OverlayCell, len(row))
		for j, v := range row {
			data[i][j] = OverlayCell{Value: v, Width: OverlayCellWidth}
		}
	}
	return OverlayMessage{Type: MessageShowEditor, Data: data}
}
