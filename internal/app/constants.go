package app

import "time"

// Layout constants define the fixed rows around the staff canvas.
const (
	// HeaderRows is the page header above the canvas pane.
	HeaderRows = 1

	// FooterMinRows is the default number of rows reserved for the bottom
	// status/help area.
	FooterMinRows = 2
	// FooterMaxRows is the expanded footer height used when content does not
	// fit within FooterMinRows.
	FooterMaxRows = 3
)

// Canvas constants map page coordinates onto terminal cells.
const (
	// CellWidth is the number of columns one cursor increment spans.
	CellWidth = 3

	// RowsPerLine is the number of terminal rows drawn per staff line:
	// annotations, notes and lyrics.
	RowsPerLine = 3
)

// Input limits define maximum sizes for user input
const (
	// InputCharLimit is the maximum number of characters allowed in text inputs
	InputCharLimit = 120
)

const (
	// SaveTimeout bounds a manual save or export started from the editor.
	SaveTimeout = 10 * time.Second

	// PreviewWidthBucket is the granularity for preview render widths.
	PreviewWidthBucket = 20
)
