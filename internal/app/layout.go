// layout.go centralizes the terminal layout of the editor.
//
// The screen is a one-row page header, a bordered pane holding the staff
// canvas (or the export preview), an optional input row and the footer.
// The footer reserves two or three rows depending on how much of the status
// fits.
package app

// LayoutDimensions holds all calculated layout dimensions for the UI.
type LayoutDimensions struct {
	PaneHeight     int // total height of the bordered pane
	ViewportWidth  int // usable width inside the pane
	ViewportHeight int // usable height inside the pane
	InputRows      int // rows used by the text input, 0 or 1
	FooterRows     int
}

// calculateLayout computes all UI dimensions based on terminal size and mode.
func (m *Model) calculateLayout() LayoutDimensions {
	footer := m.footerHeightForWidth(m.width)
	input := 0
	if m.mode == modeInput {
		input = 1
	}
	paneHeight := max(0, m.height-HeaderRows-input-footer)
	style := m.paneStyle()
	return LayoutDimensions{
		PaneHeight:     paneHeight,
		ViewportWidth:  max(0, m.width-style.GetHorizontalFrameSize()),
		ViewportHeight: max(0, paneHeight-style.GetVerticalFrameSize()),
		InputRows:      input,
		FooterRows:     footer,
	}
}

// footerHeightForWidth prefers FooterMinRows and expands to FooterMaxRows
// when the footer segments cannot fit without dropping content.
func (m *Model) footerHeightForWidth(width int) int {
	if width <= 0 {
		return FooterMinRows
	}
	if _, fit := m.buildStatusRows(width, FooterMinRows); fit {
		return FooterMinRows
	}
	return FooterMaxRows
}

// canvasOrigin is the terminal cell of canvas column 0, row 0.
func (m *Model) canvasOrigin() (x, y int) {
	style := m.paneStyle()
	x = style.GetBorderLeftSize() + style.GetPaddingLeft()
	y = HeaderRows + style.GetBorderTopSize() + style.GetPaddingTop()
	return x, y
}

// updateLayout resizes the widgets after a terminal or mode change.
func (m *Model) updateLayout() {
	layout := m.calculateLayout()
	m.viewport.Width = layout.ViewportWidth
	m.viewport.Height = layout.ViewportHeight
	m.input.Width = max(0, m.width-4)
}
