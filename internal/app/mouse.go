package app

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/treykane/cli-notation/internal/placement"
)

// handleMouse turns a left press and release on the canvas into a click
// or, when the pointer moved to another cell, a drag.
func (m *Model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if m.mode != modeCompose || m.showHelp {
		return m, nil
	}
	switch msg.Action {
	case tea.MouseActionPress:
		if msg.Button != tea.MouseButtonLeft {
			return m, nil
		}
		p, ok := m.canvasPointFromMouse(msg)
		if !ok {
			return m, nil
		}
		m.dragging = true
		m.dragFrom = p
	case tea.MouseActionRelease:
		if !m.dragging {
			return m, nil
		}
		m.dragging = false
		to, ok := m.canvasPointFromMouse(msg)
		if !ok {
			m.status = "Gesture cancelled"
			return m, nil
		}
		m.applyGesture(m.dragFrom, to)
	}
	return m, nil
}

func (m *Model) applyGesture(from, to placement.Point) {
	var changed bool
	if from == to {
		changed = m.sess.Click(m.tool, to)
	} else {
		changed = m.sess.Drag(m.tool, from, to)
	}
	if changed {
		m.status = "Applied " + m.tool.Kind.String()
		return
	}
	m.status = "Nothing to " + m.tool.Kind.String() + " here"
}

func (m *Model) canvasPointFromMouse(msg tea.MouseMsg) (placement.Point, bool) {
	originX, originY := m.canvasOrigin()
	cv := canvas{layout: m.sess.Layout()}
	col, row := msg.X-originX, msg.Y-originY
	if col >= cv.width() {
		return placement.Point{}, false
	}
	return cv.point(col, row)
}
