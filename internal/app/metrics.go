package app

import (
	"fmt"

	"github.com/treykane/cli-notation/internal/score"
)

type contentMetrics struct {
	notes         int
	texts         int
	articulations int
	lyrics        int
	highlights    int
}

func computeContentMetrics(c score.Content) contentMetrics {
	return contentMetrics{
		notes:         len(c.Notes),
		texts:         len(c.Texts),
		articulations: len(c.Articulations),
		lyrics:        len(c.Lyrics),
		highlights:    len(c.Highlights),
	}
}

func (m *Model) contentMetricsSummary() string {
	content := m.sess.Snapshot().Content
	if content.IsEmpty() {
		return ""
	}
	metrics := computeContentMetrics(content)
	summary := fmt.Sprintf("N:%d", metrics.notes)
	for _, part := range []struct {
		label string
		n     int
	}{
		{"T", metrics.texts},
		{"A", metrics.articulations},
		{"L", metrics.lyrics},
		{"H", metrics.highlights},
	} {
		if part.n > 0 {
			summary += fmt.Sprintf(" %s:%d", part.label, part.n)
		}
	}
	return summary
}
