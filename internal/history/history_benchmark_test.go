package history

import (
	"strconv"
	"testing"

	"github.com/treykane/cli-notation/internal/score"
)

var benchmarkHistorySink int

func pageOf(notes int) score.Snapshot {
	c := score.Content{Notes: make([]score.PlacedSymbol, notes)}
	for i := range c.Notes {
		c.Notes[i] = score.PlacedSymbol{ID: "n" + strconv.Itoa(i), X: float64(i * 50)}
	}
	return score.NewSnapshot(c)
}

func BenchmarkHistory(b *testing.B) {
	sizes := []struct {
		name  string
		notes int
	}{
		{"small", 16},
		{"large", 2000},
	}

	for _, size := range sizes {
		b.Run(size.name, func(b *testing.B) {
			page := pageOf(size.notes)

			b.Run("push-capped", func(b *testing.B) {
				e := New(DefaultLimit)
				e.Reset(page)
				b.ReportAllocs()
				b.ResetTimer()

				for i := 0; i < b.N; i++ {
					e.Push(page)
				}
				past, _ := e.Depth()
				benchmarkHistorySink += past
			})

			b.Run("undo-redo", func(b *testing.B) {
				e := New(DefaultLimit)
				e.Reset(page)
				for i := 0; i < DefaultLimit; i++ {
					e.Push(page)
				}
				b.ReportAllocs()
				b.ResetTimer()

				for i := 0; i < b.N; i++ {
					e.Undo()
					e.Redo()
				}
				benchmarkHistorySink += len(e.Current().Notes)
			})
		})
	}
}
