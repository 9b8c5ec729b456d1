package eisenhower

import (
	"math"
	"time"

	"github.com/benvon/eisenhower-todo/internal/models"
)

// Aggregate computes counts and the mean completion time over tasks.
// tasks must already be scoped to what the caller may see.
func Aggregate(tasks []*models.Task, now time.Time) models.Stats {
	stats := models.Stats{
		ByQuadrant: make(map[models.Quadrant]int, len(models.Quadrants)),
		Timestamp:  now,
	}
	for _, q := range models.Quadrants {
		stats.ByQuadrant[q] = 0
	}

	var totalSeconds float64
	samples := 0
	for _, t := range tasks {
		if t == nil {
			continue
		}
		stats.Total++
		stats.ByQuadrant[t.Quadrant]++
		if t.Completed {
			stats.ByStatus.Completed++
		}
		if t.CompletedAt != nil && !t.CreatedAt.IsZero() {
			totalSeconds += t.CompletedAt.Sub(t.CreatedAt).Seconds()
			samples++
		}
	}
	stats.ByStatus.Pending = stats.Total - stats.ByStatus.Completed

	if samples > 0 {
		avg := math.Round(totalSeconds/float64(samples)*100) / 100
		stats.AverageCompletionSeconds = &avg
	}
	return stats
}
