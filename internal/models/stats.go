package models

import "time"

// StatusCounts splits a task set by completion
type StatusCounts struct {
	Completed int `json:"completed"`
	Pending   int `json:"pending"`
}

// Stats is the aggregate view over a task set
type Stats struct {
	Total                    int              `json:"total_tasks"`
	ByQuadrant               map[Quadrant]int `json:"by_quadrant"`
	ByStatus                 StatusCounts     `json:"by_status"`
	AverageCompletionSeconds *float64         `json:"average_completion_seconds"`
	Timestamp                time.Time        `json:"timestamp"`
}
