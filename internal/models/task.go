package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// DateLayout is the wire and storage format for calendar days.
const DateLayout = "2006-01-02"

// MaxTaskTextLength bounds the task text.
const MaxTaskTextLength = 500

// Task priorities.
const (
	PriorityNormal = 0
	PriorityHigh   = 1
)

// ErrInvalidTask is returned for empty or oversized task text.
var ErrInvalidTask = errors.New("invalid task")

// NormalizeTaskText trims text and checks its length.
func NormalizeTaskText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: text cannot be empty", ErrInvalidTask)
	}
	if utf8.RuneCountInString(text) > MaxTaskTextLength {
		return "", fmt.Errorf("%w: text cannot exceed %d characters", ErrInvalidTask, MaxTaskTextLength)
	}
	return text, nil
}

// ValidPriority reports whether p is a known priority.
func ValidPriority(p int) bool {
	return p == PriorityNormal || p == PriorityHigh
}

// Task is a to-do item scoped to a single day.
type Task struct {
	ID          string     `json:"id"`
	Text        string     `json:"text"`
	Completed   bool       `json:"completed"`
	TaskDate    string     `json:"taskDate"`
	Priority    int        `json:"priority"`
	CreatedAt   time.Time  `json:"createdAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// IsHighPriority reports whether the task is flagged high priority.
func (t *Task) IsHighPriority() bool {
	return t.Priority > 0
}

// IsOverdue reports whether an incomplete task belongs to a day before today.
func (t *Task) IsOverdue(today string) bool {
	return !t.Completed && t.TaskDate < today
}

// SetCompleted updates completion and keeps CompletedAt consistent.
func (t *Task) SetCompleted(completed bool, now time.Time) {
	t.Completed = completed
	switch {
	case completed && t.CompletedAt == nil:
		at := now.UTC()
		t.CompletedAt = &at
	case !completed:
		t.CompletedAt = nil
	}
}

// TaskStats summarizes the tasks for one day.
type TaskStats struct {
	Date            string  `json:"date"`
	TotalTasks      int     `json:"totalTasks"`
	CompletedTasks  int     `json:"completedTasks"`
	IncompleteTasks int     `json:"incompleteTasks"`
	CompletionRate  float64 `json:"completionRate"`
}

// NewTaskStats computes stats from totals.
func NewTaskStats(date string, total, completed int) TaskStats {
	rate := 0.0
	if total > 0 {
		rate = float64(completed) / float64(total) * 100
	}
	return TaskStats{
		Date:            date,
		TotalTasks:      total,
		CompletedTasks:  completed,
		IncompleteTasks: total - completed,
		CompletionRate:  rate,
	}
}
