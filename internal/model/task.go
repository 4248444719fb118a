package model

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"
)

// TasksCollection is the document collection holding tasks.
const TasksCollection = "tasks"

// Task document field names.
const (
	FieldTitle     = "title"
	FieldStatus    = "status"
	FieldCreatedAt = "createdAt"
)

// TaskStatus enumerates task lifecycle states.
type TaskStatus string

const (
	// TaskStatusPending is the initial status of a dispatched task.
	TaskStatusPending TaskStatus = "PENDING"
	// TaskStatusInProgress marks a task a technician has started.
	TaskStatusInProgress TaskStatus = "IN_PROGRESS"
	// TaskStatusCompleted marks a finished task.
	TaskStatusCompleted TaskStatus = "COMPLETED"
)

var taskStatusOrder = []TaskStatus{TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted}

// ParseTaskStatus validates a wire status value.
func ParseTaskStatus(s string) (TaskStatus, error) {
	status := TaskStatus(s)
	if !slices.Contains(taskStatusOrder, status) {
		return "", fmt.Errorf("invalid task status: %q", s)
	}
	return status, nil
}

// CanTransition reports whether moving from one status to another follows the
// forward lifecycle. Staying in the same status is not a transition.
func CanTransition(from, to TaskStatus) bool {
	fi := slices.Index(taskStatusOrder, from)
	ti := slices.Index(taskStatusOrder, to)
	return fi >= 0 && ti >= 0 && ti > fi
}

// Task is a unit of field work.
type Task struct {
	ID        string     `json:"id" yaml:"id"`
	Title     string     `json:"title" yaml:"title"`
	Status    TaskStatus `json:"status" yaml:"status"`
	CreatedAt time.Time  `json:"createdAt" yaml:"createdAt"`
}

// Completable reports whether the task can still be marked complete.
func (t Task) Completable() bool {
	return t.Status != TaskStatusCompleted
}

// NewTaskFields builds the document fields of a freshly dispatched task.
func NewTaskFields(title string, createdAt time.Time) map[string]any {
	return map[string]any{
		FieldTitle:     title,
		FieldStatus:    string(TaskStatusPending),
		FieldCreatedAt: createdAt.UnixMilli(),
	}
}

// TaskFromDocument converts a store document into a Task.
func TaskFromDocument(doc Document) (Task, error) {
	if doc.ID == "" {
		return Task{}, fmt.Errorf("document id is empty")
	}

	title, ok := doc.Fields[FieldTitle].(string)
	if !ok || strings.TrimSpace(title) == "" {
		return Task{}, fmt.Errorf("document %s: missing title", doc.ID)
	}

	rawStatus, _ := doc.Fields[FieldStatus].(string)
	status, err := ParseTaskStatus(rawStatus)
	if err != nil {
		return Task{}, fmt.Errorf("document %s: %w", doc.ID, err)
	}

	millis, err := toMillis(doc.Fields[FieldCreatedAt])
	if err != nil {
		return Task{}, fmt.Errorf("document %s: createdAt: %w", doc.ID, err)
	}

	return Task{
		ID:        doc.ID,
		Title:     title,
		Status:    status,
		CreatedAt: time.UnixMilli(millis),
	}, nil
}

func toMillis(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case json.Number:
		return n.Int64()
	case time.Time:
		return n.UnixMilli(), nil
	case nil:
		return 0, fmt.Errorf("missing")
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
}
