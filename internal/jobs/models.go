package jobs

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// Status is the lifecycle state reported by the backend.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusPartial   Status = "partial"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

var terminalStatuses = map[Status]struct{}{
	StatusCompleted: {},
	StatusPartial:   {},
	StatusFailed:    {},
	StatusCancelled: {},
}

var statusLabels = map[Status]string{
	StatusPending:   "等待中",
	StatusQueued:    "排队中",
	StatusRunning:   "运行中",
	StatusCompleted: "已完成",
	StatusPartial:   "部分完成",
	StatusFailed:    "失败",
	StatusCancelled: "已取消",
}

// Terminal reports whether no further transitions are expected.
func (s Status) Terminal() bool {
	_, ok := terminalStatuses[s]
	return ok
}

// Label returns the display text for s.
func (s Status) Label() string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	if s == "" {
		return "未知"
	}
	return string(s)
}

// Job is a backend job snapshot.
type Job struct {
	JobID         string     `json:"job_id"`
	Status        Status     `json:"status"`
	QueuePosition int        `json:"queue_position,omitempty"`
	Done          int        `json:"done"`
	Total         int        `json:"total"`
	Failed        int        `json:"failed,omitempty"`
	Message       string     `json:"message,omitempty"`
	ErrorItems    ErrorItems `json:"error_items,omitempty"`
	CreatedAt     float64    `json:"created_at,omitempty"`
	UpdatedAt     float64    `json:"updated_at,omitempty"`
}

// Progress returns completion as a whole percentage.
func (j *Job) Progress() int {
	if j == nil || j.Total <= 0 {
		return 0
	}
	return int(math.Round(float64(j.Done) / float64(j.Total) * 100))
}

// StatusText renders the status label, including the queue position while
// the job waits.
func (j *Job) StatusText() string {
	if j == nil {
		return Status("").Label()
	}
	if j.Status == StatusQueued && j.QueuePosition > 0 {
		return fmt.Sprintf("排队中 (第 %d 位)", j.QueuePosition)
	}
	return j.Status.Label()
}

// Created returns the creation time, or the zero time when unknown.
func (j *Job) Created() time.Time { return epoch(j.CreatedAt) }

// Updated returns the last update time, or the zero time when unknown.
func (j *Job) Updated() time.Time { return epoch(j.UpdatedAt) }

func epoch(seconds float64) time.Time {
	if seconds <= 0 {
		return time.Time{}
	}
	whole, frac := math.Modf(seconds)
	return time.Unix(int64(whole), int64(frac*1e9))
}

// ErrorItems maps a failed item key to its error description. Decoding
// accepts any JSON value per key and renders non-strings as compact JSON.
type ErrorItems map[string]string

func (e *ErrorItems) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*e = nil
		return nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		var list []json.RawMessage
		if listErr := json.Unmarshal(trimmed, &list); listErr != nil {
			return err
		}
		raw = make(map[string]json.RawMessage, len(list))
		for i, item := range list {
			raw[strconv.Itoa(i)] = item
		}
	}
	out := make(ErrorItems, len(raw))
	for key, value := range raw {
		out[key] = describe(value)
	}
	*e = out
	return nil
}

func describe(value json.RawMessage) string {
	var text string
	if err := json.Unmarshal(value, &text); err == nil {
		return text
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, value); err != nil {
		return string(value)
	}
	return compact.String()
}

// Inputs names the up to four input image directories of a job. Dir1 is
// required.
type Inputs struct {
	Dir1 string
	Dir2 string
	Dir3 string
	Dir4 string
}

// Results is the per-item output of a job.
type Results struct {
	Items []map[string]any `json:"items"`
}
