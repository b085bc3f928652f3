package task

import (
	"time"
)

// Priority is the coarse importance of a task.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// DefaultEmoji is used when a task is created without an icon.
const DefaultEmoji = "📝"

// Limits on free-form task attributes.
const (
	MaxTextLength = 500
	MaxTags       = 10
	// MaxEmojiBytes bounds the encoded icon, not its rune count.
	MaxEmojiBytes = 16
	MaxTagLength  = 32
)

// Task is a single planned item owned by exactly one user and scheduled on one day.
//
// Position orders tasks within the (user, date, non-archived) group. It is nil
// when the task was stored by a backend without a position column.
type Task struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"userId"`
	Date      string    `json:"date"`           // YYYY-MM-DD, no timezone conversion
	Time      string    `json:"time,omitempty"` // HH:MM, empty when unscheduled
	Text      string    `json:"text"`
	Emoji     string    `json:"emoji"`
	Priority  Priority  `json:"priority"`
	Tags      []string  `json:"tags"`
	Completed bool      `json:"completed"`
	Archived  bool      `json:"archived"`
	Position  *int64    `json:"position"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Clone returns a deep copy so cached values can't be mutated through a caller's slice.
func (t Task) Clone() Task {
	c := t
	if t.Tags != nil {
		c.Tags = append([]string(nil), t.Tags...)
	}
	if t.Position != nil {
		p := *t.Position
		c.Position = &p
	}
	return c
}

// CloneAll deep-copies a task list. A nil input stays nil.
func CloneAll(tasks []Task) []Task {
	if tasks == nil {
		return nil
	}
	out := make([]Task, len(tasks))
	for i := range tasks {
		out[i] = tasks[i].Clone()
	}
	return out
}

// NewTask holds the fields accepted when creating a task.
// Position is optional; when nil the store appends the task to the end of its day.
type NewTask struct {
	Date      string   `json:"date" validate:"required,datetime=2006-01-02"`
	Text      string   `json:"text" validate:"required,max=500"`
	Emoji     string   `json:"emoji" validate:"maxbytes=16"`
	Time      string   `json:"time,omitempty" validate:"timeofday"`
	Priority  Priority `json:"priority" validate:"omitempty,oneof=low medium high"`
	Tags      []string `json:"tags,omitempty" validate:"max=10,dive,min=1,max=32"`
	Completed bool     `json:"completed"`
	Position  *int64   `json:"position,omitempty" validate:"omitempty,min=0"`
}

// Normalize fills defaults for omitted optional fields.
func (n *NewTask) Normalize() {
	if n.Emoji == "" {
		n.Emoji = DefaultEmoji
	}
	if n.Priority == "" {
		n.Priority = PriorityMedium
	}
	if n.Tags == nil {
		n.Tags = []string{}
	}
}

// Patch is a partial update. Nil fields are left untouched.
// Setting Time to an empty string clears the scheduled time.
type Patch struct {
	Date      *string   `json:"date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Text      *string   `json:"text,omitempty" validate:"omitempty,min=1,max=500"`
	Emoji     *string   `json:"emoji,omitempty" validate:"omitempty,maxbytes=16"`
	Time      *string   `json:"time,omitempty" validate:"omitempty,timeofday"`
	Priority  *Priority `json:"priority,omitempty" validate:"omitempty,oneof=low medium high"`
	Tags      *[]string `json:"tags,omitempty" validate:"omitempty,max=10,dive,min=1,max=32"`
	Completed *bool     `json:"completed,omitempty"`
}

// IsEmpty reports whether the patch would not change anything.
func (p Patch) IsEmpty() bool {
	return p.Date == nil && p.Text == nil && p.Emoji == nil && p.Time == nil &&
		p.Priority == nil && p.Tags == nil && p.Completed == nil
}

// Move assigns an absolute position to a task during a reorder.
type Move struct {
	ID       int64 `json:"id" validate:"required"`
	Position int64 `json:"position" validate:"min=0"`
}
