// Package task defines the unit of work that flows through a pipeline.
package task

import (
	"strconv"
	"time"
)

// Item is an immutable unit of work. It is created once by an emitter and
// then handed from stage to stage by value; no stage mutates it.
type Item struct {
	id        int
	createdAt time.Time
}

// New creates an Item stamped with the current wall-clock time.
func New(id int) Item {
	return Item{id: id, createdAt: time.Now()}
}

// NewAt creates an Item with an explicit creation time.
func NewAt(id int, createdAt time.Time) Item {
	return Item{id: id, createdAt: createdAt}
}

// ID returns the emission-order identifier.
func (i Item) ID() int { return i.id }

// CreatedAt returns the creation timestamp.
func (i Item) CreatedAt() time.Time { return i.createdAt }

// Age returns the time elapsed between creation and now.
func (i Item) Age(now time.Time) time.Duration {
	return now.Sub(i.createdAt)
}

// String implements fmt.Stringer.
func (i Item) String() string {
	return "Task-" + strconv.Itoa(i.id)
}
