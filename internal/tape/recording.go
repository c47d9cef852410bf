// Package tape holds the session's recordings in memory.
package tape

import (
	"fmt"
	"strings"
	"time"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// Field names a user-editable piece of recording metadata.
type Field string

const (
	FieldName Field = "name"
	FieldDate Field = "date"
	FieldTime Field = "time"
)

// ParseField maps user input to a Field.
func ParseField(s string) (Field, error) {
	switch Field(strings.ToLower(strings.TrimSpace(s))) {
	case FieldName:
		return FieldName, nil
	case FieldDate:
		return FieldDate, nil
	case FieldTime:
		return FieldTime, nil
	default:
		return "", fmt.Errorf("unknown field %q (expected name, date or time)", s)
	}
}

// Recording is a snapshot of one stored voice message. The encoded audio
// stays inside the Store and is reached through Handle.
type Recording struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Date       string        `json:"date"`
	Time       string        `json:"time"`
	CapturedAt time.Time     `json:"captured_at"`
	Duration   time.Duration `json:"duration"`
	Size       int           `json:"size"`
	Handle     string        `json:"handle"`
}

// Value returns the current value of field.
func (r Recording) Value(field Field) (string, bool) {
	switch field {
	case FieldName:
		return r.Name, true
	case FieldDate:
		return r.Date, true
	case FieldTime:
		return r.Time, true
	default:
		return "", false
	}
}

func (r *Recording) set(field Field, value string) bool {
	switch field {
	case FieldName:
		r.Name = value
	case FieldDate:
		r.Date = value
	case FieldTime:
		r.Time = value
	default:
		return false
	}
	return true
}
