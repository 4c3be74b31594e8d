package model

import "time"

// Document is a keyed record inside a collection. ID is unique within its
// collection; Fields holds the record's string-valued payload.
type Document struct {
	ID        string
	Fields    map[string]string
	UpdatedAt time.Time
}
