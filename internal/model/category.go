package model

import "time"

// Category is a spending category. It exclusively owns its patterns and
// composites; deleting a category cascades to them.
type Category struct {
	CreatedAt time.Time
	Name      string
	ID        int64
	Active    bool
}
