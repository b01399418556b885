package ids

import "github.com/segmentio/ksuid"

// New returns a k-sortable identifier; ids created later sort after earlier ones.
func New() string {
	return ksuid.New().String()
}
