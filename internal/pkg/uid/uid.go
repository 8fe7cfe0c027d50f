// Package uid generates identifiers.
package uid

// StringID generates string identifiers such as UUIDs.
type StringID interface {
	Generate() string
}

// NumberID generates sortable numeric identifiers.
type NumberID interface {
	Generate() int64
}
