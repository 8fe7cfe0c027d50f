package validator

// Validator validates structs using their `validate` tags.
type Validator interface {
	Validate(data any) error
}

var _ Validator = (*V10Validator)(nil)
