package uid

import "github.com/google/uuid"

// UUID produces time-ordered v7 strings for correlation ids, token ids and
// dispatch delivery ids.
type UUID struct{}

func NewUUID() *UUID {
	return &UUID{}
}

func (*UUID) Generate() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}

	return uuid.NewString()
}
