package uid

import "github.com/google/uuid"

// UUID implements StringID with time-ordered v7 UUIDs, falling back to v4 in
// the unlikely event v7 generation fails.
type UUID struct{}

func NewUUID() *UUID {
	return &UUID{}
}

func (u *UUID) Generate() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
