package tool

import "github.com/google/uuid"

// GenerateUUIDV7 returns a time-ordered id; used for transaction ids.
func GenerateUUIDV7() string {
	return uuid.Must(uuid.NewV7()).String()
}

func NewTraceID() string {
	return uuid.NewString()
}
