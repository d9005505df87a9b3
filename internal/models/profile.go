package models

import (
	"github.com/google/uuid"
)

// Profile associates a user with a registered mobile number.
// Mobile numbers are globally unique, one profile per user.
type Profile struct {
	ID     uuid.UUID
	UserID uuid.UUID
	Mobile string
}
