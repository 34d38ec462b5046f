package subject

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound   = errors.New("subject not found")
	ErrValidation = errors.New("invalid subject")
)

// Subject is the person an appointment is booked for.
type Subject struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"display_name"`
	Phone       *string   `json:"phone,omitempty"`
	Email       *string   `json:"email,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
