package doctor

import (
	"time"

	"github.com/google/uuid"
)

type Doctor struct {
	ID          uuid.UUID `db:"id" json:"id"`
	DisplayName string    `db:"display_name" json:"display_name"`
	Specialty   *string   `db:"specialty" json:"specialty,omitempty"`
	Active      bool      `db:"active" json:"active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

type CreateRequest struct {
	ID          string  `json:"id" validate:"omitempty,uuid"`
	DisplayName string  `json:"display_name" validate:"required,max=200"`
	Specialty   *string `json:"specialty" validate:"omitempty,max=120"`
}
