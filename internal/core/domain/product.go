package domain

import (
	"time"

	"github.com/google/uuid"
)

// Product is a catalog item a terminal can charge for. Price is in minor units.
type Product struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Price     int64     `json:"price"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}
