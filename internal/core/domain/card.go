package domain

import "time"

// Card is an RFID card identified by the UID its reader reports.
// Owner stays nil for cards provisioned on first scan.
type Card struct {
	UID       string    `json:"uid"`
	Owner     *string   `json:"owner,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
