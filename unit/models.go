package unit

import "time"

// Address is the postal address of a rentable unit.
type Address struct {
	Line1   string `json:"line1"`
	Line2   string `json:"line2,omitempty"`
	City    string `json:"city"`
	State   string `json:"state"`
	Pincode string `json:"pincode"`
}

// Unit is a rentable property owned by a landlord.
type Unit struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"ownerId"`
	Title     string    `json:"title"`
	Address   Address   `json:"address"`
	CreatedAt time.Time `json:"createdAt"`
}
