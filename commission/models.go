// Package commission implements the order lifecycle core: record identity,
// request reconciliation, and the in-memory lifecycle store that delegates
// durable persistence to a backend provider.
package commission

import (
	"commissionflow/catalog"
)

// Record is the central commission entity. Timestamps are epoch milliseconds;
// UpdatedAt is refreshed on every mutation. ContactInfo, Description and Price
// are populated only for client-originated requests and are private to the
// operator view.
type Record struct {
	ID          string
	ClientID    string
	ClientName  string
	Type        catalog.Type
	Status      int
	Note        string
	OwnerID     string
	OwnerName   string
	ContactInfo string
	Description string
	Price       int64
	CreatedAt   int64
	UpdatedAt   int64
}

// PublicRecord is the client-facing projection of a Record: everything a
// nickname lookup may reveal. Contact info, the itemized description, and the
// quoted price stay operator-private.
type PublicRecord struct {
	ID         string
	ClientName string
	Type       catalog.Type
	Status     int
	Note       string
	OwnerName  string
	UpdatedAt  int64
}

// Public strips the operator-private fields from r.
func (r Record) Public() PublicRecord {
	return PublicRecord{
		ID:         r.ID,
		ClientName: r.ClientName,
		Type:       r.Type,
		Status:     r.Status,
		Note:       r.Note,
		OwnerName:  r.OwnerName,
		UpdatedAt:  r.UpdatedAt,
	}
}
