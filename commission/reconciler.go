package commission

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"commissionflow/catalog"
	"commissionflow/identity"
	"commissionflow/pricing"
)

var (
	// ErrMissingFields signals a blank required field after trimming.
	ErrMissingFields = errors.New("commission: required fields missing")
	// ErrNoItems signals a submission whose computed total is zero.
	ErrNoItems = errors.New("commission: select at least one item")
	// ErrAppearanceRequired signals a collage SKU with positive quantity but
	// no recorded appearance option.
	ErrAppearanceRequired = errors.New("commission: appearance option required")
	// ErrUnknownType signals a commission type outside the catalog.
	ErrUnknownType = errors.New("commission: unknown commission type")
	// ErrNoDefaultOwner signals a client request whose type has no configured
	// target owner.
	ErrNoDefaultOwner = errors.New("commission: no default owner configured for type")
)

// PendingReviewNote is the note stamped on client-originated records awaiting
// the operator's confirmation.
const PendingReviewNote = "申請審核中..."

// Request is a raw client submission as it arrives from the request form.
type Request struct {
	ClientName  string
	ContactInfo string
	Type        catalog.Type
	Selection   pricing.Selection
	Remark      string
}

// DirectEntry is an operator-entered record: the operator supplies the client
// id and chooses the initial status themselves.
type DirectEntry struct {
	ClientID   string
	ClientName string
	Type       catalog.Type
	Status     int
	Note       string
}

// Reconciler turns raw submissions into fully-formed records: it validates,
// prices, generates the client id, composes the itemized description, resolves
// the owning operator, and derives the record key.
type Reconciler struct {
	defaultOwners map[catalog.Type]identity.Operator
	now           func() time.Time
	clientIDGen   func(time.Time) string
}

// NewReconciler builds a reconciler. defaultOwners maps each commission type
// to the operator that client-originated requests of that type are routed to.
func NewReconciler(defaultOwners map[catalog.Type]identity.Operator) *Reconciler {
	owners := make(map[catalog.Type]identity.Operator, len(defaultOwners))
	for t, op := range defaultOwners {
		owners[t] = op
	}
	return &Reconciler{
		defaultOwners: owners,
		now:           time.Now,
		clientIDGen:   generateClientID,
	}
}

// WithClock overrides the reconciler's time source for tests.
func (r *Reconciler) WithClock(now func() time.Time) *Reconciler {
	r.now = now
	return r
}

// WithClientIDGenerator overrides client id generation for tests.
func (r *Reconciler) WithClientIDGenerator(gen func(time.Time) string) *Reconciler {
	r.clientIDGen = gen
	return r
}

// generateClientID derives a short request token from the submission time.
// Uniqueness is best-effort: sub-second collisions within one owner namespace
// are not locked against.
func generateClientID(now time.Time) string {
	return fmt.Sprintf("REQ-%04d", now.UnixMilli()%10000)
}

// Build reconciles a client-originated submission into a record ready for the
// lifecycle store. Validation failures surface before any persistence is
// attempted.
func (r *Reconciler) Build(req Request) (Record, error) {
	clientName := strings.TrimSpace(req.ClientName)
	contactInfo := strings.TrimSpace(req.ContactInfo)
	if clientName == "" || contactInfo == "" {
		return Record{}, fmt.Errorf("%w: client name and contact info", ErrMissingFields)
	}
	if !catalog.Valid(req.Type) {
		return Record{}, fmt.Errorf("%w: %q", ErrUnknownType, req.Type)
	}

	total := pricing.Total(req.Type, req.Selection)
	if total == 0 {
		return Record{}, ErrNoItems
	}

	for _, p := range pricing.Products(req.Type) {
		if !pricing.RequiresAppearance(p.ID) || req.Selection.Quantity(p.ID) == 0 {
			continue
		}
		opt := req.Selection.AppearanceOptions[p.ID]
		if opt == "" || !pricing.ValidAppearance(p.ID, opt) {
			return Record{}, fmt.Errorf("%w: %s", ErrAppearanceRequired, p.ID)
		}
	}

	owner, ok := r.defaultOwners[req.Type]
	if !ok || owner.OwnerID == "" {
		return Record{}, fmt.Errorf("%w: %s", ErrNoDefaultOwner, req.Type)
	}

	now := r.now()
	nowMillis := now.UnixMilli()
	clientID := r.clientIDGen(now)

	rec := Record{
		ID:          DeriveKey(owner.OwnerID, clientID),
		ClientID:    clientID,
		ClientName:  clientName,
		ContactInfo: contactInfo,
		Type:        req.Type,
		Status:      0,
		Note:        PendingReviewNote,
		OwnerID:     owner.OwnerID,
		OwnerName:   owner.Name,
		Description: composeDescription(req.Type, req.Selection, req.Remark),
		Price:       total,
		CreatedAt:   nowMillis,
		UpdatedAt:   nowMillis,
	}
	return rec, nil
}

// BuildDirect reconciles an operator-entered record. The record lands in the
// logged-in operator's namespace; no price or description is attached.
func (r *Reconciler) BuildDirect(entry DirectEntry, operator identity.Operator) (Record, error) {
	clientID := strings.TrimSpace(entry.ClientID)
	clientName := strings.TrimSpace(entry.ClientName)
	if clientID == "" || clientName == "" {
		return Record{}, fmt.Errorf("%w: client id and client name", ErrMissingFields)
	}
	if operator.OwnerID == "" {
		return Record{}, fmt.Errorf("%w: operator identity", ErrMissingFields)
	}
	if !catalog.Valid(entry.Type) {
		return Record{}, fmt.Errorf("%w: %q", ErrUnknownType, entry.Type)
	}
	if !catalog.ValidStatus(entry.Type, entry.Status) {
		return Record{}, fmt.Errorf("%w: status %d for type %s", ErrStatusOutOfRange, entry.Status, entry.Type)
	}

	nowMillis := r.now().UnixMilli()
	rec := Record{
		ID:         DeriveKey(operator.OwnerID, clientID),
		ClientID:   clientID,
		ClientName: clientName,
		Type:       entry.Type,
		Status:     entry.Status,
		Note:       entry.Note,
		OwnerID:    operator.OwnerID,
		OwnerName:  operator.Name,
		CreatedAt:  nowMillis,
		UpdatedAt:  nowMillis,
	}
	return rec, nil
}

// composeDescription renders the operator-facing order summary: the itemized
// product block, then the client's free-text remark when present.
func composeDescription(t catalog.Type, sel pricing.Selection, remark string) string {
	var b strings.Builder
	b.WriteString("【選擇商品】：\n")
	b.WriteString(strings.Join(pricing.Itemize(t, sel), "\n"))
	if trimmed := strings.TrimSpace(remark); trimmed != "" {
		b.WriteString("\n\n【備註需求】：\n")
		b.WriteString(trimmed)
	}
	return b.String()
}
