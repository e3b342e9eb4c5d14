// Package httpapi exposes the commission tracker over REST: a public surface
// for submitting requests and checking progress by nickname, and an
// authenticated operator surface for managing a namespace of orders.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"commissionflow/catalog"
	"commissionflow/commission"
	"commissionflow/identity"
	"commissionflow/pricing"
)

// Handler carries the API's collaborators.
type Handler struct {
	store         *commission.Store
	reconciler    *commission.Reconciler
	gate          *identity.Gate
	submitTimeout time.Duration
}

// NewHandler builds the API handler. submitTimeout bounds client submissions;
// on expiry the submission reports failure even if the underlying write later
// lands.
func NewHandler(store *commission.Store, reconciler *commission.Reconciler, gate *identity.Gate, submitTimeout time.Duration) *Handler {
	return &Handler{
		store:         store,
		reconciler:    reconciler,
		gate:          gate,
		submitTimeout: submitTimeout,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		if err := json.NewEncoder(w).Encode(body); err != nil {
			log.Printf("httpapi: encode response: %v", err)
		}
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// SubmitRequestPayload is a raw client submission.
type SubmitRequestPayload struct {
	ClientName        string            `json:"clientName"`
	ContactInfo       string            `json:"contactInfo"`
	Type              catalog.Type      `json:"type"`
	Quantities        map[string]int    `json:"quantities"`
	CustomAddOn       bool              `json:"customAddOn"`
	AppearanceOptions map[string]string `json:"appearanceOptions"`
	Remark            string            `json:"remark"`
}

// SubmitRequestResponse acknowledges an accepted submission with the nickname
// the client will use for lookups.
type SubmitRequestResponse struct {
	ID         string `json:"id"`
	ClientName string `json:"clientName"`
	Price      int64  `json:"price"`
}

// SubmitRequest handles POST /v1/requests.
func (h *Handler) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	var payload SubmitRequestPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rec, err := h.reconciler.Build(commission.Request{
		ClientName:  payload.ClientName,
		ContactInfo: payload.ContactInfo,
		Type:        payload.Type,
		Selection: pricing.Selection{
			Quantities:        payload.Quantities,
			CustomAddOn:       payload.CustomAddOn,
			AppearanceOptions: payload.AppearanceOptions,
		},
		Remark: payload.Remark,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.submitTimeout)
	defer cancel()

	if err := h.store.Create(ctx, rec); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			writeError(w, http.StatusGatewayTimeout, "submission timed out")
			return
		}
		writeError(w, http.StatusBadGateway, "submission failed")
		return
	}

	writeJSON(w, http.StatusCreated, SubmitRequestResponse{
		ID:         rec.ID,
		ClientName: rec.ClientName,
		Price:      rec.Price,
	})
}

// recordResponse is the operator-facing wire shape of a record.
type recordResponse struct {
	ID          string       `json:"id"`
	ClientID    string       `json:"clientId"`
	ClientName  string       `json:"clientName"`
	Type        catalog.Type `json:"type"`
	Status      int          `json:"status"`
	Note        string       `json:"note"`
	OwnerID     string       `json:"ownerId"`
	OwnerName   string       `json:"ownerName"`
	ContactInfo string       `json:"contactInfo,omitempty"`
	Description string       `json:"description,omitempty"`
	Price       int64        `json:"price,omitempty"`
	CreatedAt   int64        `json:"createdAt"`
	UpdatedAt   int64        `json:"updatedAt"`
}

func toRecordResponse(rec commission.Record) recordResponse {
	return recordResponse{
		ID:          rec.ID,
		ClientID:    rec.ClientID,
		ClientName:  rec.ClientName,
		Type:        rec.Type,
		Status:      rec.Status,
		Note:        rec.Note,
		OwnerID:     rec.OwnerID,
		OwnerName:   rec.OwnerName,
		ContactInfo: rec.ContactInfo,
		Description: rec.Description,
		Price:       rec.Price,
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   rec.UpdatedAt,
	}
}

// publicRecordResponse is the wire shape of a nickname lookup result. The
// operator-private fields have no place here at all.
type publicRecordResponse struct {
	ID         string       `json:"id"`
	ClientName string       `json:"clientName"`
	Type       catalog.Type `json:"type"`
	Status     int          `json:"status"`
	Note       string       `json:"note"`
	OwnerName  string       `json:"ownerName"`
	UpdatedAt  int64        `json:"updatedAt"`
}

func toPublicRecordResponse(p commission.PublicRecord) publicRecordResponse {
	return publicRecordResponse{
		ID:         p.ID,
		ClientName: p.ClientName,
		Type:       p.Type,
		Status:     p.Status,
		Note:       p.Note,
		OwnerName:  p.OwnerName,
		UpdatedAt:  p.UpdatedAt,
	}
}

// LookupProgress handles GET /v1/commissions?nickname=. It returns the public
// projection of every record whose client nickname contains the query.
func (h *Handler) LookupProgress(w http.ResponseWriter, r *http.Request) {
	nickname := r.URL.Query().Get("nickname")
	if strings.TrimSpace(nickname) == "" {
		writeError(w, http.StatusBadRequest, "nickname query parameter required")
		return
	}

	results := []publicRecordResponse{}
	for _, rec := range h.store.SearchByClientName(nickname) {
		results = append(results, toPublicRecordResponse(rec.Public()))
	}
	writeJSON(w, http.StatusOK, results)
}

type catalogStep struct {
	Label string `json:"label"`
	Sub   string `json:"sub"`
}

type catalogProduct struct {
	ID                string   `json:"id"`
	Label             string   `json:"label"`
	Sub               string   `json:"sub,omitempty"`
	Price             int64    `json:"price"`
	AppearanceChoices []string `json:"appearanceChoices,omitempty"`
}

type catalogResponse struct {
	Type        catalog.Type     `json:"type"`
	DisplayName string           `json:"displayName"`
	Steps       []catalogStep    `json:"steps"`
	Products    []catalogProduct `json:"products"`
}

// GetCatalog handles GET /v1/catalog/{type}: the status progression and the
// product schedule the request form needs.
func (h *Handler) GetCatalog(w http.ResponseWriter, r *http.Request) {
	typ := catalog.Type(mux.Vars(r)["type"])
	if !catalog.Valid(typ) {
		writeError(w, http.StatusNotFound, "unknown commission type")
		return
	}

	resp := catalogResponse{
		Type:        typ,
		DisplayName: catalog.DisplayName(typ),
	}
	for _, step := range catalog.Steps(typ) {
		resp.Steps = append(resp.Steps, catalogStep{Label: step.Label, Sub: step.Sub})
	}
	for _, p := range pricing.Products(typ) {
		resp.Products = append(resp.Products, catalogProduct{
			ID:                p.ID,
			Label:             p.Label,
			Sub:               p.Sub,
			Price:             p.Price,
			AppearanceChoices: pricing.AppearanceChoices(p.ID),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// LoginPayload carries the operator access phrase.
type LoginPayload struct {
	Phrase string `json:"phrase"`
}

// LoginResponse carries the issued session and the admitted operator.
type LoginResponse struct {
	Token     string `json:"token"`
	OwnerID   string `json:"ownerId"`
	OwnerName string `json:"ownerName"`
}

// OperatorLogin handles POST /v1/operator/login.
func (h *Handler) OperatorLogin(w http.ResponseWriter, r *http.Request) {
	var payload LoginPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	op, token, err := h.gate.Login(payload.Phrase)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "access denied")
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{
		Token:     token,
		OwnerID:   op.OwnerID,
		OwnerName: op.Name,
	})
}

// ListCommissions handles GET /v1/operator/commissions: the full (private)
// records of the logged-in operator's namespace.
func (h *Handler) ListCommissions(w http.ResponseWriter, r *http.Request) {
	op := operatorFrom(r.Context())
	results := []recordResponse{}
	for _, rec := range h.store.ListByOwner(op.OwnerID) {
		results = append(results, toRecordResponse(rec))
	}
	writeJSON(w, http.StatusOK, results)
}

// DirectEntryPayload is an operator-entered record.
type DirectEntryPayload struct {
	ClientID   string       `json:"clientId"`
	ClientName string       `json:"clientName"`
	Type       catalog.Type `json:"type"`
	Status     int          `json:"status"`
	Note       string       `json:"note"`
}

// CreateCommission handles POST /v1/operator/commissions.
func (h *Handler) CreateCommission(w http.ResponseWriter, r *http.Request) {
	var payload DirectEntryPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	op := operatorFrom(r.Context())
	rec, err := h.reconciler.BuildDirect(commission.DirectEntry{
		ClientID:   payload.ClientID,
		ClientName: payload.ClientName,
		Type:       payload.Type,
		Status:     payload.Status,
		Note:       payload.Note,
	}, op)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.store.Create(r.Context(), rec); err != nil {
		writeError(w, http.StatusBadGateway, "create failed")
		return
	}
	writeJSON(w, http.StatusCreated, toRecordResponse(rec))
}

// UpdateStatusPayload carries the new status index.
type UpdateStatusPayload struct {
	Status int `json:"status"`
}

// UpdateStatus handles PATCH /v1/operator/commissions/{id}/status. Status may
// move forward or backward; an unknown id is a silent no-op.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	op := operatorFrom(r.Context())

	if rec, ok := h.store.Get(id); ok && rec.OwnerID != op.OwnerID {
		writeError(w, http.StatusForbidden, "record belongs to another operator")
		return
	}

	var payload UpdateStatusPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.store.UpdateStatus(r.Context(), id, payload.Status); err != nil {
		if errors.Is(err, commission.ErrStatusOutOfRange) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusBadGateway, "update failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteCommission handles DELETE /v1/operator/commissions/{id}. Deletion is
// permanent; deleting an unknown id succeeds. The confirmation step lives in
// the client, not here.
func (h *Handler) DeleteCommission(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	op := operatorFrom(r.Context())

	if rec, ok := h.store.Get(id); ok && rec.OwnerID != op.OwnerID {
		writeError(w, http.StatusForbidden, "record belongs to another operator")
		return
	}

	if err := h.store.Delete(r.Context(), id); err != nil {
		writeError(w, http.StatusBadGateway, "delete failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Healthz handles GET /healthz.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
