package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"
)

// Router wires all routes and returns the root handler.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", h.Healthz).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/requests", h.SubmitRequest).Methods(http.MethodPost)
	v1.HandleFunc("/commissions", h.LookupProgress).Methods(http.MethodGet)
	v1.HandleFunc("/catalog/{type}", h.GetCatalog).Methods(http.MethodGet)
	v1.HandleFunc("/operator/login", h.OperatorLogin).Methods(http.MethodPost)

	op := v1.PathPrefix("/operator").Subrouter()
	op.Use(h.requireOperator)
	op.HandleFunc("/commissions", h.ListCommissions).Methods(http.MethodGet)
	op.HandleFunc("/commissions", h.CreateCommission).Methods(http.MethodPost)
	op.HandleFunc("/commissions/{id}/status", h.UpdateStatus).Methods(http.MethodPatch)
	op.HandleFunc("/commissions/{id}", h.DeleteCommission).Methods(http.MethodDelete)
	return r
}
