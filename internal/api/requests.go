package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/punchamoorthee/trash2cash/internal/domain"
)

func (h *Handler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Type domain.RequestType `json:"type"`
	}
	if !h.decodeJSON(w, r, &body) {
		return
	}
	req, err := h.requests.Create(r.Context(), actorOf(r), mux.Vars(r)["id"], body.Type)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/v1/requests/"+req.ID)
	respondJSON(w, http.StatusCreated, req)
}

func (h *Handler) ListingRequests(w http.ResponseWriter, r *http.Request) {
	reqs, err := h.requests.ForListing(r.Context(), actorOf(r), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"requests": reqs})
}

func (h *Handler) MyRequests(w http.ResponseWriter, r *http.Request) {
	reqs, err := h.requests.ForActor(r.Context(), actorOf(r))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"requests": reqs})
}

func (h *Handler) GetRequest(w http.ResponseWriter, r *http.Request) {
	req, err := h.requests.Get(r.Context(), actorOf(r), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, req)
}

func (h *Handler) AcceptRequest(w http.ResponseWriter, r *http.Request) {
	var body struct {
		PickupLocation string `json:"pickupLocation"`
		ContactNumber  string `json:"contactNumber"`
	}
	if !h.decodeJSON(w, r, &body) {
		return
	}
	req, err := h.requests.Accept(r.Context(), actorOf(r), mux.Vars(r)["id"], body.PickupLocation, body.ContactNumber)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, req)
}

func (h *Handler) MarkPickedUp(w http.ResponseWriter, r *http.Request) {
	req, err := h.requests.MarkPickedUp(r.Context(), actorOf(r), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, req)
}

func (h *Handler) MarkPaymentReceived(w http.ResponseWriter, r *http.Request) {
	req, err := h.requests.MarkPaymentReceived(r.Context(), actorOf(r), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, req)
}

func (h *Handler) WithdrawRequest(w http.ResponseWriter, r *http.Request) {
	if err := h.requests.Withdraw(r.Context(), actorOf(r), mux.Vars(r)["id"]); err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Request withdrawn"})
}
