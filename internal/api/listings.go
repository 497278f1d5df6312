package api

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/punchamoorthee/trash2cash/internal/domain"
)

// flexPrice accepts a JSON number or a string. Anything else is kept verbatim
// so that price parsing reports it as a validation failure.
type flexPrice string

func (p *flexPrice) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = flexPrice(s)
		return nil
	}
	*p = flexPrice(bytes.TrimSpace(data))
	return nil
}

type listingBody struct {
	ID          string     `json:"id"`
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Price       *flexPrice `json:"price"`
	WasteType   *string    `json:"wasteType"`
	ImageURL    *string    `json:"imageUrl"`
	ImageData   *string    `json:"imageData"` // legacy inline data: URI
	Status      *string    `json:"status"`
}

func (b listingBody) image() *string {
	if b.ImageURL != nil && *b.ImageURL != "" {
		return b.ImageURL
	}
	if b.ImageData != nil {
		return b.ImageData
	}
	return b.ImageURL
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (b listingBody) input() domain.ListingInput {
	in := domain.ListingInput{
		Title:       deref(b.Title),
		Description: deref(b.Description),
		WasteType:   deref(b.WasteType),
		ImageURL:    deref(b.image()),
	}
	if b.Price != nil {
		in.Price = string(*b.Price)
	}
	return in
}

func (b listingBody) patch() domain.ListingPatch {
	p := domain.ListingPatch{
		Title:       b.Title,
		Description: b.Description,
		WasteType:   b.WasteType,
		ImageURL:    b.image(),
	}
	if b.Price != nil {
		s := string(*b.Price)
		p.Price = &s
	}
	return p
}

func (h *Handler) ListListings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.ListingFilter{
		OwnerID:   q.Get("owner"),
		OwnerRole: domain.Role(q.Get("owner_role")),
		Status:    domain.ListingStatus(q.Get("status")),
	}
	listings, err := h.listings.List(r.Context(), filter)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"listings": listings})
}

func (h *Handler) GetListing(w http.ResponseWriter, r *http.Request) {
	l, err := h.listings.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, l)
}

func (h *Handler) DiscoverListings(w http.ResponseWriter, r *http.Request) {
	listings, err := h.listings.Discover(r.Context(), actorOf(r))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"listings": listings})
}

func (h *Handler) CreateListing(w http.ResponseWriter, r *http.Request) {
	var body listingBody
	if !h.decodeJSON(w, r, &body) {
		return
	}
	l, err := h.listings.Create(r.Context(), actorOf(r), body.input())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/v1/listings/"+l.ID)
	respondJSON(w, http.StatusCreated, l)
}

// UpdateListing serves both PUT /listings with the id in the body and
// PUT /listings/{id}.
func (h *Handler) UpdateListing(w http.ResponseWriter, r *http.Request) {
	var body listingBody
	if !h.decodeJSON(w, r, &body) {
		return
	}
	id := listingID(r, body.ID)
	if id == "" {
		respondError(w, http.StatusUnprocessableEntity, "listing id is required")
		return
	}
	if body.Status != nil {
		respondError(w, http.StatusUnprocessableEntity, "status is changed through PUT /api/v1/listings/{id}/status")
		return
	}
	l, err := h.listings.Update(r.Context(), actorOf(r), id, body.patch())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, l)
}

func (h *Handler) UpdateListingStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status domain.ListingStatus `json:"status"`
	}
	if !h.decodeJSON(w, r, &body) {
		return
	}
	l, err := h.listings.UpdateStatus(r.Context(), actorOf(r), mux.Vars(r)["id"], body.Status)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, l)
}

func (h *Handler) DeleteListing(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ID string `json:"id"`
	}
	if !h.decodeJSON(w, r, &body) {
		return
	}
	id := listingID(r, body.ID)
	if id == "" {
		respondError(w, http.StatusUnprocessableEntity, "listing id is required")
		return
	}
	n, err := h.listings.Delete(r.Context(), actorOf(r), id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"message": "Listing deleted", "deletedRequests": n})
}

// listingID prefers the path variable over the body field.
func listingID(r *http.Request, fromBody string) string {
	if id := mux.Vars(r)["id"]; id != "" {
		return id
	}
	return fromBody
}
