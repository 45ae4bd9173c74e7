package handler

import (
	"net/http"
	"net/url"

	"github.com/Shivanand-hulikatti/event-booking/internal/model"
	"github.com/Shivanand-hulikatti/event-booking/internal/service"
	"github.com/go-chi/chi/v5"
)

// BookingHandler serves the reservation ledger.
type BookingHandler struct {
	svc *service.BookingService
}

// NewBookingHandler constructs a BookingHandler.
func NewBookingHandler(svc *service.BookingService) *BookingHandler {
	return &BookingHandler{svc: svc}
}

// CreateBooking handles POST /bookings
// Admits the requested tickets or rejects the whole request.
func (h *BookingHandler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req model.CreateBookingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	booking, err := h.svc.CreateBooking(r.Context(), callerFrom(r), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, booking)
}

// CancelBooking handles POST /bookings/{id}/cancel
// Cancelling an already-cancelled booking returns it unchanged.
func (h *BookingHandler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	booking, err := h.svc.CancelBooking(r.Context(), callerFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, booking)
}

// ListUserBookings handles GET /users/{email}/bookings
func (h *BookingHandler) ListUserBookings(w http.ResponseWriter, r *http.Request) {
	email, err := url.PathUnescape(chi.URLParam(r, "email"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid email in path")
		return
	}

	bookings, err := h.svc.ListUserBookings(r.Context(), callerFrom(r), email)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	if bookings == nil {
		bookings = []model.BookingWithEvent{}
	}

	writeJSON(w, http.StatusOK, bookings)
}
