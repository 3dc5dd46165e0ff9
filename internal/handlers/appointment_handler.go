package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/autopesu/backend/internal/booking"
	"github.com/autopesu/backend/internal/middleware"
	"github.com/autopesu/backend/internal/models"
	"github.com/autopesu/backend/internal/referral"
	"github.com/autopesu/backend/internal/wallet"
)

// AppointmentHandler serves the booking endpoints.
type AppointmentHandler struct {
	Booking  *booking.Service
	Referral *referral.Service
	Logger   *slog.Logger
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// --- POST /api/v1/appointments ---

type createAppointmentRequest struct {
	VendorID      string    `json:"vendor_id"`
	ServiceID     string    `json:"service_id"`
	Date          time.Time `json:"date"`
	CoinsToUse    int       `json:"coins_to_use"`
	CustomerName  string    `json:"customer_name"`
	CustomerPhone string    `json:"customer_phone"`
	CustomerEmail string    `json:"customer_email"`
	Notes         string    `json:"notes"`
}

type createAppointmentResponse struct {
	AppointmentID string `json:"appointment_id"`
	Status        string `json:"status"`
}

// CreateAppointment handles POST /api/v1/appointments.
func (h *AppointmentHandler) CreateAppointment(w http.ResponseWriter, r *http.Request) {
	customerID := middleware.UserIDFromCtx(r.Context())
	if customerID == uuid.Nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	var req createAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	vendorID, err := uuid.Parse(req.VendorID)
	if err != nil {
		http.Error(w, `{"error":"invalid vendor_id"}`, http.StatusBadRequest)
		return
	}
	serviceID, err := uuid.Parse(req.ServiceID)
	if err != nil {
		http.Error(w, `{"error":"invalid service_id"}`, http.StatusBadRequest)
		return
	}
	if req.Date.IsZero() {
		http.Error(w, `{"error":"date is required"}`, http.StatusBadRequest)
		return
	}
	if req.CoinsToUse < 0 {
		http.Error(w, `{"error":"coins_to_use must be >= 0"}`, http.StatusBadRequest)
		return
	}

	id, err := h.Booking.Create(r.Context(), booking.CreateInput{
		VendorID:      vendorID,
		ServiceID:     serviceID,
		CustomerID:    customerID,
		Date:          req.Date,
		CoinsToUse:    req.CoinsToUse,
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
		CustomerEmail: req.CustomerEmail,
		Notes:         req.Notes,
	})
	if err != nil {
		switch {
		case errors.Is(err, booking.ErrVendorUnavailable):
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "Pesula ei ole käytettävissä"})
		case errors.Is(err, booking.ErrServiceNotFound), errors.Is(err, booking.ErrServiceUnavailable):
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "Palvelu ei ole saatavilla"})
		case errors.Is(err, wallet.ErrInsufficientCoins):
			writeJSON(w, http.StatusPaymentRequired, map[string]string{"error": "Kolikot eivät riitä"})
		case errors.Is(err, booking.ErrCustomerNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Asiakasta ei löydy"})
		default:
			h.Logger.Error("create appointment", "error", err)
			http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusCreated, createAppointmentResponse{
		AppointmentID: id.String(),
		Status:        models.AppointmentStatusConfirmed,
	})
}

// --- PATCH /api/v1/appointments/{id} ---

type updateAppointmentRequest struct {
	Status        *string    `json:"status"`
	Date          *time.Time `json:"date"`
	Notes         *string    `json:"notes"`
	CustomerPhone *string    `json:"customer_phone"`
}

// UpdateAppointment handles PATCH /api/v1/appointments/{id}: status changes
// (including completion with its one-time coin reward) and vendor-side edits.
// The booking service enforces who may change what; callers without rights to
// the appointment get 403.
func (h *AppointmentHandler) UpdateAppointment(w http.ResponseWriter, r *http.Request) {
	callerID := middleware.UserIDFromCtx(r.Context())
	if callerID == uuid.Nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid appointment id"}`, http.StatusBadRequest)
		return
	}
	var req updateAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}

	err = h.Booking.UpdateStatus(r.Context(), id, booking.Update{
		Status:        req.Status,
		Date:          req.Date,
		Notes:         req.Notes,
		CustomerPhone: req.CustomerPhone,
	}, callerID, middleware.RoleFromCtx(r.Context()))
	if err != nil {
		switch {
		case errors.Is(err, booking.ErrNotAllowed):
			writeJSON(w, http.StatusForbidden, map[string]string{"error": "Ei oikeutta muokata varausta"})
		case errors.Is(err, booking.ErrAppointmentNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Varausta ei löydy"})
		case errors.Is(err, booking.ErrServiceNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Palvelua ei löydy"})
		case errors.Is(err, wallet.ErrUserNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Asiakasta ei löydy"})
		case errors.Is(err, booking.ErrInvalidStatus):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Virheellinen tila"})
		default:
			h.Logger.Error("update appointment", "appointment_id", id, "error", err)
			http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- POST /api/v1/referrals/redeem ---

type redeemReferralRequest struct {
	Code string `json:"code"`
}

// RedeemReferral handles POST /api/v1/referrals/redeem.
func (h *AppointmentHandler) RedeemReferral(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromCtx(r.Context())
	if userID == uuid.Nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	var req redeemReferralRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		http.Error(w, `{"error":"code is required"}`, http.StatusBadRequest)
		return
	}
	if err := h.Referral.Redeem(r.Context(), req.Code, userID); err != nil {
		switch {
		case errors.Is(err, referral.ErrInvalidCode):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Virheellinen suosittelukoodi"})
		case errors.Is(err, referral.ErrSelfReferral):
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "Omaa koodia ei voi käyttää"})
		case errors.Is(err, referral.ErrAlreadyUsed):
			writeJSON(w, http.StatusConflict, map[string]string{"error": "Koodi on jo käytetty"})
		default:
			h.Logger.Error("redeem referral", "error", err)
			http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
