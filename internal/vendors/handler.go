package vendors

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/autopesu/backend/internal/middleware"
)

type ProfileRequest struct {
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Address      string          `json:"address"`
	City         string          `json:"city"`
	Phone        string          `json:"phone"`
	OpeningHours json.RawMessage `json:"opening_hours"`
}

type ServiceRequest struct {
	CategoryID      *uuid.UUID `json:"category_id"`
	Name            string     `json:"name"`
	Description     string     `json:"description"`
	Price           string     `json:"price"`
	DurationMinutes int        `json:"duration_minutes"`
	CoinReward      int        `json:"coin_reward"`
	Available       bool       `json:"available"`
}

type Handler struct {
	svc Service
	log *slog.Logger
}

func NewHandler(svc Service, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, log: log}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// POST /api/v1/vendors — create the caller's vendor profile.
func (h *Handler) CreateProfile(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromCtx(r.Context())
	if userID == uuid.Nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	var req ProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if req.Name == "" || req.City == "" {
		http.Error(w, `{"error":"name and city are required"}`, http.StatusBadRequest)
		return
	}
	v, err := h.svc.CreateProfile(r.Context(), userID, ProfileParams(req))
	if err != nil {
		h.log.Error("create vendor profile", "error", err)
		http.Error(w, `{"error":"create failed"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

// PUT /api/v1/vendors/{id}
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromCtx(r.Context())
	vendorID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid vendor id"}`, http.StatusBadRequest)
		return
	}
	var req ProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	v, err := h.svc.UpdateProfile(r.Context(), userID, vendorID, ProfileParams(req))
	if err != nil {
		h.writeServiceError(w, err, "update vendor profile")
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// GET /api/v1/vendors?city=Tampere — public vendor search.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Search(r.Context(), r.URL.Query().Get("city"))
	if err != nil {
		h.log.Error("search vendors", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// GET /api/v1/vendors/{id}
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	vendorID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid vendor id"}`, http.StatusBadRequest)
		return
	}
	v, err := h.svc.GetProfile(r.Context(), vendorID)
	if err != nil {
		h.writeServiceError(w, err, "get vendor profile")
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// GET /api/v1/vendors/{id}/services — bookable services of a vendor.
func (h *Handler) ListServices(w http.ResponseWriter, r *http.Request) {
	vendorID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid vendor id"}`, http.StatusBadRequest)
		return
	}
	// Owners see everything, the public sees only what is bookable.
	own := false
	if v, err := h.svc.GetOwnProfile(r.Context(), middleware.UserIDFromCtx(r.Context())); err == nil && v.ID == vendorID {
		own = true
	}
	list, err := h.svc.ListServices(r.Context(), vendorID, !own)
	if err != nil {
		h.log.Error("list services", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// GET /api/v1/categories — public list of service categories.
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListCategories(r.Context())
	if err != nil {
		h.log.Error("list categories", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// POST /api/v1/services — vendor adds a service.
func (h *Handler) CreateService(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromCtx(r.Context())
	params, ok := h.decodeServiceRequest(w, r)
	if !ok {
		return
	}
	svc, err := h.svc.CreateService(r.Context(), userID, params)
	if err != nil {
		h.writeServiceError(w, err, "create service")
		return
	}
	writeJSON(w, http.StatusCreated, svc)
}

// PUT /api/v1/services/{id}
func (h *Handler) UpdateService(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromCtx(r.Context())
	serviceID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid service id"}`, http.StatusBadRequest)
		return
	}
	params, ok := h.decodeServiceRequest(w, r)
	if !ok {
		return
	}
	svc, err := h.svc.UpdateService(r.Context(), userID, serviceID, params)
	if err != nil {
		h.writeServiceError(w, err, "update service")
		return
	}
	writeJSON(w, http.StatusOK, svc)
}

// DELETE /api/v1/services/{id}
func (h *Handler) DeleteService(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromCtx(r.Context())
	serviceID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid service id"}`, http.StatusBadRequest)
		return
	}
	if err := h.svc.DeleteService(r.Context(), userID, serviceID); err != nil {
		h.writeServiceError(w, err, "delete service")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) decodeServiceRequest(w http.ResponseWriter, r *http.Request) (ServiceParams, bool) {
	var req ServiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return ServiceParams{}, false
	}
	if req.Name == "" {
		http.Error(w, `{"error":"name is required"}`, http.StatusBadRequest)
		return ServiceParams{}, false
	}
	price, err := decimal.NewFromString(req.Price)
	if err != nil || price.IsNegative() {
		http.Error(w, `{"error":"price must be a non-negative decimal"}`, http.StatusBadRequest)
		return ServiceParams{}, false
	}
	if req.DurationMinutes <= 0 {
		http.Error(w, `{"error":"duration_minutes must be > 0"}`, http.StatusBadRequest)
		return ServiceParams{}, false
	}
	if req.CoinReward < 0 {
		http.Error(w, `{"error":"coin_reward must be >= 0"}`, http.StatusBadRequest)
		return ServiceParams{}, false
	}
	return ServiceParams{
		CategoryID:      req.CategoryID,
		Name:            req.Name,
		Description:     req.Description,
		Price:           price,
		DurationMinutes: req.DurationMinutes,
		CoinReward:      req.CoinReward,
		Available:       req.Available,
	}, true
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, ErrVendorNotFound), errors.Is(err, ErrServiceNotFound):
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
	case errors.Is(err, ErrCategoryNotFound):
		http.Error(w, `{"error":"unknown category"}`, http.StatusUnprocessableEntity)
	case errors.Is(err, ErrNotOwner):
		http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
	default:
		h.log.Error(op, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
	}
}
