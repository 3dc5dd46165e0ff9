package admin

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/autopesu/backend/internal/models"
	"github.com/autopesu/backend/internal/repository"
	"github.com/autopesu/backend/internal/wallet"
)

// TxBeginner abstracts transaction creation for the coin-adjustment flow.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Ledger is the coin-mutation entry point (wallet.Service). Admin adjustments
// go through the same ledger as everything else.
type Ledger interface {
	Apply(ctx context.Context, tx pgx.Tx, d wallet.Delta) (newBalance int, err error)
}

// Handler serves moderation endpoints. Route behind RequireRole(admin).
type Handler struct {
	pool      TxBeginner
	ledger    Ledger
	userR     *repository.UserRepo
	vendorR   *repository.VendorRepo
	categoryR *repository.CategoryRepo
	walletR   *repository.WalletRepo
	log       *slog.Logger
}

func NewHandler(
	pool TxBeginner,
	ledger Ledger,
	userR *repository.UserRepo,
	vendorR *repository.VendorRepo,
	categoryR *repository.CategoryRepo,
	walletR *repository.WalletRepo,
	log *slog.Logger,
) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{pool: pool, ledger: ledger, userR: userR, vendorR: vendorR, categoryR: categoryR, walletR: walletR, log: log}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type moderateVendorRequest struct {
	Banned   *bool `json:"banned"`
	Verified *bool `json:"verified"`
}

// PATCH /api/v1/admin/vendors/{id} — flip ban/verify flags.
func (h *Handler) ModerateVendor(w http.ResponseWriter, r *http.Request) {
	vendorID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid vendor id"}`, http.StatusBadRequest)
		return
	}
	var req moderateVendorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if req.Banned == nil && req.Verified == nil {
		http.Error(w, `{"error":"nothing to change"}`, http.StatusBadRequest)
		return
	}
	if _, err := h.vendorR.GetByID(r.Context(), vendorID); err != nil {
		http.Error(w, `{"error":"vendor not found"}`, http.StatusNotFound)
		return
	}
	if req.Banned != nil {
		if err := h.vendorR.SetBanned(r.Context(), vendorID, *req.Banned); err != nil {
			h.log.Error("set banned failed", "vendor_id", vendorID, "error", err)
			http.Error(w, `{"error":"update failed"}`, http.StatusInternalServerError)
			return
		}
	}
	if req.Verified != nil {
		if err := h.vendorR.SetVerified(r.Context(), vendorID, *req.Verified); err != nil {
			h.log.Error("set verified failed", "vendor_id", vendorID, "error", err)
			http.Error(w, `{"error":"update failed"}`, http.StatusInternalServerError)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type adjustCoinsRequest struct {
	Amount      int    `json:"amount"`
	Description string `json:"description"`
}

// POST /api/v1/admin/users/{id}/coins — manual balance correction, recorded
// in the ledger like any other movement.
func (h *Handler) AdjustCoins(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid user id"}`, http.StatusBadRequest)
		return
	}
	var req adjustCoinsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if req.Amount == 0 {
		http.Error(w, `{"error":"amount must be non-zero"}`, http.StatusBadRequest)
		return
	}
	if req.Description == "" {
		req.Description = "manual admin adjustment"
	}

	tx, err := h.pool.Begin(r.Context())
	if err != nil {
		h.log.Error("begin adjust tx", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	defer tx.Rollback(r.Context())

	newBalance, err := h.ledger.Apply(r.Context(), tx, wallet.Delta{
		UserID:      userID,
		Amount:      req.Amount,
		Description: req.Description,
	})
	if err != nil {
		switch {
		case errors.Is(err, wallet.ErrUserNotFound):
			http.Error(w, `{"error":"user not found"}`, http.StatusNotFound)
		case errors.Is(err, wallet.ErrInsufficientCoins):
			http.Error(w, `{"error":"adjustment would make balance negative"}`, http.StatusUnprocessableEntity)
		default:
			h.log.Error("adjust coins failed", "user_id", userID, "error", err)
			http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		}
		return
	}
	if err := tx.Commit(r.Context()); err != nil {
		h.log.Error("commit adjust tx", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"coins": newBalance})
}

// GET /api/v1/admin/users
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.userR.List(r.Context())
	if err != nil {
		h.log.Error("list users failed", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// GET /api/v1/admin/vendors — includes banned vendors, unlike the public search.
func (h *Handler) ListVendors(w http.ResponseWriter, r *http.Request) {
	list, err := h.vendorR.List(r.Context())
	if err != nil {
		h.log.Error("list vendors failed", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

type createCategoryRequest struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// POST /api/v1/admin/categories
func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req createCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		http.Error(w, `{"error":"name is required"}`, http.StatusBadRequest)
		return
	}
	if req.Slug == "" {
		req.Slug = strings.ToLower(strings.ReplaceAll(strings.TrimSpace(req.Name), " ", "-"))
	}
	c := &models.ServiceCategory{ID: uuid.New(), Name: req.Name, Slug: req.Slug}
	if err := h.categoryR.Create(r.Context(), c); err != nil {
		h.log.Error("create category failed", "error", err)
		http.Error(w, `{"error":"create failed"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// GET /api/v1/admin/appointments/{id}/transactions — the ledger entries tied
// to one appointment, for dispute handling.
func (h *Handler) ListAppointmentTransactions(w http.ResponseWriter, r *http.Request) {
	apptID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid appointment id"}`, http.StatusBadRequest)
		return
	}
	entries, err := h.walletR.ListByAppointmentID(r.Context(), apptID)
	if err != nil {
		h.log.Error("list appointment transactions failed", "appointment_id", apptID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []*models.WalletTransaction{}
	}
	writeJSON(w, http.StatusOK, entries)
}
