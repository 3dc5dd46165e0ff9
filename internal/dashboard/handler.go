package dashboard

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/autopesu/backend/internal/middleware"
	"github.com/autopesu/backend/internal/models"
	"github.com/autopesu/backend/internal/repository"
	"github.com/autopesu/backend/internal/wallet"
)

// Handler serves the signed-in user's own data: profile, wallet, appointments.
type Handler struct {
	userR   *repository.UserRepo
	walletR *repository.WalletRepo
	apptR   *repository.AppointmentRepo
	vendorR *repository.VendorRepo
	log     *slog.Logger
}

func NewHandler(
	userR *repository.UserRepo,
	walletR *repository.WalletRepo,
	apptR *repository.AppointmentRepo,
	vendorR *repository.VendorRepo,
	log *slog.Logger,
) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{userR: userR, walletR: walletR, apptR: apptR, vendorR: vendorR, log: log}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// GET /api/v1/account/me
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromCtx(r.Context())
	if userID == uuid.Nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	u, err := h.userR.GetByID(r.Context(), userID)
	if err != nil {
		h.log.Error("get user failed", "error", err)
		http.Error(w, `{"error":"user not found"}`, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// GET /api/v1/wallet — balance plus the full transaction history, and a
// reconciliation of the two so a client can flag ledger drift.
func (h *Handler) GetWallet(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromCtx(r.Context())
	if userID == uuid.Nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	u, err := h.userR.GetByID(r.Context(), userID)
	if err != nil {
		http.Error(w, `{"error":"user not found"}`, http.StatusNotFound)
		return
	}
	entries, err := h.walletR.ListByUserID(r.Context(), userID)
	if err != nil {
		h.log.Error("list wallet transactions failed", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []*models.WalletTransaction{}
	}
	sum, err := h.walletR.SumByUserID(r.Context(), userID)
	if err != nil {
		h.log.Error("sum wallet transactions failed", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	reconciled := wallet.BalanceMatchesLedger(u.CoinBalance, sum)
	if !reconciled {
		h.log.Error("wallet balance does not match ledger sum", "user_id", userID, "balance", u.CoinBalance, "ledger_sum", sum)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"coins":        u.CoinBalance,
		"ledger_sum":   sum,
		"reconciled":   reconciled,
		"transactions": entries,
	})
}

// GET /api/v1/appointments — the caller's appointments. Customers get their
// bookings; vendor users get their shop's calendar.
func (h *Handler) ListAppointments(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromCtx(r.Context())
	if userID == uuid.Nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	var (
		list []*models.Appointment
		err  error
	)
	if middleware.RoleFromCtx(r.Context()) == models.RoleVendor {
		v, verr := h.vendorR.GetByUserID(r.Context(), userID)
		if verr != nil {
			http.Error(w, `{"error":"no vendor profile"}`, http.StatusBadRequest)
			return
		}
		list, err = h.apptR.ListByVendorID(r.Context(), v.ID)
	} else {
		list, err = h.apptR.ListByCustomerID(r.Context(), userID)
	}
	if err != nil {
		h.log.Error("list appointments failed", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []*models.Appointment{}
	}
	writeJSON(w, http.StatusOK, list)
}
