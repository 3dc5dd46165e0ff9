package router

import (
	"net/http"

	"github.com/autopesu/backend/internal/admin"
	"github.com/autopesu/backend/internal/auth"
	"github.com/autopesu/backend/internal/dashboard"
	"github.com/autopesu/backend/internal/handlers"
	"github.com/autopesu/backend/internal/middleware"
	"github.com/autopesu/backend/internal/models"
	"github.com/autopesu/backend/internal/vendors"
)

// New returns an http.Handler serving the API under /api/v1.
func New(
	authHandler *auth.Handler,
	vendorHandler *vendors.Handler,
	apptHandler *handlers.AppointmentHandler,
	dashHandler *dashboard.Handler,
	adminHandler *admin.Handler,
	validator middleware.TokenValidator,
) http.Handler {
	mux := http.NewServeMux()
	base := "/api/v1"

	requireAuth := middleware.RequireAuth(validator)
	requireVendor := middleware.RequireRole(models.RoleVendor)
	requireAdmin := middleware.RequireRole(models.RoleAdmin)

	// Public
	mux.HandleFunc("POST "+base+"/auth/register", authHandler.Register)
	mux.HandleFunc("POST "+base+"/auth/login", authHandler.Login)
	mux.HandleFunc("GET "+base+"/vendors", vendorHandler.Search)
	mux.HandleFunc("GET "+base+"/vendors/{id}", vendorHandler.GetProfile)
	mux.HandleFunc("GET "+base+"/vendors/{id}/services", vendorHandler.ListServices)
	mux.HandleFunc("GET "+base+"/categories", vendorHandler.ListCategories)

	// Authenticated
	mux.Handle("GET "+base+"/account/me", requireAuth(http.HandlerFunc(dashHandler.GetMe)))
	mux.Handle("GET "+base+"/wallet", requireAuth(http.HandlerFunc(dashHandler.GetWallet)))
	mux.Handle("GET "+base+"/appointments", requireAuth(http.HandlerFunc(dashHandler.ListAppointments)))
	mux.Handle("POST "+base+"/appointments", requireAuth(http.HandlerFunc(apptHandler.CreateAppointment)))
	mux.Handle("PATCH "+base+"/appointments/{id}", requireAuth(http.HandlerFunc(apptHandler.UpdateAppointment)))
	mux.Handle("POST "+base+"/referrals/redeem", requireAuth(http.HandlerFunc(apptHandler.RedeemReferral)))

	// Vendor management
	mux.Handle("POST "+base+"/vendors", requireAuth(requireVendor(http.HandlerFunc(vendorHandler.CreateProfile))))
	mux.Handle("PUT "+base+"/vendors/{id}", requireAuth(requireVendor(http.HandlerFunc(vendorHandler.UpdateProfile))))
	mux.Handle("POST "+base+"/services", requireAuth(requireVendor(http.HandlerFunc(vendorHandler.CreateService))))
	mux.Handle("PUT "+base+"/services/{id}", requireAuth(requireVendor(http.HandlerFunc(vendorHandler.UpdateService))))
	mux.Handle("DELETE "+base+"/services/{id}", requireAuth(requireVendor(http.HandlerFunc(vendorHandler.DeleteService))))

	// Admin moderation
	mux.Handle("PATCH "+base+"/admin/vendors/{id}", requireAuth(requireAdmin(http.HandlerFunc(adminHandler.ModerateVendor))))
	mux.Handle("POST "+base+"/admin/users/{id}/coins", requireAuth(requireAdmin(http.HandlerFunc(adminHandler.AdjustCoins))))
	mux.Handle("GET "+base+"/admin/users", requireAuth(requireAdmin(http.HandlerFunc(adminHandler.ListUsers))))
	mux.Handle("GET "+base+"/admin/vendors", requireAuth(requireAdmin(http.HandlerFunc(adminHandler.ListVendors))))
	mux.Handle("POST "+base+"/admin/categories", requireAuth(requireAdmin(http.HandlerFunc(adminHandler.CreateCategory))))
	mux.Handle("GET "+base+"/admin/appointments/{id}/transactions", requireAuth(requireAdmin(http.HandlerFunc(adminHandler.ListAppointmentTransactions))))

	return mux
}
