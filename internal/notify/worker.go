package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/riverqueue/river"

	"github.com/autopesu/backend/internal/models"
)

// Events carried by AppointmentEmailJobArgs.
const (
	EventBookingConfirmed = "booking_confirmed"
	EventStatusChanged    = "status_changed"
)

// AppointmentEmailJobArgs is enqueued with river.Client.InsertTx in the same
// transaction that creates or updates the appointment. The job therefore only
// exists for bookings that actually committed, and delivery failures retry
// here without ever touching booking state.
type AppointmentEmailJobArgs struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	Event         string    `json:"event"`
	Status        string    `json:"status,omitempty"`
}

func (AppointmentEmailJobArgs) Kind() string { return "appointment_email" }

// AppointmentLookup loads the appointment the notification is about.
type AppointmentLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Appointment, error)
}

// UserLookup resolves the customer and the vendor's contact user.
type UserLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// VendorLookup resolves the vendor for the vendor-side notification.
type VendorLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Vendor, error)
}

type AppointmentEmailWorker struct {
	river.WorkerDefaults[AppointmentEmailJobArgs]
	appointments AppointmentLookup
	users        UserLookup
	vendors      VendorLookup
	mailer       Mailer
	log          *slog.Logger
}

func NewAppointmentEmailWorker(appointments AppointmentLookup, users UserLookup, vendors VendorLookup, mailer Mailer, log *slog.Logger) *AppointmentEmailWorker {
	if log == nil {
		log = slog.Default()
	}
	return &AppointmentEmailWorker{
		appointments: appointments,
		users:        users,
		vendors:      vendors,
		mailer:       mailer,
		log:          log,
	}
}

func (w *AppointmentEmailWorker) Work(ctx context.Context, job *river.Job[AppointmentEmailJobArgs]) error {
	args := job.Args

	appt, err := w.appointments.GetByID(ctx, args.AppointmentID)
	if err != nil {
		// The appointment may have been deleted by a cascading vendor/user
		// removal before the job ran. Nothing left to notify about.
		w.log.Warn("appointment gone before notification", "appointment_id", args.AppointmentID, "error", err)
		return nil
	}

	customerMsg, vendorMsg := w.buildMessages(ctx, appt, args)

	if customerMsg != nil {
		if err := w.mailer.Send(ctx, *customerMsg); err != nil {
			return fmt.Errorf("send customer email: %w", err)
		}
	}
	if vendorMsg != nil {
		if err := w.mailer.Send(ctx, *vendorMsg); err != nil {
			return fmt.Errorf("send vendor email: %w", err)
		}
	}
	return nil
}

// buildMessages renders the customer confirmation and the vendor notice.
// Missing contact details drop the respective message rather than failing the job.
func (w *AppointmentEmailWorker) buildMessages(ctx context.Context, appt *models.Appointment, args AppointmentEmailJobArgs) (customer, vendor *Message) {
	vendorName := "pesula"
	if v, err := w.vendors.GetByID(ctx, appt.VendorID); err == nil {
		vendorName = v.Name
		if owner, err := w.users.GetByID(ctx, v.UserID); err == nil && owner.Email != "" {
			vendor = &Message{
				To:      owner.Email,
				Subject: vendorSubject(args, appt),
				Body: fmt.Sprintf("Varaus %s: %s %s, tila %s.",
					appt.ID, appt.CustomerName, appt.Date.Format("2.1.2006 15:04"), appt.Status),
			}
		}
	}

	to := appt.CustomerEmail
	if to == "" {
		if u, err := w.users.GetByID(ctx, appt.CustomerID); err == nil {
			to = u.Email
		}
	}
	if to != "" {
		body := fmt.Sprintf("Varauksesi %s on vahvistettu: %s, %s.",
			appt.ID, vendorName, appt.Date.Format("2.1.2006 15:04"))
		if args.Event != EventBookingConfirmed {
			body = fmt.Sprintf("Varauksesi %s (%s) tila on nyt: %s.", appt.ID, vendorName, appt.Status)
		}
		customer = &Message{To: to, Subject: customerSubject(args), Body: body}
	}
	return customer, vendor
}

func customerSubject(args AppointmentEmailJobArgs) string {
	if args.Event == EventBookingConfirmed {
		return "Varausvahvistus"
	}
	return "Varauksen tila on muuttunut"
}

func vendorSubject(args AppointmentEmailJobArgs, appt *models.Appointment) string {
	if args.Event == EventBookingConfirmed {
		return "Uusi varaus"
	}
	return fmt.Sprintf("Varaus %s: %s", appt.ID, appt.Status)
}
