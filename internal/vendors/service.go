package vendors

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/autopesu/backend/internal/models"
	"github.com/autopesu/backend/internal/repository"
)

var (
	ErrVendorNotFound   = errors.New("vendor not found")
	ErrServiceNotFound  = errors.New("service not found")
	ErrCategoryNotFound = errors.New("category not found")
	ErrNotOwner         = errors.New("not the vendor owner")
)

type Service interface {
	CreateProfile(ctx context.Context, userID uuid.UUID, p ProfileParams) (*models.Vendor, error)
	UpdateProfile(ctx context.Context, userID, vendorID uuid.UUID, p ProfileParams) (*models.Vendor, error)
	GetProfile(ctx context.Context, vendorID uuid.UUID) (*models.Vendor, error)
	GetOwnProfile(ctx context.Context, userID uuid.UUID) (*models.Vendor, error)
	Search(ctx context.Context, city string) ([]*models.Vendor, error)

	CreateService(ctx context.Context, userID uuid.UUID, p ServiceParams) (*models.Service, error)
	UpdateService(ctx context.Context, userID, serviceID uuid.UUID, p ServiceParams) (*models.Service, error)
	DeleteService(ctx context.Context, userID, serviceID uuid.UUID) error
	ListServices(ctx context.Context, vendorID uuid.UUID, availableOnly bool) ([]*models.Service, error)
	ListCategories(ctx context.Context) ([]*models.ServiceCategory, error)
}

type ProfileParams struct {
	Name         string
	Description  string
	Address      string
	City         string
	Phone        string
	OpeningHours json.RawMessage
}

type ServiceParams struct {
	CategoryID      *uuid.UUID
	Name            string
	Description     string
	Price           decimal.Decimal
	DurationMinutes int
	CoinReward      int
	Available       bool
}

type service struct {
	vendors    *repository.VendorRepo
	services   *repository.ServiceRepo
	categories *repository.CategoryRepo
}

func NewService(vendors *repository.VendorRepo, services *repository.ServiceRepo, categories *repository.CategoryRepo) *service {
	return &service{vendors: vendors, services: services, categories: categories}
}

var _ Service = (*service)(nil)

func (s *service) CreateProfile(ctx context.Context, userID uuid.UUID, p ProfileParams) (*models.Vendor, error) {
	v := &models.Vendor{
		ID:           uuid.New(),
		UserID:       userID,
		Name:         p.Name,
		Description:  p.Description,
		Address:      p.Address,
		City:         p.City,
		Phone:        p.Phone,
		OpeningHours: p.OpeningHours,
	}
	if err := s.vendors.Create(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

func (s *service) UpdateProfile(ctx context.Context, userID, vendorID uuid.UUID, p ProfileParams) (*models.Vendor, error) {
	v, err := s.ownedVendor(ctx, userID, vendorID)
	if err != nil {
		return nil, err
	}
	v.Name = p.Name
	v.Description = p.Description
	v.Address = p.Address
	v.City = p.City
	v.Phone = p.Phone
	if p.OpeningHours != nil {
		v.OpeningHours = p.OpeningHours
	}
	if err := s.vendors.Update(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

func (s *service) GetProfile(ctx context.Context, vendorID uuid.UUID) (*models.Vendor, error) {
	v, err := s.vendors.GetByID(ctx, vendorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrVendorNotFound
		}
		return nil, err
	}
	return v, nil
}

func (s *service) GetOwnProfile(ctx context.Context, userID uuid.UUID) (*models.Vendor, error) {
	v, err := s.vendors.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrVendorNotFound
		}
		return nil, err
	}
	return v, nil
}

func (s *service) Search(ctx context.Context, city string) ([]*models.Vendor, error) {
	return s.vendors.Search(ctx, city)
}

func (s *service) CreateService(ctx context.Context, userID uuid.UUID, p ServiceParams) (*models.Service, error) {
	v, err := s.GetOwnProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.checkCategory(ctx, p.CategoryID); err != nil {
		return nil, err
	}
	svc := &models.Service{
		ID:              uuid.New(),
		VendorID:        v.ID,
		CategoryID:      p.CategoryID,
		Name:            p.Name,
		Description:     p.Description,
		Price:           p.Price,
		DurationMinutes: p.DurationMinutes,
		CoinReward:      p.CoinReward,
		Available:       p.Available,
	}
	if err := s.services.Create(ctx, svc); err != nil {
		return nil, err
	}
	return svc, nil
}

func (s *service) UpdateService(ctx context.Context, userID, serviceID uuid.UUID, p ServiceParams) (*models.Service, error) {
	svc, err := s.ownedService(ctx, userID, serviceID)
	if err != nil {
		return nil, err
	}
	if err := s.checkCategory(ctx, p.CategoryID); err != nil {
		return nil, err
	}
	svc.CategoryID = p.CategoryID
	svc.Name = p.Name
	svc.Description = p.Description
	svc.Price = p.Price
	svc.DurationMinutes = p.DurationMinutes
	svc.CoinReward = p.CoinReward
	svc.Available = p.Available
	if err := s.services.Update(ctx, svc); err != nil {
		return nil, err
	}
	return svc, nil
}

func (s *service) DeleteService(ctx context.Context, userID, serviceID uuid.UUID) error {
	if _, err := s.ownedService(ctx, userID, serviceID); err != nil {
		return err
	}
	return s.services.Delete(ctx, serviceID)
}

func (s *service) ListServices(ctx context.Context, vendorID uuid.UUID, availableOnly bool) ([]*models.Service, error) {
	if availableOnly {
		return s.services.ListAvailableByVendorID(ctx, vendorID)
	}
	return s.services.ListByVendorID(ctx, vendorID)
}

func (s *service) ListCategories(ctx context.Context) ([]*models.ServiceCategory, error) {
	return s.categories.List(ctx)
}

func (s *service) checkCategory(ctx context.Context, id *uuid.UUID) error {
	if id == nil {
		return nil
	}
	if _, err := s.categories.GetByID(ctx, *id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrCategoryNotFound
		}
		return err
	}
	return nil
}

func (s *service) ownedVendor(ctx context.Context, userID, vendorID uuid.UUID) (*models.Vendor, error) {
	v, err := s.GetProfile(ctx, vendorID)
	if err != nil {
		return nil, err
	}
	if v.UserID != userID {
		return nil, ErrNotOwner
	}
	return v, nil
}

func (s *service) ownedService(ctx context.Context, userID, serviceID uuid.UUID) (*models.Service, error) {
	svc, err := s.services.GetByID(ctx, serviceID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrServiceNotFound
		}
		return nil, err
	}
	v, err := s.GetProfile(ctx, svc.VendorID)
	if err != nil {
		return nil, err
	}
	if v.UserID != userID {
		return nil, ErrNotOwner
	}
	return svc, nil
}
