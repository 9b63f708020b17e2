package order

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/stempede/stempede-api/internal/core/clock"
	datamodel "github.com/stempede/stempede-api/internal/core/datamodel/order"
)

type Repository interface {
	GetByID(orderID int64) (*datamodel.Order, error)
	GetByUserID(userID int64, limit, offset int) ([]*datamodel.Order, error)
	GetDetails(orderID int64) ([]*datamodel.OrderDetail, error)
	GetDelivery(orderID int64) (*datamodel.Delivery, error)
	UpdateDeliveryStatus(orderID int64, status string, at time.Time) error
	ProductNames(productIDs []int64) (map[int64]string, error)
}

type Service struct {
	repo   Repository
	clock  clock.Clock
	logger *slog.Logger
}

func NewService(repo Repository, clk clock.Clock, logger *slog.Logger) *Service {
	if clk == nil {
		clk = clock.System{}
	}
	return &Service{repo: repo, clock: clk, logger: logger}
}

// ListForUser returns the user's orders, newest first, with delivery status
// attached.
func (s *Service) ListForUser(userID int64, limit, offset int) ([]*Order, error) {
	if limit < 1 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	orders, err := s.repo.GetByUserID(userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}

	out := make([]*Order, 0, len(orders))
	for _, o := range orders {
		delivery, err := s.repo.GetDelivery(o.OrderID)
		if err != nil {
			s.logger.Warn("delivery lookup failed", "order_id", o.OrderID, "error", err)
		}
		out = append(out, fromDataModel(o, delivery))
	}
	return out, nil
}

// GetForUser returns one order with its lines, rejecting orders that belong
// to someone else as not found.
func (s *Service) GetForUser(userID, orderID int64) (*Order, error) {
	o, err := s.repo.GetByID(orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if o == nil || o.UserID != userID {
		return nil, ErrNotFound
	}
	return s.withLines(o)
}

// Get returns one order regardless of owner, for staff views.
func (s *Service) Get(orderID int64) (*Order, error) {
	o, err := s.repo.GetByID(orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if o == nil {
		return nil, ErrNotFound
	}
	return s.withLines(o)
}

// UpdateDeliveryStatus moves the delivery to a new state.
func (s *Service) UpdateDeliveryStatus(orderID int64, status string) error {
	if !datamodel.ValidDeliveryStatus(status) {
		return ErrInvalidStatus
	}

	delivery, err := s.repo.GetDelivery(orderID)
	if err != nil {
		return fmt.Errorf("failed to load delivery: %w", err)
	}
	if delivery == nil {
		return ErrNotFound
	}

	if err := s.repo.UpdateDeliveryStatus(orderID, status, s.clock.Now()); err != nil {
		return fmt.Errorf("failed to update delivery status: %w", err)
	}

	s.logger.Info("delivery status updated", "order_id", orderID, "status", status)
	return nil
}

func (s *Service) withLines(o *datamodel.Order) (*Order, error) {
	delivery, err := s.repo.GetDelivery(o.OrderID)
	if err != nil {
		s.logger.Warn("delivery lookup failed", "order_id", o.OrderID, "error", err)
	}
	out := fromDataModel(o, delivery)

	details, err := s.repo.GetDetails(o.OrderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order details: %w", err)
	}

	ids := make([]int64, 0, len(details))
	for _, d := range details {
		ids = append(ids, d.ProductID)
	}
	names, err := s.repo.ProductNames(ids)
	if err != nil {
		s.logger.Warn("product name lookup failed", "error", err)
		names = map[int64]string{}
	}

	out.Lines = make([]*Line, 0, len(details))
	for _, d := range details {
		out.Lines = append(out.Lines, &Line{
			ProductID:   d.ProductID,
			ProductName: names[d.ProductID],
			Quantity:    d.Quantity,
			PriceCents:  d.PriceCents,
		})
	}
	return out, nil
}
