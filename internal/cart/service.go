package cart

import (
	"fmt"
	"log/slog"

	"github.com/stempede/stempede-api/internal/core/clock"
	cartmodel "github.com/stempede/stempede-api/internal/core/datamodel/cart"
	catalogmodel "github.com/stempede/stempede-api/internal/core/datamodel/catalog"
	ordermodel "github.com/stempede/stempede-api/internal/core/datamodel/order"
)

// Repository spans the tables checkout touches. Checkout runs entirely inside
// InTx so the stock decrement, the order rows and the cart status flip commit
// or roll back together.
type Repository interface {
	GetActiveCart(userID int64) (*cartmodel.Cart, error)
	CreateCart(c *cartmodel.Cart) error
	GetItems(cartID int64) ([]*cartmodel.CartItem, error)
	GetItem(cartID, productID int64) (*cartmodel.CartItem, error)
	SaveItem(item *cartmodel.CartItem) error
	DeleteItem(cartItemID int64) error
	SetCartStatus(cartID int64, status string) error

	GetProduct(productID int64) (*catalogmodel.Product, error)
	ProductNames(productIDs []int64) (map[int64]string, error)
	ReserveStock(productID int64, quantity int) (bool, error)

	CreateOrder(o *ordermodel.Order) error
	CreateOrderDetail(d *ordermodel.OrderDetail) error
	CreateDelivery(d *ordermodel.Delivery) error

	InTx(fn func(Repository) error) error
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

// GetCart returns the user's active cart, creating an empty one on first use.
func (s *Service) GetCart(userID int64) (*Cart, error) {
	active, err := s.ensureActiveCart(s.repo, userID)
	if err != nil {
		return nil, err
	}
	return s.load(active)
}

// AddItem puts a product in the cart, snapshotting the current price. Adding
// a product already present raises its quantity instead of duplicating rows.
func (s *Service) AddItem(userID int64, dto AddItemDTO) (*Cart, error) {
	product, err := s.repo.GetProduct(dto.ProductID)
	if err != nil {
		return nil, fmt.Errorf("failed to load product: %w", err)
	}
	if product == nil || !product.IsActive {
		return nil, ErrProductNotFound
	}
	if product.StockQuantity < dto.Quantity {
		return nil, ErrInsufficientStock
	}

	active, err := s.ensureActiveCart(s.repo, userID)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.GetItem(active.CartID, dto.ProductID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart item: %w", err)
	}
	if existing != nil {
		existing.Quantity += dto.Quantity
		existing.PriceCents = product.PriceCents
		if err := s.repo.SaveItem(existing); err != nil {
			return nil, fmt.Errorf("failed to update cart item: %w", err)
		}
	} else {
		item := &cartmodel.CartItem{
			CartID:     active.CartID,
			ProductID:  dto.ProductID,
			Quantity:   dto.Quantity,
			PriceCents: product.PriceCents,
		}
		if err := s.repo.SaveItem(item); err != nil {
			return nil, fmt.Errorf("failed to add cart item: %w", err)
		}
	}
	return s.load(active)
}

// UpdateItem sets the quantity of a cart line; zero removes it.
func (s *Service) UpdateItem(userID, productID int64, quantity int) (*Cart, error) {
	active, err := s.ensureActiveCart(s.repo, userID)
	if err != nil {
		return nil, err
	}

	item, err := s.repo.GetItem(active.CartID, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart item: %w", err)
	}
	if item == nil {
		return nil, ErrItemNotFound
	}

	if quantity == 0 {
		if err := s.repo.DeleteItem(item.CartItemID); err != nil {
			return nil, fmt.Errorf("failed to remove cart item: %w", err)
		}
	} else {
		item.Quantity = quantity
		if err := s.repo.SaveItem(item); err != nil {
			return nil, fmt.Errorf("failed to update cart item: %w", err)
		}
	}
	return s.load(active)
}

func (s *Service) RemoveItem(userID, productID int64) (*Cart, error) {
	return s.UpdateItem(userID, productID, 0)
}

// Checkout turns the active cart into an order. Stock is reserved per line
// with a conditional decrement; any shortfall rolls the whole order back.
func (s *Service) Checkout(userID int64) (*CheckoutResult, error) {
	active, err := s.ensureActiveCart(s.repo, userID)
	if err != nil {
		return nil, err
	}

	items, err := s.repo.GetItems(active.CartID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart items: %w", err)
	}
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	var result *CheckoutResult
	err = s.repo.InTx(func(tx Repository) error {
		order := &ordermodel.Order{
			UserID:    userID,
			OrderDate: s.clock.Now(),
		}
		for _, it := range items {
			order.TotalCents += it.PriceCents * int64(it.Quantity)
		}
		if err := tx.CreateOrder(order); err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}

		for _, it := range items {
			ok, err := tx.ReserveStock(it.ProductID, it.Quantity)
			if err != nil {
				return fmt.Errorf("failed to reserve stock: %w", err)
			}
			if !ok {
				return fmt.Errorf("product %d: %w", it.ProductID, ErrInsufficientStock)
			}
			if err := tx.CreateOrderDetail(&ordermodel.OrderDetail{
				OrderID:    order.OrderID,
				ProductID:  it.ProductID,
				Quantity:   it.Quantity,
				PriceCents: it.PriceCents,
			}); err != nil {
				return fmt.Errorf("failed to create order detail: %w", err)
			}
		}

		if err := tx.CreateDelivery(&ordermodel.Delivery{
			OrderID: order.OrderID,
			Status:  ordermodel.DeliveryPending,
		}); err != nil {
			return fmt.Errorf("failed to create delivery: %w", err)
		}

		if err := tx.SetCartStatus(active.CartID, cartmodel.StatusCheckedOut); err != nil {
			return fmt.Errorf("failed to close cart: %w", err)
		}

		result = &CheckoutResult{OrderID: order.OrderID, TotalCents: order.TotalCents}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("checkout complete", "user_id", userID, "order_id", result.OrderID, "total_cents", result.TotalCents)
	return result, nil
}

func (s *Service) ensureActiveCart(repo Repository, userID int64) (*cartmodel.Cart, error) {
	active, err := repo.GetActiveCart(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	if active != nil {
		return active, nil
	}

	active = &cartmodel.Cart{
		UserID:      userID,
		Status:      cartmodel.StatusActive,
		CreatedDate: s.clock.Now(),
	}
	if err := repo.CreateCart(active); err != nil {
		return nil, fmt.Errorf("failed to create cart: %w", err)
	}
	return active, nil
}

func (s *Service) load(active *cartmodel.Cart) (*Cart, error) {
	items, err := s.repo.GetItems(active.CartID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart items: %w", err)
	}

	ids := make([]int64, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}
	names, err := s.repo.ProductNames(ids)
	if err != nil {
		s.logger.Warn("product name lookup failed", "error", err)
		names = map[int64]string{}
	}
	return fromDataModel(active, items, names), nil
}
