package postgres

import (
	"errors"

	"gorm.io/gorm"

	"github.com/stempede/stempede-api/internal/cart"
	cartmodel "github.com/stempede/stempede-api/internal/core/datamodel/cart"
	catalogmodel "github.com/stempede/stempede-api/internal/core/datamodel/catalog"
	ordermodel "github.com/stempede/stempede-api/internal/core/datamodel/order"
)

type CartRepository struct {
	db *gorm.DB
}

func NewCartRepository(db *gorm.DB) cart.Repository {
	return &CartRepository{db: db}
}

func (r *CartRepository) GetActiveCart(userID int64) (*cartmodel.Cart, error) {
	var c cartmodel.Cart
	err := r.db.
		Where("user_id = ? AND status = ?", userID, cartmodel.StatusActive).
		Order("created_date DESC").
		First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CartRepository) CreateCart(c *cartmodel.Cart) error {
	return r.db.Create(c).Error
}

func (r *CartRepository) GetItems(cartID int64) ([]*cartmodel.CartItem, error) {
	var items []*cartmodel.CartItem
	err := r.db.Where("cart_id = ?", cartID).Order("cart_item_id ASC").Find(&items).Error
	return items, err
}

func (r *CartRepository) GetItem(cartID, productID int64) (*cartmodel.CartItem, error) {
	var item cartmodel.CartItem
	err := r.db.Where("cart_id = ? AND product_id = ?", cartID, productID).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *CartRepository) SaveItem(item *cartmodel.CartItem) error {
	return r.db.Save(item).Error
}

func (r *CartRepository) DeleteItem(cartItemID int64) error {
	return r.db.Delete(&cartmodel.CartItem{}, "cart_item_id = ?", cartItemID).Error
}

func (r *CartRepository) SetCartStatus(cartID int64, status string) error {
	return r.db.Model(&cartmodel.Cart{}).Where("cart_id = ?", cartID).Update("status", status).Error
}

func (r *CartRepository) GetProduct(productID int64) (*catalogmodel.Product, error) {
	var p catalogmodel.Product
	err := r.db.Where("product_id = ?", productID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *CartRepository) ProductNames(productIDs []int64) (map[int64]string, error) {
	names := make(map[int64]string, len(productIDs))
	if len(productIDs) == 0 {
		return names, nil
	}

	var products []catalogmodel.Product
	if err := r.db.Where("product_id IN ?", productIDs).Find(&products).Error; err != nil {
		return nil, err
	}
	for _, p := range products {
		names[p.ProductID] = p.ProductName
	}
	return names, nil
}

func (r *CartRepository) ReserveStock(productID int64, quantity int) (bool, error) {
	res := r.db.Model(&catalogmodel.Product{}).
		Where("product_id = ? AND stock_quantity >= ?", productID, quantity).
		Update("stock_quantity", gorm.Expr("stock_quantity - ?", quantity))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *CartRepository) CreateOrder(o *ordermodel.Order) error {
	return r.db.Create(o).Error
}

func (r *CartRepository) CreateOrderDetail(d *ordermodel.OrderDetail) error {
	return r.db.Create(d).Error
}

func (r *CartRepository) CreateDelivery(d *ordermodel.Delivery) error {
	return r.db.Create(d).Error
}

func (r *CartRepository) InTx(fn func(cart.Repository) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(&CartRepository{db: tx})
	})
}
