package postgres

import (
	"errors"
	"time"

	"gorm.io/gorm"

	catalogmodel "github.com/stempede/stempede-api/internal/core/datamodel/catalog"
	datamodel "github.com/stempede/stempede-api/internal/core/datamodel/order"
	"github.com/stempede/stempede-api/internal/order"
)

type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) order.Repository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) GetByID(orderID int64) (*datamodel.Order, error) {
	var o datamodel.Order
	err := r.db.Where("order_id = ?", orderID).First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *OrderRepository) GetByUserID(userID int64, limit, offset int) ([]*datamodel.Order, error) {
	var orders []*datamodel.Order
	err := r.db.Where("user_id = ?", userID).
		Order("order_date DESC").
		Limit(limit).
		Offset(offset).
		Find(&orders).Error
	return orders, err
}

func (r *OrderRepository) GetDetails(orderID int64) ([]*datamodel.OrderDetail, error) {
	var details []*datamodel.OrderDetail
	err := r.db.Where("order_id = ?", orderID).Order("order_detail_id ASC").Find(&details).Error
	return details, err
}

func (r *OrderRepository) GetDelivery(orderID int64) (*datamodel.Delivery, error) {
	var d datamodel.Delivery
	err := r.db.Where("order_id = ?", orderID).First(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *OrderRepository) UpdateDeliveryStatus(orderID int64, status string, at time.Time) error {
	return r.db.Model(&datamodel.Delivery{}).
		Where("order_id = ?", orderID).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": at,
		}).Error
}

func (r *OrderRepository) ProductNames(productIDs []int64) (map[int64]string, error) {
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
