package postgres

import (
	"errors"

	"gorm.io/gorm"

	"github.com/stempede/stempede-api/internal/catalog"
	datamodel "github.com/stempede/stempede-api/internal/core/datamodel/catalog"
)

type CatalogRepository struct {
	db *gorm.DB
}

func NewCatalogRepository(db *gorm.DB) catalog.Repository {
	return &CatalogRepository{db: db}
}

func (r *CatalogRepository) GetProducts(params catalog.QueryParams) ([]*datamodel.Product, int64, error) {
	query := r.db.Model(&datamodel.Product{}).Where("is_active = ?", true)

	if params.Search != "" {
		query = query.Where("LOWER(product_name) LIKE LOWER(?)", "%"+params.Search+"%")
	}
	if params.SubcategoryID > 0 {
		query = query.Where("subcategory_id = ?", params.SubcategoryID)
	}
	if params.LabID > 0 {
		query = query.Where("lab_id = ?", params.LabID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var products []*datamodel.Product
	err := query.
		Order("product_name ASC").
		Limit(params.PageSize).
		Offset(params.Offset()).
		Find(&products).Error
	return products, total, err
}

func (r *CatalogRepository) GetProductByID(id int64) (*datamodel.Product, error) {
	var p datamodel.Product
	err := r.db.Where("product_id = ?", id).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *CatalogRepository) GetLab(id int64) (*datamodel.Lab, error) {
	var lab datamodel.Lab
	err := r.db.Where("lab_id = ?", id).First(&lab).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &lab, nil
}

func (r *CatalogRepository) GetLabs() ([]*datamodel.Lab, error) {
	var labs []*datamodel.Lab
	err := r.db.Order("lab_name ASC").Find(&labs).Error
	return labs, err
}

func (r *CatalogRepository) GetSubcategory(id int64) (*datamodel.Subcategory, error) {
	var sub datamodel.Subcategory
	err := r.db.Where("subcategory_id = ?", id).First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *CatalogRepository) GetSubcategories() ([]*datamodel.Subcategory, error) {
	var subs []*datamodel.Subcategory
	err := r.db.Order("subcategory_name ASC").Find(&subs).Error
	return subs, err
}
