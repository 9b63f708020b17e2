package catalog

import (
	"fmt"
	"log/slog"

	datamodel "github.com/stempede/stempede-api/internal/core/datamodel/catalog"
)

type Repository interface {
	GetProducts(params QueryParams) ([]*datamodel.Product, int64, error)
	GetProductByID(id int64) (*datamodel.Product, error)
	GetLab(id int64) (*datamodel.Lab, error)
	GetLabs() ([]*datamodel.Lab, error)
	GetSubcategory(id int64) (*datamodel.Subcategory, error)
	GetSubcategories() ([]*datamodel.Subcategory, error)
}

type Service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

func (s *Service) GetProducts(params QueryParams) (*ProductPage, error) {
	params.normalize()

	products, total, err := s.repo.GetProducts(params)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	page := &ProductPage{
		Items:    make([]*Product, 0, len(products)),
		Total:    total,
		Page:     params.Page,
		PageSize: params.PageSize,
	}
	for _, p := range products {
		page.Items = append(page.Items, s.resolve(p))
	}
	return page, nil
}

func (s *Service) GetProductByID(id int64) (*Product, error) {
	p, err := s.repo.GetProductByID(id)
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	if p == nil {
		return nil, ErrProductNotFound
	}
	return s.resolve(p), nil
}

func (s *Service) GetLabs() ([]*Lab, error) {
	labs, err := s.repo.GetLabs()
	if err != nil {
		return nil, fmt.Errorf("failed to list labs: %w", err)
	}
	out := make([]*Lab, 0, len(labs))
	for _, l := range labs {
		out = append(out, labFromDataModel(l))
	}
	return out, nil
}

func (s *Service) GetLabByID(id int64) (*Lab, error) {
	l, err := s.repo.GetLab(id)
	if err != nil {
		return nil, fmt.Errorf("failed to get lab: %w", err)
	}
	if l == nil {
		return nil, ErrLabNotFound
	}
	return labFromDataModel(l), nil
}

func (s *Service) GetSubcategories() ([]*Subcategory, error) {
	subs, err := s.repo.GetSubcategories()
	if err != nil {
		return nil, fmt.Errorf("failed to list subcategories: %w", err)
	}
	out := make([]*Subcategory, 0, len(subs))
	for _, sub := range subs {
		out = append(out, subcategoryFromDataModel(sub))
	}
	return out, nil
}

func (s *Service) GetSubcategoryByID(id int64) (*Subcategory, error) {
	sub, err := s.repo.GetSubcategory(id)
	if err != nil {
		return nil, fmt.Errorf("failed to get subcategory: %w", err)
	}
	if sub == nil {
		return nil, ErrSubcategoryNotFound
	}
	return subcategoryFromDataModel(sub), nil
}

func (s *Service) resolve(p *datamodel.Product) *Product {
	out := FromDataModel(p)

	if p.LabID != nil {
		lab, err := s.repo.GetLab(*p.LabID)
		if err != nil {
			s.logger.Warn("lab lookup failed", "lab_id", *p.LabID, "error", err)
		} else if lab != nil {
			out.LabName = lab.LabName
		}
	}

	sub, err := s.repo.GetSubcategory(p.SubcategoryID)
	if err != nil {
		s.logger.Warn("subcategory lookup failed", "subcategory_id", p.SubcategoryID, "error", err)
	} else if sub != nil {
		out.SubcategoryName = sub.SubcategoryName
	}
	return out
}
