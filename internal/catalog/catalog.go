// Package catalog serves the read side of the store: products with their
// lab and subcategory reference data.
package catalog

import (
	"errors"

	datamodel "github.com/stempede/stempede-api/internal/core/datamodel/catalog"
)

var (
	ErrProductNotFound     = errors.New("product not found")
	ErrLabNotFound         = errors.New("lab not found")
	ErrSubcategoryNotFound = errors.New("subcategory not found")
)

// Product is the API-facing shape with reference names resolved.
type Product struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	Description     string `json:"description,omitempty"`
	PriceCents      int64  `json:"price_cents"`
	StockQuantity   int    `json:"stock_quantity"`
	Ages            string `json:"ages,omitempty"`
	LabID           *int64 `json:"lab_id,omitempty"`
	LabName         string `json:"lab_name,omitempty"`
	SubcategoryID   int64  `json:"subcategory_id"`
	SubcategoryName string `json:"subcategory_name,omitempty"`
	IsActive        bool   `json:"is_active"`
}

func FromDataModel(p *datamodel.Product) *Product {
	out := &Product{
		ID:            p.ProductID,
		Name:          p.ProductName,
		PriceCents:    p.PriceCents,
		StockQuantity: p.StockQuantity,
		LabID:         p.LabID,
		SubcategoryID: p.SubcategoryID,
		IsActive:      p.IsActive,
	}
	if p.Description != nil {
		out.Description = *p.Description
	}
	if p.Ages != nil {
		out.Ages = *p.Ages
	}
	return out
}

type Lab struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	LabFileURL  string `json:"lab_file_url,omitempty"`
	VideoURL    string `json:"video_url,omitempty"`
}

func labFromDataModel(l *datamodel.Lab) *Lab {
	out := &Lab{ID: l.LabID, Name: l.LabName}
	if l.Description != nil {
		out.Description = *l.Description
	}
	if l.LabFileURL != nil {
		out.LabFileURL = *l.LabFileURL
	}
	if l.VideoURL != nil {
		out.VideoURL = *l.VideoURL
	}
	return out
}

type Subcategory struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

func subcategoryFromDataModel(s *datamodel.Subcategory) *Subcategory {
	out := &Subcategory{ID: s.SubcategoryID, Name: s.SubcategoryName}
	if s.Description != nil {
		out.Description = *s.Description
	}
	return out
}
