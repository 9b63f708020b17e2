package catalog

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// QueryParams filters the product listing. Zero values mean "no filter".
type QueryParams struct {
	Search        string
	SubcategoryID int64
	LabID         int64
	Page          int
	PageSize      int
}

func (p *QueryParams) normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = defaultPageSize
	}
	if p.PageSize > maxPageSize {
		p.PageSize = maxPageSize
	}
}

func (p QueryParams) Offset() int { return (p.Page - 1) * p.PageSize }

type ProductPage struct {
	Items    []*Product `json:"items"`
	Total    int64      `json:"total"`
	Page     int        `json:"page"`
	PageSize int        `json:"page_size"`
}
