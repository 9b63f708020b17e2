package catalog

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"

	"github.com/stempede/stempede-api/internal/transport"
	"github.com/stempede/stempede-api/pkg/logger"
)

type ServiceAPI interface {
	GetProducts(params QueryParams) (*ProductPage, error)
	GetProductByID(id int64) (*Product, error)
	GetLabs() ([]*Lab, error)
	GetLabByID(id int64) (*Lab, error)
	GetSubcategories() ([]*Subcategory, error)
	GetSubcategoryByID(id int64) (*Subcategory, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(svc ServiceAPI) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     svc,
	}
}

// GetProducts handles GET /products
func (h *Handler) GetProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	params := QueryParams{Search: q.Get("search")}
	params.SubcategoryID, _ = strconv.ParseInt(q.Get("subcategory_id"), 10, 64)
	params.LabID, _ = strconv.ParseInt(q.Get("lab_id"), 10, 64)
	params.Page, _ = strconv.Atoi(q.Get("page"))
	params.PageSize, _ = strconv.Atoi(q.Get("page_size"))

	page, err := h.Service.GetProducts(params)
	if err != nil {
		h.Logger.Error("failed to list products", "error", err)
		h.WriteError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	h.WriteJSON(w, http.StatusOK, page)
}

// GetProduct handles GET /products/{id}
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	product, err := h.Service.GetProductByID(id)
	if err != nil {
		if errors.Is(err, ErrProductNotFound) {
			h.WriteError(w, http.StatusNotFound, "product not found")
			return
		}
		h.Logger.Error("failed to get product", "product_id", id, "error", err)
		h.WriteError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	h.WriteJSON(w, http.StatusOK, product)
}

// GetLabs handles GET /labs
func (h *Handler) GetLabs(w http.ResponseWriter, r *http.Request) {
	labs, err := h.Service.GetLabs()
	if err != nil {
		h.Logger.Error("failed to list labs", "error", err)
		h.WriteError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	h.WriteJSON(w, http.StatusOK, labs)
}

// GetLab handles GET /labs/{id}
func (h *Handler) GetLab(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid lab id")
		return
	}

	lab, err := h.Service.GetLabByID(id)
	if err != nil {
		if errors.Is(err, ErrLabNotFound) {
			h.WriteError(w, http.StatusNotFound, "lab not found")
			return
		}
		h.Logger.Error("failed to get lab", "lab_id", id, "error", err)
		h.WriteError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	h.WriteJSON(w, http.StatusOK, lab)
}

// GetSubcategories handles GET /subcategories
func (h *Handler) GetSubcategories(w http.ResponseWriter, r *http.Request) {
	subs, err := h.Service.GetSubcategories()
	if err != nil {
		h.Logger.Error("failed to list subcategories", "error", err)
		h.WriteError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	h.WriteJSON(w, http.StatusOK, subs)
}

// GetSubcategory handles GET /subcategories/{id}
func (h *Handler) GetSubcategory(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid subcategory id")
		return
	}

	sub, err := h.Service.GetSubcategoryByID(id)
	if err != nil {
		if errors.Is(err, ErrSubcategoryNotFound) {
			h.WriteError(w, http.StatusNotFound, "subcategory not found")
			return
		}
		h.Logger.Error("failed to get subcategory", "subcategory_id", id, "error", err)
		h.WriteError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	h.WriteJSON(w, http.StatusOK, sub)
}
