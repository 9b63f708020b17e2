package cart

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"

	"github.com/stempede/stempede-api/internal"
	"github.com/stempede/stempede-api/internal/transport"
	"github.com/stempede/stempede-api/pkg/logger"
)

type ServiceAPI interface {
	GetCart(userID int64) (*Cart, error)
	AddItem(userID int64, dto AddItemDTO) (*Cart, error)
	UpdateItem(userID, productID int64, quantity int) (*Cart, error)
	RemoveItem(userID, productID int64) (*Cart, error)
	Checkout(userID int64) (*CheckoutResult, error)
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

// GetCart handles GET /cart
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	current, ok := internal.UserFromContext(r.Context())
	if !ok || current == nil {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	c, err := h.Service.GetCart(current.ID)
	if err != nil {
		h.Logger.Error("failed to load cart", "user_id", current.ID, "error", err)
		h.WriteError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	h.WriteJSON(w, http.StatusOK, c)
}

// AddItem handles POST /cart/items
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	current, ok := internal.UserFromContext(r.Context())
	if !ok || current == nil {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var dto AddItemDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := dto.Validate(); err != nil {
		h.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	c, err := h.Service.AddItem(current.ID, dto)
	if err != nil {
		h.writeCartError(w, current.ID, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, c)
}

// UpdateItem handles PATCH /cart/items/{productID}
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	current, ok := internal.UserFromContext(r.Context())
	if !ok || current == nil {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	productID, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	var dto UpdateItemDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := dto.Validate(); err != nil {
		h.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	c, err := h.Service.UpdateItem(current.ID, productID, dto.Quantity)
	if err != nil {
		h.writeCartError(w, current.ID, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, c)
}

// RemoveItem handles DELETE /cart/items/{productID}
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	current, ok := internal.UserFromContext(r.Context())
	if !ok || current == nil {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	productID, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	c, err := h.Service.RemoveItem(current.ID, productID)
	if err != nil {
		h.writeCartError(w, current.ID, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, c)
}

// Checkout handles POST /cart/checkout
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	current, ok := internal.UserFromContext(r.Context())
	if !ok || current == nil {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	result, err := h.Service.Checkout(current.ID)
	if err != nil {
		h.writeCartError(w, current.ID, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, result)
}

func (h *Handler) writeCartError(w http.ResponseWriter, userID int64, err error) {
	switch {
	case errors.Is(err, ErrProductNotFound), errors.Is(err, ErrItemNotFound):
		h.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrEmptyCart):
		h.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrInsufficientStock):
		h.WriteError(w, http.StatusConflict, "insufficient stock")
	default:
		h.Logger.Error("cart operation failed", "user_id", userID, "error", err)
		h.WriteError(w, http.StatusInternalServerError, "internal server error")
	}
}
