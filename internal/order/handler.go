package order

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
	ListForUser(userID int64, limit, offset int) ([]*Order, error)
	GetForUser(userID, orderID int64) (*Order, error)
	Get(orderID int64) (*Order, error)
	UpdateDeliveryStatus(orderID int64, status string) error
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

// ListOrders handles GET /orders
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	current, ok := internal.UserFromContext(r.Context())
	if !ok || current == nil {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	orders, err := h.Service.ListForUser(current.ID, limit, offset)
	if err != nil {
		h.Logger.Error("failed to list orders", "user_id", current.ID, "error", err)
		h.WriteError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	h.WriteJSON(w, http.StatusOK, orders)
}

// GetOrder handles GET /orders/{id}
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	current, ok := internal.UserFromContext(r.Context())
	if !ok || current == nil {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	orderID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	var o *Order
	if current.HasRole("Staff") || current.HasRole("Manager") {
		o, err = h.Service.Get(orderID)
	} else {
		o, err = h.Service.GetForUser(current.ID, orderID)
	}
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			h.WriteError(w, http.StatusNotFound, "order not found")
			return
		}
		h.Logger.Error("failed to get order", "order_id", orderID, "error", err)
		h.WriteError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	h.WriteJSON(w, http.StatusOK, o)
}

// UpdateDelivery handles PATCH /orders/{id}/delivery
func (h *Handler) UpdateDelivery(w http.ResponseWriter, r *http.Request) {
	orderID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	var dto UpdateDeliveryDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := dto.Validate(); err != nil {
		h.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.Service.UpdateDeliveryStatus(orderID, dto.Status); err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			h.WriteError(w, http.StatusNotFound, "order not found")
		case errors.Is(err, ErrInvalidStatus):
			h.WriteError(w, http.StatusBadRequest, "invalid delivery status")
		default:
			h.Logger.Error("failed to update delivery", "order_id", orderID, "error", err)
			h.WriteError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}
