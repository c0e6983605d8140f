package cart

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/noah-isme/backend-storefront/internal/common"
	"github.com/noah-isme/backend-storefront/internal/pricing"
	"github.com/noah-isme/backend-storefront/internal/promo"
)

// Handler exposes the shopper-facing cart endpoints.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate

	DefaultRegion   string
	DefaultDelivery string
}

type addItemPayload struct {
	ProductID string `json:"productId" validate:"required,uuid"`
	Name      string `json:"name" validate:"required,max=200"`
	UnitPrice int64  `json:"unitPrice" validate:"gte=0"`
	Quantity  int    `json:"quantity" validate:"gte=1"`
	Size      string `json:"size" validate:"max=32"`
	Color     string `json:"color" validate:"max=32"`
}

type quantityPayload struct {
	Quantity int    `json:"quantity" validate:"gte=0"`
	Size     string `json:"size" validate:"max=32"`
	Color    string `json:"color" validate:"max=32"`
}

type couponPayload struct {
	Code string `json:"code" validate:"required,max=64"`
}

// Create opens a new cart.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var owner *uuid.UUID
	if userID, ok := common.UserID(r.Context()); ok {
		owner = &userID
	}
	c, err := h.Svc.Create(r.Context(), owner)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to create cart", nil)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": c})
}

// Get returns the raw cart without pricing.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	cartID, ok := h.cartID(w, r)
	if !ok {
		return
	}
	c, err := h.Svc.Get(r.Context(), cartID)
	if err != nil {
		h.renderCartError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": c})
}

// AddItem adds a variant to the cart.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	cartID, ok := h.cartID(w, r)
	if !ok {
		return
	}
	var payload addItemPayload
	if err := common.DecodeJSON(r, &payload); err != nil {
		common.RenderError(w, err)
		return
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(payload); err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
			return
		}
	}
	productID, err := uuid.Parse(payload.ProductID)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid product id", nil)
		return
	}
	c, err := h.Svc.AddItem(r.Context(), cartID, promo.Line{
		ProductID: productID,
		Name:      payload.Name,
		UnitPrice: payload.UnitPrice,
		Quantity:  payload.Quantity,
		Size:      payload.Size,
		Color:     payload.Color,
	})
	if err != nil {
		h.renderCartError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": c})
}

// UpdateItem sets a variant's quantity; zero removes it.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	cartID, ok := h.cartID(w, r)
	if !ok {
		return
	}
	productID, err := uuid.Parse(chi.URLParam(r, "productId"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid product id", nil)
		return
	}
	var payload quantityPayload
	if err := common.DecodeJSON(r, &payload); err != nil {
		common.RenderError(w, err)
		return
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(payload); err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
			return
		}
	}
	c, err := h.Svc.SetQuantity(r.Context(), cartID, productID, payload.Size, payload.Color, payload.Quantity)
	if err != nil {
		h.renderCartError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": c})
}

// RemoveItem deletes a variant from the cart. Size and color arrive as query
// parameters since DELETE bodies are unreliable across proxies.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	cartID, ok := h.cartID(w, r)
	if !ok {
		return
	}
	productID, err := uuid.Parse(chi.URLParam(r, "productId"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid product id", nil)
		return
	}
	q := r.URL.Query()
	c, err := h.Svc.RemoveItem(r.Context(), cartID, productID, q.Get("size"), q.Get("color"))
	if err != nil {
		h.renderCartError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": c})
}

// ApplyCoupon attaches a coupon code to the cart.
func (h *Handler) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	cartID, ok := h.cartID(w, r)
	if !ok {
		return
	}
	var payload couponPayload
	if err := common.DecodeJSON(r, &payload); err != nil {
		common.RenderError(w, err)
		return
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(payload); err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
			return
		}
	}
	var userID *uuid.UUID
	if id, okUser := common.UserID(r.Context()); okUser {
		userID = &id
	}
	c, err := h.Svc.ApplyCoupon(r.Context(), cartID, strings.ToUpper(strings.TrimSpace(payload.Code)), userID)
	if err != nil {
		if errors.Is(err, ErrInvalidCoupon) {
			common.JSONError(w, http.StatusUnprocessableEntity, "COUPON_REJECTED", err.Error(), nil)
			return
		}
		h.renderCartError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": c})
}

// RemoveCoupon clears the cart's coupon.
func (h *Handler) RemoveCoupon(w http.ResponseWriter, r *http.Request) {
	cartID, ok := h.cartID(w, r)
	if !ok {
		return
	}
	c, err := h.Svc.RemoveCoupon(r.Context(), cartID)
	if err != nil {
		h.renderCartError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": c})
}

// GetQuote prices the cart and returns the order summary.
func (h *Handler) GetQuote(w http.ResponseWriter, r *http.Request) {
	cartID, ok := h.cartID(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	region := strings.TrimSpace(q.Get("region"))
	if region == "" {
		region = h.DefaultRegion
	}
	delivery := strings.ToUpper(strings.TrimSpace(q.Get("delivery")))
	if delivery == "" {
		delivery = h.DefaultDelivery
	}
	quote, err := h.Svc.BuildQuote(r.Context(), cartID, region, delivery)
	if err != nil {
		if errors.Is(err, pricing.ErrUnknownDeliveryMethod) {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
			return
		}
		h.renderCartError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": quote})
}

func (h *Handler) cartID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "cartId"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid cart id", nil)
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) renderCartError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "cart not found", nil)
	case errors.Is(err, ErrItemNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "cart item not found", nil)
	case errors.Is(err, pricing.ErrInvalidLine):
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid cart line", nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart operation failed", nil)
	}
}
