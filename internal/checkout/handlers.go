package checkout

import (
	"errors"
	"net/http"
	"strings"

	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/noah-isme/backend-storefront/internal/cart"
	"github.com/noah-isme/backend-storefront/internal/common"
	"github.com/noah-isme/backend-storefront/internal/pricing"
)

// Handler exposes the checkout endpoint.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate

	DefaultRegion   string
	DefaultDelivery string
}

type checkoutPayload struct {
	CartID         string `json:"cartId" validate:"required,uuid"`
	Region         string `json:"region" validate:"max=8"`
	DeliveryMethod string `json:"deliveryMethod" validate:"max=32"`
}

// Create places an order from the caller's cart.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "checkout requires identity", nil)
		return
	}
	var payload checkoutPayload
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
	cartID, err := uuid.Parse(payload.CartID)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid cart id", nil)
		return
	}
	region := strings.TrimSpace(payload.Region)
	if region == "" {
		region = h.DefaultRegion
	}
	delivery := strings.ToUpper(strings.TrimSpace(payload.DeliveryMethod))
	if delivery == "" {
		delivery = h.DefaultDelivery
	}
	out, err := h.Svc.Create(r.Context(), userID, Input{CartID: cartID, Region: region, DeliveryMethod: delivery})
	if err != nil {
		switch {
		case errors.Is(err, cart.ErrNotFound):
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "cart not found", nil)
		case errors.Is(err, ErrEmptyCart):
			common.JSONError(w, http.StatusUnprocessableEntity, "EMPTY_CART", "cart is empty", nil)
		case errors.Is(err, ErrCartOwnership):
			common.JSONError(w, http.StatusForbidden, "FORBIDDEN", "cart does not belong to user", nil)
		case errors.Is(err, pricing.ErrUnknownDeliveryMethod):
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		default:
			common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout failed", nil)
		}
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": out})
}
