package coupon

import (
	"errors"
	"net/http"
	"strings"

	validator "github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/noah-isme/backend-storefront/internal/common"
	"github.com/noah-isme/backend-storefront/internal/promo"
)

// Handler exposes administrative coupon endpoints.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
}

type couponPayload struct {
	Code            string `json:"code" validate:"required,max=64"`
	Kind            string `json:"kind" validate:"required,oneof=PERCENT FIXED"`
	Percent         int    `json:"percent" validate:"gte=0,lte=100"`
	Amount          int64  `json:"amount" validate:"gte=0"`
	MaxUsagePerUser int    `json:"maxUsagePerUser" validate:"gte=0"`
	MaxTotalUses    int    `json:"maxTotalUses" validate:"gte=0"`
}

// Create inserts a new coupon.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
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
	kind := promo.CouponKind(payload.Kind)
	if kind == promo.CouponPercent && payload.Percent <= 0 {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "percent coupons need a positive percent", nil)
		return
	}
	if kind == promo.CouponFixed && payload.Amount <= 0 {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "fixed coupons need a positive amount", nil)
		return
	}
	created, err := h.Svc.Store.InsertCoupon(r.Context(), promo.Coupon{
		Code:            strings.ToUpper(strings.TrimSpace(payload.Code)),
		Kind:            kind,
		Percent:         payload.Percent,
		Amount:          payload.Amount,
		MaxUsagePerUser: payload.MaxUsagePerUser,
		MaxTotalUses:    payload.MaxTotalUses,
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			common.JSONError(w, http.StatusConflict, "CONFLICT", "coupon code already exists", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to create coupon", nil)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": created})
}

// List returns a page of coupons.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := common.ParsePagination(r, 20)
	items, total, err := h.Svc.Store.ListCoupons(r.Context(), perPage, (page-1)*perPage)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list coupons", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data": items,
		"meta": common.Pagination{Page: page, PerPage: perPage, TotalItems: int(total)},
	})
}
