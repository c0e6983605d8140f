package campaign

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/noah-isme/backend-storefront/internal/common"
	"github.com/noah-isme/backend-storefront/internal/promo"
)

// Handler exposes administrative campaign management endpoints.
type Handler struct {
	Svc             *Service
	Validate        *validator.Validate
	DefaultPriority int
}

type campaignPayload struct {
	Title      string   `json:"title" validate:"required,max=200"`
	Scope      string   `json:"scope" validate:"required,oneof=item cart"`
	Kind       string   `json:"kind" validate:"required"`
	ProductIDs []string `json:"productIds" validate:"dive,uuid"`
	Priority   *int     `json:"priority"`
	Active     *bool    `json:"active"`

	BuyXGetY      *promo.BuyXGetYPercent  `json:"buyXGetY"`
	FirstPurchase *promo.FirstPurchase    `json:"firstPurchase"`
	FlashSale     *promo.FlashSale        `json:"flashSale"`
	Quantity      *promo.QuantityDiscount `json:"quantity"`
	Bogo          *promo.Bogo             `json:"bogo"`
	SpendAndSave  *promo.SpendAndSave     `json:"spendAndSave"`
}

var validKinds = map[promo.Kind]bool{
	promo.KindBuyXGetYPercent:  true,
	promo.KindFirstPurchase:    true,
	promo.KindSpendAndSave:     true,
	promo.KindBogo:             true,
	promo.KindFlashSale:        true,
	promo.KindQuantityDiscount: true,
}

func (h *Handler) buildCampaign(payload campaignPayload) (promo.Campaign, error) {
	kind := promo.Kind(strings.ToUpper(strings.TrimSpace(payload.Kind)))
	if !validKinds[kind] {
		return promo.Campaign{}, errors.New("invalid kind")
	}
	productIDs := make([]uuid.UUID, 0, len(payload.ProductIDs))
	for _, raw := range payload.ProductIDs {
		id, err := uuid.Parse(strings.TrimSpace(raw))
		if err != nil {
			return promo.Campaign{}, errors.New("invalid product id")
		}
		productIDs = append(productIDs, id)
	}
	priority := h.DefaultPriority
	if payload.Priority != nil {
		priority = *payload.Priority
	}
	active := true
	if payload.Active != nil {
		active = *payload.Active
	}
	return promo.Campaign{
		Title:         strings.TrimSpace(payload.Title),
		Scope:         promo.Scope(payload.Scope),
		Kind:          kind,
		ProductIDs:    productIDs,
		Priority:      priority,
		Active:        active,
		BuyXGetY:      payload.BuyXGetY,
		FirstPurchase: payload.FirstPurchase,
		FlashSale:     payload.FlashSale,
		Quantity:      payload.Quantity,
		Bogo:          payload.Bogo,
		SpendAndSave:  payload.SpendAndSave,
	}, nil
}

func (h *Handler) decodePayload(r *http.Request) (campaignPayload, error) {
	var payload campaignPayload
	if err := common.DecodeJSON(r, &payload); err != nil {
		return campaignPayload{}, err
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(payload); err != nil {
			return campaignPayload{}, common.BadRequest(err.Error(), err)
		}
	}
	return payload, nil
}

// Create inserts a new campaign.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	payload, err := h.decodePayload(r)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	c, err := h.buildCampaign(payload)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	created, err := h.Svc.Create(r.Context(), c)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			common.JSONError(w, http.StatusConflict, "CONFLICT", "campaign title already exists", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to create campaign", nil)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": created})
}

// Update replaces an existing campaign.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "campaignId"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid campaign id", nil)
		return
	}
	payload, err := h.decodePayload(r)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	c, err := h.buildCampaign(payload)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	c.ID = id
	updated, err := h.Svc.Update(r.Context(), c)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "campaign not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to update campaign", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": updated})
}

// Delete removes a campaign.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "campaignId"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid campaign id", nil)
		return
	}
	if err := h.Svc.Delete(r.Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "campaign not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to delete campaign", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]string{"id": id.String()}})
}

// Get returns a single campaign.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "campaignId"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid campaign id", nil)
		return
	}
	c, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "campaign not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load campaign", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": c})
}

// List returns a page of campaigns.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := common.ParsePagination(r, 20)
	items, total, err := h.Svc.List(r.Context(), perPage, (page-1)*perPage)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list campaigns", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data": items,
		"meta": common.Pagination{Page: page, PerPage: perPage, TotalItems: int(total)},
	})
}

// Conflicts runs the conflict detector over the active campaign set.
func (h *Handler) Conflicts(w http.ResponseWriter, r *http.Request) {
	warnings, err := h.Svc.Conflicts(r.Context())
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to detect conflicts", nil)
		return
	}
	if warnings == nil {
		warnings = []promo.Warning{}
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": warnings})
}

type previewLinePayload struct {
	ProductID string `json:"productId" validate:"required,uuid"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unitPrice" validate:"gte=0"`
	Quantity  int    `json:"quantity" validate:"gte=1"`
}

type previewPayload struct {
	Lines           []previewLinePayload `json:"lines" validate:"required,min=1,dive"`
	PriorOrderCount int                  `json:"priorOrderCount" validate:"gte=0"`
	CouponCode      string               `json:"couponCode"`
	CouponKind      string               `json:"couponKind" validate:"omitempty,oneof=PERCENT FIXED"`
	CouponPercent   int                  `json:"couponPercent" validate:"gte=0,lte=100"`
	CouponAmount    int64                `json:"couponAmount" validate:"gte=0"`
	At              *time.Time           `json:"at"`
}

// Preview simulates pricing for a hypothetical cart against active campaigns.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	var payload previewPayload
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
	lines := make([]promo.Line, 0, len(payload.Lines))
	for _, l := range payload.Lines {
		id, err := uuid.Parse(l.ProductID)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid product id", nil)
			return
		}
		lines = append(lines, promo.Line{ProductID: id, Name: l.Name, UnitPrice: l.UnitPrice, Quantity: l.Quantity})
	}
	req := PreviewRequest{Lines: lines, PriorOrderCount: payload.PriorOrderCount}
	if code := strings.TrimSpace(payload.CouponCode); code != "" {
		req.Coupon = &promo.Coupon{
			Code:    code,
			Kind:    promo.CouponKind(payload.CouponKind),
			Percent: payload.CouponPercent,
			Amount:  payload.CouponAmount,
		}
	}
	svc := h.Svc
	if payload.At != nil {
		at := *payload.At
		frozen := *h.Svc
		frozen.Now = func() time.Time { return at }
		svc = &frozen
	}
	result, err := svc.Preview(r.Context(), req)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": result})
}
