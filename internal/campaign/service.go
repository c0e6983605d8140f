package campaign

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-storefront/internal/lock"
	"github.com/noah-isme/backend-storefront/internal/obs"
	"github.com/noah-isme/backend-storefront/internal/pricing"
	"github.com/noah-isme/backend-storefront/internal/promo"
)

const rebuildKey = "storefront:campaigns:rebuild"

// storeProvider captures the persistence methods the service needs.
type storeProvider interface {
	Insert(ctx context.Context, c promo.Campaign) (promo.Campaign, error)
	Update(ctx context.Context, c promo.Campaign) (promo.Campaign, error)
	Delete(ctx context.Context, id uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (promo.Campaign, error)
	List(ctx context.Context, limit, offset int) ([]promo.Campaign, int64, error)
	ListActive(ctx context.Context) ([]promo.Campaign, error)
}

// Service orchestrates campaign persistence, the active-set cache, conflict
// detection, and quote previews.
type Service struct {
	Store storeProvider
	Cache *Cache
	Log   zerolog.Logger

	// Rebuild serialises cache refills across instances so a popular quote
	// path cannot stampede the database after an invalidation. Optional.
	Rebuild *lock.Locker

	Now            func() time.Time
	Spend          promo.SpendReward
	SortByPriority bool
}

// ListActive returns the active campaign set, serving from cache when possible.
func (s *Service) ListActive(ctx context.Context) ([]promo.Campaign, error) {
	if s == nil || s.Store == nil {
		return nil, errors.New("campaign service not configured")
	}
	var cached []promo.Campaign
	hit, err := s.Cache.GetJSON(ctx, activeKey, &cached)
	if err != nil {
		s.Log.Warn().Err(err).Msg("campaign cache read failed")
	}
	if hit {
		cacheResult("hit")
		return cached, nil
	}
	cacheResult("miss")

	var campaigns []promo.Campaign
	rebuild := func(ctx context.Context) error {
		// Another waiter may have refilled the cache while we queued.
		if hit, err := s.Cache.GetJSON(ctx, activeKey, &campaigns); err == nil && hit {
			return nil
		}
		loaded, err := s.Store.ListActive(ctx)
		if err != nil {
			return err
		}
		campaigns = loaded
		if err := s.Cache.SetJSON(ctx, activeKey, campaigns); err != nil {
			s.Log.Warn().Err(err).Msg("campaign cache write failed")
		}
		return nil
	}

	if s.Rebuild != nil {
		err := s.Rebuild.WithLock(ctx, rebuildKey, 10*time.Second, rebuild)
		if err == nil {
			return campaigns, nil
		}
		if !errors.Is(err, lock.ErrUnavailable) {
			return nil, err
		}
		s.Log.Warn().Err(err).Msg("campaign rebuild lock unavailable")
	}
	if err := rebuild(ctx); err != nil {
		return nil, err
	}
	return campaigns, nil
}

// Create persists a campaign and invalidates the active-set cache.
func (s *Service) Create(ctx context.Context, c promo.Campaign) (promo.Campaign, error) {
	created, err := s.Store.Insert(ctx, c)
	if err != nil {
		return promo.Campaign{}, err
	}
	s.invalidate(ctx)
	s.Log.Info().Str("campaign_id", created.ID.String()).Str("kind", string(created.Kind)).Msg("campaign created")
	return created, nil
}

// Update replaces a campaign and invalidates the active-set cache.
func (s *Service) Update(ctx context.Context, c promo.Campaign) (promo.Campaign, error) {
	updated, err := s.Store.Update(ctx, c)
	if err != nil {
		return promo.Campaign{}, err
	}
	s.invalidate(ctx)
	s.Log.Info().Str("campaign_id", updated.ID.String()).Msg("campaign updated")
	return updated, nil
}

// Delete removes a campaign and invalidates the active-set cache.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.Store.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	s.Log.Info().Str("campaign_id", id.String()).Msg("campaign deleted")
	return nil
}

// Get fetches a single campaign.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (promo.Campaign, error) {
	return s.Store.GetByID(ctx, id)
}

// List returns a page of campaigns with the total count.
func (s *Service) List(ctx context.Context, limit, offset int) ([]promo.Campaign, int64, error) {
	return s.Store.List(ctx, limit, offset)
}

// Conflicts runs the conflict detector over the active campaign set.
func (s *Service) Conflicts(ctx context.Context) ([]promo.Warning, error) {
	campaigns, err := s.Store.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	warnings := promo.DetectConflicts(campaigns)
	for _, w := range warnings {
		if obs.CampaignConflictsTotal != nil {
			obs.CampaignConflictsTotal.WithLabelValues(string(w.Level)).Inc()
		}
	}
	return warnings, nil
}

// PreviewRequest describes a hypothetical cart for the campaign simulator.
type PreviewRequest struct {
	Lines           []promo.Line
	PriorOrderCount int
	Coupon          *promo.Coupon
}

// PreviewResult carries the simulated pricing outcome.
type PreviewResult struct {
	Subtotal pricing.Money      `json:"subtotal"`
	Discount pricing.Money      `json:"totalDiscount"`
	Lines    []promo.PricedLine `json:"lines"`
}

// Preview simulates resolution for a hypothetical cart against the currently
// active campaigns, without touching carts or coupon usage.
func (s *Service) Preview(ctx context.Context, req PreviewRequest) (PreviewResult, error) {
	campaigns, err := s.ListActive(ctx)
	if err != nil {
		return PreviewResult{}, err
	}
	resolver := promo.Resolver{
		Now:            s.Now,
		Spend:          promo.SpendRewardFromCampaigns(campaigns, s.Spend),
		SortByPriority: s.SortByPriority,
	}
	user := &promo.UserContext{PriorOrderCount: req.PriorOrderCount}
	totals, err := pricing.Aggregate(resolver, req.Lines, campaigns, user, req.Coupon)
	if err != nil {
		return PreviewResult{}, err
	}
	return PreviewResult{Subtotal: totals.Subtotal, Discount: totals.Discount, Lines: totals.Lines}, nil
}

func (s *Service) invalidate(ctx context.Context) {
	if err := s.Cache.Invalidate(ctx, activeKey); err != nil {
		s.Log.Warn().Err(err).Msg("campaign cache invalidation failed")
	}
}

func cacheResult(result string) {
	if obs.CampaignCacheTotal != nil {
		obs.CampaignCacheTotal.WithLabelValues(result).Inc()
	}
}
