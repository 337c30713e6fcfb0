package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Cheertaboi/storefront-discount-service/internal/cache"
	"github.com/Cheertaboi/storefront-discount-service/internal/discount"
	"github.com/Cheertaboi/storefront-discount-service/internal/events"
	"github.com/Cheertaboi/storefront-discount-service/internal/models"
	"github.com/Cheertaboi/storefront-discount-service/internal/repository"
)

// Repos required by service (use interfaces to allow mocking)
type DiscountRepo interface {
	GetByCodes(ctx context.Context, codes []string) ([]models.Discount, error)
	List(ctx context.Context, activeOnly bool) ([]models.Discount, error)
	Create(ctx context.Context, d models.Discount) (models.Discount, error)
}

type UsageRepo interface {
	Redeem(ctx context.Context, orderID string, applied []models.AppliedDiscount) ([]string, error)
	RedeemedCodes(ctx context.Context, orderID string) ([]string, error)
}

type EventPublisher interface {
	PublishRedemption(ctx context.Context, evt events.RedemptionEvent) error
}

type Deps struct {
	Discounts DiscountRepo
	Usage     UsageRepo
	Publisher EventPublisher
	Resolver  *discount.Resolver
	Cache     *cache.DiscountCache
	Clock     func() time.Time
	Logger    *zap.Logger
}

type DiscountService struct {
	discounts DiscountRepo
	usage     UsageRepo
	publisher EventPublisher
	resolver  *discount.Resolver
	cache     *cache.DiscountCache
	clock     func() time.Time
	logger    *zap.Logger
}

func NewDiscountService(deps Deps) (*DiscountService, error) {
	if deps.Discounts == nil {
		return nil, ErrRepositoryMissing
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	resolver := deps.Resolver
	if resolver == nil {
		resolver = discount.NewResolver(discount.WithClock(clock))
	}
	c := deps.Cache
	if c == nil {
		c = cache.NewDiscountCache(0, clock)
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &DiscountService{
		discounts: deps.Discounts,
		usage:     deps.Usage,
		publisher: deps.Publisher,
		resolver:  resolver,
		cache:     c,
		clock:     func() time.Time { return clock().UTC() },
		logger:    logger,
	}, nil
}

// loadCandidates returns the records for codes in request order, consulting
// the cache first. Codes with no record come back as rejections.
func (s *DiscountService) loadCandidates(ctx context.Context, codes []string) ([]models.Discount, []models.RejectedCode, error) {
	found := make(map[string]models.Discount, len(codes))
	seen := make(map[string]struct{}, len(codes))
	var missing []string
	for _, raw := range codes {
		code := models.NormalizeCode(raw)
		if code == "" {
			continue
		}
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		if d, ok := s.cache.Get(code); ok {
			found[code] = d
			continue
		}
		missing = append(missing, code)
	}

	if len(missing) > 0 {
		loaded, err := s.discounts.GetByCodes(ctx, missing)
		if err != nil {
			return nil, nil, fmt.Errorf("load discounts: %w", err)
		}
		for _, d := range loaded {
			found[d.Key()] = d
			s.cache.Set(d)
		}
	}

	// repeats of a known code go to the resolver, which reports them as
	// duplicates; an unknown code is reported once
	var (
		candidates []models.Discount
		notFound   []models.RejectedCode
	)
	reported := make(map[string]struct{})
	for _, raw := range codes {
		code := models.NormalizeCode(raw)
		if code == "" {
			continue
		}
		if d, ok := found[code]; ok {
			candidates = append(candidates, d)
			continue
		}
		if _, ok := reported[code]; ok {
			continue
		}
		reported[code] = struct{}{}
		notFound = append(notFound, models.RejectedCode{Code: code, Reason: discount.ReasonNotFound})
	}
	return candidates, notFound, nil
}

// Quote resolves the requested codes against the cart without consuming
// anything.
func (s *DiscountService) Quote(ctx context.Context, codes []string, cart models.CartContext) (models.ResolutionResult, error) {
	candidates, notFound, err := s.loadCandidates(ctx, codes)
	if err != nil {
		return models.ResolutionResult{}, err
	}

	res := s.resolver.Resolve(candidates, cart)
	if len(notFound) > 0 {
		res.Errors = append(notFound, res.Errors...)
	}
	return res, nil
}

// Applicable lists every active discount that validates against the cart,
// with the amount it would take off on its own.
func (s *DiscountService) Applicable(ctx context.Context, cart models.CartContext) ([]models.AppliedDiscount, error) {
	active, err := s.discounts.List(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("list active discounts: %w", err)
	}

	now := s.clock()
	limit := cart.OrderValue()
	out := make([]models.AppliedDiscount, 0, len(active))
	for _, d := range active {
		if v := discount.Validate(d, cart, now); !v.Valid {
			continue
		}
		amount := discount.CalculateAmount(d, cart)
		if amount.GreaterThan(limit) {
			amount = limit
		}
		d.Code = d.Key()
		out = append(out, models.AppliedDiscount{Discount: d, AppliedAmount: amount})
	}
	return out, nil
}

type Redemption struct {
	OrderID    string                  `json:"orderId"`
	Resolution models.ResolutionResult `json:"resolution"`
	Redeemed   []string                `json:"redeemed"`
}

// Redeem resolves the codes for the order and persists the applied ones,
// incrementing their usage counters. The limit check done while resolving
// is advisory; the store re-checks it under lock and a code exhausted in the
// meantime fails the whole call with ErrUsageLimitReached.
func (s *DiscountService) Redeem(ctx context.Context, orderID string, codes []string, cart models.CartContext) (Redemption, error) {
	if orderID == "" {
		return Redemption{}, ErrInvalidOrder
	}
	if s.usage == nil {
		return Redemption{}, ErrRedemptionUnavailable
	}

	// short request-scoped deadline to avoid long-running ops
	ctx, cancel := context.WithTimeout(ctx, 8*time.Second)
	defer cancel()

	res, err := s.Quote(ctx, codes, cart)
	if err != nil {
		return Redemption{}, err
	}
	out := Redemption{OrderID: orderID, Resolution: res, Redeemed: []string{}}
	if len(res.AppliedDiscounts) == 0 {
		return out, nil
	}

	applied := res.AppliedCodes()
	redeemed, err := s.usage.Redeem(ctx, orderID, res.AppliedDiscounts)
	s.cache.Invalidate(applied...)
	if err != nil {
		if errors.Is(err, repository.ErrUsageLimitReached) {
			return Redemption{}, fmt.Errorf("%w: %v", ErrUsageLimitReached, err)
		}
		s.logger.Error("discount redemption failed", zap.String("order_id", orderID), zap.Strings("codes", applied), zap.Error(err))
		return Redemption{}, fmt.Errorf("redeem discounts: %w", err)
	}
	if redeemed != nil {
		out.Redeemed = redeemed
	}

	s.logger.Info("discounts redeemed", zap.String("order_id", orderID), zap.Strings("codes", out.Redeemed))
	s.publishRedemptions(ctx, orderID, res, out.Redeemed)
	return out, nil
}

// OrderDiscounts lists the codes already redeemed on an order.
func (s *DiscountService) OrderDiscounts(ctx context.Context, orderID string) ([]string, error) {
	if orderID == "" {
		return nil, ErrInvalidOrder
	}
	if s.usage == nil {
		return nil, ErrRedemptionUnavailable
	}
	codes, err := s.usage.RedeemedCodes(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("order discounts: %w", err)
	}
	if codes == nil {
		codes = []string{}
	}
	return codes, nil
}

func (s *DiscountService) publishRedemptions(ctx context.Context, orderID string, res models.ResolutionResult, redeemed []string) {
	if s.publisher == nil || len(redeemed) == 0 {
		return
	}
	amounts := make(map[string]models.AppliedDiscount, len(res.AppliedDiscounts))
	for _, a := range res.AppliedDiscounts {
		amounts[a.Key()] = a
	}

	now := s.clock()
	for _, code := range redeemed {
		evt := events.NewRedemptionEvent(orderID, code, amounts[code].AppliedAmount, now)
		if err := s.publisher.PublishRedemption(ctx, evt); err != nil {
			// the redemption is already committed; a lost event must not fail checkout
			s.logger.Warn("failed to publish discount.redeemed event",
				zap.String("order_id", orderID),
				zap.String("code", code),
				zap.Error(err),
			)
		}
	}
}

func (s *DiscountService) CreateDiscount(ctx context.Context, d models.Discount) (models.Discount, error) {
	d.Code = d.Key()
	if err := d.Check(); err != nil {
		return models.Discount{}, fmt.Errorf("%w: %v", ErrInvalidDiscount, err)
	}

	created, err := s.discounts.Create(ctx, d)
	if err != nil {
		if errors.Is(err, repository.ErrDiscountExists) {
			return models.Discount{}, fmt.Errorf("%w: %s", ErrDiscountExists, d.Code)
		}
		return models.Discount{}, err
	}
	s.cache.Invalidate(created.Code)
	s.logger.Info("discount created", zap.String("code", created.Code), zap.Int("id", created.ID))
	return created, nil
}

func (s *DiscountService) ListDiscounts(ctx context.Context, activeOnly bool) ([]models.Discount, error) {
	list, err := s.discounts.List(ctx, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("list discounts: %w", err)
	}
	if list == nil {
		list = []models.Discount{}
	}
	return list, nil
}
