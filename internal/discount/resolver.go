package discount

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Cheertaboi/storefront-discount-service/internal/models"
)

// Strategy selects how stackable discounts are combined.
type Strategy string

const (
	// StrategyGreedy walks the sorted candidates once and keeps whatever fits.
	StrategyGreedy Strategy = "greedy"
	// StrategyExhaustive tries every admissible combination of valid
	// candidates and keeps the one with the largest total.
	StrategyExhaustive Strategy = "exhaustive"
)

const (
	// DefaultMaxExhaustiveCandidates bounds the subset search at 2^10 combinations.
	DefaultMaxExhaustiveCandidates = 10
	// MaxExhaustiveCandidates is the largest bound a Resolver accepts; larger
	// values are clamped to it.
	MaxExhaustiveCandidates = 20
)

var ErrUnknownStrategy = errors.New("discount: unknown stacking strategy")

func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case "", StrategyGreedy:
		return StrategyGreedy, nil
	case StrategyExhaustive:
		return StrategyExhaustive, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
}

type Clock func() time.Time

type Resolver struct {
	clock         Clock
	strategy      Strategy
	maxExhaustive int
}

type Option func(*Resolver)

func WithClock(clock Clock) Option {
	return func(r *Resolver) {
		if clock != nil {
			r.clock = clock
		}
	}
}

func WithStrategy(s Strategy) Option {
	return func(r *Resolver) {
		if s != "" {
			r.strategy = s
		}
	}
}

func WithMaxExhaustiveCandidates(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.maxExhaustive = min(n, MaxExhaustiveCandidates)
		}
	}
}

func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		clock:         time.Now,
		strategy:      StrategyGreedy,
		maxExhaustive: DefaultMaxExhaustiveCandidates,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Resolver) Strategy() Strategy { return r.strategy }

// ExhaustiveLimit reports the effective subset search bound.
func (r *Resolver) ExhaustiveLimit() int { return r.maxExhaustive }

// Resolve evaluates every candidate against the cart and returns the applied
// discounts, their total and a reason for each rejected code. It never fails:
// bad records end up in Errors or contribute nothing.
func (r *Resolver) Resolve(discounts []models.Discount, cart models.CartContext) models.ResolutionResult {
	now := r.clock().UTC()
	ordered := sortCandidates(discounts, cart)

	var res models.ResolutionResult
	if r.strategy == StrategyExhaustive {
		res = r.exhaustive(ordered, cart, now)
	} else {
		res = greedy(ordered, cart, now)
	}

	if limit := cart.OrderValue(); res.TotalDiscount.GreaterThan(limit) {
		res.TotalDiscount = limit
	}
	return res
}

type candidate struct {
	discount  models.Discount
	estimate  decimal.Decimal
	duplicate bool
}

// sortCandidates orders non-stackable discounts first, then by descending
// estimated value. Ties fall back to code and record id so the order never
// depends on the input order. Repeated codes are flagged after sorting.
func sortCandidates(discounts []models.Discount, cart models.CartContext) []candidate {
	out := make([]candidate, 0, len(discounts))
	for _, d := range discounts {
		d.Code = d.Key()
		out = append(out, candidate{discount: d, estimate: estimatedValue(d, cart)})
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].discount, out[j].discount
		if a.Stackable != b.Stackable {
			return !a.Stackable
		}
		if cmp := out[i].estimate.Cmp(out[j].estimate); cmp != 0 {
			return cmp > 0
		}
		if a.Code != b.Code {
			return a.Code < b.Code
		}
		return a.ID < b.ID
	})

	seen := make(map[string]struct{}, len(out))
	for i := range out {
		code := out[i].discount.Code
		if _, ok := seen[code]; ok {
			out[i].duplicate = true
			continue
		}
		seen[code] = struct{}{}
	}
	return out
}

func newResult() models.ResolutionResult {
	return models.ResolutionResult{
		TotalDiscount:    decimal.Zero,
		AppliedDiscounts: []models.AppliedDiscount{},
		Errors:           []models.RejectedCode{},
	}
}

func reject(res *models.ResolutionResult, code, reason string) {
	res.Errors = append(res.Errors, models.RejectedCode{Code: code, Reason: reason})
}

func greedy(ordered []candidate, cart models.CartContext, now time.Time) models.ResolutionResult {
	res := newResult()
	remaining := cart.OrderValue()
	blocked := false

	for _, c := range ordered {
		d := c.discount
		if c.duplicate {
			reject(&res, d.Code, ReasonDuplicate)
			continue
		}
		if blocked {
			reject(&res, d.Code, ReasonNonStackable)
			continue
		}
		if v := Validate(d, cart, now); !v.Valid {
			reject(&res, d.Code, v.Reason)
			continue
		}

		amount := decimal.Min(CalculateAmount(d, cart), remaining)
		if amount.IsPositive() {
			res.AppliedDiscounts = append(res.AppliedDiscounts, models.AppliedDiscount{Discount: d, AppliedAmount: amount})
			res.TotalDiscount = res.TotalDiscount.Add(amount)
			remaining = remaining.Sub(amount)
		}
		if !d.Stackable {
			blocked = true
		}
	}
	return res
}

type evaluated struct {
	index  int
	amount decimal.Decimal
}

func (r *Resolver) exhaustive(ordered []candidate, cart models.CartContext, now time.Time) models.ResolutionResult {
	var valid []evaluated
	reasons := make([]string, len(ordered))
	for i, c := range ordered {
		if c.duplicate {
			reasons[i] = ReasonDuplicate
			continue
		}
		if v := Validate(c.discount, cart, now); !v.Valid {
			reasons[i] = v.Reason
			continue
		}
		valid = append(valid, evaluated{index: i, amount: CalculateAmount(c.discount, cart)})
	}

	if len(valid) > r.maxExhaustive {
		return greedy(ordered, cart, now)
	}

	best := bestCombination(ordered, valid, cart.OrderValue())

	chosen := make(map[int]decimal.Decimal, len(best.members))
	exclusive := false
	for _, m := range best.members {
		chosen[m.index] = m.amount
		if !ordered[m.index].discount.Stackable {
			exclusive = true
		}
	}
	for _, e := range valid {
		if _, ok := chosen[e.index]; ok {
			continue
		}
		if exclusive {
			reasons[e.index] = ReasonNonStackable
		} else {
			reasons[e.index] = ReasonNotCombinable
		}
	}

	res := newResult()
	for i, c := range ordered {
		if reasons[i] != "" {
			reject(&res, c.discount.Code, reasons[i])
			continue
		}
		amount, ok := chosen[i]
		if !ok || !amount.IsPositive() {
			continue
		}
		res.AppliedDiscounts = append(res.AppliedDiscounts, models.AppliedDiscount{Discount: c.discount, AppliedAmount: amount})
		res.TotalDiscount = res.TotalDiscount.Add(amount)
	}
	return res
}

type combination struct {
	members []evaluated
	total   decimal.Decimal
}

// bestCombination enumerates each non-stackable discount on its own and every
// subset of the stackable ones. Options are visited in the order the greedy
// walk would prefer them and only a strictly larger total replaces the
// current best.
func bestCombination(ordered []candidate, valid []evaluated, limit decimal.Decimal) combination {
	var exclusive, stackable []evaluated
	for _, e := range valid {
		if ordered[e.index].discount.Stackable {
			stackable = append(stackable, e)
		} else {
			exclusive = append(exclusive, e)
		}
	}

	best := combination{total: decimal.NewFromInt(-1)}
	consider := func(members []evaluated) {
		c := applyInOrder(members, limit)
		if c.total.GreaterThan(best.total) {
			best = c
		}
	}

	for _, e := range exclusive {
		consider([]evaluated{e})
	}
	for mask := (1 << len(stackable)) - 1; mask > 0; mask-- {
		members := make([]evaluated, 0, len(stackable))
		for i, e := range stackable {
			if mask&(1<<i) != 0 {
				members = append(members, e)
			}
		}
		consider(members)
	}
	if best.total.IsNegative() {
		return combination{total: decimal.Zero}
	}
	return best
}

func applyInOrder(members []evaluated, limit decimal.Decimal) combination {
	out := combination{members: make([]evaluated, 0, len(members)), total: decimal.Zero}
	remaining := limit
	for _, m := range members {
		amount := decimal.Min(m.amount, remaining)
		remaining = remaining.Sub(amount)
		out.total = out.total.Add(amount)
		out.members = append(out.members, evaluated{index: m.index, amount: amount})
	}
	return out
}

// Resolve runs the default greedy resolution with a fixed instant.
func Resolve(discounts []models.Discount, cart models.CartContext, now time.Time) models.ResolutionResult {
	return NewResolver(WithClock(func() time.Time { return now })).Resolve(discounts, cart)
}
