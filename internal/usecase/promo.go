package usecase

import (
	"strings"
	"sync"
)

// DiscountPolicy returns the discount for a subtotal.
type DiscountPolicy func(subtotal float64) float64

// PercentOff discounts pct percent of the subtotal.
func PercentOff(pct float64) DiscountPolicy {
	return func(subtotal float64) float64 {
		if subtotal <= 0 {
			return 0
		}
		return subtotal * pct / 100
	}
}

const DefaultPromoCode = "BIBOSPRING20"

// PromoRegistry maps promo codes to discount policies. Codes match
// case-insensitively.
type PromoRegistry struct {
	mutex    sync.RWMutex
	policies map[string]DiscountPolicy
}

func NewPromoRegistry() *PromoRegistry {
	return &PromoRegistry{policies: make(map[string]DiscountPolicy)}
}

// DefaultPromoRegistry holds the single seasonal code: 20% off.
func DefaultPromoRegistry() *PromoRegistry {
	r := NewPromoRegistry()
	r.Register(DefaultPromoCode, PercentOff(20))
	return r
}

func (r *PromoRegistry) Register(code string, policy DiscountPolicy) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.policies[normalizeCode(code)] = policy
}

func (r *PromoRegistry) Lookup(code string) (DiscountPolicy, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	policy, ok := r.policies[normalizeCode(code)]
	return policy, ok
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
