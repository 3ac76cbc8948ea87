package services

import (
	"context"
	"sync"

	"github.com/username/portfoly/backend/src/logger"
)

// Entitlement identifiers granted by the vendor on successful purchase.
const (
	entitlementPro        = "pro"
	entitlementPremium    = "premium"
	entitlementPremiumSub = "premium_subscription"
)

// NewPurchaseProvider selects the payment backend at startup. "mock" is the
// in-memory development variant; the real vendor SDK is a future variant
// behind the same interface. Unknown kinds fall back to mock with a warning.
func NewPurchaseProvider(kind string) PurchaseProvider {
	switch kind {
	case "mock":
		return NewMockPurchaseProvider()
	default:
		logger.L.Warn("Unknown purchase provider kind, falling back to mock", "kind", kind)
		return NewMockPurchaseProvider()
	}
}

// mockPurchaseProvider simulates the vendor: every purchase of a known
// product succeeds and records the matching entitlements.
type mockPurchaseProvider struct {
	mu     sync.Mutex
	active map[string]bool
}

func NewMockPurchaseProvider() PurchaseProvider {
	return &mockPurchaseProvider{active: make(map[string]bool)}
}

func (p *mockPurchaseProvider) Purchase(ctx context.Context, productID string) (PurchaseResult, error) {
	product, ok := ProductByID(productID)
	if !ok {
		return PurchaseResult{Success: false, Error: "product not found"}, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	switch product.Tier {
	case TierPro:
		p.active[entitlementPro] = true
	case TierPremium:
		p.active[entitlementPremium] = true
		p.active[entitlementPremiumSub] = true
	}

	logger.L.Info("mock purchase completed", "productID", productID, "tier", product.Tier)
	return PurchaseResult{Success: true}, nil
}

func (p *mockPurchaseProvider) CheckStatus(ctx context.Context) (EntitlementStatus, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	isPro := p.active[entitlementPro]
	isPremium := p.active[entitlementPremium] || p.active[entitlementPremiumSub]

	tier := TierFree
	if isPremium {
		tier = TierPremium
	} else if isPro {
		tier = TierPro
	}
	return EntitlementStatus{IsPro: isPro, IsPremium: isPremium, Tier: tier}, nil
}
