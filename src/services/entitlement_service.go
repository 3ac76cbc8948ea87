package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/username/portfoly/backend/src/logger"
)

// Tier is the entitlement level. Premium includes everything pro includes.
// Upgrades are monotonic; no downgrade path exists because expiring
// subscriptions are out of scope for the mocked billing.
type Tier string

const (
	TierFree    Tier = "free"
	TierPro     Tier = "pro"
	TierPremium Tier = "premium"
)

var (
	ErrUnknownProduct  = errors.New("unknown product")
	ErrAlreadyEntitled = errors.New("tier already active or subsumed")
	ErrPurchaseFailed  = errors.New("purchase failed")
)

// Feature is a named capability with the minimum tier that unlocks it.
// Pro and Premium both false means the free tier suffices.
type Feature struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Pro         bool   `json:"isPro"`
	Premium     bool   `json:"isPremium"`
}

// Features is the catalog of gated capabilities.
var Features = []Feature{
	{ID: "unlimited_portfolios", Name: "Unlimited Portfolios", Description: "Create as many portfolios as you want", Pro: true, Premium: true},
	{ID: "unlimited_transactions", Name: "Unlimited Transactions", Description: "No daily transaction limit", Pro: true, Premium: true},
	{ID: "price_alarms", Name: "Price Alarms", Description: "Create custom price alarms", Pro: true, Premium: true},
	{ID: "advanced_analytics", Name: "Advanced Analytics", Description: "Detailed charts and reports", Pro: true, Premium: true},
	{ID: "ad_free", Name: "Ad-Free Experience", Description: "Use the app without any ads", Pro: true, Premium: true},
	{ID: "cloud_sync", Name: "Cloud Sync", Description: "Synchronize data across devices", Pro: false, Premium: true},
	{ID: "auto_portfolio_tracking", Name: "Automatic Portfolio Tracking", Description: "Track transactions automatically via API", Pro: false, Premium: true},
	{ID: "pdf_reports", Name: "PDF Reports", Description: "Generate professional PDF reports", Pro: false, Premium: true},
}

// Product is a purchasable offering. Tier is explicit: the product id is an
// opaque identifier, never parsed for tier information.
type Product struct {
	ID          string  `json:"identifier"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	PriceString string  `json:"priceString"`
	PackageType string  `json:"packageType"`
	Tier        Tier    `json:"tier"`
}

// Products is the offering catalog.
var Products = []Product{
	{ID: "pro_version", Title: "Pro Version", Description: "Pro Version - One Time", Price: 199.99, PriceString: "₺199.99", PackageType: "CUSTOM", Tier: TierPro},
	{ID: "premium_monthly", Title: "Premium Monthly", Description: "Premium Monthly Subscription", Price: 49.99, PriceString: "₺49.99/month", PackageType: "MONTHLY", Tier: TierPremium},
	{ID: "premium_yearly", Title: "Premium Yearly", Description: "Premium Yearly Subscription", Price: 399.99, PriceString: "₺399.99/year", PackageType: "ANNUAL", Tier: TierPremium},
}

func ProductByID(id string) (Product, bool) {
	for _, product := range Products {
		if product.ID == id {
			return product, true
		}
	}
	return Product{}, false
}

func featureByID(id string) (Feature, bool) {
	for _, feature := range Features {
		if feature.ID == id {
			return feature, true
		}
	}
	return Feature{}, false
}

// Limits are the declarative caps of the current tier. Zero means
// unlimited. Enforcement is the caller's responsibility; the resolver only
// states the caps.
type Limits struct {
	MaxPortfolios        int  `json:"maxPortfolios"`
	MaxDailyTransactions int  `json:"maxDailyTransactions"`
	PriceAlarms          bool `json:"canUsePriceAlarms"`
	AdvancedAnalytics    bool `json:"canUseAdvancedAnalytics"`
	AdFree               bool `json:"isAdFree"`
}

const (
	freeMaxPortfolios        = 3
	freeMaxDailyTransactions = 10
)

// EntitlementService owns the single in-process tier value. All mutation
// goes through Purchase and Refresh; screens and handlers only read.
type EntitlementService struct {
	mu       sync.Mutex
	tier     Tier
	provider PurchaseProvider
}

func NewEntitlementService(provider PurchaseProvider) *EntitlementService {
	return &EntitlementService{
		tier:     TierFree,
		provider: provider,
	}
}

func (s *EntitlementService) Tier() Tier {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tier
}

func (s *EntitlementService) Status() EntitlementStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return EntitlementStatus{
		IsPro:     s.tier == TierPro,
		IsPremium: s.tier == TierPremium,
		Tier:      s.tier,
	}
}

// Purchase runs the tier transition. Re-buying a held tier is rejected, as
// is buying pro while premium (premium subsumes pro; downgrade-by-omission
// is not permitted). On provider success the tier is updated optimistically,
// then reconciled against the confirmed state.
func (s *EntitlementService) Purchase(ctx context.Context, productID string) error {
	product, ok := ProductByID(productID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProduct, productID)
	}

	s.mu.Lock()
	tier := s.tier
	s.mu.Unlock()

	if product.Tier == TierPro && (tier == TierPro || tier == TierPremium) {
		return fmt.Errorf("%w: cannot purchase pro at tier %s", ErrAlreadyEntitled, tier)
	}
	if product.Tier == TierPremium && tier == TierPremium {
		return fmt.Errorf("%w: premium already active", ErrAlreadyEntitled)
	}

	result, err := s.provider.Purchase(ctx, productID)
	if err != nil {
		return fmt.Errorf("purchase %s: %w", productID, err)
	}
	if !result.Success {
		return fmt.Errorf("%w: %s", ErrPurchaseFailed, result.Error)
	}

	// Optimistic update so the caller sees the new tier immediately; the
	// confirmed state arrives with the async round trip.
	s.mu.Lock()
	s.tier = product.Tier
	s.mu.Unlock()
	logger.L.Info("entitlement tier updated optimistically", "productID", productID, "tier", product.Tier)

	if err := s.Refresh(ctx); err != nil {
		logger.L.Warn("entitlement reconciliation failed, keeping optimistic tier", "error", err)
	}
	return nil
}

// Refresh reconciles the in-memory tier with the provider's confirmed state.
func (s *EntitlementService) Refresh(ctx context.Context) error {
	status, err := s.provider.CheckStatus(ctx)
	if err != nil {
		return fmt.Errorf("check entitlement status: %w", err)
	}

	s.mu.Lock()
	s.tier = status.Tier
	s.mu.Unlock()
	logger.L.Debug("entitlement tier reconciled", "tier", status.Tier)
	return nil
}

// CanUseFeature reports whether the current tier unlocks the feature.
// Unknown feature ids are permitted: fail-open keeps older builds working
// when new feature ids ship.
func (s *EntitlementService) CanUseFeature(featureID string) bool {
	feature, ok := featureByID(featureID)
	if !ok {
		return true
	}

	switch s.Tier() {
	case TierPremium:
		return true
	case TierPro:
		if feature.Pro {
			return true
		}
	}
	return !feature.Pro && !feature.Premium
}

// GetLimits returns the caps of the current tier.
func (s *EntitlementService) GetLimits() Limits {
	tier := s.Tier()
	if tier == TierFree {
		return Limits{
			MaxPortfolios:        freeMaxPortfolios,
			MaxDailyTransactions: freeMaxDailyTransactions,
		}
	}
	return Limits{
		PriceAlarms:       true,
		AdvancedAnalytics: true,
		AdFree:            true,
	}
}
