package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/auth"
	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/pricing"
	"github.com/spec-kit/ticket-bot/internal/repository"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

const instructionPreviewLen = 200

// Quote is the priced breakdown of a ticket.
type Quote struct {
	UnitPrice  decimal.Decimal
	FeePercent decimal.Decimal
	Total      decimal.Decimal
}

// PaymentView is one row of the payment-method listing.
type PaymentView struct {
	Method       string
	FeePercent   decimal.Decimal
	Instructions string
}

// PricingService owns the price table, the fee table and the payment
// instructions.
type PricingService struct {
	mu      sync.RWMutex
	prices  *pricing.Table
	fees    *pricing.Table
	priceDB repository.RateRepository
	feeDB   repository.RateRepository
	payInfo repository.TextRepository
	authz   *auth.Authorizer
	logger  *zap.Logger
}

// PricingDependencies bundles collaborators for the pricing service.
type PricingDependencies struct {
	PriceRepo       repository.RateRepository
	FeeRepo         repository.RateRepository
	PaymentInfoRepo repository.TextRepository
	Authorizer      *auth.Authorizer
	Logger          *zap.Logger
}

// NewPricingService loads both tables. A table that was never persisted
// starts from the built-in defaults; a persisted table is authoritative so
// deleted methods stay deleted.
func NewPricingService(ctx context.Context, deps PricingDependencies) (*PricingService, error) {
	prices, err := loadRates(ctx, deps.PriceRepo, pricing.DefaultPrices())
	if err != nil {
		return nil, fmt.Errorf("load prices: %w", err)
	}
	fees, err := loadRates(ctx, deps.FeeRepo, pricing.DefaultFees())
	if err != nil {
		return nil, fmt.Errorf("load fees: %w", err)
	}
	return &PricingService{
		prices:  prices,
		fees:    fees,
		priceDB: deps.PriceRepo,
		feeDB:   deps.FeeRepo,
		payInfo: deps.PaymentInfoRepo,
		authz:   deps.Authorizer,
		logger:  deps.Logger,
	}, nil
}

func loadRates(ctx context.Context, repo repository.RateRepository, defaults *pricing.Table) (*pricing.Table, error) {
	stored, err := repo.Load(ctx)
	if err != nil {
		return nil, err
	}
	if stored.Len() == 0 {
		return defaults, nil
	}
	return stored, nil
}

// Quote prices amount units of kind paid through method.
func (s *PricingService) Quote(kind domain.Kind, method string, amount int64) Quote {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q := Quote{
		UnitPrice:  s.prices.Get(string(kind)),
		FeePercent: s.fees.Get(method),
	}
	q.Total = pricing.ComputeCost(amount, q.UnitPrice, q.FeePercent)
	return q
}

// HasPaymentMethod reports whether method has a fee entry.
func (s *PricingService) HasPaymentMethod(method string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.fees.Lookup(method)
	return ok
}

// PaymentMethods lists the known methods in table order.
func (s *PricingService) PaymentMethods() []pricing.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fees.Entries()
}

// PaymentInstructions returns the free-text instructions for method.
func (s *PricingService) PaymentInstructions(ctx context.Context, method string) (string, bool, error) {
	return s.payInfo.Get(ctx, pricing.NormalizeKey(method))
}

// AddPayment adds or updates a payment method fee.
func (s *PricingService) AddPayment(ctx context.Context, actor domain.Actor, name, fee string) error {
	if err := s.authz.RequireAdmin(actor); err != nil {
		return err
	}
	key := pricing.NormalizeKey(name)
	if key == "" {
		return apperrors.NewValidationError("Payment method name is required.", nil)
	}
	value, err := parseNonNegative(fee, "Fee")
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.fees.Clone()
	next.Set(key, value)
	if err := s.feeDB.Save(ctx, next); err != nil {
		return apperrors.NewUnavailable("Could not save payment fees.", err)
	}
	s.fees = next
	s.logger.Info("payment method saved", zap.String("method", key), zap.String("fee", value.String()),
		zap.String("actor_id", actor.ID))
	return nil
}

// DeletePayment removes a method's fee and its instructions.
func (s *PricingService) DeletePayment(ctx context.Context, actor domain.Actor, name string) error {
	if err := s.authz.RequireAdmin(actor); err != nil {
		return err
	}
	key := pricing.NormalizeKey(name)

	s.mu.Lock()
	next := s.fees.Clone()
	removedFee := next.Delete(key)
	if removedFee {
		if err := s.feeDB.Save(ctx, next); err != nil {
			s.mu.Unlock()
			return apperrors.NewUnavailable("Could not save payment fees.", err)
		}
		s.fees = next
	}
	s.mu.Unlock()

	removedInfo, err := s.payInfo.Delete(ctx, key)
	if err != nil {
		return apperrors.NewUnavailable("Could not save payment instructions.", err)
	}
	if !removedFee && !removedInfo {
		return apperrors.NewNotFound(fmt.Sprintf("Payment method `%s`", key), nil)
	}
	s.logger.Info("payment method deleted", zap.String("method", key), zap.String("actor_id", actor.ID))
	return nil
}

// EditPaymentInstructions replaces the instructions for a known method.
func (s *PricingService) EditPaymentInstructions(ctx context.Context, actor domain.Actor, name, text string) error {
	if err := s.authz.RequireAdmin(actor); err != nil {
		return err
	}
	key := pricing.NormalizeKey(name)
	if !s.HasPaymentMethod(key) {
		return apperrors.NewNotFound(fmt.Sprintf("Payment method `%s`", key), nil)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return apperrors.NewValidationError("Payment instructions cannot be empty.", nil)
	}
	if err := s.payInfo.Put(ctx, key, text); err != nil {
		return apperrors.NewUnavailable("Could not save payment instructions.", err)
	}
	return nil
}

// ViewPayments lists every method with its fee and an instruction preview.
func (s *PricingService) ViewPayments(ctx context.Context, actor domain.Actor) ([]PaymentView, error) {
	if err := s.authz.RequireAdmin(actor); err != nil {
		return nil, err
	}
	info, err := s.payInfo.All(ctx)
	if err != nil {
		return nil, apperrors.NewUnavailable("Could not read payment instructions.", err)
	}
	texts := make(map[string]string, len(info))
	for _, e := range info {
		texts[e.Key] = e.Value
	}

	methods := s.PaymentMethods()
	views := make([]PaymentView, 0, len(methods))
	for _, m := range methods {
		views = append(views, PaymentView{
			Method:       m.Key,
			FeePercent:   m.Value,
			Instructions: preview(texts[m.Key], instructionPreviewLen),
		})
	}
	return views, nil
}

// SetPrice sets the per-1000 unit price of a priced subtype.
func (s *PricingService) SetPrice(ctx context.Context, actor domain.Actor, subtype, price string) error {
	if err := s.authz.RequirePriceManager(actor); err != nil {
		return err
	}
	variant, ok := domain.VariantOf(domain.Kind(subtype))
	if !ok || !variant.Priced {
		valid := make([]string, 0, 3)
		for _, k := range domain.PricedKinds() {
			valid = append(valid, string(k))
		}
		return apperrors.NewValidationError(
			fmt.Sprintf("Invalid subtype. Valid: %s", strings.Join(valid, ", ")),
			map[string]any{"valid": valid})
	}
	value, err := parseNonNegative(price, "Price")
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.prices.Clone()
	next.Set(string(variant.Kind), value)
	if err := s.priceDB.Save(ctx, next); err != nil {
		return apperrors.NewUnavailable("Could not save prices.", err)
	}
	s.prices = next
	s.logger.Info("price updated", zap.String("subtype", string(variant.Kind)), zap.String("price", value.String()),
		zap.String("actor_id", actor.ID))
	return nil
}

// ViewPrices lists the unit prices.
func (s *PricingService) ViewPrices(actor domain.Actor) ([]pricing.Entry, error) {
	if err := s.authz.RequirePriceManager(actor); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prices.Entries(), nil
}

func parseNonNegative(raw, field string) (decimal.Decimal, error) {
	value, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil || value.IsNegative() {
		return decimal.Zero, apperrors.NewValidationError(fmt.Sprintf("%s must be a non-negative number.", field), nil)
	}
	return value, nil
}

func preview(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max]) + "…"
}
