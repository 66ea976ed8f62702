package services

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cankoseoglu/fax-web-app/internal/config"
)

var countryCodePattern = regexp.MustCompile(`^[A-Z]{2}$`)

// PricingService computes the charge for a fax: pageCount x basePrice x
// destination multiplier. The multiplier table is configuration-supplied:
// the home country pays 1.0, listed countries pay their override, everyone
// else pays the default international factor.
type PricingService struct {
	basePrice         decimal.Decimal
	homeCountry       string
	defaultMultiplier decimal.Decimal
	multipliers       map[string]decimal.Decimal
}

// NewPricingService parses the pricing table out of config.
func NewPricingService(cfg *config.Config) (*PricingService, error) {
	basePrice, err := decimal.NewFromString(cfg.BasePrice)
	if err != nil {
		return nil, fmt.Errorf("parse BASE_PRICE %q: %w", cfg.BasePrice, err)
	}
	if basePrice.Sign() <= 0 {
		return nil, fmt.Errorf("BASE_PRICE must be positive, got %q", cfg.BasePrice)
	}

	defaultMultiplier, err := decimal.NewFromString(cfg.DefaultMultiplier)
	if err != nil {
		return nil, fmt.Errorf("parse DEFAULT_MULTIPLIER %q: %w", cfg.DefaultMultiplier, err)
	}

	multipliers := make(map[string]decimal.Decimal)
	for _, entry := range strings.Split(cfg.CountryMultipliers, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid COUNTRY_MULTIPLIERS entry %q", entry)
		}
		code := strings.ToUpper(strings.TrimSpace(parts[0]))
		factor, err := decimal.NewFromString(strings.TrimSpace(parts[1]))
		if err != nil {
			return nil, fmt.Errorf("invalid multiplier for %s: %w", code, err)
		}
		multipliers[code] = factor
	}

	return &PricingService{
		basePrice:         basePrice,
		homeCountry:       strings.ToUpper(cfg.HomeCountry),
		defaultMultiplier: defaultMultiplier,
		multipliers:       multipliers,
	}, nil
}

// Quote returns the total price for sending pageCount pages to countryCode.
func (s *PricingService) Quote(countryCode string, pageCount int) (decimal.Decimal, error) {
	countryCode = strings.ToUpper(strings.TrimSpace(countryCode))
	if !countryCodePattern.MatchString(countryCode) {
		return decimal.Zero, fmt.Errorf("%w: country code %q", ErrValidation, countryCode)
	}
	if pageCount < 1 {
		return decimal.Zero, fmt.Errorf("%w: page count must be at least 1", ErrValidation)
	}

	return s.basePrice.
		Mul(decimal.NewFromInt(int64(pageCount))).
		Mul(s.multiplier(countryCode)), nil
}

func (s *PricingService) multiplier(countryCode string) decimal.Decimal {
	if countryCode == s.homeCountry {
		return decimal.NewFromInt(1)
	}
	if factor, ok := s.multipliers[countryCode]; ok {
		return factor
	}
	return s.defaultMultiplier
}
