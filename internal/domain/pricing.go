package domain

import "github.com/shopspring/decimal"

type Category int

const (
	CategoryVIP Category = iota
	CategoryPremium
	CategoryGeneral
)

// Section is the display name stored on generated seats.
func (c Category) Section() string {
	switch c {
	case CategoryVIP:
		return "VIP"
	case CategoryPremium:
		return "Premium"
	default:
		return "General"
	}
}

// SeatType is the type tag stored on generated seats.
func (c Category) SeatType() string {
	switch c {
	case CategoryVIP:
		return "VIP"
	case CategoryPremium:
		return "PREMIUM"
	default:
		return "STANDARD"
	}
}

var (
	DefaultVIPPrice     = decimal.NewFromInt(500)
	DefaultPremiumPrice = decimal.NewFromInt(300)
	DefaultGeneralPrice = decimal.NewFromInt(150)
)

// Pricing holds the base price per category.
type Pricing struct {
	VIP     decimal.Decimal `json:"vipPrice"`
	Premium decimal.Decimal `json:"premiumPrice"`
	General decimal.Decimal `json:"generalPrice"`
}

func (p Pricing) For(c Category) decimal.Decimal {
	switch c {
	case CategoryVIP:
		return p.VIP
	case CategoryPremium:
		return p.Premium
	default:
		return p.General
	}
}

// ResolvePricing takes, per category, the first positive price out of the
// event ticket settings, the layout, and the fallback defaults.
func ResolvePricing(settings *Pricing, l Layout) Pricing {
	var s Pricing
	if settings != nil {
		s = *settings
	}
	return Pricing{
		VIP:     firstPositive(s.VIP, l.VIPPrice, DefaultVIPPrice),
		Premium: firstPositive(s.Premium, l.PremiumPrice, DefaultPremiumPrice),
		General: firstPositive(s.General, l.GeneralPrice, DefaultGeneralPrice),
	}
}

func firstPositive(values ...decimal.Decimal) decimal.Decimal {
	for _, v := range values {
		if v.IsPositive() {
			return v
		}
	}
	return decimal.Zero
}
