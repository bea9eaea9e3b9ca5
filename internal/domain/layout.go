package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

const (
	TableTypeSeatsOnly = "seats-only"
	TableTypeRound     = "round"
)

// Layout is the venue-level floor-plan configuration for one event.
type Layout struct {
	HallName      string          `json:"hallName"`
	Description   string          `json:"description,omitempty"`
	GuestCount    int             `json:"guestCount"`
	SeatsPerTable int             `json:"seatsPerTable"`
	TableType     string          `json:"tableType"`
	HallLength    float64         `json:"hallLength"`
	HallWidth     float64         `json:"hallWidth"`
	VIPSeats      int             `json:"vipSeats"`
	PremiumSeats  int             `json:"premiumSeats"`
	GeneralSeats  int             `json:"generalSeats"`
	VIPPrice      decimal.Decimal `json:"vipPrice"`
	PremiumPrice  decimal.Decimal `json:"premiumPrice"`
	GeneralPrice  decimal.Decimal `json:"generalPrice"`
}

// Normalize coerces seats per table to at least one and canonicalises the
// table type.
func (l Layout) Normalize() Layout {
	if l.SeatsPerTable < 1 {
		l.SeatsPerTable = 1
	}
	l.TableType = strings.ToLower(strings.TrimSpace(l.TableType))
	if l.TableType == "" {
		l.TableType = TableTypeRound
	}
	return l
}

func (l Layout) Validate() error {
	switch {
	case l.GuestCount < 0:
		return InvalidLayout("guestCount must not be negative")
	case l.VIPSeats < 0 || l.PremiumSeats < 0 || l.GeneralSeats < 0:
		return InvalidLayout("seat counts must not be negative")
	case l.VIPPrice.IsNegative() || l.PremiumPrice.IsNegative() || l.GeneralPrice.IsNegative():
		return InvalidLayout("prices must not be negative")
	case l.HallLength <= 0 || l.HallWidth <= 0:
		return InvalidLayout("hall dimensions must be positive")
	}
	return nil
}

func (l Layout) ExplicitCounts() CategoryCounts {
	return CategoryCounts{VIP: l.VIPSeats, Premium: l.PremiumSeats, General: l.GeneralSeats}
}

// CategoryCounts holds per-category seat targets. It doubles as the
// persisted count snapshot for an event.
type CategoryCounts struct {
	VIP     int `json:"vipSeats"`
	Premium int `json:"premiumSeats"`
	General int `json:"generalSeats"`
}

func (c CategoryCounts) Total() int {
	return c.VIP + c.Premium + c.General
}

// ResolveCounts picks the category targets for a generation run: explicit
// layout counts, then a previously stored snapshot, then the default
// 20/30/50 split of the guest count.
func ResolveCounts(l Layout, snapshot *CategoryCounts) CategoryCounts {
	if explicit := l.ExplicitCounts(); explicit.Total() > 0 {
		return explicit
	}
	if snapshot != nil && snapshot.Total() > 0 {
		return *snapshot
	}
	guests := l.GuestCount
	if guests < 0 {
		guests = 0
	}
	vip := guests * 20 / 100
	premium := guests * 30 / 100
	general := guests - vip - premium
	if general < 0 {
		general = 0
	}
	return CategoryCounts{VIP: vip, Premium: premium, General: general}
}

// DesiredTotal is the number of seats a run should produce.
func DesiredTotal(l Layout, counts CategoryCounts) int {
	if total := counts.Total(); total > 0 {
		return total
	}
	if l.GuestCount < 0 {
		return 0
	}
	return l.GuestCount
}
