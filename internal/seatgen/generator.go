// Package seatgen expands a floor-plan layout into concrete seat inventory.
package seatgen

import (
	"math"
	"strconv"

	"github.com/google/uuid"
	"github.com/robertarktes/floorplan-seating/internal/domain"
)

const (
	tableSpacing = 10.0
	seatRadius   = 3.0
)

// categoryCounters are the running per-category totals consumed while
// seats are placed. VIP drains first, then Premium, then General.
type categoryCounters struct {
	vip, premium, general int
}

func (c *categoryCounters) next() domain.Category {
	switch {
	case c.vip > 0:
		c.vip--
		return domain.CategoryVIP
	case c.premium > 0:
		c.premium--
		return domain.CategoryPremium
	case c.general > 0:
		c.general--
	}
	return domain.CategoryGeneral
}

// grid positions tables on the hall floor.
type grid struct {
	tablesPerRow int
	tableRows    int
	length       float64
	width        float64
}

func newGrid(l domain.Layout, totalTables int) grid {
	perRow := int(math.Floor(l.HallLength / tableSpacing))
	if perRow < 1 {
		perRow = 1
	}
	return grid{
		tablesPerRow: perRow,
		tableRows:    (totalTables + perRow - 1) / perRow,
		length:       l.HallLength,
		width:        l.HallWidth,
	}
}

// table returns the row index and centre of the table with the zero-based index.
func (g grid) table(index int) (row int, x, y float64) {
	row = index / g.tablesPerRow
	col := index % g.tablesPerRow
	x = float64(col+1) * (g.length / float64(g.tablesPerRow+1))
	y = float64(row+1) * (g.width / float64(g.tableRows+1))
	return row, x, y
}

// Generate lays out seats for the event. The result is deterministic for a
// given layout, counts and pricing.
func Generate(eventID uuid.UUID, layout domain.Layout, counts domain.CategoryCounts, pricing domain.Pricing) []domain.Seat {
	layout = layout.Normalize()
	desired := domain.DesiredTotal(layout, counts)
	if desired <= 0 {
		return nil
	}

	perTable := layout.SeatsPerTable
	totalTables := (desired + perTable - 1) / perTable
	if totalTables < 1 {
		totalTables = 1
	}
	g := newGrid(layout, totalTables)
	counters := categoryCounters{vip: counts.VIP, premium: counts.Premium, general: counts.General}
	rowSeats := make(map[string]int)
	seats := make([]domain.Seat, 0, desired)

	for t := 0; t < totalTables && len(seats) < desired; t++ {
		row, tableX, tableY := g.table(t)
		label := domain.RowLabel(row)

		for slot := 1; slot <= perTable; slot++ {
			if len(seats) >= desired {
				break
			}
			category := counters.next()

			x, y := tableX, tableY
			if layout.TableType != domain.TableTypeSeatsOnly {
				angle := float64(slot-1) * (2 * math.Pi / float64(perTable))
				x = tableX + seatRadius*math.Cos(angle)
				y = tableY + seatRadius*math.Sin(angle)
			}

			rowSeats[label]++
			number := strconv.Itoa(rowSeats[label])
			section := category.Section()

			seats = append(seats, domain.Seat{
				ID:         domain.SeatID(eventID, section, label, number),
				EventID:    eventID,
				Section:    section,
				RowLabel:   label,
				SeatNumber: number,
				SeatType:   category.SeatType(),
				BasePrice:  pricing.For(category),
				X:          x,
				Y:          y,
				Status:     domain.SeatAvailable,
			})
		}
	}
	return seats
}
