// Package book implements integer-tick order book reconstruction, the
// delta synchronization protocol that keeps it current, the microstructure
// metrics derived from it, and the lock-free snapshot published to readers.
package book

import (
	"log/slog"

	"github.com/shopspring/decimal"
)

// Scaler converts venue decimal price/quantity strings to integer ticks
// and back, using the venue-supplied tick size and step size. Integer
// ticks give exact map keys and arithmetic with no floating-point drift.
type Scaler struct {
	tickSize decimal.Decimal
	stepSize decimal.Decimal

	// StrictAlignment, when true, makes PriceToTicks/QtyToTicks fail
	// (ok=false) on a value that isn't exactly aligned to the tick/step
	// grid instead of rounding. Production callers leave this false.
	StrictAlignment bool

	logger *slog.Logger
}

// NewScaler builds a Scaler from a venue's tick size and step size.
func NewScaler(tickSize, stepSize decimal.Decimal, logger *slog.Logger) *Scaler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scaler{
		tickSize: tickSize,
		stepSize: stepSize,
		logger:   logger.With("component", "scaler"),
	}
}

// TickSize returns the venue's smallest price increment.
func (s *Scaler) TickSize() decimal.Decimal { return s.tickSize }

// StepSize returns the venue's smallest quantity increment.
func (s *Scaler) StepSize() decimal.Decimal { return s.stepSize }

// PriceToTicks parses s as an exact decimal and divides by tick size. A
// value not aligned to the grid is rounded to the nearest tick and logged
// at warn level, unless StrictAlignment is set, in which case it fails.
// ok is false only when s fails to parse, when the tick size is zero, or
// (under StrictAlignment) when s is misaligned.
func (s *Scaler) PriceToTicks(price string) (ticks uint64, ok bool) {
	return s.toTicks(price, s.tickSize, "price")
}

// QtyToTicks parses qty as an exact decimal and divides by step size,
// with the same rounding/strictness behavior as PriceToTicks.
func (s *Scaler) QtyToTicks(qty string) (ticks uint64, ok bool) {
	return s.toTicks(qty, s.stepSize, "qty")
}

func (s *Scaler) toTicks(raw string, grid decimal.Decimal, kind string) (uint64, bool) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		s.logger.Warn("failed to parse decimal", "kind", kind, "value", raw, "error", err)
		return 0, false
	}
	if grid.IsZero() {
		s.logger.Warn("grid size is zero, cannot scale", "kind", kind, "value", raw)
		return 0, false
	}

	divided := d.Div(grid)
	rounded := divided.Round(0)
	if !divided.Equal(rounded) {
		if s.StrictAlignment {
			s.logger.Warn("value misaligned to grid, rejecting (strict mode)", "kind", kind, "value", raw, "grid", grid)
			return 0, false
		}
		s.logger.Warn("value misaligned to grid, rounding", "kind", kind, "value", raw, "grid", grid, "rounded_ticks", rounded)
	}
	if rounded.IsNegative() {
		s.logger.Warn("value rounds to negative ticks, clamping to zero", "kind", kind, "value", raw)
		return 0, true
	}
	return uint64(rounded.IntPart()), true
}

// TicksToPrice converts integer price ticks back to an exact decimal.
func (s *Scaler) TicksToPrice(ticks uint64) decimal.Decimal {
	return decimal.NewFromInt(int64(ticks)).Mul(s.tickSize)
}

// TicksToQty converts integer quantity ticks back to an exact decimal.
func (s *Scaler) TicksToQty(ticks uint64) decimal.Decimal {
	return decimal.NewFromInt(int64(ticks)).Mul(s.stepSize)
}
