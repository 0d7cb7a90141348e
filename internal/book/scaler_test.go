package book

import (
	"testing"

	"github.com/shopspring/decimal"
)

func testScaler() *Scaler {
	return NewScaler(decimal.NewFromFloat(0.01), decimal.NewFromFloat(0.001), nil)
}

func TestScalerRoundTripPrice(t *testing.T) {
	t.Parallel()
	s := testScaler()

	ticks, ok := s.PriceToTicks("50000.25")
	if !ok {
		t.Fatal("PriceToTicks returned ok=false")
	}
	back := s.TicksToPrice(ticks)
	if !back.Equal(decimal.NewFromFloat(50000.25)) {
		t.Errorf("round trip got %s, want 50000.25", back)
	}
}

func TestScalerRoundTripQty(t *testing.T) {
	t.Parallel()
	s := testScaler()

	ticks, ok := s.QtyToTicks("1.234")
	if !ok {
		t.Fatal("QtyToTicks returned ok=false")
	}
	back := s.TicksToQty(ticks)
	if !back.Equal(decimal.NewFromFloat(1.234)) {
		t.Errorf("round trip got %s, want 1.234", back)
	}
}

func TestScalerRoundsMisalignedPrice(t *testing.T) {
	t.Parallel()
	s := testScaler()

	ticks, ok := s.PriceToTicks("50000.256")
	if !ok {
		t.Fatal("PriceToTicks returned ok=false")
	}
	if ticks != 5000026 {
		t.Errorf("ticks = %d, want 5000026 (rounded)", ticks)
	}
}

func TestScalerStrictAlignmentRejectsMisaligned(t *testing.T) {
	t.Parallel()
	s := testScaler()
	s.StrictAlignment = true

	if _, ok := s.PriceToTicks("50000.256"); ok {
		t.Fatal("expected ok=false under StrictAlignment for misaligned price")
	}
}

func TestScalerFailsOnUnparseable(t *testing.T) {
	t.Parallel()
	s := testScaler()

	if _, ok := s.PriceToTicks("not-a-number"); ok {
		t.Fatal("expected ok=false for unparseable price")
	}
}
