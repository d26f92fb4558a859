package execution

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/jarrettlin/execcore/internal/domain"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestDiffAction(t *testing.T) {
	tests := []struct {
		name         string
		qtyDiff      decimal.Decimal
		orders       []openOrderView
		wantOutcome  diffOutcome
		wantPlaceQty decimal.Decimal
	}{
		{
			name:        "no diff and no orders is a no-op",
			qtyDiff:     decimal.Zero,
			orders:      nil,
			wantOutcome: diffNone,
		},
		{
			name:        "no diff but stale orders cancels them",
			qtyDiff:     decimal.Zero,
			orders:      []openOrderView{{PermID: 1, Quantity: dec("10"), Filled: dec("0")}},
			wantOutcome: diffCancelAll,
		},
		{
			name:         "diff with no working orders places fresh",
			qtyDiff:      dec("-50"),
			orders:       nil,
			wantOutcome:  diffReplace,
			wantPlaceQty: dec("50"),
		},
		{
			name:    "working order undershoots the target, tops up",
			qtyDiff: dec("100"),
			orders: []openOrderView{
				{PermID: 1, Quantity: dec("60"), Filled: dec("0")},
			},
			wantOutcome:  diffTopUp,
			wantPlaceQty: dec("40"),
		},
		{
			name:    "working order exactly covers the target, no-op",
			qtyDiff: dec("60"),
			orders: []openOrderView{
				{PermID: 1, Quantity: dec("60"), Filled: dec("0")},
			},
			wantOutcome: diffNone,
		},
		{
			name:    "working order overshoots the target, replace",
			qtyDiff: dec("30"),
			orders: []openOrderView{
				{PermID: 1, Quantity: dec("60"), Filled: dec("0")},
			},
			wantOutcome:  diffReplace,
			wantPlaceQty: dec("30"),
		},
		{
			name:    "working order points the wrong direction, replace",
			qtyDiff: dec("30"),
			orders: []openOrderView{
				{PermID: 1, Quantity: dec("-20"), Filled: dec("0")},
			},
			wantOutcome:  diffReplace,
			wantPlaceQty: dec("30"),
		},
		{
			name:    "partial fill reduces the remaining open amount",
			qtyDiff: dec("100"),
			orders: []openOrderView{
				{PermID: 1, Quantity: dec("80"), Filled: dec("50")},
			},
			wantOutcome:  diffTopUp,
			wantPlaceQty: dec("70"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome, placeQty := diffAction(tt.qtyDiff, tt.orders, nil)
			if outcome != tt.wantOutcome {
				t.Fatalf("outcome = %v, want %v", outcome, tt.wantOutcome)
			}
			if !placeQty.Equal(tt.wantPlaceQty) && !(placeQty.IsZero() && tt.wantPlaceQty.IsZero()) {
				t.Fatalf("placeQty = %s, want %s", placeQty, tt.wantPlaceQty)
			}
		})
	}
}

func TestOrderAction(t *testing.T) {
	if got := orderAction(dec("10")); got != domain.OrderActionBuy {
		t.Errorf("orderAction(10) = %v, want %v", got, domain.OrderActionBuy)
	}
	if got := orderAction(dec("-10")); got != domain.OrderActionSell {
		t.Errorf("orderAction(-10) = %v, want %v", got, domain.OrderActionSell)
	}
	if got := orderAction(decimal.Zero); got != domain.OrderActionBuy {
		t.Errorf("orderAction(0) = %v, want %v (zero treated as buy)", got, domain.OrderActionBuy)
	}
}
