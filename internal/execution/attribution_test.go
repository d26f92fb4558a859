package execution

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestApplyFill(t *testing.T) {
	tests := []struct {
		name               string
		curQty, curAvg     decimal.Decimal
		fillQty, fillPrice decimal.Decimal
		wantQty, wantAvg   decimal.Decimal
	}{
		{
			name:      "opening a flat position takes the fill's own price",
			curQty:    decimal.Zero,
			curAvg:    decimal.Zero,
			fillQty:   dec("100"),
			fillPrice: dec("10"),
			wantQty:   dec("100"),
			wantAvg:   dec("10"),
		},
		{
			name:      "adding in the same direction averages the price",
			curQty:    dec("100"),
			curAvg:    dec("10"),
			fillQty:   dec("100"),
			fillPrice: dec("20"),
			wantQty:   dec("200"),
			wantAvg:   dec("15"),
		},
		{
			name:      "partial reduction keeps the existing average",
			curQty:    dec("200"),
			curAvg:    dec("15"),
			fillQty:   dec("-50"),
			fillPrice: dec("999"),
			wantQty:   dec("150"),
			wantAvg:   dec("15"),
		},
		{
			name:      "exact close zeroes out the average",
			curQty:    dec("150"),
			curAvg:    dec("15"),
			fillQty:   dec("-150"),
			fillPrice: dec("999"),
			wantQty:   decimal.Zero,
			wantAvg:   decimal.Zero,
		},
		{
			name:      "overshooting a close flips direction at the fill price",
			curQty:    dec("100"),
			curAvg:    dec("10"),
			fillQty:   dec("-150"),
			fillPrice: dec("20"),
			wantQty:   dec("-50"),
			wantAvg:   dec("20"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotQty, gotAvg := applyFill(tt.curQty, tt.curAvg, tt.fillQty, tt.fillPrice)
			if !gotQty.Equal(tt.wantQty) {
				t.Errorf("qty = %s, want %s", gotQty, tt.wantQty)
			}
			if !gotAvg.Equal(tt.wantAvg) {
				t.Errorf("avg = %s, want %s", gotAvg, tt.wantAvg)
			}
		})
	}
}
