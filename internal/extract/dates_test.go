package extract

import (
	"testing"
	"time"
)

func TestAddWarrantyDays(t *testing.T) {
	tests := []struct {
		name string
		from time.Time
		days int
		want time.Time
	}{
		{"one year across leap year", date(2024, 1, 10), 365, date(2025, 1, 10)},
		{"three years", date(2024, 1, 10), 1095, date(2027, 1, 10)},
		{"remainder days", date(2024, 1, 10), 395, date(2025, 2, 9)},
		{"short period stays day based", date(2024, 2, 1), 30, date(2024, 3, 2)},
		{"feb 29 clamps", date(2024, 2, 29), 365, date(2025, 2, 28)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := addWarrantyDays(tt.from, tt.days); !got.Equal(tt.want) {
				t.Errorf("addWarrantyDays(%v, %d) = %v, want %v", tt.from, tt.days, got, tt.want)
			}
		})
	}
}

func TestAddYears(t *testing.T) {
	if got := addYears(date(2024, 2, 29), 4); !got.Equal(date(2028, 2, 29)) {
		t.Errorf("leap to leap = %v, want 2028-02-29", got)
	}
	if got := addYears(date(2023, 6, 15), 3); !got.Equal(date(2026, 6, 15)) {
		t.Errorf("plain year = %v, want 2026-06-15", got)
	}
}
