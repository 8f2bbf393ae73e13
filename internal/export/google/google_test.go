package google

import (
	"testing"
	"time"

	"ambulatorio/internal/core"
	"ambulatorio/internal/export"
)

func TestYearPrefixedName(t *testing.T) {
	tests := []struct {
		name string
		base string
		year int
		want string
	}{
		{"plain base", "Reconciliations", 2026, "2026 Reconciliations"},
		{"already prefixed", "2025 Reconciliations", 2026, "2025 Reconciliations"},
		{"short base", "Reg", 2026, "2026 Reg"},
		{"empty base", "", 2026, ""},
		{"numeric but not a year", "9999x Register", 2026, "2026 9999x Register"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := yearPrefixedName(tt.base, tt.year); got != tt.want {
				t.Errorf("yearPrefixedName(%q, %d) = %q, want %q", tt.base, tt.year, got, tt.want)
			}
		})
	}
}

func TestRowValues(t *testing.T) {
	row := export.RegisterRow{
		ReconciliationID: "rec-42",
		InsurerName:      "Mutuelle A",
		PeriodStart:      time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:        time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		Received:         core.FromCents(900000),
		TransactionCount: 12,
	}

	values := rowValues(row)
	want := []any{"2026-03", "Mutuelle A", "9000.00", 12, "rec-42"}
	if len(values) != len(want) {
		t.Fatalf("row has %d cells, want %d", len(values), len(want))
	}
	for i := range want {
		if values[i] != want[i] {
			t.Errorf("cell %d = %v, want %v", i, values[i], want[i])
		}
	}
}
