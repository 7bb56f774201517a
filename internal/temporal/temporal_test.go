package temporal

import (
	"testing"
	"time"
)

func TestWindowCycles(t *testing.T) {
	w := Window{
		Start:     time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		End:       time.Date(2026, 1, 2, 23, 0, 0, 0, time.UTC),
		InitHours: []int{0, 12},
		LeadHours: []int{6, 24},
	}

	cycles := w.Cycles()
	// 2 days x 2 init hours x 2 leads.
	if len(cycles) != 8 {
		t.Fatalf("len(cycles) = %d, want 8", len(cycles))
	}

	first := cycles[0]
	if first.Init.Hour() != 0 || first.LeadHours != 6 {
		t.Errorf("first cycle = %+v, want 00Z f006", first)
	}
	wantValid := time.Date(2026, 1, 1, 6, 0, 0, 0, time.UTC)
	if !first.Valid().Equal(wantValid) {
		t.Errorf("Valid() = %v, want %v", first.Valid(), wantValid)
	}
}

func TestWindowCyclesRespectsBounds(t *testing.T) {
	w := Window{
		Start:     time.Date(2026, 1, 1, 6, 0, 0, 0, time.UTC),
		End:       time.Date(2026, 1, 1, 18, 0, 0, 0, time.UTC),
		InitHours: []int{0, 6, 12, 18},
		LeadHours: []int{24},
	}

	cycles := w.Cycles()
	// 00Z is before the window start; 06, 12, 18 remain.
	if len(cycles) != 3 {
		t.Fatalf("len(cycles) = %d, want 3", len(cycles))
	}
	if cycles[0].Init.Hour() != 6 {
		t.Errorf("first init hour = %d, want 6", cycles[0].Init.Hour())
	}
}

func TestCycleString(t *testing.T) {
	c := Cycle{Init: time.Date(2026, 1, 15, 6, 0, 0, 0, time.UTC), LeadHours: 24}
	if got := c.String(); got != "20260115t06z.f024" {
		t.Errorf("String() = %q, want 20260115t06z.f024", got)
	}
}

func TestGrouping(t *testing.T) {
	w := Window{
		Start:     time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		End:       time.Date(2026, 1, 3, 23, 0, 0, 0, time.UTC),
		InitHours: []int{0, 12},
		LeadHours: []int{6, 12, 24},
	}
	cycles := w.Cycles()

	byInit := GroupByInitHour(cycles)
	if len(byInit) != 2 || len(byInit[0]) != 9 || len(byInit[12]) != 9 {
		t.Errorf("GroupByInitHour sizes = %d/%d/%d, want 2 groups of 9", len(byInit), len(byInit[0]), len(byInit[12]))
	}

	byLead := GroupByLeadHour(cycles)
	if len(byLead) != 3 || len(byLead[24]) != 6 {
		t.Errorf("GroupByLeadHour sizes = %d groups, lead 24 has %d, want 3/6", len(byLead), len(byLead[24]))
	}
}

func TestAlignsWith(t *testing.T) {
	c := Cycle{Init: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC), LeadHours: 6}

	tests := []struct {
		name string
		obs  time.Time
		tol  time.Duration
		want bool
	}{
		{"exact", time.Date(2026, 1, 1, 18, 0, 0, 0, time.UTC), 30 * time.Minute, true},
		{"within tolerance before", time.Date(2026, 1, 1, 17, 45, 0, 0, time.UTC), 30 * time.Minute, true},
		{"within tolerance after", time.Date(2026, 1, 1, 18, 20, 0, 0, time.UTC), 30 * time.Minute, true},
		{"outside tolerance", time.Date(2026, 1, 1, 19, 0, 0, 0, time.UTC), 30 * time.Minute, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.AlignsWith(tt.obs, tt.tol); got != tt.want {
				t.Errorf("AlignsWith(%v) = %v, want %v", tt.obs, got, tt.want)
			}
		})
	}
}
