// Package temporal enumerates and groups the forecast cycles a verification
// run covers: which model initializations and lead hours fall inside the run
// window, and how they batch for processing.
package temporal

import (
	"fmt"
	"time"
)

// Cycle is one (initialization time, lead hour) pair.
type Cycle struct {
	Init      time.Time
	LeadHours int
}

// Valid returns the time the forecast verifies at.
func (c Cycle) Valid() time.Time {
	return c.Init.Add(time.Duration(c.LeadHours) * time.Hour)
}

// String renders the cycle in inventory file-name form, e.g.
// "20260115t06z.f024".
func (c Cycle) String() string {
	return fmt.Sprintf("%st%02dz.f%03d", c.Init.Format("20060102"), c.Init.Hour(), c.LeadHours)
}

// Window describes the temporal extent of a run: calendar date range plus the
// init hours and lead hours to verify.
type Window struct {
	Start     time.Time
	End       time.Time
	InitHours []int
	LeadHours []int
}

// Cycles enumerates every cycle in the window, ordered by init time then lead.
func (w Window) Cycles() []Cycle {
	var cycles []Cycle
	startDay := time.Date(w.Start.Year(), w.Start.Month(), w.Start.Day(), 0, 0, 0, 0, time.UTC)
	for day := startDay; !day.After(w.End); day = day.AddDate(0, 0, 1) {
		for _, h := range w.InitHours {
			init := day.Add(time.Duration(h) * time.Hour)
			if init.Before(w.Start) || init.After(w.End) {
				continue
			}
			for _, lead := range w.LeadHours {
				cycles = append(cycles, Cycle{Init: init, LeadHours: lead})
			}
		}
	}
	return cycles
}

// GroupByInitHour buckets cycles by initialization hour so diurnal skill can
// be reported separately per cycle.
func GroupByInitHour(cycles []Cycle) map[int][]Cycle {
	groups := make(map[int][]Cycle)
	for _, c := range cycles {
		h := c.Init.Hour()
		groups[h] = append(groups[h], c)
	}
	return groups
}

// GroupByLeadHour buckets cycles by forecast lead.
func GroupByLeadHour(cycles []Cycle) map[int][]Cycle {
	groups := make(map[int][]Cycle)
	for _, c := range cycles {
		groups[c.LeadHours] = append(groups[c.LeadHours], c)
	}
	return groups
}

// AlignsWith reports whether an observation time matches the cycle's valid
// time within tolerance, the rule for pairing point observations with a
// forecast.
func (c Cycle) AlignsWith(obsTime time.Time, tolerance time.Duration) bool {
	d := c.Valid().Sub(obsTime)
	if d < 0 {
		d = -d
	}
	return d <= tolerance
}
