package engine

import (
	"fmt"
	"sort"

	"github.com/talgya/mini-economy/internal/econ"
	"github.com/talgya/mini-economy/internal/numutil"
)

// laborPass runs the daily labor market: wage re-derivation, layoffs,
// then hiring. Companies are processed in ascending id order so a day's
// outcome is deterministic for a given world state.
func (s *Simulation) laborPass(day uint64) {
	companies := make([]*econ.Company, len(s.World.Companies))
	copy(companies, s.World.Companies)
	sort.Slice(companies, func(i, j int) bool { return companies[i].ID < companies[j].ID })

	for _, c := range companies {
		if c.IsBankrupt {
			s.releaseEmployees(c, "bankruptcy")
			continue
		}
		s.rederiveWage(day, c)
		s.trimHeadcount(c)
	}
	s.World.Reindex()

	for _, c := range companies {
		if c.IsBankrupt {
			continue
		}
		s.hireFor(c)
	}
	s.World.Reindex()

	// Experience accrues for everyone who held a job through the day.
	for _, r := range s.World.Residents {
		if r.Job != econ.JobUnemployed {
			r.Experience++
		}
	}
}

// rederiveWage recomputes a company's wage offer from its primary good's
// market price. Wages are sticky: adjusted at most once per
// WageStickinessDays, and cuts are capped so pay never collapses in a
// single adjustment.
func (s *Simulation) rederiveWage(day uint64, c *econ.Company) {
	if day < c.LastWageAdjustDay+econ.WageStickinessDays {
		return
	}
	ref := s.World.Market.LastPrice(c.PrimaryGood())
	target := c.WageMultiplier * ref * s.wageShock(c.PrimaryGood())

	floor := c.WageOffer * (1 - econ.MaxWageCut)
	if target < floor {
		target = floor
	}
	if s.World.Override != nil && s.World.Override.MinWage != nil && target < *s.World.Override.MinWage {
		target = *s.World.Override.MinWage
	}
	c.WageOffer = numutil.Finite(target, c.WageOffer)
	c.LastWageAdjustDay = day
}

// trimHeadcount lays off the least skilled employees above target.
func (s *Simulation) trimHeadcount(c *econ.Company) {
	staff := s.World.Idx().EmployeesByCompany[c.ID]
	if len(staff) <= c.TargetEmployees {
		c.Employees = len(staff)
		return
	}
	sorted := make([]*econ.Resident, len(staff))
	copy(sorted, staff)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Intelligence < sorted[j].Intelligence })
	for _, r := range sorted[:len(sorted)-c.TargetEmployees] {
		s.release(r)
	}
	c.Employees = c.TargetEmployees
}

// hireFor fills a company's open slots. Candidates are the unemployed
// plus employed residents whose current wage trails the offer by more
// than the switch threshold; among candidates whose expectations are
// comparable, the smarter one is hired first.
func (s *Simulation) hireFor(c *econ.Company) {
	open := c.TargetEmployees - s.World.Idx().Headcount(c.ID)
	if open <= 0 {
		c.Employees = s.World.Idx().Headcount(c.ID)
		return
	}

	var candidates []*econ.Resident
	for _, r := range s.World.Residents {
		switch {
		case r.Job == econ.JobUnemployed:
			candidates = append(candidates, r)
		case r.EmployerID != nil && *r.EmployerID != c.ID &&
			c.WageOffer > r.WageDaily*(1+econ.JobSwitchThreshold):
			candidates = append(candidates, r)
		}
	}
	// Higher wage demand first, but within a comparable band intelligence
	// decides — skill beats a slightly cheaper hire.
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		lo, hi := a.WageDaily, b.WageDaily
		if lo > hi {
			lo, hi = hi, lo
		}
		if lo == 0 || (hi-lo)/hi <= 0.10 {
			if a.Intelligence != b.Intelligence {
				return a.Intelligence > b.Intelligence
			}
		}
		if a.WageDaily != b.WageDaily {
			return a.WageDaily < b.WageDaily
		}
		return a.ID < b.ID
	})

	hired := 0
	for _, r := range candidates {
		if hired >= open {
			break
		}
		if r.EmployerID != nil {
			if prev := s.World.Idx().CompanyByID[*r.EmployerID]; prev != nil && prev.Employees > 0 {
				prev.Employees--
			}
		}
		id := c.ID
		r.EmployerID = &id
		r.Job = econ.JobForGood(c.PrimaryGood())
		r.WageDaily = c.WageOffer
		hired++
	}
	// Poaching changes other companies' headcounts; rebuild the index so
	// companies later in the pass see current rosters.
	if hired > 0 {
		s.World.Reindex()
	}
	c.Employees = s.World.Idx().Headcount(c.ID)
}

// release reverts a resident to unemployment.
func (s *Simulation) release(r *econ.Resident) {
	r.Job = econ.JobUnemployed
	r.EmployerID = nil
	r.WageDaily = 0
}

// releaseEmployees lets a company's whole staff go.
func (s *Simulation) releaseEmployees(c *econ.Company, reason string) {
	staff := s.World.Idx().EmployeesByCompany[c.ID]
	if len(staff) == 0 {
		c.Employees = 0
		return
	}
	for _, r := range staff {
		s.release(r)
	}
	c.Employees = 0
	s.World.EmitEvent(Event{
		Tick:        s.totalTicks,
		Description: fmt.Sprintf("%s released %d workers (%s)", c.Name, len(staff), reason),
		Category:    "labor",
	})
}

// payWages pays each employee their daily wage with income tax withheld
// at source. A company that cannot cover payroll pays nobody that day;
// the shortfall shows up in its profit and, eventually, its solvency.
func (s *Simulation) payWages(day uint64) {
	rate := s.effectiveRate(s.World.Treasury.Taxes.Income)
	for _, c := range s.World.Companies {
		if c.IsBankrupt {
			continue
		}
		staff := s.World.Idx().EmployeesByCompany[c.ID]
		payroll := 0.0
		for _, r := range staff {
			payroll += r.WageDaily
		}
		if payroll <= 0 || !c.DebitCash(payroll) {
			continue
		}
		for _, r := range staff {
			tax := r.WageDaily * rate
			r.Cash += r.WageDaily - tax
			s.World.Treasury.Cash += tax
			s.World.Treasury.DailyIncome += tax
		}
		c.DayCosts += payroll
	}
}
