package engine

import (
	"errors"
	"fmt"

	"github.com/talgya/mini-economy/internal/econ"
	"github.com/talgya/mini-economy/internal/market"
)

// Intent errors. Rejected intents change no state.
var (
	ErrUnknownResident  = errors.New("unknown resident")
	ErrUnknownCompany   = errors.New("unknown company")
	ErrUnknownGood      = errors.New("unknown good")
	ErrInsufficientCash = errors.New("insufficient cash")
	ErrNoFloat          = errors.New("no shares available")
	ErrNoPosition       = errors.New("no such holding")
)

// CreateCompany founds a player company: the founder pays the registration
// fee to the treasury plus the starting capital into the company, and
// receives the full share issue.
func (s *Simulation) CreateCompany(founderID econ.ResidentID, name, goodName string, capital float64) (econ.CompanyID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	founder := s.World.Idx().ResidentByID[founderID]
	if founder == nil {
		return 0, ErrUnknownResident
	}
	good, ok := econ.GoodFromName(goodName)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownGood, goodName)
	}
	total := econ.CompanyRegistrationFee + capital
	if !founder.DebitCash(total) {
		return 0, fmt.Errorf("%w: need %.2f", ErrInsufficientCash, total)
	}
	s.World.Treasury.Cash += econ.CompanyRegistrationFee
	s.World.Treasury.DailyIncome += econ.CompanyRegistrationFee

	c := s.World.Spawner.SpawnCompany(name, good, capital, true)
	c.Shareholders = []econ.Shareholder{{HolderID: founderID, Count: c.TotalShares}}
	founder.Portfolio[c.ID] += c.TotalShares
	s.World.Companies = append(s.World.Companies, c)
	s.World.Reindex()

	s.World.EmitEvent(Event{
		Tick:        s.totalTicks,
		Description: fmt.Sprintf("%s founded %s (%s)", founder.Name, c.Name, econ.GoodName(good)),
		Category:    "market",
	})
	return c.ID, nil
}

// CompanyPatch carries the operator-adjustable company fields. Nil fields
// are left untouched.
type CompanyPatch struct {
	TargetEmployees *int     `json:"target_employees,omitempty"`
	WageMultiplier  *float64 `json:"wage_multiplier,omitempty"`
	PricePremium    *float64 `json:"price_premium,omitempty"`
}

// UpdateCompany applies a partial update to a company's controls.
func (s *Simulation) UpdateCompany(id econ.CompanyID, patch CompanyPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.World.Idx().CompanyByID[id]
	if c == nil {
		return ErrUnknownCompany
	}
	if patch.TargetEmployees != nil && *patch.TargetEmployees >= 0 {
		c.TargetEmployees = *patch.TargetEmployees
	}
	if patch.WageMultiplier != nil && *patch.WageMultiplier > 0 {
		c.WageMultiplier = *patch.WageMultiplier
	}
	if patch.PricePremium != nil && *patch.PricePremium > 0 {
		c.PricePremium = *patch.PricePremium
	}
	return nil
}

// PayDividend distributes company cash to shareholders per share held.
// The whole payout must be covered or nothing is paid.
func (s *Simulation) PayDividend(id econ.CompanyID, perShare float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.World.Idx().CompanyByID[id]
	if c == nil {
		return ErrUnknownCompany
	}
	if perShare <= 0 {
		return fmt.Errorf("dividend per share must be positive")
	}
	held := 0
	for _, sh := range c.Shareholders {
		if sh.Count > 0 {
			held += sh.Count
		}
	}
	total := perShare * float64(held)
	if total <= 0 {
		return nil
	}
	if !c.DebitCash(total) {
		return fmt.Errorf("%w: payout %.2f exceeds cash", ErrInsufficientCash, total)
	}
	for _, sh := range c.Shareholders {
		if sh.Count <= 0 {
			continue
		}
		if r := s.World.Idx().ResidentByID[sh.HolderID]; r != nil {
			r.Cash += perShare * float64(sh.Count)
		}
	}
	return nil
}

// floatAvailable is the unissued share count a company can still sell.
func floatAvailable(c *econ.Company) int {
	held := 0
	for _, sh := range c.Shareholders {
		held += sh.Count
	}
	return c.TotalShares - held
}

func (s *Simulation) adjustHolding(c *econ.Company, holder econ.ResidentID, delta int) {
	for i := range c.Shareholders {
		if c.Shareholders[i].HolderID == holder {
			c.Shareholders[i].Count += delta
			if c.Shareholders[i].Count == 0 {
				c.Shareholders = append(c.Shareholders[:i], c.Shareholders[i+1:]...)
			}
			return
		}
	}
	c.Shareholders = append(c.Shareholders, econ.Shareholder{HolderID: holder, Count: delta})
}

// BuyStock purchases shares from the company's unissued float at the
// current share price; proceeds fund the company.
func (s *Simulation) BuyStock(residentID econ.ResidentID, companyID econ.CompanyID, count int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.World.Idx().ResidentByID[residentID]
	c := s.World.Idx().CompanyByID[companyID]
	if r == nil {
		return ErrUnknownResident
	}
	if c == nil {
		return ErrUnknownCompany
	}
	if count <= 0 || count > floatAvailable(c) {
		return ErrNoFloat
	}
	cost := float64(count) * c.SharePrice
	if !r.DebitCash(cost) {
		return fmt.Errorf("%w: need %.2f", ErrInsufficientCash, cost)
	}
	c.Cash += cost
	r.Portfolio[companyID] += count
	s.adjustHolding(c, residentID, count)
	return nil
}

// SellStock sells shares back to the company at the current price.
func (s *Simulation) SellStock(residentID econ.ResidentID, companyID econ.CompanyID, count int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.World.Idx().ResidentByID[residentID]
	c := s.World.Idx().CompanyByID[companyID]
	if r == nil {
		return ErrUnknownResident
	}
	if c == nil {
		return ErrUnknownCompany
	}
	if count <= 0 || r.Portfolio[companyID] < count {
		return ErrNoPosition
	}
	proceeds := float64(count) * c.SharePrice
	if !c.DebitCash(proceeds) {
		return fmt.Errorf("%w: company cannot fund buyback", ErrInsufficientCash)
	}
	r.Cash += proceeds
	r.Portfolio[companyID] -= count
	if r.Portfolio[companyID] == 0 {
		delete(r.Portfolio, companyID)
	}
	s.adjustHolding(c, residentID, -count)
	return nil
}

// ShortStock opens or extends a short: the resident sells borrowed shares
// at the current price and owes them back. The proceeds come from the
// company, which gains the obligation on its register.
func (s *Simulation) ShortStock(residentID econ.ResidentID, companyID econ.CompanyID, count int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.World.Idx().ResidentByID[residentID]
	c := s.World.Idx().CompanyByID[companyID]
	if r == nil {
		return ErrUnknownResident
	}
	if c == nil {
		return ErrUnknownCompany
	}
	if count <= 0 {
		return ErrNoPosition
	}
	proceeds := float64(count) * c.SharePrice
	if !c.DebitCash(proceeds) {
		return fmt.Errorf("%w: no counterparty liquidity", ErrInsufficientCash)
	}
	r.Cash += proceeds
	r.Portfolio[companyID] -= count
	s.adjustHolding(c, residentID, -count)
	return nil
}

// CoverStock buys back shorted shares at the current price.
func (s *Simulation) CoverStock(residentID econ.ResidentID, companyID econ.CompanyID, count int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.World.Idx().ResidentByID[residentID]
	c := s.World.Idx().CompanyByID[companyID]
	if r == nil {
		return ErrUnknownResident
	}
	if c == nil {
		return ErrUnknownCompany
	}
	if count <= 0 || r.Portfolio[companyID] > -count {
		return ErrNoPosition
	}
	cost := float64(count) * c.SharePrice
	if !r.DebitCash(cost) {
		return fmt.Errorf("%w: need %.2f", ErrInsufficientCash, cost)
	}
	c.Cash += cost
	r.Portfolio[companyID] += count
	if r.Portfolio[companyID] == 0 {
		delete(r.Portfolio, companyID)
	}
	s.adjustHolding(c, residentID, count)
	return nil
}

// OpenFuture opens a leveraged position on a raw resource at the current
// market price.
func (s *Simulation) OpenFuture(residentID econ.ResidentID, goodName string, side econ.FutureSide) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.World.Idx().ResidentByID[residentID]
	if r == nil {
		return "", ErrUnknownResident
	}
	good, ok := econ.GoodFromName(goodName)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownGood, goodName)
	}
	price := s.World.Market.LastPrice(good)
	return s.World.Desk.Open(r, good, side, price, s.Day())
}

// CloseFuture realizes a position at the current market price.
func (s *Simulation) CloseFuture(positionID string, resource econ.GoodType) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.World.Desk.Close(positionID, s.World.Market.LastPrice(resource))
}

// SubmitOrder places a market order for any trader by key ("r:N"/"c:N").
func (s *Simulation) SubmitOrder(traderKey, goodName string, side market.Side, price, qty float64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	owner := s.traderByKey(traderKey)
	if owner == nil {
		return "", fmt.Errorf("unknown trader %q", traderKey)
	}
	good, ok := econ.GoodFromName(goodName)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownGood, goodName)
	}
	return s.World.Market.Submit(owner, good, side, price, qty, s.totalTicks)
}

// CancelOrder pulls a resting order. Unknown or filled ids are a no-op.
func (s *Simulation) CancelOrder(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.World.Market.Cancel(id)
}

// BookSnapshot returns the current depth for one good.
func (s *Simulation) BookSnapshot(goodName string) (market.BookView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	good, ok := econ.GoodFromName(goodName)
	if !ok {
		return market.BookView{}, fmt.Errorf("%w: %q", ErrUnknownGood, goodName)
	}
	return s.World.Market.Snapshot(good), nil
}

// Announce posts an operator message to the event feed.
func (s *Simulation) Announce(description, category string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.World.EmitEvent(Event{Tick: s.totalTicks, Description: description, Category: category})
}

// SetPolicyOverride installs manual policy levers at the next tick
// boundary. Passing nil restores full automatic policy.
func (s *Simulation) SetPolicyOverride(ov *PolicyOverride) {
	s.Defer(func() {
		s.World.Override = ov
		if ov == nil {
			s.World.Bank.RateOverride = nil
		} else {
			s.World.Bank.RateOverride = ov.InterestRate
		}
	})
}
