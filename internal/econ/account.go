// Cash and goods account methods shared by residents and companies, so the
// market engine can escrow funds and inventory without knowing which kind
// of holder it is dealing with.
package econ

import "fmt"

// TraderKey identifies a resident for market bookkeeping.
func (r *Resident) TraderKey() string { return fmt.Sprintf("r:%d", r.ID) }

// CashBalance returns the resident's liquid cash.
func (r *Resident) CashBalance() float64 { return r.Cash }

// DebitCash removes cash, reporting false if the balance is insufficient.
func (r *Resident) DebitCash(amount float64) bool {
	if r.Cash < amount {
		return false
	}
	r.Cash -= amount
	return true
}

// CreditCash adds cash.
func (r *Resident) CreditCash(amount float64) { r.Cash += amount }

// GoodQty returns the held quantity of a good.
func (r *Resident) GoodQty(g GoodType) float64 { return r.Inventory.Qty(g) }

// TakeGood removes goods, reporting false if holdings are insufficient.
func (r *Resident) TakeGood(g GoodType, qty float64) bool { return r.Inventory.Remove(g, qty) }

// GiveGood adds goods.
func (r *Resident) GiveGood(g GoodType, qty float64) { r.Inventory.Add(g, qty) }

// TraderKey identifies a company for market bookkeeping.
func (c *Company) TraderKey() string { return fmt.Sprintf("c:%d", c.ID) }

// CashBalance returns the company's liquid cash.
func (c *Company) CashBalance() float64 { return c.Cash }

// DebitCash removes cash, reporting false if the balance is insufficient.
func (c *Company) DebitCash(amount float64) bool {
	if c.Cash < amount {
		return false
	}
	c.Cash -= amount
	return true
}

// CreditCash adds cash.
func (c *Company) CreditCash(amount float64) { c.Cash += amount }

// GoodQty returns holdings from the raw or finished pool as appropriate.
func (c *Company) GoodQty(g GoodType) float64 { return c.InventoryFor(g).Qty(g) }

// TakeGood removes goods from the matching pool.
func (c *Company) TakeGood(g GoodType, qty float64) bool { return c.InventoryFor(g).Remove(g, qty) }

// GiveGood adds goods to the matching pool.
func (c *Company) GiveGood(g GoodType, qty float64) { c.InventoryFor(g).Add(g, qty) }
