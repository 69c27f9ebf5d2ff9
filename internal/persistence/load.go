// World restore — rebuilds a saved economy into a fresh world.
package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/talgya/mini-economy/internal/bank"
	"github.com/talgya/mini-economy/internal/econ"
	"github.com/talgya/mini-economy/internal/engine"
)

type residentRow struct {
	ID            uint64        `db:"id"`
	Name          string        `db:"name"`
	Cash          float64       `db:"cash"`
	Wealth        float64       `db:"wealth"`
	Job           int           `db:"job"`
	EmployerID    sql.NullInt64 `db:"employer_id"`
	Intelligence  float64       `db:"intelligence"`
	Standard      int           `db:"standard"`
	Experience    uint32        `db:"experience"`
	WageDaily     float64       `db:"wage_daily"`
	InventoryJSON string        `db:"inventory_json"`
	PortfolioJSON string        `db:"portfolio_json"`
	FuturesJSON   string        `db:"futures_json"`
}

type companyRow struct {
	ID                uint64  `db:"id"`
	Name              string  `db:"name"`
	Cash              float64 `db:"cash"`
	Employees         int     `db:"employees"`
	TargetEmployees   int     `db:"target_employees"`
	WageOffer         float64 `db:"wage_offer"`
	WageMultiplier    float64 `db:"wage_multiplier"`
	LastWageAdjustDay uint64  `db:"last_wage_adjust_day"`
	PricePremium      float64 `db:"price_premium"`
	LandTokens        int     `db:"land_tokens"`
	SharePrice        float64 `db:"share_price"`
	TotalShares       int     `db:"total_shares"`
	IsPlayerFounded   int     `db:"is_player_founded"`
	IsBankrupt        int     `db:"is_bankrupt"`
	Stage             int     `db:"stage"`
	AgeDays           uint64  `db:"age_days"`
	CreditScore       float64 `db:"credit_score"`
	LastProfit        float64 `db:"last_profit"`
	LinesJSON         string  `db:"lines_json"`
	RawInvJSON        string  `db:"raw_inventory_json"`
	FinishedInvJSON   string  `db:"finished_inventory_json"`
	ShareholdersJSON  string  `db:"shareholders_json"`
	HistoryJSON       string  `db:"history_json"`
}

type loanRow struct {
	ID        string  `db:"id"`
	Borrower  uint64  `db:"borrower"`
	Principal float64 `db:"principal"`
	Rate      float64 `db:"rate"`
	IssuedDay uint64  `db:"issued_day"`
	DueDay    uint64  `db:"due_day"`
}

type depositRow struct {
	ID     string  `db:"id"`
	Owner  string  `db:"owner"`
	Amount float64 `db:"amount"`
	Rate   float64 `db:"rate"`
}

// HasSave reports whether a previous run is stored.
func (db *DB) HasSave() bool {
	_, err := db.GetMeta("last_tick")
	return err == nil
}

// LoadResidents reads all residents back.
func (db *DB) LoadResidents() ([]*econ.Resident, error) {
	var rows []residentRow
	if err := db.conn.Select(&rows, "SELECT * FROM residents ORDER BY id"); err != nil {
		return nil, err
	}

	residents := make([]*econ.Resident, 0, len(rows))
	for _, row := range rows {
		r := &econ.Resident{
			ID:           econ.ResidentID(row.ID),
			Name:         row.Name,
			Cash:         row.Cash,
			Wealth:       row.Wealth,
			Job:          econ.Job(row.Job),
			Intelligence: row.Intelligence,
			Standard:     econ.LivingStandard(row.Standard),
			Experience:   row.Experience,
			WageDaily:    row.WageDaily,
			Portfolio:    make(map[econ.CompanyID]int),
		}
		if row.EmployerID.Valid {
			id := econ.CompanyID(row.EmployerID.Int64)
			r.EmployerID = &id
		}
		if err := json.Unmarshal([]byte(row.InventoryJSON), &r.Inventory); err != nil {
			return nil, fmt.Errorf("resident %d inventory: %w", row.ID, err)
		}
		if err := json.Unmarshal([]byte(row.PortfolioJSON), &r.Portfolio); err != nil {
			return nil, fmt.Errorf("resident %d portfolio: %w", row.ID, err)
		}
		if err := json.Unmarshal([]byte(row.FuturesJSON), &r.Futures); err != nil {
			return nil, fmt.Errorf("resident %d futures: %w", row.ID, err)
		}
		residents = append(residents, r)
	}
	return residents, nil
}

// LoadCompanies reads all companies back.
func (db *DB) LoadCompanies() ([]*econ.Company, error) {
	var rows []companyRow
	if err := db.conn.Select(&rows, "SELECT * FROM companies ORDER BY id"); err != nil {
		return nil, err
	}

	companies := make([]*econ.Company, 0, len(rows))
	for _, row := range rows {
		c := &econ.Company{
			ID:                econ.CompanyID(row.ID),
			Name:              row.Name,
			Cash:              row.Cash,
			Employees:         row.Employees,
			TargetEmployees:   row.TargetEmployees,
			WageOffer:         row.WageOffer,
			WageMultiplier:    row.WageMultiplier,
			LastWageAdjustDay: row.LastWageAdjustDay,
			PricePremium:      row.PricePremium,
			LandTokens:        row.LandTokens,
			SharePrice:        row.SharePrice,
			TotalShares:       row.TotalShares,
			IsPlayerFounded:   row.IsPlayerFounded != 0,
			IsBankrupt:        row.IsBankrupt != 0,
			Stage:             econ.CompanyStage(row.Stage),
			AgeDays:           row.AgeDays,
			CreditScore:       row.CreditScore,
			LastProfit:        row.LastProfit,
		}
		blobs := []struct {
			raw string
			dst any
		}{
			{row.LinesJSON, &c.Lines},
			{row.RawInvJSON, &c.RawInv},
			{row.FinishedInvJSON, &c.FinishedInv},
			{row.ShareholdersJSON, &c.Shareholders},
			{row.HistoryJSON, &c.History},
		}
		for _, b := range blobs {
			if err := json.Unmarshal([]byte(b.raw), b.dst); err != nil {
				return nil, fmt.Errorf("company %d blob: %w", row.ID, err)
			}
		}
		companies = append(companies, c)
	}
	return companies, nil
}

// LoadBank restores loans, deposits, reserves, and the policy rate into an
// already-constructed bank.
func (db *DB) LoadBank(b *bank.Bank) error {
	var loans []loanRow
	if err := db.conn.Select(&loans, "SELECT * FROM loans"); err != nil {
		return err
	}
	for _, row := range loans {
		b.Loans[row.ID] = &bank.Loan{
			ID: row.ID, Borrower: econ.CompanyID(row.Borrower),
			Principal: row.Principal, Rate: row.Rate,
			IssuedDay: row.IssuedDay, DueDay: row.DueDay,
		}
	}

	var deposits []depositRow
	if err := db.conn.Select(&deposits, "SELECT * FROM deposits"); err != nil {
		return err
	}
	for _, row := range deposits {
		b.Deposits[row.ID] = &bank.Deposit{ID: row.ID, Owner: row.Owner, Amount: row.Amount, Rate: row.Rate}
	}

	if v, err := db.GetMeta("bank_reserves"); err == nil {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			b.Reserves = f
		}
	}
	if v, err := db.GetMeta("policy_rate"); err == nil {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			b.PolicyRate = f
		}
	}
	return nil
}

// RestoreWorldState loads a saved run into a fresh simulation, replacing
// its genesis population. Returns an error when no save exists.
func (db *DB) RestoreWorldState(sim *engine.Simulation) error {
	tickStr, err := db.GetMeta("last_tick")
	if err != nil {
		return errors.New("no saved world")
	}
	lastTick, err := strconv.ParseUint(tickStr, 10, 64)
	if err != nil {
		return fmt.Errorf("corrupt last_tick: %w", err)
	}

	w := sim.World
	if w.Residents, err = db.LoadResidents(); err != nil {
		return fmt.Errorf("load residents: %w", err)
	}
	if w.Companies, err = db.LoadCompanies(); err != nil {
		return fmt.Errorf("load companies: %w", err)
	}
	if err := db.LoadBank(w.Bank); err != nil {
		return fmt.Errorf("load bank: %w", err)
	}

	if v, err := db.GetMeta("treasury"); err == nil {
		if err := json.Unmarshal([]byte(v), w.Treasury); err != nil {
			return fmt.Errorf("corrupt treasury: %w", err)
		}
	}
	if v, err := db.GetMeta("stats"); err == nil {
		if err := json.Unmarshal([]byte(v), &w.Stats); err != nil {
			return fmt.Errorf("corrupt stats: %w", err)
		}
	}

	// Reissue ids above everything restored.
	var maxRes econ.ResidentID
	for _, r := range w.Residents {
		if r.ID > maxRes {
			maxRes = r.ID
		}
	}
	var maxCo econ.CompanyID
	for _, c := range w.Companies {
		if c.ID > maxCo {
			maxCo = c.ID
		}
	}
	w.Spawner.SetNextIDs(maxRes+1, maxCo+1)

	w.Desk.Restore(w.Residents)
	sim.SetTotalTicks(lastTick)
	w.Reindex()
	w.ResetBaselines()

	slog.Info("world state restored",
		"tick", lastTick,
		"residents", len(w.Residents),
		"companies", len(w.Companies),
		"loans", len(w.Bank.Loans),
	)
	return nil
}
