// Package persistence provides SQLite-based world state storage.
package persistence

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/mini-economy/internal/bank"
	"github.com/talgya/mini-economy/internal/econ"
	"github.com/talgya/mini-economy/internal/engine"
)

// DB wraps a SQLite connection for world state persistence.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS residents (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		cash REAL NOT NULL,
		wealth REAL NOT NULL,
		job INTEGER NOT NULL,
		employer_id INTEGER,
		intelligence REAL NOT NULL,
		standard INTEGER NOT NULL,
		experience INTEGER NOT NULL,
		wage_daily REAL NOT NULL,
		inventory_json TEXT NOT NULL,
		portfolio_json TEXT NOT NULL,
		futures_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS companies (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		cash REAL NOT NULL,
		employees INTEGER NOT NULL,
		target_employees INTEGER NOT NULL,
		wage_offer REAL NOT NULL,
		wage_multiplier REAL NOT NULL,
		last_wage_adjust_day INTEGER NOT NULL,
		price_premium REAL NOT NULL,
		land_tokens INTEGER NOT NULL,
		share_price REAL NOT NULL,
		total_shares INTEGER NOT NULL,
		is_player_founded INTEGER NOT NULL,
		is_bankrupt INTEGER NOT NULL,
		stage INTEGER NOT NULL,
		age_days INTEGER NOT NULL,
		credit_score REAL NOT NULL,
		last_profit REAL NOT NULL,
		lines_json TEXT NOT NULL,
		raw_inventory_json TEXT NOT NULL,
		finished_inventory_json TEXT NOT NULL,
		shareholders_json TEXT NOT NULL,
		history_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS loans (
		id TEXT PRIMARY KEY,
		borrower INTEGER NOT NULL,
		principal REAL NOT NULL,
		rate REAL NOT NULL,
		issued_day INTEGER NOT NULL,
		due_day INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS deposits (
		id TEXT PRIMARY KEY,
		owner TEXT NOT NULL,
		amount REAL NOT NULL,
		rate REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tick INTEGER NOT NULL,
		description TEXT NOT NULL,
		category TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS world_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_tick ON events(tick);
	CREATE INDEX IF NOT EXISTS idx_residents_employer ON residents(employer_id);
	CREATE INDEX IF NOT EXISTS idx_loans_borrower ON loans(borrower);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// SaveResidents writes all residents to the database (full replace).
func (db *DB) SaveResidents(residents []*econ.Resident) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM residents"); err != nil {
		return err
	}

	stmt, err := tx.Preparex(`INSERT INTO residents
		(id, name, cash, wealth, job, employer_id, intelligence, standard,
		 experience, wage_daily, inventory_json, portfolio_json, futures_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range residents {
		invJSON, _ := json.Marshal(r.Inventory)
		portJSON, _ := json.Marshal(r.Portfolio)
		futJSON, _ := json.Marshal(r.Futures)

		var employer any
		if r.EmployerID != nil {
			employer = uint64(*r.EmployerID)
		}

		_, err := stmt.Exec(
			r.ID, r.Name, r.Cash, r.Wealth, r.Job, employer,
			r.Intelligence, r.Standard, r.Experience, r.WageDaily,
			string(invJSON), string(portJSON), string(futJSON),
		)
		if err != nil {
			return fmt.Errorf("insert resident %d: %w", r.ID, err)
		}
	}

	return tx.Commit()
}

// SaveCompanies writes all companies to the database (full replace).
func (db *DB) SaveCompanies(companies []*econ.Company) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM companies"); err != nil {
		return err
	}

	stmt, err := tx.Preparex(`INSERT INTO companies
		(id, name, cash, employees, target_employees, wage_offer, wage_multiplier,
		 last_wage_adjust_day, price_premium, land_tokens, share_price, total_shares,
		 is_player_founded, is_bankrupt, stage, age_days, credit_score, last_profit,
		 lines_json, raw_inventory_json, finished_inventory_json, shareholders_json, history_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range companies {
		linesJSON, _ := json.Marshal(c.Lines)
		rawJSON, _ := json.Marshal(c.RawInv)
		finJSON, _ := json.Marshal(c.FinishedInv)
		shJSON, _ := json.Marshal(c.Shareholders)
		histJSON, _ := json.Marshal(c.History)

		_, err := stmt.Exec(
			c.ID, c.Name, c.Cash, c.Employees, c.TargetEmployees,
			c.WageOffer, c.WageMultiplier, c.LastWageAdjustDay, c.PricePremium,
			c.LandTokens, c.SharePrice, c.TotalShares,
			boolInt(c.IsPlayerFounded), boolInt(c.IsBankrupt),
			c.Stage, c.AgeDays, c.CreditScore, c.LastProfit,
			string(linesJSON), string(rawJSON), string(finJSON), string(shJSON), string(histJSON),
		)
		if err != nil {
			return fmt.Errorf("insert company %d: %w", c.ID, err)
		}
	}

	return tx.Commit()
}

// SaveBank writes loans and deposits (full replace).
func (db *DB) SaveBank(b *bank.Bank) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM loans"); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM deposits"); err != nil {
		return err
	}

	for _, l := range b.Loans {
		_, err := tx.Exec(
			"INSERT INTO loans (id, borrower, principal, rate, issued_day, due_day) VALUES (?, ?, ?, ?, ?, ?)",
			l.ID, l.Borrower, l.Principal, l.Rate, l.IssuedDay, l.DueDay,
		)
		if err != nil {
			return fmt.Errorf("insert loan %s: %w", l.ID, err)
		}
	}
	for _, d := range b.Deposits {
		_, err := tx.Exec(
			"INSERT INTO deposits (id, owner, amount, rate) VALUES (?, ?, ?, ?)",
			d.ID, d.Owner, d.Amount, d.Rate,
		)
		if err != nil {
			return fmt.Errorf("insert deposit %s: %w", d.ID, err)
		}
	}

	return tx.Commit()
}

// SaveEvents appends events to the database.
func (db *DB) SaveEvents(events []engine.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, e := range events {
		_, err := tx.Exec(
			"INSERT INTO events (tick, description, category) VALUES (?, ?, ?)",
			e.Tick, e.Description, e.Category,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// SaveMeta stores a key-value pair in world metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO world_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM world_meta WHERE key = ?", key)
	return value, err
}

// SaveWorldState performs a full save of all world state. It holds the
// simulation's read boundary for the duration, so it is safe to call
// while the tick loop is running.
func (db *DB) SaveWorldState(sim *engine.Simulation) error {
	var err error
	sim.View(func(w *engine.World) { err = db.saveWorld(sim, w) })
	return err
}

func (db *DB) saveWorld(sim *engine.Simulation, w *engine.World) error {
	slog.Info("saving world state", "residents", len(w.Residents), "companies", len(w.Companies))

	if err := db.SaveResidents(w.Residents); err != nil {
		return fmt.Errorf("save residents: %w", err)
	}
	if err := db.SaveCompanies(w.Companies); err != nil {
		return fmt.Errorf("save companies: %w", err)
	}
	if err := db.SaveBank(w.Bank); err != nil {
		return fmt.Errorf("save bank: %w", err)
	}
	if err := db.SaveEvents(w.Events); err != nil {
		return fmt.Errorf("save events: %w", err)
	}

	treasuryJSON, _ := json.Marshal(w.Treasury)
	statsJSON, _ := json.Marshal(w.Stats)
	meta := map[string]string{
		"last_tick":     strconv.FormatUint(sim.TotalTicks(), 10),
		"treasury":      string(treasuryJSON),
		"stats":         string(statsJSON),
		"bank_reserves": strconv.FormatFloat(w.Bank.Reserves, 'g', -1, 64),
		"policy_rate":   strconv.FormatFloat(w.Bank.PolicyRate, 'g', -1, 64),
	}
	for k, v := range meta {
		if err := db.SaveMeta(k, v); err != nil {
			return fmt.Errorf("save meta %s: %w", k, err)
		}
	}

	slog.Info("world state saved")
	return nil
}

// RecentEvents returns the most recent N events.
func (db *DB) RecentEvents(limit int) ([]engine.Event, error) {
	var events []engine.Event
	err := db.conn.Select(&events,
		"SELECT tick, description, category FROM events ORDER BY id DESC LIMIT ?",
		limit,
	)
	return events, err
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
