// Package api provides the HTTP API for the city economy.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token (player/admin control plane).
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/talgya/mini-economy/internal/bank"
	"github.com/talgya/mini-economy/internal/econ"
	"github.com/talgya/mini-economy/internal/engine"
	"github.com/talgya/mini-economy/internal/market"
	"github.com/talgya/mini-economy/internal/narrator"
	"github.com/talgya/mini-economy/internal/persistence"
)

// Server serves the economy state over HTTP.
type Server struct {
	Sim      *engine.Simulation
	Eng      *engine.Engine
	Narrator *narrator.Client
	DB       *persistence.DB
	Port     int
	AdminKey string // Bearer token for POST endpoints. Empty = POST disabled.

	// Cached gazette (regenerated at most once per sim-day).
	gazetteMu     sync.Mutex
	cachedGazette string
	gazetteDay    uint64
	hasGazette    bool
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	// Rate limiters for narrator-consuming endpoints.
	gazetteLimiter := NewRateLimiter(30, time.Hour)
	advisorLimiter := NewRateLimiter(10, time.Hour)

	mux := http.NewServeMux()

	// Public endpoints (GET, read-only — anyone can watch the economy).
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/snapshot", s.handleSnapshot)
	mux.HandleFunc("/api/v1/companies", s.handleCompanies)
	mux.HandleFunc("/api/v1/residents", s.handleResidents)
	mux.HandleFunc("/api/v1/resident/", s.handleResidentDetail)
	mux.HandleFunc("/api/v1/market", s.handleMarketRoutes)
	mux.HandleFunc("/api/v1/market/", s.handleMarketRoutes)
	mux.HandleFunc("/api/v1/events", s.handleEvents)
	mux.HandleFunc("/api/v1/stats", s.handleStats)
	mux.HandleFunc("/api/v1/stats/history", s.handleStatsHistory)
	mux.HandleFunc("/api/v1/bank", s.handleBank)
	mux.HandleFunc("/api/v1/treasury", s.handleTreasury)
	mux.HandleFunc("/api/v1/gazette", RateLimitMiddleware(gazetteLimiter, s.handleGazette))
	mux.HandleFunc("/api/v1/advisor", RateLimitMiddleware(advisorLimiter, s.handleAdvisor))

	// Mixed endpoints (GET public, POST requires bearer token).
	mux.HandleFunc("/api/v1/company", s.adminOnly(s.handleCompanyCreate))
	mux.HandleFunc("/api/v1/company/", s.adminOnly(s.handleCompanyRoutes))
	mux.HandleFunc("/api/v1/speed", s.adminOnly(s.handleSpeed))
	mux.HandleFunc("/api/v1/policy", s.adminOnly(s.handlePolicy))

	// Control-plane endpoints (POST only, require bearer token).
	mux.HandleFunc("/api/v1/order", s.adminOnly(s.handleOrder))
	mux.HandleFunc("/api/v1/order/cancel", s.adminOnly(s.handleOrderCancel))
	mux.HandleFunc("/api/v1/stock", s.adminOnly(s.handleStock))
	mux.HandleFunc("/api/v1/futures", s.adminOnly(s.handleFutures))
	mux.HandleFunc("/api/v1/futures/close", s.adminOnly(s.handleFuturesClose))
	mux.HandleFunc("/api/v1/intervention", s.adminOnly(s.handleIntervention))
	mux.HandleFunc("/api/v1/save", s.adminOnly(s.handleSave))

	addr := fmt.Sprintf(":%d", s.Port)
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "")

	go func() {
		handler := corsMiddleware(mux)
		if err := http.ListenAndServe(addr, handler); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS env var to a comma-separated list of allowed origins.
// Localhost dev servers are always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:4173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth on POST requests.
// GET requests pass through (for endpoints that support both GET and POST).
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if s.AdminKey == "" {
				http.Error(w, "admin endpoints disabled (no ECONSIM_ADMIN_KEY set)", http.StatusForbidden)
				return
			}

			if !s.checkBearerToken(r) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}

		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	var status map[string]any
	s.Sim.View(func(world *engine.World) {
		status = map[string]any{
			"name":          "Gold Standard City",
			"tick":          s.Sim.TotalTicks(),
			"day":           s.Sim.Day(),
			"sim_time":      engine.SimTime(s.Sim.TotalTicks(), s.Sim.Cad),
			"speed":         s.Eng.Speed,
			"running":       s.Eng.Running,
			"halted":        s.Sim.Halted(),
			"population":    world.Stats.Population,
			"unemployment":  world.Stats.Unemployment,
			"cpi":           world.Stats.CPI,
			"inflation":     world.Stats.Inflation,
			"money_supply":  world.Stats.MoneySupply,
			"policy_rate":   world.Bank.PolicyRate,
			"fiscal_stance": engine.FiscalName(world.Treasury.Status),
			"companies":     len(world.Companies),
		}
		if err := s.Sim.HaltReason(); err != nil {
			status["halt_reason"] = err.Error()
		}
	})
	writeJSON(w, status)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sim.Snapshot())
}

func (s *Server) handleCompanies(w http.ResponseWriter, r *http.Request) {
	type companySummary struct {
		ID          econ.CompanyID `json:"id"`
		Name        string         `json:"name"`
		Good        string         `json:"good"`
		Stage       string         `json:"stage"`
		Employees   int            `json:"employees"`
		WageOffer   float64        `json:"wage_offer"`
		SharePrice  float64        `json:"share_price"`
		LastProfit  float64        `json:"last_profit"`
		CreditScore float64        `json:"credit_score"`
		Bankrupt    bool           `json:"bankrupt"`
	}

	var summaries []companySummary
	s.Sim.View(func(world *engine.World) {
		summaries = make([]companySummary, 0, len(world.Companies))
		for _, c := range world.Companies {
			summaries = append(summaries, companySummary{
				ID:          c.ID,
				Name:        c.Name,
				Good:        econ.GoodName(c.PrimaryGood()),
				Stage:       econ.StageName(c.Stage),
				Employees:   world.Idx().Headcount(c.ID),
				WageOffer:   c.WageOffer,
				SharePrice:  c.SharePrice,
				LastProfit:  c.LastProfit,
				CreditScore: c.CreditScore,
				Bankrupt:    c.IsBankrupt,
			})
		}
	})
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].ID < summaries[j].ID })
	writeJSON(w, summaries)
}

// handleCompanyCreate founds a new company on behalf of a resident.
// POST /api/v1/company {founder_id, name, good, capital}
func (s *Server) handleCompanyCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		FounderID uint64  `json:"founder_id"`
		Name      string  `json:"name"`
		Good      string  `json:"good"`
		Capital   float64 `json:"capital"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		http.Error(w, "name required", http.StatusBadRequest)
		return
	}

	id, err := s.Sim.CreateCompany(econ.ResidentID(req.FounderID), req.Name, req.Good, req.Capital)
	if err != nil {
		writeIntentError(w, err)
		return
	}
	writeJSON(w, map[string]any{"id": id, "name": req.Name})
}

// handleCompanyRoutes dispatches /api/v1/company/{id} and /api/v1/company/{id}/dividend.
func (s *Server) handleCompanyRoutes(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/api/v1/company/"), "/")
	id64, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		http.Error(w, "invalid company id", http.StatusBadRequest)
		return
	}
	id := econ.CompanyID(id64)

	if len(parts) > 1 && parts[1] == "dividend" {
		s.handleDividend(w, r, id)
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.handleCompanyDetail(w, id)
	case http.MethodPost:
		s.handleCompanyUpdate(w, r, id)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleCompanyDetail(w http.ResponseWriter, id econ.CompanyID) {
	var detail map[string]any
	s.Sim.View(func(world *engine.World) {
		c := world.CompanyByID(id)
		if c == nil {
			return
		}
		detail = companyDetail(world, c)
	})
	if detail == nil {
		http.Error(w, "company not found", http.StatusNotFound)
		return
	}
	writeJSON(w, detail)
}

func companyDetail(world *engine.World, c *econ.Company) map[string]any {
	type holding struct {
		HolderID econ.ResidentID `json:"holder_id"`
		Shares   int             `json:"shares"`
	}
	holders := make([]holding, 0, len(c.Shareholders))
	for _, sh := range c.Shareholders {
		holders = append(holders, holding{HolderID: sh.HolderID, Shares: sh.Count})
	}

	type lineView struct {
		Good        string  `json:"good"`
		Efficiency  float64 `json:"efficiency"`
		MaxCapacity float64 `json:"max_capacity"`
	}
	lines := make([]lineView, 0, len(c.Lines))
	for _, l := range c.Lines {
		lines = append(lines, lineView{
			Good:        econ.GoodName(l.Good),
			Efficiency:  l.Efficiency,
			MaxCapacity: l.MaxCapacity,
		})
	}

	// Goods on hand, both pools, skipping zero rows.
	inventory := map[string]float64{}
	for g := econ.GoodType(0); g < econ.NumGoods; g++ {
		if q := c.RawInv.Qty(g) + c.FinishedInv.Qty(g); q > 0 {
			inventory[econ.GoodName(g)] = q
		}
	}

	history := c.History
	if len(history) > 90 {
		history = history[len(history)-90:]
	}

	return map[string]any{
		"id":               c.ID,
		"name":             c.Name,
		"good":             econ.GoodName(c.PrimaryGood()),
		"stage":            econ.StageName(c.Stage),
		"age_days":         c.AgeDays,
		"cash":             c.Cash,
		"book_value":       c.BookValue(),
		"debt":             world.Bank.DebtOf(c.ID),
		"credit_score":     c.CreditScore,
		"last_profit":      c.LastProfit,
		"employees":        world.Idx().Headcount(c.ID),
		"target_employees": c.TargetEmployees,
		"wage_offer":       c.WageOffer,
		"price_premium":    c.PricePremium,
		"land_tokens":      c.LandTokens,
		"share_price":      c.SharePrice,
		"total_shares":     c.TotalShares,
		"shareholders":     holders,
		"lines":            lines,
		"inventory":        inventory,
		"bankrupt":         c.IsBankrupt,
		"history":          history,
	}
}

// handleCompanyUpdate patches player-controllable knobs.
// POST /api/v1/company/{id} {target_employees?, wage_multiplier?, price_premium?}
func (s *Server) handleCompanyUpdate(w http.ResponseWriter, r *http.Request, id econ.CompanyID) {
	var patch engine.CompanyPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	if err := s.Sim.UpdateCompany(id, patch); err != nil {
		writeIntentError(w, err)
		return
	}
	writeJSON(w, map[string]any{"success": true})
}

// handleDividend pays out cash per share to all shareholders.
// POST /api/v1/company/{id}/dividend {per_share}
func (s *Server) handleDividend(w http.ResponseWriter, r *http.Request, id econ.CompanyID) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		PerShare float64 `json:"per_share"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.PerShare <= 0 {
		http.Error(w, "per_share must be positive", http.StatusBadRequest)
		return
	}

	if err := s.Sim.PayDividend(id, req.PerShare); err != nil {
		writeIntentError(w, err)
		return
	}
	writeJSON(w, map[string]any{"success": true})
}

func (s *Server) handleResidents(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}

	type residentSummary struct {
		ID       econ.ResidentID `json:"id"`
		Name     string          `json:"name"`
		Job      string          `json:"job"`
		Standard string          `json:"living_standard"`
		Cash     float64         `json:"cash"`
		Wealth   float64         `json:"wealth"`
	}

	var summaries []residentSummary
	s.Sim.View(func(world *engine.World) {
		residents := world.Residents
		if len(residents) > limit {
			residents = residents[:limit]
		}

		summaries = make([]residentSummary, 0, len(residents))
		for _, res := range residents {
			summaries = append(summaries, residentSummary{
				ID:       res.ID,
				Name:     res.Name,
				Job:      econ.JobName(res.Job),
				Standard: econ.StandardName(res.Standard),
				Cash:     res.Cash,
				Wealth:   res.Wealth,
			})
		}
	})
	writeJSON(w, summaries)
}

func (s *Server) handleResidentDetail(w http.ResponseWriter, r *http.Request) {
	idStr := strings.TrimPrefix(r.URL.Path, "/api/v1/resident/")
	id64, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		http.Error(w, "invalid resident id", http.StatusBadRequest)
		return
	}

	var detail map[string]any
	s.Sim.View(func(world *engine.World) {
		res := world.ResidentByID(econ.ResidentID(id64))
		if res == nil {
			return
		}

		inventory := map[string]float64{}
		for g := econ.GoodType(0); g < econ.NumGoods; g++ {
			if q := res.Inventory.Qty(g); q > 0 {
				inventory[econ.GoodName(g)] = q
			}
		}
		portfolio := make(map[econ.CompanyID]int, len(res.Portfolio))
		for cid, n := range res.Portfolio {
			portfolio[cid] = n
		}

		detail = map[string]any{
			"id":              res.ID,
			"name":            res.Name,
			"job":             econ.JobName(res.Job),
			"living_standard": econ.StandardName(res.Standard),
			"cash":            res.Cash,
			"wealth":          res.Wealth,
			"intelligence":    res.Intelligence,
			"experience_days": res.Experience,
			"wage_daily":      res.WageDaily,
			"inventory":       inventory,
			"portfolio":       portfolio,
			"futures":         append([]*econ.FuturesPosition(nil), res.Futures...),
		}
		if res.EmployerID != nil {
			detail["employer_id"] = *res.EmployerID
			if c := world.CompanyByID(*res.EmployerID); c != nil {
				detail["employer"] = c.Name
			}
		}
	})
	if detail == nil {
		http.Error(w, "resident not found", http.StatusNotFound)
		return
	}
	writeJSON(w, detail)
}

// handleMarketRoutes dispatches between the ticker (GET /api/v1/market)
// and a single book (GET /api/v1/market/{good}).
func (s *Server) handleMarketRoutes(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/market")
	if path == "" || path == "/" {
		s.handleTicker(w, r)
		return
	}

	goodName := strings.Trim(path, "/")
	view, err := s.Sim.BookSnapshot(goodName)
	if err != nil {
		http.Error(w, "unknown good", http.StatusNotFound)
		return
	}
	writeJSON(w, view)
}

// handleTicker returns last price and resting depth for every good.
func (s *Server) handleTicker(w http.ResponseWriter, r *http.Request) {
	type tickerEntry struct {
		Good      string  `json:"good"`
		LastPrice float64 `json:"last_price"`
		BidDepth  float64 `json:"bid_depth"`
		AskDepth  float64 `json:"ask_depth"`
	}

	entries := make([]tickerEntry, 0, econ.NumGoods)
	s.Sim.View(func(world *engine.World) {
		for g := econ.GoodType(0); g < econ.NumGoods; g++ {
			view := world.Market.Snapshot(g)
			var bidDepth, askDepth float64
			for _, lv := range view.Bids {
				bidDepth += lv.Qty
			}
			for _, lv := range view.Asks {
				askDepth += lv.Qty
			}
			entries = append(entries, tickerEntry{
				Good:      view.Good,
				LastPrice: view.LastPrice,
				BidDepth:  bidDepth,
				AskDepth:  askDepth,
			})
		}
	})
	writeJSON(w, entries)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	var page []engine.Event
	s.Sim.View(func(world *engine.World) {
		events := world.Events

		// Optional category filter (labor, market, shock, policy, ...).
		if cat := r.URL.Query().Get("category"); cat != "" {
			var filtered []engine.Event
			for _, e := range events {
				if e.Category == cat {
					filtered = append(filtered, e)
				}
			}
			events = filtered
		}

		start := 0
		if len(events) > limit {
			start = len(events) - limit
		}
		page = append(page, events[start:]...)
	})
	writeJSON(w, page)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	var stats engine.Stats
	s.Sim.View(func(world *engine.World) { stats = world.Stats })
	writeJSON(w, stats)
}

func (s *Server) handleStatsHistory(w http.ResponseWriter, r *http.Request) {
	var history []engine.Stats
	s.Sim.View(func(world *engine.World) {
		history = append(history, world.StatsHistory...)
	})
	writeJSON(w, history)
}

func (s *Server) handleBank(w http.ResponseWriter, r *http.Request) {
	type loanView struct {
		ID        string         `json:"id"`
		Borrower  econ.CompanyID `json:"borrower"`
		Principal float64        `json:"principal"`
		Rate      float64        `json:"rate"`
		DueDay    uint64         `json:"due_day"`
	}

	var out map[string]any
	s.Sim.View(func(world *engine.World) {
		b := world.Bank
		loans := make([]loanView, 0, len(b.Loans))
		for id, l := range b.Loans {
			loans = append(loans, loanView{
				ID:        id,
				Borrower:  l.Borrower,
				Principal: l.Principal,
				Rate:      l.Rate,
				DueDay:    l.DueDay,
			})
		}
		sort.Slice(loans, func(i, j int) bool { return loans[i].ID < loans[j].ID })

		out = map[string]any{
			"reserves":      b.Reserves,
			"policy_rate":   b.PolicyRate,
			"capital_ratio": b.CapitalRatio(),
			"credit_crunch": b.InCreditCrunch(),
			"total_loans":   b.TotalLoans(),
			"loans":         loans,
			"deposits":      len(b.Deposits),
			"rate_history":  append([]bank.RateSnapshot(nil), b.History...),
		}
	})
	writeJSON(w, out)
}

func (s *Server) handleTreasury(w http.ResponseWriter, r *http.Request) {
	var out map[string]any
	s.Sim.View(func(world *engine.World) {
		t := world.Treasury
		out = map[string]any{
			"cash":           t.Cash,
			"daily_income":   t.DailyIncome,
			"daily_expense":  t.DailyExpense,
			"fiscal_stance":  engine.FiscalName(t.Status),
			"taxes":          t.Taxes,
			"hoarding_ratio": s.Sim.HoardingRatio(),
		}
	})
	writeJSON(w, out)
}

// handleGazette returns a narrated summary of the day's economy.
// Regenerated at most once per sim-day; cached between calls.
func (s *Server) handleGazette(w http.ResponseWriter, r *http.Request) {
	s.gazetteMu.Lock()
	defer s.gazetteMu.Unlock()

	var day uint64
	s.Sim.View(func(*engine.World) { day = s.Sim.Day() })
	if s.hasGazette && s.gazetteDay == day {
		writeJSON(w, map[string]any{"day": day, "gazette": s.cachedGazette, "cached": true})
		return
	}

	if s.Narrator == nil || !s.Narrator.Enabled() {
		http.Error(w, "narrator not available", http.StatusServiceUnavailable)
		return
	}

	text, err := narrator.WriteGazette(s.Narrator, s.Sim.Snapshot())
	if err != nil {
		slog.Error("gazette generation failed", "error", err)
		http.Error(w, "gazette generation failed", http.StatusInternalServerError)
		return
	}

	s.cachedGazette = text
	s.gazetteDay = day
	s.hasGazette = true
	writeJSON(w, map[string]any{"day": day, "gazette": text, "cached": false})
}

// handleAdvisor answers a free-form question about the economy.
// POST /api/v1/advisor {question}
func (s *Server) handleAdvisor(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.Narrator == nil || !s.Narrator.Enabled() {
		http.Error(w, "narrator not available", http.StatusServiceUnavailable)
		return
	}

	var req struct {
		Question string `json:"question"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.Question == "" || len(req.Question) > 500 {
		http.Error(w, "question must be 1-500 characters", http.StatusBadRequest)
		return
	}

	answer, err := narrator.Advise(s.Narrator, req.Question, s.Sim.Snapshot())
	if err != nil {
		slog.Error("advisor failed", "error", err)
		http.Error(w, "advisor failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]string{"answer": answer})
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		var req struct {
			Speed float64 `json:"speed"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if req.Speed < 0 || req.Speed > 1000 {
			http.Error(w, "speed must be 0-1000", http.StatusBadRequest)
			return
		}
		s.Eng.Speed = req.Speed
		slog.Info("speed changed", "speed", req.Speed)
	}

	writeJSON(w, map[string]float64{"speed": s.Eng.Speed})
}

// handlePolicy reads or sets the policy override. POST with an empty
// body field restores automatic policy for that knob; POST with
// "clear": true drops the whole override.
func (s *Server) handlePolicy(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		var out map[string]any
		s.Sim.View(func(world *engine.World) {
			out = map[string]any{
				"override":    world.Override,
				"policy_rate": world.Bank.PolicyRate,
			}
		})
		writeJSON(w, out)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Clear bool `json:"clear"`
		engine.PolicyOverride
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	if req.Clear {
		s.Sim.SetPolicyOverride(nil)
		slog.Info("policy override cleared")
		writeJSON(w, map[string]any{"success": true, "cleared": true})
		return
	}

	if req.InterestRate != nil && (*req.InterestRate < 0 || *req.InterestRate > 1) {
		http.Error(w, "interest_rate must be 0-1", http.StatusBadRequest)
		return
	}
	if req.MinWage != nil && *req.MinWage < 0 {
		http.Error(w, "min_wage must be non-negative", http.StatusBadRequest)
		return
	}

	ov := req.PolicyOverride
	s.Sim.SetPolicyOverride(&ov)
	slog.Info("policy override set")
	writeJSON(w, map[string]any{"success": true})
}

// handleOrder submits a limit order to a commodity book.
// POST /api/v1/order {trader, good, side, price, qty}
func (s *Server) handleOrder(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Trader string  `json:"trader"` // "r:{id}" or "c:{id}"
		Good   string  `json:"good"`
		Side   string  `json:"side"` // "bid" or "ask"
		Price  float64 `json:"price"`
		Qty    float64 `json:"qty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	var side market.Side
	switch req.Side {
	case "bid":
		side = market.Bid
	case "ask":
		side = market.Ask
	default:
		http.Error(w, "side must be bid or ask", http.StatusBadRequest)
		return
	}
	if req.Price <= 0 || req.Qty <= 0 {
		http.Error(w, "price and qty must be positive", http.StatusBadRequest)
		return
	}

	id, err := s.Sim.SubmitOrder(req.Trader, req.Good, side, req.Price, req.Qty)
	if err != nil {
		writeIntentError(w, err)
		return
	}
	writeJSON(w, map[string]string{"order_id": id})
}

// handleOrderCancel pulls a resting order, returning its escrow.
// POST /api/v1/order/cancel {order_id}
func (s *Server) handleOrderCancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		OrderID string `json:"order_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	s.Sim.CancelOrder(req.OrderID)
	writeJSON(w, map[string]any{"success": true})
}

// handleStock trades shares between a resident and a company's float.
// POST /api/v1/stock {resident_id, company_id, action, count}
func (s *Server) handleStock(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		ResidentID uint64 `json:"resident_id"`
		CompanyID  uint64 `json:"company_id"`
		Action     string `json:"action"` // buy, sell, short, cover
		Count      int    `json:"count"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.Count <= 0 {
		http.Error(w, "count must be positive", http.StatusBadRequest)
		return
	}

	rid := econ.ResidentID(req.ResidentID)
	cid := econ.CompanyID(req.CompanyID)

	var err error
	switch req.Action {
	case "buy":
		err = s.Sim.BuyStock(rid, cid, req.Count)
	case "sell":
		err = s.Sim.SellStock(rid, cid, req.Count)
	case "short":
		err = s.Sim.ShortStock(rid, cid, req.Count)
	case "cover":
		err = s.Sim.CoverStock(rid, cid, req.Count)
	default:
		http.Error(w, "action must be buy, sell, short, or cover", http.StatusBadRequest)
		return
	}
	if err != nil {
		writeIntentError(w, err)
		return
	}
	writeJSON(w, map[string]any{"success": true})
}

// handleFutures opens a leveraged futures position on a raw resource.
// POST /api/v1/futures {resident_id, good, side}
func (s *Server) handleFutures(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		ResidentID uint64 `json:"resident_id"`
		Good       string `json:"good"`
		Side       string `json:"side"` // "long" or "short"
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	var side econ.FutureSide
	switch req.Side {
	case "long":
		side = econ.FutureLong
	case "short":
		side = econ.FutureShort
	default:
		http.Error(w, "side must be long or short", http.StatusBadRequest)
		return
	}

	id, err := s.Sim.OpenFuture(econ.ResidentID(req.ResidentID), req.Good, side)
	if err != nil {
		writeIntentError(w, err)
		return
	}
	writeJSON(w, map[string]string{"position_id": id})
}

// handleFuturesClose settles a position early at the current mark.
// POST /api/v1/futures/close {position_id, good}
func (s *Server) handleFuturesClose(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		PositionID string `json:"position_id"`
		Good       string `json:"good"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	g, ok := econ.GoodFromName(req.Good)
	if !ok {
		http.Error(w, "unknown good", http.StatusNotFound)
		return
	}

	payout, err := s.Sim.CloseFuture(req.PositionID, g)
	if err != nil {
		writeIntentError(w, err)
		return
	}
	writeJSON(w, map[string]any{"payout": payout})
}

// handleIntervention injects external circumstances into the world.
func (s *Server) handleIntervention(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Type            string  `json:"type"`
		Description     string  `json:"description,omitempty"`
		Category        string  `json:"category,omitempty"`
		Good            string  `json:"good,omitempty"`
		ModifierPercent float64 `json:"modifier_percent,omitempty"`
		Impact          string  `json:"impact,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	switch req.Type {
	case "announce":
		if req.Description == "" {
			http.Error(w, "description required", http.StatusBadRequest)
			return
		}
		cat := req.Category
		if cat == "" {
			cat = "intervention"
		}
		s.Sim.Announce(req.Description, cat)
		writeJSON(w, map[string]any{"success": true, "details": "event announced"})

	case "shock":
		impact := engine.ImpactProduction
		if req.Impact == "wage" {
			impact = engine.ImpactWage
		}
		ev := &engine.ExternalEvent{
			TargetGood:      req.Good,
			ModifierPercent: req.ModifierPercent,
			Impact:          impact,
			Description:     req.Description,
		}
		if err := s.Sim.ApplyExternalEvent(ev); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeJSON(w, map[string]any{"success": true, "details": "shock applied"})

	default:
		http.Error(w, "unknown intervention type", http.StatusBadRequest)
	}
}

// handleSave persists the full world state to the database.
func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}

	if err := s.DB.SaveWorldState(s.Sim); err != nil {
		slog.Error("save failed", "error", err)
		http.Error(w, "save failed", http.StatusInternalServerError)
		return
	}
	var tick uint64
	s.Sim.View(func(*engine.World) { tick = s.Sim.TotalTicks() })
	writeJSON(w, map[string]any{
		"tick":    tick,
		"message": "world state saved",
	})
}

// writeIntentError maps intent errors onto HTTP status codes.
func writeIntentError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrUnknownResident),
		errors.Is(err, engine.ErrUnknownCompany),
		errors.Is(err, engine.ErrUnknownGood):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, engine.ErrInsufficientCash),
		errors.Is(err, engine.ErrNoFloat),
		errors.Is(err, engine.ErrNoPosition):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusBadRequest)
	}
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
