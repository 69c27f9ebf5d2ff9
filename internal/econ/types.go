// Package econ provides the entity data model for the city economy:
// residents, companies, goods, and the fixed-key inventories they trade.
package econ

// ResidentID is a unique identifier for a resident.
type ResidentID uint64

// CompanyID is a unique identifier for a company.
type CompanyID uint64

// GoodType enumerates every tradable good. Raw goods are extracted by
// primary-sector lines; finished goods consume raw inputs per recipe.
type GoodType uint8

const (
	GoodGrain     GoodType = iota // Raw, perishable food staple
	GoodCotton                    // Raw fiber
	GoodHerbs                     // Raw, perishable
	GoodTimber                    // Raw construction material
	GoodIronOre                   // Raw metal input
	GoodCoal                      // Raw fuel
	GoodBread                     // Grain ×2
	GoodClothes                   // Cotton ×2
	GoodMedicine                  // Herbs ×2
	GoodFurniture                 // Timber ×2
	GoodTools                     // IronOre + Coal
)

// NumGoods is the total number of good types.
const NumGoods = 11

var goodNames = [NumGoods]string{
	"grain", "cotton", "herbs", "timber", "iron_ore", "coal",
	"bread", "clothes", "medicine", "furniture", "tools",
}

// GoodName returns the canonical lowercase name for a good.
func GoodName(g GoodType) string {
	if int(g) < len(goodNames) {
		return goodNames[g]
	}
	return "unknown"
}

// GoodFromName resolves a canonical name back to a GoodType.
// Unknown names are rejected rather than silently mapped.
func GoodFromName(name string) (GoodType, bool) {
	for i, n := range goodNames {
		if n == name {
			return GoodType(i), true
		}
	}
	return 0, false
}

// IsRaw reports whether a good is extracted rather than manufactured.
func IsRaw(g GoodType) bool { return g <= GoodCoal }

// Job is a resident's primary economic activity, derived from the good
// their employer's primary line produces.
type Job uint8

const (
	JobUnemployed Job = iota
	JobFarmer
	JobMiner
	JobLumberjack
	JobHerbalist
	JobWorker // finished-goods plants
)

var jobNames = [...]string{"unemployed", "farmer", "miner", "lumberjack", "herbalist", "worker"}

// JobName returns the display name for a job.
func JobName(j Job) string {
	if int(j) < len(jobNames) {
		return jobNames[j]
	}
	return "unknown"
}

// JobForGood maps a company's primary good to the job its employees hold.
func JobForGood(g GoodType) Job {
	switch g {
	case GoodGrain, GoodCotton:
		return JobFarmer
	case GoodIronOre, GoodCoal:
		return JobMiner
	case GoodTimber:
		return JobLumberjack
	case GoodHerbs:
		return JobHerbalist
	default:
		return JobWorker
	}
}

// SkillTier is derived from accumulated experience and scales production.
type SkillTier uint8

const (
	TierNovice SkillTier = iota
	TierSkilled
	TierExpert
)

// TierForExperience maps days worked to a skill tier.
func TierForExperience(days uint32) SkillTier {
	switch {
	case days >= ExpertExperienceDays:
		return TierExpert
	case days >= SkilledExperienceDays:
		return TierSkilled
	default:
		return TierNovice
	}
}

// ProductivityMultiplier returns the output scale for a skill tier.
func ProductivityMultiplier(t SkillTier) float64 {
	switch t {
	case TierExpert:
		return 1.5
	case TierSkilled:
		return 1.2
	default:
		return 1.0
	}
}

// LivingStandard buckets a resident's material situation.
type LivingStandard uint8

const (
	StandardDestitute LivingStandard = iota
	StandardPoor
	StandardModest
	StandardComfortable
	StandardAffluent
)

var standardNames = [...]string{"destitute", "poor", "modest", "comfortable", "affluent"}

// StandardName returns the display name for a living standard.
func StandardName(s LivingStandard) string {
	if int(s) < len(standardNames) {
		return standardNames[s]
	}
	return "unknown"
}

// CompanyStage is a company's lifecycle phase, derived from age and profit trend.
type CompanyStage uint8

const (
	StageStartup CompanyStage = iota
	StageGrowth
	StageMaturity
	StageDecline
)

var stageNames = [...]string{"startup", "growth", "maturity", "decline"}

// StageName returns the display name for a company stage.
func StageName(s CompanyStage) string {
	if int(s) < len(stageNames) {
		return stageNames[s]
	}
	return "unknown"
}

// FutureSide is the direction of a leveraged futures position.
type FutureSide uint8

const (
	FutureLong FutureSide = iota
	FutureShort
)

// Candle is an open-high-low-close-volume summary for one simulated day.
type Candle struct {
	Day    uint64  `json:"day"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// Inventory holds a quantity for every good type. Fixed-size so unknown
// keys cannot appear, and inline in its owner with no heap allocation.
type Inventory [NumGoods]float64

// Qty returns the held quantity of a good.
func (inv *Inventory) Qty(g GoodType) float64 { return inv[g] }

// Add increases the held quantity of a good.
func (inv *Inventory) Add(g GoodType, qty float64) { inv[g] += qty }

// Remove decreases the held quantity, reporting false if insufficient.
func (inv *Inventory) Remove(g GoodType, qty float64) bool {
	if inv[g] < qty {
		return false
	}
	inv[g] -= qty
	return true
}

// Total sums all held quantities.
func (inv *Inventory) Total() float64 {
	sum := 0.0
	for _, q := range inv {
		sum += q
	}
	return sum
}

// FuturesPosition is a leveraged directional bet on a raw resource price.
type FuturesPosition struct {
	ID         string     `json:"id"`
	Resource   GoodType   `json:"resource"`
	Side       FutureSide `json:"side"`
	EntryPrice float64    `json:"entry_price"`
	Amount     float64    `json:"amount"` // contract size in units
	Margin     float64    `json:"margin"` // cash posted at open
	DueDay     uint64     `json:"due_day"`
}

// Resident is a person in the city. Residents are created at world genesis
// and never destroyed; losing a job reverts them to unemployed.
type Resident struct {
	ID           ResidentID     `json:"id"`
	Name         string         `json:"name"`
	Cash         float64        `json:"cash"`
	Wealth       float64        `json:"wealth"` // non-cash net worth estimate
	Job          Job            `json:"job"`
	EmployerID   *CompanyID     `json:"employer_id,omitempty"`
	Intelligence float64        `json:"intelligence"` // 0.0–1.0, drives productivity
	Standard     LivingStandard `json:"living_standard"`

	Experience uint32  `json:"experience_days"`
	WageDaily  float64 `json:"wage_daily"`

	Inventory Inventory         `json:"inventory"`
	Portfolio map[CompanyID]int `json:"portfolio"` // signed share count, negative = short

	Futures []*FuturesPosition `json:"futures,omitempty"`
}

// Tier returns the resident's current skill tier.
func (r *Resident) Tier() SkillTier { return TierForExperience(r.Experience) }

// ProductionLine is one good-producing line inside a company.
type ProductionLine struct {
	Good        GoodType `json:"good"`
	Efficiency  float64  `json:"efficiency"` // 0.0–1.0, decays daily
	MaxCapacity float64  `json:"max_capacity"`
}

// Shareholder records one holder's stake in a company.
type Shareholder struct {
	HolderID ResidentID `json:"holder_id"`
	Count    int        `json:"count"`
}

// Company is a producing firm. Bankrupt companies stop hiring and producing
// but remain visible for audit.
type Company struct {
	ID   CompanyID `json:"id"`
	Name string    `json:"name"`
	Cash float64   `json:"cash"`

	Employees         int     `json:"employees"`
	TargetEmployees   int     `json:"target_employees"`
	WageOffer         float64 `json:"wage_offer"` // daily, in gold
	WageMultiplier    float64 `json:"wage_multiplier"`
	LastWageAdjustDay uint64  `json:"last_wage_adjust_day"`

	PricePremium float64          `json:"price_premium"` // markup over last market price
	Lines        []ProductionLine `json:"production_lines"`
	RawInv       Inventory        `json:"raw_inventory"`
	FinishedInv  Inventory        `json:"finished_inventory"`
	LandTokens   int              `json:"land_tokens"`

	SharePrice   float64       `json:"share_price"`
	TotalShares  int           `json:"total_shares"`
	Shareholders []Shareholder `json:"shareholders"`

	IsPlayerFounded bool         `json:"is_player_founded"`
	IsBankrupt      bool         `json:"is_bankrupt"`
	Stage           CompanyStage `json:"stage"`
	AgeDays         uint64       `json:"age_days"`
	CreditScore     float64      `json:"credit_score"`
	LastProfit      float64      `json:"last_profit"`
	History         []Candle     `json:"history"`

	// Intraday profit accumulators, settled into LastProfit at the end of
	// each day pass. Not persisted.
	DayRevenue float64 `json:"-"`
	DayCosts   float64 `json:"-"`
}

// PrimaryGood is the good of the company's first production line, which
// sets its employees' job title and its wage reference price.
func (c *Company) PrimaryGood() GoodType {
	if len(c.Lines) == 0 {
		return GoodGrain
	}
	return c.Lines[0].Good
}

// InventoryFor selects raw or finished holdings for a good. Companies keep
// the two pools separate; residents hold a single pool.
func (c *Company) InventoryFor(g GoodType) *Inventory {
	if IsRaw(g) {
		return &c.RawInv
	}
	return &c.FinishedInv
}

// BookValue is cash plus inventories priced at base value — the collateral
// base used by credit scoring and share pricing.
func (c *Company) BookValue() float64 {
	v := c.Cash
	for g := 0; g < NumGoods; g++ {
		v += (c.RawInv[g] + c.FinishedInv[g]) * BasePrice(GoodType(g))
	}
	return v
}
