package econ

// Skill tier thresholds in days of accumulated work.
const (
	SkilledExperienceDays = 90
	ExpertExperienceDays  = 360
)

// Labor market rigidity.
const (
	WageStickinessDays = 7    // wages re-derived at most this often
	MaxWageCut         = 0.10 // max fractional downward wage move per adjustment
	JobSwitchThreshold = 0.15 // wage gain needed before an employed resident switches
	DefaultWageMult    = 1.5  // wage = multiplier × reference good price
)

// Production economics.
const (
	BaseRatePerWorker        = 2.0   // units/day at efficiency 1.0, novice tier
	DepreciationRate         = 0.001 // efficiency lost per day, linear
	ScrapEfficiencyThreshold = 0.15  // lines below this are auto-retired
	MaintenancePerLine       = 2.0   // gold/day
	MaintenancePerLand       = 1.0   // gold/day per land token
	CompanyRegistrationFee   = 500.0
	DefaultTargetEmployees   = 5
	DefaultTotalShares       = 1000
)

// Futures desk.
const (
	FuturesMarginRatio  = 0.2 // 5× leverage
	FuturesContractSize = 50.0
	FuturesTermDays     = 30
)

// Daily resident consumption in units; the floor of commodity demand.
const (
	FoodPerResidentDay = 1.0
)

var basePrices = [NumGoods]float64{
	2,  // grain
	3,  // cotton
	4,  // herbs
	3,  // timber
	5,  // iron ore
	4,  // coal
	6,  // bread
	10, // clothes
	14, // medicine
	12, // furniture
	15, // tools
}

// BasePrice is the production-cost anchor for a good, used to seed markets
// and value inventories at book.
func BasePrice(g GoodType) float64 { return basePrices[g] }

// spoilDays is the shelf window for perishables; 0 means the good keeps.
var spoilDays = [NumGoods]float64{
	30, // grain
	0,  // cotton
	20, // herbs
	0,  // timber
	0,  // iron ore
	0,  // coal
	5,  // bread
	0,  // clothes
	60, // medicine
	0,  // furniture
	0,  // tools
}

// SpoilRate returns the fraction of held stock lost per day, 0 for
// non-perishables.
func SpoilRate(g GoodType) float64 {
	if spoilDays[g] == 0 {
		return 0
	}
	return 1 / spoilDays[g]
}

// Recipe lists the raw inputs consumed per unit of a finished good.
type Recipe struct {
	Inputs []RecipeInput
}

// RecipeInput is one ingredient of a recipe.
type RecipeInput struct {
	Good GoodType
	Qty  float64
}

var recipes = map[GoodType]Recipe{
	GoodBread:     {Inputs: []RecipeInput{{GoodGrain, 2}}},
	GoodClothes:   {Inputs: []RecipeInput{{GoodCotton, 2}}},
	GoodMedicine:  {Inputs: []RecipeInput{{GoodHerbs, 2}}},
	GoodFurniture: {Inputs: []RecipeInput{{GoodTimber, 2}}},
	GoodTools:     {Inputs: []RecipeInput{{GoodIronOre, 1}, {GoodCoal, 1}}},
}

// RecipeFor returns the recipe for a finished good. Raw goods have none.
func RecipeFor(g GoodType) (Recipe, bool) {
	r, ok := recipes[g]
	return r, ok
}
