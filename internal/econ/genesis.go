// World genesis — creates the initial population and founding companies
// with deterministic, seed-driven variation.
package econ

import (
	"fmt"
	"math/rand"
)

// Spawner creates residents and companies for the simulation.
type Spawner struct {
	rng       *rand.Rand
	nextResID ResidentID
	nextCoID  CompanyID
}

// NewSpawner creates a spawner with the given seed.
func NewSpawner(seed int64) *Spawner {
	return &Spawner{
		rng:       rand.New(rand.NewSource(seed + 300)),
		nextResID: 1,
		nextCoID:  1,
	}
}

// SetNextIDs sets the next ids to be issued (used when restoring from DB).
func (s *Spawner) SetNextIDs(res ResidentID, co CompanyID) {
	s.nextResID = res
	s.nextCoID = co
}

// NextCompanyID issues a fresh company id.
func (s *Spawner) NextCompanyID() CompanyID {
	id := s.nextCoID
	s.nextCoID++
	return id
}

// SpawnResidents creates the starting population. Intelligence follows a
// clamped normal distribution; starting cash is modest and skewed.
func (s *Spawner) SpawnResidents(count int, startingCash float64) []*Resident {
	residents := make([]*Resident, 0, count)
	for i := 0; i < count; i++ {
		residents = append(residents, s.spawnResident(startingCash))
	}
	return residents
}

func (s *Spawner) spawnResident(startingCash float64) *Resident {
	id := s.nextResID
	s.nextResID++

	intel := 0.5 + s.rng.NormFloat64()*0.15
	if intel < 0.05 {
		intel = 0.05
	}
	if intel > 0.95 {
		intel = 0.95
	}

	cash := startingCash * (0.5 + s.rng.Float64())

	return &Resident{
		ID:           id,
		Name:         fmt.Sprintf("resident-%d", id),
		Cash:         cash,
		Job:          JobUnemployed,
		Intelligence: intel,
		Standard:     StandardModest,
		Portfolio:    make(map[CompanyID]int),
	}
}

// SpawnCompany creates a company producing one primary good, with explicit
// defaults for every field that has one.
func (s *Spawner) SpawnCompany(name string, primary GoodType, founderCash float64, playerFounded bool) *Company {
	id := s.nextCoID
	s.nextCoID++

	capacity := 20.0 + s.rng.Float64()*20
	return &Company{
		ID:              id,
		Name:            name,
		Cash:            founderCash,
		TargetEmployees: DefaultTargetEmployees,
		WageMultiplier:  DefaultWageMult,
		WageOffer:       DefaultWageMult * BasePrice(primary),
		PricePremium:    1.0,
		Lines: []ProductionLine{{
			Good:        primary,
			Efficiency:  0.8 + s.rng.Float64()*0.2,
			MaxCapacity: capacity,
		}},
		LandTokens:      1,
		SharePrice:      1.0,
		TotalShares:     DefaultTotalShares,
		IsPlayerFounded: playerFounded,
		Stage:           StageStartup,
		CreditScore:     0.5,
	}
}

// SeedCompanies spawns one company per good type so every market has a
// producer at world start.
func (s *Spawner) SeedCompanies(cashEach float64) []*Company {
	companies := make([]*Company, 0, NumGoods)
	for g := 0; g < NumGoods; g++ {
		good := GoodType(g)
		name := fmt.Sprintf("%s-works-%d", GoodName(good), s.nextCoID)
		companies = append(companies, s.SpawnCompany(name, good, cashEach, false))
	}
	return companies
}
