package engine

import "github.com/talgya/mini-economy/internal/econ"

// Index holds the per-tick lookup maps. Rebuilt once per tick by Reindex;
// passes must not mutate resident/company membership mid-tick.
type Index struct {
	ResidentByID       map[econ.ResidentID]*econ.Resident
	CompanyByID        map[econ.CompanyID]*econ.Company
	EmployeesByCompany map[econ.CompanyID][]*econ.Resident
	ResidentsByJob     map[econ.Job][]*econ.Resident
}

// BuildIndex scans the world once and builds all maps.
func BuildIndex(w *World) *Index {
	ix := &Index{
		ResidentByID:       make(map[econ.ResidentID]*econ.Resident, len(w.Residents)),
		CompanyByID:        make(map[econ.CompanyID]*econ.Company, len(w.Companies)),
		EmployeesByCompany: make(map[econ.CompanyID][]*econ.Resident),
		ResidentsByJob:     make(map[econ.Job][]*econ.Resident),
	}
	for _, c := range w.Companies {
		ix.CompanyByID[c.ID] = c
	}
	for _, r := range w.Residents {
		ix.ResidentByID[r.ID] = r
		ix.ResidentsByJob[r.Job] = append(ix.ResidentsByJob[r.Job], r)
		if r.EmployerID != nil {
			ix.EmployeesByCompany[*r.EmployerID] = append(ix.EmployeesByCompany[*r.EmployerID], r)
		}
	}
	return ix
}

// Unemployed returns the residents with no job.
func (ix *Index) Unemployed() []*econ.Resident {
	return ix.ResidentsByJob[econ.JobUnemployed]
}

// Headcount returns the number of employees at a company.
func (ix *Index) Headcount(id econ.CompanyID) int {
	return len(ix.EmployeesByCompany[id])
}
