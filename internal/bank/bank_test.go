package bank

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/mini-economy/internal/econ"
)

func healthyCompany(id econ.CompanyID, cash float64) *econ.Company {
	return &econ.Company{
		ID:          id,
		Name:        "test-co",
		Cash:        cash,
		LastProfit:  50,
		AgeDays:     100,
		CreditScore: 0.7,
	}
}

func TestCapitalAdequacyCrunch(t *testing.T) {
	// Reserves 100 against 1300 outstanding at RWA 1.0 → 7.7% < 8%:
	// every request refused, even from a pristine borrower.
	b := New(100, nil)
	other := healthyCompany(1, 100_000)
	b.Loans["seed"] = &Loan{ID: "seed", Borrower: 99, Principal: 1300, DueDay: 1000}

	assert.True(t, b.InCreditCrunch())
	assert.InDelta(t, 100.0/1300.0, b.CapitalRatio(), 1e-9)

	_, err := b.RequestLoan(other, 10, 0)
	assert.ErrorIs(t, err, ErrCreditCrunch)
}

func TestSolvencyGate(t *testing.T) {
	b := New(1_000_000, nil)
	co := healthyCompany(1, 1000) // book value 1000

	// Existing debt 800 against equity 200 → debt/equity 4 ≥ 2: never lends.
	b.Loans["l1"] = &Loan{ID: "l1", Borrower: co.ID, Principal: 800, DueDay: 1000}

	_, err := b.RequestLoan(co, 50, 0)
	var elig *EligibilityError
	require.ErrorAs(t, err, &elig)
	assert.Equal(t, "solvency", elig.Check)
}

func TestProfitabilityGate(t *testing.T) {
	b := New(1_000_000, nil)
	co := healthyCompany(1, 1000)
	co.LastProfit = -10

	_, err := b.RequestLoan(co, 50, 0)
	var elig *EligibilityError
	require.ErrorAs(t, err, &elig)
	assert.Equal(t, "profitability", elig.Check)

	// Startups get a grace window on the profitability check.
	co.AgeDays = 5
	_, err = b.RequestLoan(co, 50, 0)
	assert.NoError(t, err)
}

func TestCollateralGate(t *testing.T) {
	b := New(1_000_000, nil)
	co := healthyCompany(1, 900)

	// No existing debt, but the request itself is under-collateralized:
	// assets 900 ≤ 1.5 × 700.
	_, err := b.RequestLoan(co, 700, 0)
	var elig *EligibilityError
	require.ErrorAs(t, err, &elig)
	assert.Equal(t, "collateral", elig.Check)
}

func TestLoanIssuanceCreatesLoggedMoney(t *testing.T) {
	created := 0.0
	logger := func(kind string, amount float64, _ string) {
		if kind == "loan_issued" {
			created += amount
		}
	}
	b := New(10_000, logger)
	co := healthyCompany(1, 1000)

	id, err := b.RequestLoan(co, 500, 0)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, 1500.0, co.Cash)
	assert.Equal(t, 500.0, created, "issuance logged as money creation")
	assert.Equal(t, 10_000.0, b.Reserves, "lending creates deposits, not reserve drawdown")
}

func TestAmortizationAndPayoff(t *testing.T) {
	b := New(10_000, nil)
	co := healthyCompany(1, 10_000)
	lookup := func(econ.CompanyID) *econ.Company { return co }

	_, err := b.RequestLoan(co, 900, 0)
	require.NoError(t, err)

	for day := uint64(1); day <= LoanTermDays; day++ {
		b.Amortize(day, lookup)
	}
	assert.Empty(t, b.Loans, "loan fully amortized by due date")
	assert.Greater(t, b.Reserves, 10_000.0, "interest accrued to reserves")
}

func TestOverdueLoanDefaults(t *testing.T) {
	var defaulted float64
	logger := func(kind string, amount float64, _ string) {
		if kind == "loan_default" {
			defaulted = amount
		}
	}
	b := New(10_000, logger)
	co := healthyCompany(1, 0) // cannot pay
	co.CreditScore = 0.9
	b.Loans["l1"] = &Loan{ID: "l1", Borrower: co.ID, Principal: 400, Rate: 0.05, DueDay: 10}

	b.Amortize(11, func(econ.CompanyID) *econ.Company { return co })

	assert.Empty(t, b.Loans)
	assert.Equal(t, 400.0, defaulted, "write-off logged, never silent")
	assert.Equal(t, 9600.0, b.Reserves)
	assert.Less(t, co.CreditScore, 0.9)
}

func TestTaylorRuleClampAndOverride(t *testing.T) {
	b := New(1000, nil)

	b.UpdatePolicyRate(0, 0.50, 0.05) // runaway inflation
	assert.Equal(t, RateCeil, b.PolicyRate)

	b.UpdatePolicyRate(1, -0.30, 0.40) // deflation + mass unemployment
	assert.Equal(t, RateFloor, b.PolicyRate)

	b.UpdatePolicyRate(2, 0.02, 0.05) // both gaps zero → neutral
	assert.InDelta(t, b.NeutralRate, b.PolicyRate, 1e-9)

	override := 0.10
	b.RateOverride = &override
	b.UpdatePolicyRate(3, 0.50, 0.0)
	assert.Equal(t, 0.10, b.PolicyRate, "override short-circuits the rule")

	require.Len(t, b.History, 4)
}

func TestDeposits(t *testing.T) {
	b := New(1000, nil)
	id := b.OpenDeposit("r:1", 200)
	assert.Equal(t, 1200.0, b.Reserves)

	b.AccrueDepositInterest()
	d := b.Deposits[id]
	assert.Greater(t, d.Amount, 200.0)

	amt, ok := b.CloseDeposit(id)
	require.True(t, ok)
	assert.Greater(t, amt, 200.0)

	_, ok = b.CloseDeposit(id)
	assert.False(t, ok)
}
