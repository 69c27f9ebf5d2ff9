// Package bank implements the credit system: reserves, deposits, amortizing
// company loans, the capital-adequacy brake, and the Taylor-rule policy rate.
package bank

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/talgya/mini-economy/internal/econ"
	"github.com/talgya/mini-economy/internal/numutil"
)

// Loan gates and policy-rate parameters.
const (
	MinCAR            = 0.08 // reserves / risk-weighted loans floor
	RiskWeightRWA     = 1.0
	MaxDebtEquity     = 2.0
	CollateralFactor  = 1.5
	StartupGraceDays  = 30 // profitability check waived for young companies
	LoanTermDays      = 90
	RateFloor         = 0.005
	RateCeil          = 0.25
	InflationResponse = 1.5
	JoblessResponse   = 0.5
	DepositSpread     = 0.02 // deposit rate = policy rate − spread
)

// ErrCreditCrunch is returned for every loan request while the bank's
// capital ratio sits below MinCAR, regardless of borrower quality.
var ErrCreditCrunch = errors.New("capital inadequate: bank-wide credit crunch")

// EligibilityError reports exactly which loan gate failed.
type EligibilityError struct {
	Check  string // "solvency", "profitability", "collateral"
	Detail string
}

func (e *EligibilityError) Error() string {
	return fmt.Sprintf("loan ineligible: %s check failed (%s)", e.Check, e.Detail)
}

// Loan is an amortizing company loan. Principal is what remains.
type Loan struct {
	ID        string         `json:"id"`
	Borrower  econ.CompanyID `json:"borrower"`
	Principal float64        `json:"principal"`
	Rate      float64        `json:"rate"`
	IssuedDay uint64         `json:"issued_day"`
	DueDay    uint64         `json:"due_day"`
}

// Deposit is interest-bearing cash parked at the bank.
type Deposit struct {
	ID     string  `json:"id"`
	Owner  string  `json:"owner"` // trader key
	Amount float64 `json:"amount"`
	Rate   float64 `json:"rate"`
}

// RateSnapshot is one macro-period record of bank state.
type RateSnapshot struct {
	Day       uint64  `json:"day"`
	Reserves  float64 `json:"reserves"`
	Rate      float64 `json:"rate"`
	Inflation float64 `json:"inflation"`
}

// MoneyLogger records money creation and destruction so the conservation
// audit can reconcile. Loan issuance creates deposit money; principal
// repayment and write-offs destroy it.
type MoneyLogger func(kind string, amount float64, detail string)

// Bank is the central bank and sole lender.
type Bank struct {
	Reserves           float64
	PolicyRate         float64
	NeutralRate        float64
	TargetInflation    float64
	TargetUnemployment float64
	RateOverride       *float64 // manual policy override; nil = automatic

	Loans    map[string]*Loan
	Deposits map[string]*Deposit
	History  []RateSnapshot

	logMoney MoneyLogger
}

// New creates a bank with starting reserves.
func New(reserves float64, logMoney MoneyLogger) *Bank {
	if logMoney == nil {
		logMoney = func(string, float64, string) {}
	}
	return &Bank{
		Reserves:           reserves,
		PolicyRate:         0.03,
		NeutralRate:        0.03,
		TargetInflation:    0.02,
		TargetUnemployment: 0.05,
		Loans:              make(map[string]*Loan),
		Deposits:           make(map[string]*Deposit),
		logMoney:           logMoney,
	}
}

// TotalLoans sums outstanding principal.
func (b *Bank) TotalLoans() float64 {
	sum := 0.0
	for _, l := range b.Loans {
		sum += l.Principal
	}
	return sum
}

// DebtOf sums outstanding principal for one borrower.
func (b *Bank) DebtOf(id econ.CompanyID) float64 {
	sum := 0.0
	for _, l := range b.Loans {
		if l.Borrower == id {
			sum += l.Principal
		}
	}
	return sum
}

// CapitalRatio is reserves over risk-weighted loan exposure. An unlevered
// bank reports a comfortably high ratio.
func (b *Bank) CapitalRatio() float64 {
	return numutil.SafeDiv(b.Reserves, b.TotalLoans()*RiskWeightRWA, 1.0)
}

// InCreditCrunch reports the system-wide lending freeze.
func (b *Bank) InCreditCrunch() bool { return b.CapitalRatio() < MinCAR }

// checkEligibility runs the three borrower gates in order and returns the
// first failure. The collateral check is applied against debt including
// the requested amount, so it binds even when solvency passes.
func (b *Bank) checkEligibility(co *econ.Company, amount float64) error {
	debt := b.DebtOf(co.ID)
	equity := co.BookValue() - debt

	if equity <= 0 || debt/equity >= MaxDebtEquity {
		return &EligibilityError{Check: "solvency", Detail: fmt.Sprintf("debt %.0f vs equity %.0f", debt, equity)}
	}
	if co.LastProfit <= 0 && co.AgeDays >= StartupGraceDays {
		return &EligibilityError{Check: "profitability", Detail: fmt.Sprintf("last profit %.2f", co.LastProfit)}
	}
	if co.BookValue() <= (debt+amount)*CollateralFactor {
		return &EligibilityError{Check: "collateral", Detail: fmt.Sprintf("assets %.0f vs %.1f× debt %.0f", co.BookValue(), CollateralFactor, debt+amount)}
	}
	return nil
}

// RequestLoan issues an amortizing loan if the bank-wide capital gate and
// all three borrower gates pass. Lending creates deposit money: the
// borrower is credited without drawing down reserves, and the creation is
// logged for the conservation audit.
func (b *Bank) RequestLoan(co *econ.Company, amount float64, day uint64) (string, error) {
	if amount <= 0 {
		return "", &EligibilityError{Check: "solvency", Detail: "non-positive amount"}
	}
	if b.InCreditCrunch() {
		slog.Warn("loan refused: credit crunch", "company", co.Name, "car", fmt.Sprintf("%.3f", b.CapitalRatio()))
		return "", ErrCreditCrunch
	}
	if err := b.checkEligibility(co, amount); err != nil {
		return "", err
	}

	l := &Loan{
		ID:        uuid.NewString(),
		Borrower:  co.ID,
		Principal: amount,
		Rate:      b.LendingRate(co),
		IssuedDay: day,
		DueDay:    day + LoanTermDays,
	}
	b.Loans[l.ID] = l
	co.Cash += amount
	b.logMoney("loan_issued", amount, co.Name)
	slog.Info("loan issued", "company", co.Name, "amount", amount, "rate", fmt.Sprintf("%.3f", l.Rate), "due_day", l.DueDay)
	return l.ID, nil
}

// LendingRate prices a loan off the policy rate plus a credit-score spread.
func (b *Bank) LendingRate(co *econ.Company) float64 {
	spread := 0.01 + 0.05*(1-numutil.Clamp(co.CreditScore, 0, 1))
	return numutil.Clamp(b.PolicyRate+spread, RateFloor, RateCeil+0.10)
}

// OpenDeposit moves a holder's cash into an interest-bearing deposit.
// The cash sits in reserves; no money is created.
func (b *Bank) OpenDeposit(ownerKey string, amount float64) string {
	d := &Deposit{
		ID:     uuid.NewString(),
		Owner:  ownerKey,
		Amount: amount,
		Rate:   numutil.Clamp(b.PolicyRate-DepositSpread, 0, RateCeil),
	}
	b.Deposits[d.ID] = d
	b.Reserves += amount
	return d.ID
}

// CloseDeposit returns a deposit's balance. The caller credits the owner.
func (b *Bank) CloseDeposit(id string) (float64, bool) {
	d, ok := b.Deposits[id]
	if !ok {
		return 0, false
	}
	delete(b.Deposits, id)
	b.Reserves -= d.Amount
	return d.Amount, true
}

// AccrueDepositInterest grows each deposit claim by one day's interest.
// Reserves are untouched here; the bank's equity absorbs the interest
// when the deposit is closed. A claim is only grown while reserves could
// still honor it.
func (b *Bank) AccrueDepositInterest() {
	for _, d := range b.Deposits {
		interest := d.Amount * d.Rate / 365
		if d.Amount+interest > b.Reserves {
			continue // bank could not honor a larger claim
		}
		d.Amount += interest
	}
}

// Amortize collects one day's linear principal payment plus interest from
// every borrower. Principal repayment destroys deposit money (logged);
// interest flows into reserves. Loans past due with principal remaining
// convert to defaults written off against reserves.
func (b *Bank) Amortize(day uint64, lookup func(econ.CompanyID) *econ.Company) {
	for id, l := range b.Loans {
		co := lookup(l.Borrower)
		if co == nil {
			continue
		}

		if day > l.DueDay {
			b.writeOff(id, l, co)
			continue
		}

		daysLeft := l.DueDay - day + 1
		principalDue := l.Principal / float64(daysLeft)
		interestDue := l.Principal * l.Rate / 365
		total := principalDue + interestDue

		if !co.DebitCash(total) {
			// Missed payment degrades the score; default handled at due date.
			co.CreditScore = numutil.Clamp(co.CreditScore-0.05, 0, 1)
			continue
		}

		l.Principal -= principalDue
		b.Reserves += interestDue
		b.logMoney("loan_repaid", principalDue, co.Name)
		if l.Principal <= 1e-9 {
			delete(b.Loans, id)
		}
	}
}

// writeOff removes a defaulted loan against reserves. Never silent.
func (b *Bank) writeOff(id string, l *Loan, co *econ.Company) {
	b.Reserves -= l.Principal
	b.logMoney("loan_default", l.Principal, co.Name)
	co.CreditScore = numutil.Clamp(co.CreditScore-0.25, 0, 1)
	slog.Warn("loan default written off", "company", co.Name, "principal", l.Principal, "reserves", b.Reserves)
	delete(b.Loans, id)
}

// UpdatePolicyRate applies the Taylor-rule analogue at macro cadence:
// lean against above-target inflation, ease against above-target
// unemployment. A manual override short-circuits the rule.
func (b *Bank) UpdatePolicyRate(day uint64, inflation, unemployment float64) {
	if b.RateOverride != nil {
		b.PolicyRate = numutil.Clamp(*b.RateOverride, RateFloor, RateCeil)
	} else {
		rate := b.NeutralRate +
			InflationResponse*(inflation-b.TargetInflation) -
			JoblessResponse*(unemployment-b.TargetUnemployment)
		b.PolicyRate = numutil.Clamp(numutil.Finite(rate, b.NeutralRate), RateFloor, RateCeil)
	}

	b.History = append(b.History, RateSnapshot{
		Day: day, Reserves: b.Reserves, Rate: b.PolicyRate, Inflation: inflation,
	})
	slog.Info("policy rate set",
		"day", day,
		"rate", fmt.Sprintf("%.4f", b.PolicyRate),
		"inflation", fmt.Sprintf("%.4f", inflation),
		"unemployment", fmt.Sprintf("%.4f", unemployment),
		"override", b.RateOverride != nil,
	)
}

// ScoreCompany refreshes a borrower's credit score from leverage and
// profitability, squashed to (0, 1).
func (b *Bank) ScoreCompany(co *econ.Company) {
	debt := b.DebtOf(co.ID)
	equity := co.BookValue() - debt
	leverage := numutil.SafeDiv(debt, equity, MaxDebtEquity*2)
	profitSignal := numutil.SafeDiv(co.LastProfit, co.BookValue()+1, 0)
	co.CreditScore = numutil.Sigmoid(2 - 1.5*leverage + 20*profitSignal)
}
