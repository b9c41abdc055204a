/*
Package factory provides JSON to Go fee-structure conversion.

PURPOSE:
  Converts JSON fee-structure definitions into a concrete account with its
  particulars and installment plan. This enables fee configuration without
  code changes - office staff define structures in JSON, and the factory
  expands them per student.

JSON SCHEMA:
  {
    "name": "Grade 5 Annual",
    "mode": "TERM",
    "academic_year": "2024-25",
    "installments": 3,
    "due_day": 5,
    "interval_months": 4,
    "particulars": [
      {"name": "Tuition", "amount": 15000},
      {"name": "Transport", "amount": 5000}
    ]
  }

SPLITTING:
  Each particular's amount is split evenly across the installment count,
  whole currency units per slice, remainder on the last installment. An
  installment's amount is the sum of its particular shares, so the plan
  always conserves the structure total exactly.

DUE DATES:
  The first installment is due on due_day of the start month; later ones
  step by interval_months (defaulted from mode: MONTHLY=1, TERM=4,
  YEARLY=12/installments).

USAGE:
  f := factory.NewStructureFactory()
  plan, err := f.ParseStructure(jsonStr)
  account, particulars, installments := plan.Materialize("stu-1", startDate)

SEE ALSO:
  - fees/types.go: Account, Particular, Installment
  - api/handlers.go: Account creation endpoint
*/
package factory

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/campus/school-engine/calendar"
	"github.com/campus/school-engine/fees"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// StructureJSON is the JSON representation of a fee structure.
type StructureJSON struct {
	Name           string           `json:"name"`
	Mode           string           `json:"mode"` // YEARLY, TERM, MONTHLY
	AcademicYear   string           `json:"academic_year"`
	Installments   int              `json:"installments"`
	DueDay         int              `json:"due_day,omitempty"`         // default 5
	IntervalMonths int              `json:"interval_months,omitempty"` // default by mode
	Particulars    []ParticularJSON `json:"particulars"`
}

// ParticularJSON is one fee line of a structure.
type ParticularJSON struct {
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

// =============================================================================
// STRUCTURE FACTORY
// =============================================================================

// StructureFactory converts JSON fee structures into account plans.
type StructureFactory struct{}

func NewStructureFactory() *StructureFactory {
	return &StructureFactory{}
}

// StructurePlan is a validated structure ready to materialize per student.
type StructurePlan struct {
	Name           string
	Mode           string
	AcademicYear   string
	Installments   int
	DueDay         int
	IntervalMonths int
	Particulars    []ParticularJSON
	Total          decimal.Decimal
}

// ParseStructure parses and validates a JSON fee structure.
func (f *StructureFactory) ParseStructure(jsonStr string) (*StructurePlan, error) {
	var sj StructureJSON
	if err := json.Unmarshal([]byte(jsonStr), &sj); err != nil {
		return nil, fmt.Errorf("failed to parse structure JSON: %w", err)
	}
	return f.FromJSON(sj)
}

// FromJSON validates StructureJSON and applies defaults.
func (f *StructureFactory) FromJSON(sj StructureJSON) (*StructurePlan, error) {
	if sj.Name == "" {
		return nil, fmt.Errorf("structure name is required")
	}
	if sj.Installments < 1 {
		return nil, fmt.Errorf("structure needs at least one installment, got %d", sj.Installments)
	}
	if len(sj.Particulars) == 0 {
		return nil, fmt.Errorf("structure needs at least one particular")
	}

	total := decimal.Zero
	for _, p := range sj.Particulars {
		if p.Name == "" {
			return nil, fmt.Errorf("particular name is required")
		}
		if p.Amount.IsNegative() {
			return nil, fmt.Errorf("particular %q has negative amount %s", p.Name, p.Amount)
		}
		total = total.Add(p.Amount)
	}

	dueDay := sj.DueDay
	if dueDay == 0 {
		dueDay = 5
	}
	if dueDay < 1 || dueDay > 28 {
		return nil, fmt.Errorf("due day must be 1-28, got %d", dueDay)
	}

	interval := sj.IntervalMonths
	if interval == 0 {
		interval = defaultInterval(sj.Mode, sj.Installments)
	}
	if interval < 1 {
		return nil, fmt.Errorf("interval months must be positive, got %d", interval)
	}

	return &StructurePlan{
		Name:           sj.Name,
		Mode:           sj.Mode,
		AcademicYear:   sj.AcademicYear,
		Installments:   sj.Installments,
		DueDay:         dueDay,
		IntervalMonths: interval,
		Particulars:    sj.Particulars,
		Total:          total,
	}, nil
}

func defaultInterval(mode string, installments int) int {
	switch mode {
	case "MONTHLY":
		return 1
	case "TERM":
		return 4
	case "YEARLY":
		if installments > 0 && 12/installments >= 1 {
			return 12 / installments
		}
		return 1
	default:
		return 1
	}
}

// =============================================================================
// MATERIALIZATION
// =============================================================================

// Materialize expands the plan into a student's account, particulars, and
// installment schedule. start anchors the first due month.
func (p *StructurePlan) Materialize(studentID string, start calendar.Date) (fees.Account, []fees.Particular, []fees.Installment) {
	account := fees.Account{
		ID:             uuid.NewString(),
		StudentID:      studentID,
		StructureName:  p.Name,
		AcademicYear:   p.AcademicYear,
		OriginalAmount: p.Total,
		FinalAmount:    p.Total,
		Status:         fees.StatusUnpaid,
	}

	particulars := make([]fees.Particular, len(p.Particulars))
	for i, pj := range p.Particulars {
		particulars[i] = fees.Particular{
			ID:        uuid.NewString(),
			AccountID: account.ID,
			Name:      pj.Name,
			Amount:    pj.Amount,
			Status:    fees.StatusUnpaid,
		}
	}

	// Split each particular evenly, whole units per slice, remainder on
	// the last installment. Installment amounts are derived from the
	// shares so the schedule total always matches the structure total.
	n := int64(p.Installments)
	installments := make([]fees.Installment, p.Installments)
	firstDue := calendar.NewDate(start.Year(), start.Month(), p.DueDay)

	for i := range installments {
		installments[i] = fees.Installment{
			ID:        uuid.NewString(),
			AccountID: account.ID,
			Number:    i + 1,
			DueDate:   firstDue.AddMonths(i * p.IntervalMonths),
			Status:    fees.StatusPending,
		}
	}

	for pi, particular := range particulars {
		slice := particular.Amount.Div(decimal.NewFromInt(n)).Floor()
		spent := decimal.Zero
		for i := range installments {
			amount := slice
			if i == len(installments)-1 {
				amount = particular.Amount.Sub(spent)
			}
			spent = spent.Add(amount)

			installments[i].Shares = append(installments[i].Shares, fees.ParticularShare{
				ID:            uuid.NewString(),
				InstallmentID: installments[i].ID,
				ParticularID:  particulars[pi].ID,
				Amount:        amount,
			})
			installments[i].Amount = installments[i].Amount.Add(amount)
		}
	}

	return account, particulars, installments
}
