package factory_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/campus/school-engine/calendar"
	"github.com/campus/school-engine/factory"
)

func dec(n int64) decimal.Decimal { return decimal.NewFromInt(n) }

const grade5JSON = `{
	"name": "Grade 5 Annual",
	"mode": "TERM",
	"academic_year": "2024-25",
	"installments": 3,
	"due_day": 10,
	"particulars": [
		{"name": "Tuition", "amount": 15000},
		{"name": "Transport", "amount": 5000}
	]
}`

func TestParseStructure(t *testing.T) {
	f := factory.NewStructureFactory()

	plan, err := f.ParseStructure(grade5JSON)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if plan.Name != "Grade 5 Annual" || plan.Installments != 3 {
		t.Errorf("plan = %+v", plan)
	}
	if !plan.Total.Equal(dec(20000)) {
		t.Errorf("total = %s, want 20000", plan.Total)
	}
	if plan.IntervalMonths != 4 {
		t.Errorf("TERM mode should default to 4-month interval, got %d", plan.IntervalMonths)
	}
}

func TestParseStructure_Validation(t *testing.T) {
	f := factory.NewStructureFactory()

	cases := []struct {
		name string
		json string
	}{
		{"missing name", `{"installments": 3, "particulars": [{"name": "T", "amount": 100}]}`},
		{"zero installments", `{"name": "X", "installments": 0, "particulars": [{"name": "T", "amount": 100}]}`},
		{"no particulars", `{"name": "X", "installments": 3, "particulars": []}`},
		{"negative amount", `{"name": "X", "installments": 3, "particulars": [{"name": "T", "amount": -5}]}`},
		{"bad due day", `{"name": "X", "installments": 3, "due_day": 31, "particulars": [{"name": "T", "amount": 100}]}`},
		{"malformed json", `{`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := f.ParseStructure(tc.json); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestMaterialize_ConservesTotal(t *testing.T) {
	// GIVEN: A 20000 structure over 3 installments
	// WHEN: Materializing for a student
	// THEN: Installment amounts and shares sum back to exactly 20000

	f := factory.NewStructureFactory()
	plan, err := f.ParseStructure(grade5JSON)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	account, particulars, installments := plan.Materialize("stu-1", calendar.NewDate(2024, time.June, 1))

	if !account.FinalAmount.Equal(dec(20000)) || account.StudentID != "stu-1" {
		t.Errorf("account = %+v", account)
	}
	if len(particulars) != 2 || len(installments) != 3 {
		t.Fatalf("got %d particulars, %d installments", len(particulars), len(installments))
	}

	scheduleTotal := decimal.Zero
	for _, inst := range installments {
		scheduleTotal = scheduleTotal.Add(inst.Amount)

		shareSum := decimal.Zero
		for _, s := range inst.Shares {
			shareSum = shareSum.Add(s.Amount)
		}
		if !shareSum.Equal(inst.Amount) {
			t.Errorf("installment %d: shares sum %s != amount %s", inst.Number, shareSum, inst.Amount)
		}
	}
	if !scheduleTotal.Equal(dec(20000)) {
		t.Errorf("schedule total = %s, want 20000", scheduleTotal)
	}
}

func TestMaterialize_RemainderOnLastInstallment(t *testing.T) {
	// 1000 over 3 installments: 333 + 333 + 334.
	f := factory.NewStructureFactory()
	plan, err := f.FromJSON(factory.StructureJSON{
		Name:         "Uneven",
		Installments: 3,
		Particulars:  []factory.ParticularJSON{{Name: "Tuition", Amount: dec(1000)}},
	})
	if err != nil {
		t.Fatalf("from json: %v", err)
	}

	_, _, installments := plan.Materialize("stu-1", calendar.NewDate(2024, time.June, 1))

	want := []int64{333, 333, 334}
	for i, inst := range installments {
		if !inst.Amount.Equal(dec(want[i])) {
			t.Errorf("installment %d amount = %s, want %d", inst.Number, inst.Amount, want[i])
		}
	}
}

func TestMaterialize_DueDates(t *testing.T) {
	f := factory.NewStructureFactory()
	plan, err := f.ParseStructure(grade5JSON)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	_, _, installments := plan.Materialize("stu-1", calendar.NewDate(2024, time.June, 20))

	wantDue := []calendar.Date{
		calendar.NewDate(2024, time.June, 10),
		calendar.NewDate(2024, time.October, 10),
		calendar.NewDate(2025, time.February, 10),
	}
	for i, inst := range installments {
		if !inst.DueDate.Equal(wantDue[i]) {
			t.Errorf("installment %d due = %s, want %s", inst.Number, inst.DueDate, wantDue[i])
		}
	}
}
