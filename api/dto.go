/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:
  Fees:
    FeeAccountDTO, InstallmentDTO, ParticularDTO, SummaryDTO,
    CreateAccountRequest

  Payments:
    RecordPaymentRequest, PaymentDTO, ReceiptDTO, PreviewDTO

  Discounts:
    DiscountRuleDTO, CreateDiscountRequest

  Calendar:
    GridCellDTO, GridDTO, EventDTO, CreateEventRequest

  Checkout:
    CheckoutDTO, OpenCheckoutRequest, AdvanceCheckoutRequest

VALIDATION:
  Request types carry go-playground/validator struct tags and are checked
  in handlers before any domain call. Response DTOs are pure data carriers.

MONEY:
  Amounts cross the wire as JSON strings ("1000", "333.5") so clients
  never lose precision to float64. Decimals parse them back losslessly.

SEE ALSO:
  - handlers.go: Uses these types
  - server.go: Router setup
*/
package api

import (
	"time"

	"github.com/campus/school-engine/calendar"
	"github.com/campus/school-engine/fees"
)

// =============================================================================
// FEE ACCOUNT TYPES
// =============================================================================

// FeeAccountDTO represents a student's fee account in API responses.
type FeeAccountDTO struct {
	ID             string           `json:"id"`
	StudentID      string           `json:"student_id"`
	StructureName  string           `json:"structure_name"`
	AcademicYear   string           `json:"academic_year"`
	OriginalAmount string           `json:"original_amount"`
	DiscountAmount string           `json:"discount_amount"`
	FinalAmount    string           `json:"final_amount"`
	PaidAmount     string           `json:"paid_amount"`
	Balance        string           `json:"balance"`
	Status         string           `json:"status"`
	Installments   []InstallmentDTO `json:"installments"`
	Particulars    []ParticularDTO  `json:"particulars"`
	Summary        SummaryDTO       `json:"summary"`
}

// InstallmentDTO represents one installment in API responses.
type InstallmentDTO struct {
	ID                   string  `json:"id"`
	Number               int     `json:"installment_number"`
	Amount               string  `json:"amount"`
	PaidAmount           string  `json:"paid_amount"`
	LateFee              string  `json:"late_fee"`
	TotalDue             string  `json:"total_due"`
	DueDate              string  `json:"due_date"`
	PaidDate             *string `json:"paid_date,omitempty"`
	Status               string  `json:"status"`
	Overdue              bool    `json:"overdue"`
	EarlyPaymentEligible bool    `json:"early_payment_eligible"`
	DueBucket            string  `json:"due_bucket"`
	DueLabel             string  `json:"due_label"`
}

// ParticularDTO represents one fee head (tuition, transport, ...).
type ParticularDTO struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Amount     string `json:"amount"`
	PaidAmount string `json:"paid_amount"`
	Status     string `json:"status"`
}

// SummaryDTO aggregates a schedule for dashboard display.
type SummaryDTO struct {
	TotalAmount      string  `json:"total_amount"`
	TotalPaid        string  `json:"total_paid"`
	TotalOutstanding string  `json:"total_outstanding"`
	TotalLateFees    string  `json:"total_late_fees"`
	TotalDue         string  `json:"total_due"`
	PaidCount        int     `json:"paid_count"`
	PartialCount     int     `json:"partial_count"`
	PendingCount     int     `json:"pending_count"`
	OverdueCount     int     `json:"overdue_count"`
	NextDueDate      *string `json:"next_due_date,omitempty"`
}

// CreateAccountRequest creates a fee account from a structure definition.
// Structure is the raw structure JSON understood by the factory.
type CreateAccountRequest struct {
	StartDate string `json:"start_date" validate:"required,datetime=2006-01-02"`
	Structure string `json:"structure" validate:"required"`
}

// =============================================================================
// PAYMENT TYPES
// =============================================================================

// RecordPaymentRequest records a payment against selected installments.
// An empty installments list targets the whole unpaid schedule.
type RecordPaymentRequest struct {
	Amount        string   `json:"amount" validate:"required"`
	Installments  []string `json:"installments"`
	Method        string   `json:"method" validate:"required,oneof=CASH ONLINE CHEQUE TRANSFER"`
	Note          string   `json:"note"`
	ReceiptNumber string   `json:"receipt_number"`
}

// PaymentDTO represents a recorded payment.
type PaymentDTO struct {
	ID            string `json:"id"`
	Amount        string `json:"amount"`
	Method        string `json:"method"`
	ReceiptNumber string `json:"receipt_number"`
	Note          string `json:"note,omitempty"`
	PaidAt        string `json:"paid_at"`
}

// ReceiptDTO is returned after a payment is recorded.
type ReceiptDTO struct {
	Payment     PaymentDTO      `json:"payment"`
	Allocations []AllocationDTO `json:"allocations"`
	Account     FeeAccountDTO   `json:"account"`
}

// AllocationDTO is one line of a payment split.
type AllocationDTO struct {
	InstallmentID     string `json:"installment_id"`
	InstallmentNumber int    `json:"installment_number"`
	Amount            string `json:"amount"`
	BalanceBefore     string `json:"balance_before"`
	WillComplete      bool   `json:"will_complete"`
}

// PreviewDTO shows how a tendered amount would split before committing,
// and what the stored discount rules take off the selected installments.
type PreviewDTO struct {
	Lines       []AllocationDTO `json:"lines"`
	Allocated   string          `json:"allocated"`
	Unallocated string          `json:"unallocated"`
	Discount    DiscountDTO     `json:"discount"`
}

// DiscountDTO is the evaluated discount over a selected installment set.
type DiscountDTO struct {
	Subtotal      string            `json:"subtotal"`
	PerRule       []RuleDiscountDTO `json:"per_rule"`
	TotalDiscount string            `json:"total_discount"`
	FinalAmount   string            `json:"final_amount"`
}

// RuleDiscountDTO is one rule's contribution.
type RuleDiscountDTO struct {
	RuleID string `json:"rule_id"`
	Type   string `json:"type"`
	Amount string `json:"amount"`
}

// =============================================================================
// DISCOUNT TYPES
// =============================================================================

// DiscountRuleDTO represents a discount rule.
type DiscountRuleDTO struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Name       string `json:"name"`
	Percentage string `json:"percentage"`
}

// CreateDiscountRequest creates or updates a discount rule.
type CreateDiscountRequest struct {
	ID         string `json:"id"`
	Type       string `json:"type" validate:"required,oneof=EARLY_PAYMENT SIBLING STAFF_WARD MERIT SCHOLARSHIP"`
	Name       string `json:"name" validate:"required"`
	Percentage string `json:"percentage" validate:"required"`
}

// =============================================================================
// CALENDAR TYPES
// =============================================================================

// GridCellDTO is one cell of a month grid.
type GridCellDTO struct {
	Day        int    `json:"day"`
	Date       string `json:"date"`
	Membership string `json:"membership"`
	Today      bool   `json:"today"`
}

// GridDTO is a full month grid plus the events falling inside it.
type GridDTO struct {
	Year   int           `json:"year"`
	Month  int           `json:"month"`
	Cells  []GridCellDTO `json:"cells"`
	Events []EventDTO    `json:"events"`
}

// EventDTO represents a calendar event.
type EventDTO struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date,omitempty"`
	StartTime string `json:"start_time,omitempty"`
	EndTime   string `json:"end_time,omitempty"`
	AllDay    bool   `json:"all_day"`
	Color     string `json:"color,omitempty"`
}

// CreateEventRequest creates a calendar event.
type CreateEventRequest struct {
	Title     string `json:"title" validate:"required"`
	StartDate string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
	StartTime string `json:"start_time" validate:"omitempty,datetime=15:04"`
	EndTime   string `json:"end_time" validate:"omitempty,datetime=15:04"`
	AllDay    bool   `json:"all_day"`
	Color     string `json:"color"`
}

// UpdateEventRequest updates a calendar event. Same shape as create.
type UpdateEventRequest = CreateEventRequest

// =============================================================================
// CHECKOUT TYPES
// =============================================================================

// CheckoutDTO represents a checkout session.
type CheckoutDTO struct {
	ID        string   `json:"id"`
	StudentID string   `json:"student_id"`
	State     string   `json:"state"`
	Selected  []string `json:"selected"`
	PaymentID string   `json:"payment_id,omitempty"`
	Terminal  bool     `json:"terminal"`
}

// OpenCheckoutRequest opens a checkout session for a student.
type OpenCheckoutRequest struct {
	StudentID string `json:"student_id" validate:"required"`
}

// AdvanceCheckoutRequest moves a session to a new state. Selection is
// supplied when moving into payment, the payment id when completing.
type AdvanceCheckoutRequest struct {
	State     string   `json:"state" validate:"required,oneof=search payment success"`
	Selected  []string `json:"selected"`
	PaymentID string   `json:"payment_id"`
}

// ErrorResponse is the JSON body for all error statuses.
type ErrorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toInstallmentDTO(inst fees.Installment, today calendar.Date) InstallmentDTO {
	due := fees.ClassifyDueDate(inst.DueDate, today)
	dto := InstallmentDTO{
		ID:                   inst.ID,
		Number:               inst.Number,
		Amount:               inst.Amount.String(),
		PaidAmount:           inst.PaidAmount.String(),
		LateFee:              inst.LateFee.String(),
		TotalDue:             inst.TotalDue().String(),
		DueDate:              inst.DueDate.String(),
		Status:               string(inst.Status),
		Overdue:              inst.Overdue,
		EarlyPaymentEligible: inst.EarlyPaymentEligible,
		DueBucket:            string(due.Bucket),
		DueLabel:             due.Label,
	}
	if inst.PaidDate != nil {
		s := inst.PaidDate.String()
		dto.PaidDate = &s
	}
	return dto
}

func toParticularDTO(p fees.Particular) ParticularDTO {
	return ParticularDTO{
		ID:         p.ID,
		Name:       p.Name,
		Amount:     p.Amount.String(),
		PaidAmount: p.PaidAmount.String(),
		Status:     string(p.Status),
	}
}

func toSummaryDTO(s fees.Summary) SummaryDTO {
	dto := SummaryDTO{
		TotalAmount:      s.TotalAmount.String(),
		TotalPaid:        s.TotalPaid.String(),
		TotalOutstanding: s.Outstanding.String(),
		TotalLateFees:    s.LateFees.String(),
		TotalDue:         s.TotalDue.String(),
		PaidCount:        s.PaidCount,
		PartialCount:     s.PartialCount,
		PendingCount:     s.PendingCount,
		OverdueCount:     s.OverdueCount,
	}
	if s.NextDue != nil {
		d := s.NextDue.String()
		dto.NextDueDate = &d
	}
	return dto
}

func toPaymentDTO(p fees.Payment) PaymentDTO {
	return PaymentDTO{
		ID:            p.ID,
		Amount:        p.Amount.String(),
		Method:        string(p.Method),
		ReceiptNumber: p.ReceiptNumber,
		Note:          p.Note,
		PaidAt:        p.PaidAt.Format(time.RFC3339),
	}
}

func toDiscountDTO(result fees.DiscountResult) DiscountDTO {
	perRule := make([]RuleDiscountDTO, 0, len(result.PerRule))
	for _, rd := range result.PerRule {
		perRule = append(perRule, RuleDiscountDTO{
			RuleID: rd.RuleID,
			Type:   string(rd.Type),
			Amount: rd.Amount.String(),
		})
	}
	return DiscountDTO{
		Subtotal:      result.Subtotal.String(),
		PerRule:       perRule,
		TotalDiscount: result.TotalDiscount.String(),
		FinalAmount:   result.FinalAmount.String(),
	}
}

func toDiscountRuleDTO(rule fees.DiscountRule) DiscountRuleDTO {
	return DiscountRuleDTO{
		ID:         rule.ID,
		Type:       string(rule.Type),
		Name:       rule.Name,
		Percentage: rule.Percentage.String(),
	}
}

func toAllocationDTOs(lines []fees.Allocation) []AllocationDTO {
	dtos := make([]AllocationDTO, 0, len(lines))
	for _, line := range lines {
		dtos = append(dtos, AllocationDTO{
			InstallmentID:     line.InstallmentID,
			InstallmentNumber: line.InstallmentNumber,
			Amount:            line.Amount.String(),
			BalanceBefore:     line.BalanceBefore.String(),
			WillComplete:      line.WillComplete,
		})
	}
	return dtos
}

func toEventDTO(e calendar.Event) EventDTO {
	dto := EventDTO{
		ID:        e.ID,
		Title:     e.Title,
		StartDate: e.Start.String(),
		StartTime: e.StartTime,
		EndTime:   e.EndTime,
		AllDay:    e.IsAllDay(),
		Color:     e.Color,
	}
	if !e.End.IsZero() && !e.End.Equal(e.Start) {
		dto.EndDate = e.End.String()
	}
	return dto
}

func toCheckoutDTO(c *fees.Checkout) CheckoutDTO {
	selected := c.Selected
	if selected == nil {
		selected = []string{}
	}
	return CheckoutDTO{
		ID:        c.ID,
		StudentID: c.StudentID,
		State:     string(c.State),
		Selected:  selected,
		PaymentID: c.PaymentID,
		Terminal:  c.Terminal(),
	}
}
