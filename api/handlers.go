/*
handlers.go - HTTP API handlers for the school fee and calendar engine

PURPOSE:
  Exposes the fee engine and calendar via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Fees:
    GET    /api/students/{id}/fees          Account, schedule, summary
    POST   /api/students/{id}/fees          Create account from structure JSON
    GET    /api/students/{id}/fees/preview  Allocation preview
    GET    /api/students/{id}/payments      Payment history
    POST   /api/students/{id}/payments      Record a payment

  Discounts:
    GET    /api/discounts                   List discount rules
    POST   /api/discounts                   Create/update a rule

  Calendar:
    GET    /api/calendar/grid               Month grid with events
    GET    /api/events                      Events in a date range
    POST   /api/events                      Create event
    PUT    /api/events/{id}                 Update event
    DELETE /api/events/{id}                 Soft-delete event

  Checkout:
    POST   /api/checkout                    Open a session
    GET    /api/checkout/{id}               Session state
    POST   /api/checkout/{id}/advance       Advance the session

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Store: Fee account persistence
  - Events: Calendar event persistence
  - Recorder: Payment recording
  - Factory: Structure JSON to installment plan
  Checkout sessions are held in memory; they are short-lived UI state.

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input (go-playground/validator)
  3. Call domain logic (allocate, discount, grid, recorder)
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Malformed body, validation errors, bad query params
  - 404: Account, event, or session not found
  - 409: Duplicate receipt number
  - 422: Domain rejections (overpayment, empty selection, bad transition)
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/campus/school-engine/calendar"
	"github.com/campus/school-engine/factory"
	"github.com/campus/school-engine/fees"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store    fees.Store
	Events   fees.EventStore
	Recorder *fees.Recorder
	Factory  *factory.StructureFactory

	validate *validator.Validate

	// Now is swappable for tests; defaults to time.Now.
	Now func() time.Time

	// Checkout sessions live in memory only.
	mu       sync.RWMutex
	sessions map[string]*fees.Checkout
}

// NewHandler creates a new handler with the given stores.
func NewHandler(store fees.Store, events fees.EventStore) *Handler {
	return &Handler{
		Store:    store,
		Events:   events,
		Recorder: fees.NewRecorder(store),
		Factory:  factory.NewStructureFactory(),
		validate: validator.New(),
		Now:      time.Now,
		sessions: make(map[string]*fees.Checkout),
	}
}

func (h *Handler) today() calendar.Date {
	return calendar.DateOf(h.Now())
}

// =============================================================================
// FEE ACCOUNT HANDLERS
// =============================================================================

// GetStudentFees returns the student's account with its full schedule.
func (h *Handler) GetStudentFees(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "id")
	ctx := r.Context()

	account, err := h.Store.AccountByStudent(ctx, studentID)
	if err != nil {
		writeDomainError(w, "Failed to load fee account", err)
		return
	}

	installments, err := h.Store.Installments(ctx, account.ID)
	if err != nil {
		writeDomainError(w, "Failed to load installments", err)
		return
	}
	particulars, err := h.Store.Particulars(ctx, account.ID)
	if err != nil {
		writeDomainError(w, "Failed to load particulars", err)
		return
	}

	markOverdue(installments, h.today())
	writeJSON(w, http.StatusOK, h.toAccountDTO(account, installments, particulars))
}

// CreateStudentFees creates a fee account from a structure definition.
func (h *Handler) CreateStudentFees(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "id")

	var req CreateAccountRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	start, err := calendar.ParseDate(req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start_date (use YYYY-MM-DD)", err)
		return
	}

	plan, err := h.Factory.ParseStructure(req.Structure)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid fee structure", err)
		return
	}

	account, particulars, installments := plan.Materialize(studentID, start)
	if err := h.Store.CreateAccount(r.Context(), account, particulars, installments); err != nil {
		writeDomainError(w, "Failed to create fee account", err)
		return
	}

	writeJSON(w, http.StatusCreated, h.toAccountDTO(account, installments, particulars))
}

// PreviewPayment shows how an amount would split across installments
// without committing anything, plus what the stored discount rules take
// off the selected set's total due.
// Query params: amount (required), installments (comma-separated IDs).
func (h *Handler) PreviewPayment(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "id")
	ctx := r.Context()

	amount, err := decimal.NewFromString(r.URL.Query().Get("amount"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}

	var selected []string
	if raw := r.URL.Query().Get("installments"); raw != "" {
		selected = strings.Split(raw, ",")
	}

	account, err := h.Store.AccountByStudent(ctx, studentID)
	if err != nil {
		writeDomainError(w, "Failed to load fee account", err)
		return
	}
	installments, err := h.Store.Installments(ctx, account.ID)
	if err != nil {
		writeDomainError(w, "Failed to load installments", err)
		return
	}

	rules, err := h.Store.DiscountRules(ctx)
	if err != nil {
		writeDomainError(w, "Failed to load discount rules", err)
		return
	}

	preview := fees.PreviewPayment(amount, installments, selected)
	discount := fees.ComputeDiscount(fees.SelectByID(installments, selected), rules)

	writeJSON(w, http.StatusOK, PreviewDTO{
		Lines:       toAllocationDTOs(preview.Lines),
		Allocated:   preview.Allocated.String(),
		Unallocated: preview.Unallocated.String(),
		Discount:    toDiscountDTO(discount),
	})
}

// =============================================================================
// PAYMENT HANDLERS
// =============================================================================

// RecordPayment records a payment against the student's account.
func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "id")

	var req RecordPaymentRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}

	receipt, err := h.Recorder.RecordPayment(r.Context(), studentID, fees.PaymentRequest{
		Amount:        amount,
		Selected:      req.Installments,
		Method:        fees.PaymentMethod(req.Method),
		Note:          req.Note,
		ReceiptNumber: req.ReceiptNumber,
	})
	if err != nil {
		writeDomainError(w, "Failed to record payment", err)
		return
	}

	ctx := r.Context()
	installments, err := h.Store.Installments(ctx, receipt.Account.ID)
	if err != nil {
		writeDomainError(w, "Failed to reload installments", err)
		return
	}
	particulars, err := h.Store.Particulars(ctx, receipt.Account.ID)
	if err != nil {
		writeDomainError(w, "Failed to reload particulars", err)
		return
	}
	markOverdue(installments, h.today())

	writeJSON(w, http.StatusCreated, ReceiptDTO{
		Payment:     toPaymentDTO(receipt.Payment),
		Allocations: toAllocationDTOs(receipt.Allocations),
		Account:     h.toAccountDTO(receipt.Account, installments, particulars),
	})
}

// ListPayments returns the student's payment history, newest first.
func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "id")
	ctx := r.Context()

	account, err := h.Store.AccountByStudent(ctx, studentID)
	if err != nil {
		writeDomainError(w, "Failed to load fee account", err)
		return
	}
	payments, err := h.Store.Payments(ctx, account.ID)
	if err != nil {
		writeDomainError(w, "Failed to load payments", err)
		return
	}

	dtos := make([]PaymentDTO, 0, len(payments))
	for _, p := range payments {
		dtos = append(dtos, toPaymentDTO(p))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// DISCOUNT HANDLERS
// =============================================================================

// ListDiscounts returns all discount rules.
func (h *Handler) ListDiscounts(w http.ResponseWriter, r *http.Request) {
	rules, err := h.Store.DiscountRules(r.Context())
	if err != nil {
		writeDomainError(w, "Failed to load discount rules", err)
		return
	}

	dtos := make([]DiscountRuleDTO, 0, len(rules))
	for _, rule := range rules {
		dtos = append(dtos, toDiscountRuleDTO(rule))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateDiscount creates or updates a discount rule.
func (h *Handler) CreateDiscount(w http.ResponseWriter, r *http.Request) {
	var req CreateDiscountRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	rule := fees.DiscountRule{
		ID:   req.ID,
		Type: fees.DiscountType(req.Type),
		Name: req.Name,
	}
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}

	var err error
	if rule.Percentage, err = decimal.NewFromString(req.Percentage); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid percentage", err)
		return
	}
	if rule.Percentage.IsNegative() || rule.Percentage.GreaterThan(decimal.NewFromInt(100)) {
		writeError(w, http.StatusBadRequest, "Percentage must be between 0 and 100", nil)
		return
	}

	if err := h.Store.SaveDiscountRule(r.Context(), rule); err != nil {
		writeDomainError(w, "Failed to save discount rule", err)
		return
	}
	writeJSON(w, http.StatusCreated, toDiscountRuleDTO(rule))
}

// =============================================================================
// CALENDAR HANDLERS
// =============================================================================

// GetMonthGrid returns the month grid for a year/month plus the events
// falling inside the visible range.
// Query params: year, month (1-12). Defaults to the current month.
func (h *Handler) GetMonthGrid(w http.ResponseWriter, r *http.Request) {
	now := h.today()
	year, month := now.Year(), int(now.Month())

	var err error
	if raw := r.URL.Query().Get("year"); raw != "" {
		if year, err = strconv.Atoi(raw); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid year", err)
			return
		}
	}
	if raw := r.URL.Query().Get("month"); raw != "" {
		if month, err = strconv.Atoi(raw); err != nil || month < 1 || month > 12 {
			writeError(w, http.StatusBadRequest, "Invalid month (use 1-12)", err)
			return
		}
	}

	// The grid builder counts months from zero.
	cells := calendar.BuildMonthGrid(year, month-1)
	first, last := cells[0].Date, cells[len(cells)-1].Date

	events, err := h.Events.EventsInRange(r.Context(), first, last)
	if err != nil {
		writeDomainError(w, "Failed to load events", err)
		return
	}

	cellDTOs := make([]GridCellDTO, len(cells))
	for i, c := range cells {
		cellDTOs[i] = GridCellDTO{
			Day:        c.Day,
			Date:       c.Date.String(),
			Membership: c.Membership.String(),
			Today:      c.Date.Equal(now),
		}
	}

	eventDTOs := make([]EventDTO, 0, len(events))
	for _, e := range events {
		eventDTOs = append(eventDTOs, toEventDTO(e))
	}

	writeJSON(w, http.StatusOK, GridDTO{
		Year:   year,
		Month:  month,
		Cells:  cellDTOs,
		Events: eventDTOs,
	})
}

// ListEvents returns events in [from, to]. Defaults to the current month.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	now := h.today()
	from := calendar.NewDate(now.Year(), now.Month(), 1)
	to := from.AddMonths(1).AddDays(-1)

	var err error
	if raw := r.URL.Query().Get("from"); raw != "" {
		if from, err = calendar.ParseDate(raw); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid from date", err)
			return
		}
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		if to, err = calendar.ParseDate(raw); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid to date", err)
			return
		}
	}
	if to.Before(from) {
		writeError(w, http.StatusBadRequest, "Range end precedes start", nil)
		return
	}

	events, err := h.Events.EventsInRange(r.Context(), from, to)
	if err != nil {
		writeDomainError(w, "Failed to load events", err)
		return
	}

	dtos := make([]EventDTO, 0, len(events))
	for _, e := range events {
		dtos = append(dtos, toEventDTO(e))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateEvent creates a calendar event.
func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req CreateEventRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	event, err := h.eventFromRequest(uuid.NewString(), req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid event", err)
		return
	}

	if err := h.Events.CreateEvent(r.Context(), event); err != nil {
		writeDomainError(w, "Failed to create event", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEventDTO(event))
}

// UpdateEvent replaces an event by ID.
func (h *Handler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req UpdateEventRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	event, err := h.eventFromRequest(id, req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid event", err)
		return
	}

	if err := h.Events.UpdateEvent(r.Context(), event); err != nil {
		writeDomainError(w, "Failed to update event", err)
		return
	}
	writeJSON(w, http.StatusOK, toEventDTO(event))
}

// DeleteEvent soft-deletes an event.
func (h *Handler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.Events.DeleteEvent(r.Context(), id); err != nil {
		writeDomainError(w, "Failed to delete event", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
}

// eventFromRequest builds a domain event from a validated request body.
// An inverted date range is rejected here; the domain layer would clamp
// it silently, which hides caller mistakes.
func (h *Handler) eventFromRequest(id string, req CreateEventRequest) (calendar.Event, error) {
	start, err := calendar.ParseDate(req.StartDate)
	if err != nil {
		return calendar.Event{}, err
	}

	event := calendar.Event{
		ID:        id,
		Title:     req.Title,
		Start:     start,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		AllDay:    req.AllDay,
		Color:     req.Color,
	}

	if req.EndDate != "" {
		end, err := calendar.ParseDate(req.EndDate)
		if err != nil {
			return calendar.Event{}, err
		}
		if end.Before(start) {
			return calendar.Event{}, errors.New("end_date precedes start_date")
		}
		event.End = end
	}

	if req.StartTime != "" {
		if _, err := calendar.ParseClock(req.StartTime); err != nil {
			return calendar.Event{}, err
		}
	}
	if req.EndTime != "" {
		if _, err := calendar.ParseClock(req.EndTime); err != nil {
			return calendar.Event{}, err
		}
	}
	return event, nil
}

// =============================================================================
// CHECKOUT HANDLERS
// =============================================================================

// OpenCheckout opens a new checkout session in the search state.
func (h *Handler) OpenCheckout(w http.ResponseWriter, r *http.Request) {
	var req OpenCheckoutRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	// The student must exist before a session makes sense.
	if _, err := h.Store.AccountByStudent(r.Context(), req.StudentID); err != nil {
		writeDomainError(w, "Failed to open checkout", err)
		return
	}

	session := fees.NewCheckout(uuid.NewString(), req.StudentID, h.Now())

	h.mu.Lock()
	h.sessions[session.ID] = session
	h.mu.Unlock()

	writeJSON(w, http.StatusCreated, toCheckoutDTO(session))
}

// GetCheckout returns the session state.
func (h *Handler) GetCheckout(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "Checkout session not found", nil)
		return
	}

	h.mu.RLock()
	dto := toCheckoutDTO(session)
	h.mu.RUnlock()
	writeJSON(w, http.StatusOK, dto)
}

// AdvanceCheckout moves a session to a new state. Moving into payment
// takes the installment selection; completing takes the payment id.
func (h *Handler) AdvanceCheckout(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "Checkout session not found", nil)
		return
	}

	var req AdvanceCheckoutRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.Now()
	if len(req.Selected) > 0 {
		if err := session.Select(req.Selected, now); err != nil {
			writeDomainError(w, "Failed to update selection", err)
			return
		}
	}
	if err := session.Advance(fees.CheckoutState(req.State), req.PaymentID, now); err != nil {
		writeDomainError(w, "Failed to advance checkout", err)
		return
	}

	writeJSON(w, http.StatusOK, toCheckoutDTO(session))
}

func (h *Handler) session(id string) (*fees.Checkout, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s, ok := h.sessions[id]
	return s, ok
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) toAccountDTO(account fees.Account, installments []fees.Installment, particulars []fees.Particular) FeeAccountDTO {
	today := h.today()

	instDTOs := make([]InstallmentDTO, 0, len(installments))
	for _, inst := range installments {
		instDTOs = append(instDTOs, toInstallmentDTO(inst, today))
	}
	partDTOs := make([]ParticularDTO, 0, len(particulars))
	for _, p := range particulars {
		partDTOs = append(partDTOs, toParticularDTO(p))
	}

	return FeeAccountDTO{
		ID:             account.ID,
		StudentID:      account.StudentID,
		StructureName:  account.StructureName,
		AcademicYear:   account.AcademicYear,
		OriginalAmount: account.OriginalAmount.String(),
		DiscountAmount: account.DiscountAmount.String(),
		FinalAmount:    account.FinalAmount.String(),
		PaidAmount:     account.PaidAmount.String(),
		Balance:        account.BalanceAmount().String(),
		Status:         string(account.Status),
		Installments:   instDTOs,
		Particulars:    partDTOs,
		Summary:        toSummaryDTO(fees.Summarize(installments)),
	}
}

// markOverdue flags unpaid installments whose due date has passed. The
// engine treats the flag as supplied data, so the boundary computes it.
func markOverdue(installments []fees.Installment, today calendar.Date) {
	for i := range installments {
		inst := &installments[i]
		inst.Overdue = inst.Status != fees.StatusPaid && inst.DueDate.Before(today)
	}
}

// decodeAndValidate parses the JSON body into dst and runs struct
// validation, writing a 400 on failure.
func (h *Handler) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Detail = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps engine errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case fees.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, fees.ErrDuplicateReceipt):
		writeError(w, http.StatusConflict, message, err)
	case fees.IsClientError(err):
		writeError(w, http.StatusUnprocessableEntity, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
