/*
handlers_test.go - Unit tests for API handlers

Tests for:
- Fee account creation and retrieval
- Allocation preview and payment recording over HTTP
- Event CRUD and the month grid endpoint
- Checkout session lifecycle
- Error status mapping
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/campus/school-engine/calendar"
	"github.com/campus/school-engine/fees"
	store "github.com/campus/school-engine/fees/store"
)

const structureJSON = `{
	"name": "Grade 5",
	"academic_year": "2024-25",
	"mode": "MONTHLY",
	"installments": 4,
	"due_day": 10,
	"particulars": [
		{"name": "Tuition", "amount": 1600},
		{"name": "Transport", "amount": 400}
	]
}`

func newTestServer(t *testing.T) (*Handler, *httptest.Server) {
	t.Helper()
	mem := store.NewMemory()
	h := NewHandler(mem, mem)
	h.Now = func() time.Time {
		return time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)
	}
	h.Recorder.Now = h.Now
	srv := httptest.NewServer(NewRouter(h))
	t.Cleanup(srv.Close)
	return h, srv
}

func doRaw(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode body: %v", err)
		}
	}
	req, err := http.NewRequestWithContext(context.Background(), method, url, &buf)
	if err != nil {
		t.Fatalf("Failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// doJSON performs a request expecting a JSON object response.
func doJSON(t *testing.T, method, url string, body any) (*http.Response, map[string]any) {
	t.Helper()
	resp := doRaw(t, method, url, body)

	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return resp, decoded
}

// doJSONList performs a request expecting a JSON array response.
func doJSONList(t *testing.T, method, url string, body any) (*http.Response, []any) {
	t.Helper()
	resp := doRaw(t, method, url, body)

	var decoded []any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("Failed to decode list response: %v", err)
	}
	return resp, decoded
}

func createAccount(t *testing.T, srv *httptest.Server, studentID string) map[string]any {
	t.Helper()
	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/students/"+studentID+"/fees", map[string]any{
		"start_date": "2024-06-01",
		"structure":  structureJSON,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %v", resp.StatusCode, body)
	}
	return body
}

// =============================================================================
// FEE ACCOUNT TESTS
// =============================================================================

func TestCreateAndGetStudentFees(t *testing.T) {
	// GIVEN: A fresh server
	_, srv := newTestServer(t)

	// WHEN: Creating a fee account from a structure
	created := createAccount(t, srv, "stu-1")

	// THEN: The account carries the full schedule
	if created["student_id"] != "stu-1" {
		t.Errorf("Expected student stu-1, got %v", created["student_id"])
	}
	if created["final_amount"] != "2000" {
		t.Errorf("Expected final amount 2000, got %v", created["final_amount"])
	}
	installments := created["installments"].([]any)
	if len(installments) != 4 {
		t.Fatalf("Expected 4 installments, got %d", len(installments))
	}
	first := installments[0].(map[string]any)
	if first["amount"] != "500" {
		t.Errorf("Expected installment amount 500, got %v", first["amount"])
	}
	if first["due_date"] != "2024-06-10" {
		t.Errorf("Expected due date 2024-06-10, got %v", first["due_date"])
	}

	// AND: The account is retrievable
	resp, got := doJSON(t, http.MethodGet, srv.URL+"/api/students/stu-1/fees", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	summary := got["summary"].(map[string]any)
	if summary["total_outstanding"] != "2000" {
		t.Errorf("Expected outstanding 2000, got %v", summary["total_outstanding"])
	}
	if summary["next_due_date"] != "2024-06-10" {
		t.Errorf("Expected next due 2024-06-10, got %v", summary["next_due_date"])
	}
}

func TestGetStudentFees_NotFound(t *testing.T) {
	_, srv := newTestServer(t)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/students/nobody/fees", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("Expected 404, got %d: %v", resp.StatusCode, body)
	}
	if body["error"] == "" {
		t.Error("Expected an error message")
	}
}

func TestCreateStudentFees_InvalidStructure(t *testing.T) {
	_, srv := newTestServer(t)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/students/stu-1/fees", map[string]any{
		"start_date": "2024-06-01",
		"structure":  `{"name": "", "particulars": []}`,
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", resp.StatusCode)
	}
}

// =============================================================================
// PAYMENT TESTS
// =============================================================================

func TestPreviewPayment(t *testing.T) {
	// GIVEN: An account with four 500 installments
	_, srv := newTestServer(t)
	createAccount(t, srv, "stu-1")

	// WHEN: Previewing 1200 across the whole schedule
	resp, body := doJSON(t, http.MethodGet,
		srv.URL+"/api/students/stu-1/fees/preview?amount=1200", nil)

	// THEN: Two installments complete, the third is partial
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %v", resp.StatusCode, body)
	}
	lines := body["lines"].([]any)
	if len(lines) != 3 {
		t.Fatalf("Expected 3 allocation lines, got %d", len(lines))
	}
	last := lines[2].(map[string]any)
	if last["amount"] != "200" || last["will_complete"] != false {
		t.Errorf("Expected partial 200 on the third installment, got %v", last)
	}
	if body["allocated"] != "1200" || body["unallocated"] != "0" {
		t.Errorf("Expected 1200/0 split, got %v/%v", body["allocated"], body["unallocated"])
	}
}

func TestPreviewPayment_AppliesDiscountRules(t *testing.T) {
	// GIVEN: An account of four 500 installments and a 10% sibling rule
	_, srv := newTestServer(t)
	account := createAccount(t, srv, "stu-1")
	installments := account["installments"].([]any)
	firstID := installments[0].(map[string]any)["id"].(string)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/discounts/", map[string]any{
		"type":       "SIBLING",
		"name":       "Sibling discount",
		"percentage": "10",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", resp.StatusCode)
	}

	// WHEN: Previewing without a selection
	resp, body := doJSON(t, http.MethodGet,
		srv.URL+"/api/students/stu-1/fees/preview?amount=1200", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %v", resp.StatusCode, body)
	}

	// THEN: The rule discounts the whole unpaid schedule
	discount := body["discount"].(map[string]any)
	if discount["subtotal"] != "2000" {
		t.Errorf("Expected subtotal 2000, got %v", discount["subtotal"])
	}
	if discount["total_discount"] != "200" || discount["final_amount"] != "1800" {
		t.Errorf("Expected 200 off 2000, got %v off -> %v",
			discount["total_discount"], discount["final_amount"])
	}
	perRule := discount["per_rule"].([]any)
	if len(perRule) != 1 || perRule[0].(map[string]any)["type"] != "SIBLING" {
		t.Errorf("Expected one sibling contribution, got %v", perRule)
	}

	// AND: A selection narrows the discount base to the selected set
	resp, body = doJSON(t, http.MethodGet,
		srv.URL+"/api/students/stu-1/fees/preview?amount=500&installments="+firstID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	discount = body["discount"].(map[string]any)
	if discount["subtotal"] != "500" || discount["final_amount"] != "450" {
		t.Errorf("Expected 450 payable on a 500 selection, got %v -> %v",
			discount["subtotal"], discount["final_amount"])
	}
}

func TestRecordPayment_FullFlow(t *testing.T) {
	// GIVEN: A fresh account
	_, srv := newTestServer(t)
	createAccount(t, srv, "stu-1")

	// WHEN: Paying 500 in cash
	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/students/stu-1/payments", map[string]any{
		"amount": "500",
		"method": "CASH",
	})

	// THEN: The receipt shows one completed installment
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %v", resp.StatusCode, body)
	}
	allocations := body["allocations"].([]any)
	if len(allocations) != 1 {
		t.Fatalf("Expected 1 allocation, got %d", len(allocations))
	}
	line := allocations[0].(map[string]any)
	if line["will_complete"] != true {
		t.Errorf("Expected the installment to complete, got %v", line)
	}
	account := body["account"].(map[string]any)
	if account["paid_amount"] != "500" || account["status"] != string(fees.StatusPartial) {
		t.Errorf("Expected partial account at 500 paid, got %v/%v",
			account["paid_amount"], account["status"])
	}

	// AND: The payment appears in history
	resp, history := doJSONList(t, http.MethodGet, srv.URL+"/api/students/stu-1/payments", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if len(history) != 1 {
		t.Fatalf("Expected 1 payment in history, got %d", len(history))
	}
	recorded := history[0].(map[string]any)
	if recorded["amount"] != "500" || recorded["method"] != "CASH" {
		t.Errorf("Expected 500 CASH payment in history, got %v", recorded)
	}
}

func TestRecordPayment_Overpayment(t *testing.T) {
	_, srv := newTestServer(t)
	createAccount(t, srv, "stu-1")

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/students/stu-1/payments", map[string]any{
		"amount": "5000",
		"method": "CASH",
	})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("Expected 422, got %d: %v", resp.StatusCode, body)
	}
}

func TestRecordPayment_DuplicateReceipt(t *testing.T) {
	_, srv := newTestServer(t)
	createAccount(t, srv, "stu-1")

	pay := map[string]any{"amount": "100", "method": "CASH", "receipt_number": "RCPT-9"}
	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/students/stu-1/payments", pay)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/students/stu-1/payments", pay)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("Expected 409 on duplicate receipt, got %d", resp.StatusCode)
	}
}

func TestRecordPayment_Validation(t *testing.T) {
	_, srv := newTestServer(t)
	createAccount(t, srv, "stu-1")

	// Unknown method fails struct validation.
	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/students/stu-1/payments", map[string]any{
		"amount": "100",
		"method": "BARTER",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("Expected 400 for unknown method, got %d", resp.StatusCode)
	}
}

// =============================================================================
// DISCOUNT TESTS
// =============================================================================

func TestDiscountRules(t *testing.T) {
	_, srv := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/discounts/", map[string]any{
		"type":       "SIBLING",
		"name":       "Sibling discount",
		"percentage": "10",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %v", resp.StatusCode, body)
	}
	if body["id"] == "" {
		t.Error("Expected a generated rule id")
	}

	resp, rules := doJSONList(t, http.MethodGet, srv.URL+"/api/discounts/", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if len(rules) != 1 {
		t.Fatalf("Expected 1 rule, got %d", len(rules))
	}
	rule := rules[0].(map[string]any)
	if rule["type"] != "SIBLING" || rule["percentage"] != "10" {
		t.Errorf("Expected the sibling rule back, got %v", rule)
	}

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/discounts/", map[string]any{
		"type":       "MERIT",
		"name":       "Merit",
		"percentage": "150",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("Expected 400 for out-of-range percentage, got %d", resp.StatusCode)
	}
}

// =============================================================================
// CALENDAR TESTS
// =============================================================================

func TestGetMonthGrid(t *testing.T) {
	// GIVEN: One event inside June 2024
	h, srv := newTestServer(t)
	err := h.Events.CreateEvent(context.Background(), mustEvent("ev-1", "Sports Day", "2024-06-15"))
	if err != nil {
		t.Fatalf("Failed to seed event: %v", err)
	}

	// WHEN: Fetching the June 2024 grid
	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/calendar/grid?year=2024&month=6", nil)

	// THEN: June renders as 6 weeks and carries the event
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	cells := body["cells"].([]any)
	if len(cells) != 42 {
		t.Fatalf("Expected 42 cells for June 2024, got %d", len(cells))
	}
	events := body["events"].([]any)
	if len(events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(events))
	}

	// AND: Today's cell is flagged
	var todayCount int
	for _, c := range cells {
		cell := c.(map[string]any)
		if cell["today"] == true {
			todayCount++
			if cell["date"] != "2024-06-01" {
				t.Errorf("Expected today at 2024-06-01, got %v", cell["date"])
			}
		}
	}
	if todayCount != 1 {
		t.Errorf("Expected exactly one today cell, got %d", todayCount)
	}
}

func TestGetMonthGrid_BadMonth(t *testing.T) {
	_, srv := newTestServer(t)

	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/api/calendar/grid?year=2024&month=13", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", resp.StatusCode)
	}
}

func TestEventLifecycle(t *testing.T) {
	// GIVEN: A created event
	_, srv := newTestServer(t)

	resp, created := doJSON(t, http.MethodPost, srv.URL+"/api/events/", map[string]any{
		"title":      "Term exams",
		"start_date": "2024-06-10",
		"end_date":   "2024-06-14",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %v", resp.StatusCode, created)
	}
	id := created["id"].(string)
	if created["all_day"] != true {
		t.Error("Expected an all-day event without times")
	}

	// WHEN: Updating it with times
	resp, updated := doJSON(t, http.MethodPut, srv.URL+"/api/events/"+id, map[string]any{
		"title":      "Term exams",
		"start_date": "2024-06-10",
		"end_date":   "2024-06-14",
		"start_time": "09:00",
		"end_time":   "12:00",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %v", resp.StatusCode, updated)
	}
	if updated["all_day"] != false {
		t.Error("Expected a timed event after update")
	}

	// THEN: It lists in range, and deleting hides it
	resp, listed := doJSONList(t, http.MethodGet,
		srv.URL+"/api/events/?from=2024-06-01&to=2024-06-30", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if len(listed) != 1 || listed[0].(map[string]any)["id"] != id {
		t.Fatalf("Expected the event in range, got %v", listed)
	}

	resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/api/events/"+id, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/api/events/"+id, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("Expected 404 after delete, got %d", resp.StatusCode)
	}
}

func TestCreateEvent_InvertedRange(t *testing.T) {
	_, srv := newTestServer(t)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/events/", map[string]any{
		"title":      "Backwards",
		"start_date": "2024-06-14",
		"end_date":   "2024-06-10",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("Expected 400 for inverted range, got %d", resp.StatusCode)
	}
}

// =============================================================================
// CHECKOUT TESTS
// =============================================================================

func TestCheckoutLifecycle(t *testing.T) {
	// GIVEN: An account and an open session
	_, srv := newTestServer(t)
	account := createAccount(t, srv, "stu-1")
	installments := account["installments"].([]any)
	firstID := installments[0].(map[string]any)["id"].(string)

	resp, session := doJSON(t, http.MethodPost, srv.URL+"/api/checkout/", map[string]any{
		"student_id": "stu-1",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %v", resp.StatusCode, session)
	}
	id := session["id"].(string)
	if session["state"] != "search" {
		t.Fatalf("Expected search state, got %v", session["state"])
	}

	// WHEN: Advancing to payment with a selection, then to success
	resp, session = doJSON(t, http.MethodPost, srv.URL+"/api/checkout/"+id+"/advance", map[string]any{
		"state":    "payment",
		"selected": []string{firstID},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %v", resp.StatusCode, session)
	}
	if session["state"] != "payment" {
		t.Fatalf("Expected payment state, got %v", session["state"])
	}

	resp, session = doJSON(t, http.MethodPost, srv.URL+"/api/checkout/"+id+"/advance", map[string]any{
		"state":      "success",
		"payment_id": "pay-1",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %v", resp.StatusCode, session)
	}

	// THEN: The session is terminal and readable
	resp, session = doJSON(t, http.MethodGet, srv.URL+"/api/checkout/"+id, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if session["terminal"] != true || session["payment_id"] != "pay-1" {
		t.Errorf("Expected terminal session with pay-1, got %v", session)
	}
}

func TestCheckout_RequiresSelection(t *testing.T) {
	_, srv := newTestServer(t)
	createAccount(t, srv, "stu-1")

	resp, session := doJSON(t, http.MethodPost, srv.URL+"/api/checkout/", map[string]any{
		"student_id": "stu-1",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", resp.StatusCode)
	}
	id := session["id"].(string)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/checkout/"+id+"/advance", map[string]any{
		"state": "payment",
	})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("Expected 422 without a selection, got %d: %v", resp.StatusCode, body)
	}
}

func TestCheckout_UnknownStudent(t *testing.T) {
	_, srv := newTestServer(t)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/checkout/", map[string]any{
		"student_id": "nobody",
	})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("Expected 404, got %d", resp.StatusCode)
	}
}

func TestCheckout_NotFound(t *testing.T) {
	_, srv := newTestServer(t)

	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/api/checkout/missing", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("Expected 404, got %d", resp.StatusCode)
	}
}

// =============================================================================
// TEST HELPERS
// =============================================================================

func mustEvent(id, title, start string) calendar.Event {
	d, err := calendar.ParseDate(start)
	if err != nil {
		panic(fmt.Sprintf("bad test date %q: %v", start, err))
	}
	return calendar.Event{ID: id, Title: title, Start: d}
}
