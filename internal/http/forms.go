package http

import (
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"finboard/internal/core"
	"finboard/internal/log"
)

const defaultTheme = "#277C78"

var validationErrors = []error{
	core.ErrInvalidAmount,
	core.ErrEmptyName,
	core.ErrNameTooLong,
	core.ErrEmptyCategory,
	core.ErrZeroDate,
	core.ErrInvalidTarget,
}

func isValidationError(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// parseTransaction builds a transaction from form or JSON fields. Amounts are
// entered as positive decimals; type=income keeps the sign positive and
// anything else records an expense.
func parseTransaction(p *RequestBodyParser, now time.Time) (core.Transaction, error) {
	cents, err := core.ParseDecimalToCents(p.Get("amount"))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("amount: %w", err)
	}
	if !strings.EqualFold(p.Get("type"), "income") {
		cents = -cents
	}

	date := now
	if v := p.Get("date"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			return core.Transaction{}, fmt.Errorf("date %q: %w", v, core.ErrZeroDate)
		}
		date = parsed
	}

	return core.Transaction{
		Name:          p.Get("name"),
		Amount:        core.Money{Cents: cents},
		Date:          date,
		Category:      p.Get("category"),
		RecurringBill: p.GetBool("recurring"),
	}, nil
}

func (s *Server) handleRecordTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	parser := NewRequestBodyParser(r)
	if err := parser.Parse(); err != nil {
		BadRequestError("Malformed request body").Write(w)
		return
	}

	tx, err := parseTransaction(parser, s.now())
	if err == nil {
		tx, err = s.recorder.Record(ctx, tx)
	}
	if err != nil {
		if isValidationError(err) {
			msg := "Invalid transaction: " + err.Error()
			resp := UnprocessableEntityError(msg)
			if isHTMX(r) {
				resp.TriggerErrorNotification(msg)
			}
			resp.Write(w)
			return
		}
		s.requestLog.LogError(ctx, "Record transaction failed", err, log.OpCreate,
			log.NewFields().WithRequestID(RequestIDFromContext(ctx)))
		InternalServerError("Could not save the transaction").Write(w)
		return
	}

	s.InvalidateCaches()
	s.refreshSnapshot(ctx)

	switch {
	case parser.IsJSON() || wantsJSON(r):
		NewHTMXResponse().
			Status(http.StatusCreated).
			BodyJSON(toTransactionJSON(tx)).
			Write(w)
	case isHTMX(r):
		NewHTMXResponse().
			TriggerTransactionRecorded(tx.ID).
			TriggerFormReset().
			TriggerSuccessNotification("Transaction recorded").
			BodyHTML(`<div class="success">Recorded ` + template.HTMLEscapeString(tx.Name) +
				` (` + template.HTMLEscapeString(tx.Amount.Signed()) + `)</div>`).
			Write(w)
	default:
		http.Redirect(w, r, "/transactions", http.StatusSeeOther)
	}
}

func (s *Server) handleSavePot(w http.ResponseWriter, r *http.Request) {
	if s.editor == nil {
		MethodNotAllowedError(http.MethodGet).Write(w)
		return
	}
	ctx := r.Context()

	parser := NewRequestBodyParser(r)
	if err := parser.Parse(); err != nil {
		BadRequestError("Malformed request body").Write(w)
		return
	}

	target, err := core.ParseDecimalToCents(parser.Get("target"))
	if err != nil {
		UnprocessableEntityError("Invalid target").Write(w)
		return
	}
	var total int64
	if v := parser.Get("total"); strings.Trim(v, "0.,") != "" {
		if total, err = core.ParseDecimalToCents(v); err != nil {
			UnprocessableEntityError("Invalid amount saved").Write(w)
			return
		}
	}
	theme := parser.Get("theme")
	if theme == "" {
		theme = defaultTheme
	}

	pot := core.Pot{
		ID:     parser.Get("id"),
		Name:   parser.Get("name"),
		Target: core.Money{Cents: target},
		Total:  core.Money{Cents: total},
		Theme:  safeColor(theme),
	}
	if pot.ID == "" {
		pot.ID = uuid.NewString()
	}
	if err := pot.Validate(); err != nil {
		UnprocessableEntityError("Invalid pot: " + err.Error()).Write(w)
		return
	}
	if err := s.editor.SavePot(ctx, pot); err != nil {
		log.FromContext(ctx).ErrorContext(ctx, "Save pot failed", log.FieldError, err, log.FieldOperation, log.OpCreate)
		InternalServerError("Could not save the pot").Write(w)
		return
	}

	s.respondSaved(w, r, "/pots", NewHTMXResponse().TriggerPotSaved(pot.Name), toPotJSON(pot))
}

func (s *Server) handleSaveBudget(w http.ResponseWriter, r *http.Request) {
	if s.editor == nil {
		MethodNotAllowedError(http.MethodGet).Write(w)
		return
	}
	ctx := r.Context()

	parser := NewRequestBodyParser(r)
	if err := parser.Parse(); err != nil {
		BadRequestError("Malformed request body").Write(w)
		return
	}

	maximum, err := core.ParseDecimalToCents(parser.Get("maximum"))
	if err != nil {
		UnprocessableEntityError("Invalid maximum spend").Write(w)
		return
	}
	theme := parser.Get("theme")
	if theme == "" {
		theme = defaultTheme
	}

	budget := core.Budget{
		Category: parser.Get("category"),
		Maximum:  core.Money{Cents: maximum},
		Theme:    safeColor(theme),
	}
	if err := budget.Validate(); err != nil {
		UnprocessableEntityError("Invalid budget: " + err.Error()).Write(w)
		return
	}
	if err := s.editor.SaveBudget(ctx, budget); err != nil {
		log.FromContext(ctx).ErrorContext(ctx, "Save budget failed", log.FieldError, err, log.FieldOperation, log.OpCreate)
		InternalServerError("Could not save the budget").Write(w)
		return
	}

	s.InvalidateCaches()
	s.respondSaved(w, r, "/budgets", NewHTMXResponse().TriggerBudgetSaved(budget.Category), toBudgetJSON(budget))
}

// respondSaved answers a successful form post: JSON for API clients, a
// trigger-only 204 for HTMX and a redirect for plain forms.
func (s *Server) respondSaved(w http.ResponseWriter, r *http.Request, redirect string, b *HTMXResponseBuilder, v any) {
	switch {
	case wantsJSON(r):
		b.Status(http.StatusCreated).BodyJSON(v).Write(w)
	case isHTMX(r):
		b.Header("HX-Redirect", redirect).Status(http.StatusNoContent).Write(w)
	default:
		http.Redirect(w, r, redirect, http.StatusSeeOther)
	}
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}
