package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"budgetbot/internal/core"
	blog "budgetbot/internal/log"
	"budgetbot/internal/report"
	"budgetbot/internal/services"
)

const maxBodyBytes = 64 << 10

// flexString accepts a JSON string or number; the mini-app sends both.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expected string or number: %w", err)
	}
	*f = flexString(n.String())
	return nil
}

// apiRequest is the shared body of every POST endpoint.
type apiRequest struct {
	UserID   flexString `json:"userId" validate:"omitempty,max=20"`
	Category string     `json:"cat" validate:"max=100"`
	Amount   flexString `json:"amount" validate:"max=20"`
	Note     string     `json:"note" validate:"max=500"`
	Type     string     `json:"type" validate:"max=20"`
	Name     string     `json:"name" validate:"max=100"`
	Value    flexString `json:"value" validate:"max=20"`
}

type errorBody struct {
	Error string `json:"error"`
}

type apiFunc func(ctx context.Context, caller int64, req apiRequest) (any, error)

// api decodes and validates the body, resolves the caller and maps command
// failures to statuses.
func (s *Server) api(op string, fn apiFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
		defer cancel()
		logger := blog.FromContext(ctx).With(blog.FieldOperation, op)

		var req apiRequest
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			logger.Debug("Malformed request body", blog.FieldError, err)
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "Невірний запит"})
			return
		}
		// Missing or malformed ids fall through as 0 and are refused by
		// the allow-list before the body is validated.
		caller, _ := strconv.ParseInt(string(req.UserID), 10, 64)
		if !s.svc.Allowed(caller) {
			logger.Info("Command refused", blog.NewFields().WithCaller(caller).WithError(core.ErrAccessDenied).ToSlice()...)
			writeJSON(w, http.StatusForbidden, errorBody{Error: report.Error(core.ErrAccessDenied)})
			return
		}
		if err := s.validate.Struct(req); err != nil {
			logger.Debug("Request validation failed", blog.FieldError, err)
			writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: "Невірний запит"})
			return
		}

		body, err := fn(ctx, caller, req)
		if err != nil {
			status := statusFor(err)
			fields := blog.NewFields().WithCaller(caller).WithError(err)
			if status >= http.StatusInternalServerError {
				logger.Error("Command failed", fields.ToSlice()...)
			} else {
				logger.Info("Command refused", fields.ToSlice()...)
			}
			writeJSON(w, status, errorBody{Error: report.Error(err)})
			return
		}
		writeJSON(w, http.StatusOK, body)
	}
}

func statusFor(err error) int {
	switch core.KindOf(err) {
	case core.KindAuthorization:
		return http.StatusForbidden
	case core.KindValidation:
		return http.StatusUnprocessableEntity
	case core.KindNotFound:
		return http.StatusNotFound
	case core.KindUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (s *Server) getCategories(ctx context.Context, caller int64, _ apiRequest) (any, error) {
	cats, err := s.svc.Categories(ctx, caller)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(cats))
	for _, c := range cats {
		names = append(names, c.Name)
	}
	return map[string][]string{"categories": names}, nil
}

func (s *Server) addExpense(ctx context.Context, caller int64, req apiRequest) (any, error) {
	// An unparsable amount is sent as 0 so the service still checks the
	// caller before rejecting it.
	amount, _ := core.ParseAmount(string(req.Amount))
	res, err := s.svc.RecordExpense(ctx, caller, services.Expense{
		Category: req.Category,
		Amount:   amount,
		Note:     req.Note,
	})
	if err != nil {
		return nil, err
	}
	return map[string]string{"message": s.render.Recorded(res)}, nil
}

func (s *Server) summary(ctx context.Context, caller int64, _ apiRequest) (any, error) {
	sum, err := s.svc.MonthSummary(ctx, caller)
	if err != nil {
		return nil, err
	}
	return map[string]string{"summary": s.render.Summary(sum)}, nil
}

func (s *Server) balance(ctx context.Context, caller int64, _ apiRequest) (any, error) {
	bal, err := s.svc.Balance(ctx, caller)
	if err != nil {
		return nil, err
	}
	return map[string]string{"balance": s.render.Balance(bal)}, nil
}

func (s *Server) undo(ctx context.Context, caller int64, _ apiRequest) (any, error) {
	res, err := s.svc.UndoLast(ctx, caller)
	if err != nil {
		return nil, err
	}
	return map[string]any{"message": s.render.Undone(res), "deleted": res.Deleted}, nil
}

func (s *Server) recent(ctx context.Context, caller int64, _ apiRequest) (any, error) {
	txs, err := s.svc.Recent(ctx, caller)
	if err != nil {
		return nil, err
	}
	return map[string]string{"last": s.render.Recent(txs)}, nil
}

func (s *Server) contributions(ctx context.Context, caller int64, _ apiRequest) (any, error) {
	views, err := s.svc.Contributions(ctx, caller)
	if err != nil {
		return nil, err
	}
	return map[string]string{"contributions": s.render.Contributions(views)}, nil
}

type categoryLimit struct {
	Name  string `json:"name"`
	Limit int64  `json:"limit"`
}

type settingsBody struct {
	Categories []categoryLimit   `json:"categories"`
	Limits     map[string]int64 `json:"limits"`
}

func (s *Server) settings(ctx context.Context, caller int64, _ apiRequest) (any, error) {
	st, err := s.svc.Settings(ctx, caller)
	if err != nil {
		return nil, err
	}
	body := settingsBody{
		Categories: make([]categoryLimit, 0, len(st.Categories)),
		Limits:     map[string]int64{st.A.Name: st.A.Limit, st.B.Name: st.B.Limit},
	}
	for _, c := range st.Categories {
		body.Categories = append(body.Categories, categoryLimit{Name: c.Name, Limit: c.Limit})
	}
	return body, nil
}

func (s *Server) updateLimit(ctx context.Context, caller int64, req apiRequest) (any, error) {
	value, err := core.ParseLimit(string(req.Value))
	if err != nil {
		value = -1
	}
	if err := s.svc.UpdateLimit(ctx, caller, req.Type, req.Name, value); err != nil {
		return nil, err
	}
	return map[string]any{"success": true, "message": s.render.LimitUpdated(req.Name, value)}, nil
}
