package services

import (
	"context"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"budgetbot/internal/amqp"
	"budgetbot/internal/core"
	"budgetbot/internal/ledger"
	"budgetbot/internal/refdata"
	"budgetbot/internal/sheets"
)

// EventPublisher receives ledger changes. Publishing is best effort.
type EventPublisher interface {
	PublishLedgerEvent(ctx context.Context, ev *amqp.LedgerEvent) error
}

// Limit targets accepted by UpdateLimit.
const (
	TargetCategory = "category"
	TargetPerson   = "person"
)

// Options configures the household service.
type Options struct {
	AllowedIDs []int64
	// AdminIDs may change limits; empty means every allowed caller.
	AdminIDs          []int64
	Household         core.Household
	RecentLimit       int
	RefreshPerRequest bool
	Location          *time.Location
}

// Expense is the user input of the record command.
type Expense struct {
	Category string
	Amount   int64
	Note     string
	// ChatID is stored in the reserved column when the expense came from a chat.
	ChatID int64
}

// HouseholdService implements the user-facing commands on top of the
// ledger store, reference data and the aggregation functions.
type HouseholdService struct {
	store     sheets.LedgerStore
	ref       *refdata.Store
	publisher EventPublisher
	opts      Options
	now       func() time.Time
	logger    *slog.Logger
}

type Option func(*HouseholdService)

func WithClock(now func() time.Time) Option {
	return func(s *HouseholdService) { s.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *HouseholdService) { s.logger = l }
}

func NewHouseholdService(store sheets.LedgerStore, ref *refdata.Store, publisher EventPublisher, opts Options, options ...Option) *HouseholdService {
	if opts.RecentLimit <= 0 {
		opts.RecentLimit = 5
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	s := &HouseholdService{
		store:     store,
		ref:       ref,
		publisher: publisher,
		opts:      opts,
		now:       time.Now,
		logger:    slog.Default(),
	}
	for _, o := range options {
		o(s)
	}
	return s
}

func (s *HouseholdService) month() core.MonthKey {
	return core.MonthOf(s.now().In(s.opts.Location))
}

// authorize checks the allow-list and returns the reference data to use
// for the rest of the call.
func (s *HouseholdService) authorize(ctx context.Context, caller int64, op string) (core.Reference, error) {
	if !slices.Contains(s.opts.AllowedIDs, caller) {
		s.logger.WarnContext(ctx, "Access denied", "operation", op, "caller", caller)
		return core.Reference{}, core.ErrAccessDenied
	}
	if s.opts.RefreshPerRequest {
		if err := s.ref.Refresh(ctx); err != nil {
			s.logger.WarnContext(ctx, "Reference refresh failed, using cached data", "operation", op, "error", err)
		}
	}
	return s.ref.Snapshot(), nil
}

func (s *HouseholdService) pair(ref core.Reference) ledger.Pair {
	a, b := s.opts.Household.Names(ref)
	return ledger.Pair{A: a, B: b}
}

func (s *HouseholdService) scan(ctx context.Context, op string) (ledger.Snapshot, error) {
	rows, err := s.store.ScanAll(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Ledger scan failed", "operation", op, "error", err)
		return ledger.Snapshot{}, core.Unavailable("scan ledger", err)
	}
	return ledger.NewSnapshot(rows, s.opts.Location), nil
}

// Categories lists the known categories in reference order.
func (s *HouseholdService) Categories(ctx context.Context, caller int64) ([]core.Category, error) {
	ref, err := s.authorize(ctx, caller, "categories")
	if err != nil {
		return nil, err
	}
	return ref.Categories, nil
}

// RecordExpense validates the input, appends one row and reports the new
// category and personal position.
func (s *HouseholdService) RecordExpense(ctx context.Context, caller int64, in Expense) (core.RecordResult, error) {
	ref, err := s.authorize(ctx, caller, "record")
	if err != nil {
		return core.RecordResult{}, err
	}
	category, ok := ref.Category(in.Category)
	if !ok {
		return core.RecordResult{}, core.ErrUnknownCategory
	}
	if in.Amount <= 0 {
		return core.RecordResult{}, core.ErrInvalidAmount
	}
	person, ok := ref.NameOf(caller)
	if !ok {
		person = core.UnknownPerson
	}
	pair := s.pair(ref)

	tx := core.NewTransaction(s.now().In(s.opts.Location), person, category.Name, in.Amount, core.NormalizeNote(in.Note))
	if in.ChatID != 0 {
		tx.Reserved = strconv.FormatInt(in.ChatID, 10)
	}
	if shares, ok := ledger.AttributeShares(ref, pair, category, person, in.Amount); ok {
		tx.Shares = &shares
	}

	if err := s.store.Append(ctx, ledger.Encode(tx)); err != nil {
		s.logger.ErrorContext(ctx, "Ledger append failed", "operation", "record", "caller", caller, "error", err)
		return core.RecordResult{}, core.Unavailable("append transaction", err)
	}

	res := core.RecordResult{Transaction: tx}
	snap, err := s.scan(ctx, "record")
	if err != nil {
		// The row is written; report it without totals rather than invite a retry.
		res.Stale = true
		res.Category = core.CategoryLine{Category: category.Name, Limit: category.Limit}
		res.Person = core.PersonBalance{Name: person, Limit: ref.PersonLimit(person)}
		return res, nil
	}
	res.Category = ledger.Line(snap, tx.Month, category)
	res.Person = ledger.Balance(snap, tx.Month, ref, pair, person)

	s.logger.InfoContext(ctx, "Expense recorded",
		"operation", "record",
		"caller", caller,
		"person", person,
		"category", category.Name,
		"amount", in.Amount,
		"category_warning", res.Category.Warning.String(),
		"person_warning", res.Person.Warning.String())

	a, b := ledger.Balances(snap, tx.Month, ref, pair)
	s.publish(ctx, amqp.EventRecorded, tx, res.Category, res.Person, a, b)
	return res, nil
}

// MonthSummary aggregates the current month.
func (s *HouseholdService) MonthSummary(ctx context.Context, caller int64) (core.MonthSummary, error) {
	ref, err := s.authorize(ctx, caller, "summary")
	if err != nil {
		return core.MonthSummary{}, err
	}
	snap, err := s.scan(ctx, "summary")
	if err != nil {
		return core.MonthSummary{}, err
	}
	return ledger.MonthlySummary(snap, s.month(), ref, s.pair(ref)), nil
}

// Balance returns both persons' current month positions, A first.
func (s *HouseholdService) Balance(ctx context.Context, caller int64) ([]core.PersonBalance, error) {
	ref, err := s.authorize(ctx, caller, "balance")
	if err != nil {
		return nil, err
	}
	snap, err := s.scan(ctx, "balance")
	if err != nil {
		return nil, err
	}
	a, b := ledger.Balances(snap, s.month(), ref, s.pair(ref))
	return []core.PersonBalance{a, b}, nil
}

// UndoLast deletes the caller's most recent transaction of the current
// month. Deleted is false when there was nothing to undo.
func (s *HouseholdService) UndoLast(ctx context.Context, caller int64) (core.UndoResult, error) {
	ref, err := s.authorize(ctx, caller, "undo")
	if err != nil {
		return core.UndoResult{}, err
	}
	person, ok := ref.NameOf(caller)
	if !ok {
		return core.UndoResult{}, core.ErrUnknownCaller
	}
	snap, err := s.scan(ctx, "undo")
	if err != nil {
		return core.UndoResult{}, err
	}
	month := s.month()
	entry, ok := ledger.LastFor(snap, month, person)
	if !ok {
		s.logger.InfoContext(ctx, "Nothing to undo", "operation", "undo", "caller", caller, "person", person)
		return core.UndoResult{}, nil
	}
	if err := s.store.DeleteAt(ctx, entry.StoreRow()); err != nil {
		s.logger.ErrorContext(ctx, "Ledger delete failed", "operation", "undo", "row", entry.StoreRow(), "error", err)
		return core.UndoResult{}, core.Unavailable("delete transaction", err)
	}
	s.logger.InfoContext(ctx, "Transaction undone",
		"operation", "undo",
		"caller", caller,
		"person", person,
		"row", entry.StoreRow(),
		"amount", entry.Amount)

	if category, ok := ref.Category(entry.Category); ok {
		after := snap.Without(entry.Position)
		pair := s.pair(ref)
		a, b := ledger.Balances(after, month, ref, pair)
		s.publish(ctx, amqp.EventUndone, entry.Transaction,
			ledger.Line(after, month, category),
			ledger.Balance(after, month, ref, pair, person), a, b)
	}
	return core.UndoResult{Deleted: true, Transaction: entry.Transaction}, nil
}

// Recent lists the newest transactions, most recent first.
func (s *HouseholdService) Recent(ctx context.Context, caller int64) ([]core.Transaction, error) {
	if _, err := s.authorize(ctx, caller, "recent"); err != nil {
		return nil, err
	}
	snap, err := s.scan(ctx, "recent")
	if err != nil {
		return nil, err
	}
	entries := ledger.Recent(snap, s.opts.RecentLimit)
	out := make([]core.Transaction, len(entries))
	for i, e := range entries {
		out[i] = e.Transaction
	}
	return out, nil
}

// UpdateLimit changes a category limit or one of the two persons' limits.
func (s *HouseholdService) UpdateLimit(ctx context.Context, caller int64, target, name string, value int64) error {
	ref, err := s.authorize(ctx, caller, "update_limit")
	if err != nil {
		return err
	}
	if len(s.opts.AdminIDs) > 0 && !slices.Contains(s.opts.AdminIDs, caller) {
		s.logger.WarnContext(ctx, "Limit update refused", "operation", "update_limit", "caller", caller)
		return core.ErrNotAuthorized
	}
	if value < 0 {
		return core.ErrInvalidLimit
	}

	switch target {
	case TargetCategory:
		err = s.ref.UpdateCategoryLimit(ctx, name, value)
	case TargetPerson:
		pair := s.pair(ref)
		if name != pair.A && name != pair.B {
			return core.ErrInvalidPersonName
		}
		err = s.ref.UpdatePersonLimit(ctx, name, value)
	default:
		return core.ErrInvalidLimitTarget
	}
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Limit updated",
		"operation", "update_limit",
		"caller", caller,
		"target", target,
		"name", name,
		"value", value)
	return nil
}

// Contributions lists each person's nominal contributions and balance.
func (s *HouseholdService) Contributions(ctx context.Context, caller int64) ([]core.ContributionView, error) {
	ref, err := s.authorize(ctx, caller, "contributions")
	if err != nil {
		return nil, err
	}
	snap, err := s.scan(ctx, "contributions")
	if err != nil {
		return nil, err
	}
	return ledger.Contributions(snap, s.month(), ref, s.pair(ref)), nil
}

// Settings returns the editable limits.
func (s *HouseholdService) Settings(ctx context.Context, caller int64) (core.Settings, error) {
	ref, err := s.authorize(ctx, caller, "settings")
	if err != nil {
		return core.Settings{}, err
	}
	pair := s.pair(ref)
	return core.Settings{
		Categories: ref.Categories,
		A:          core.Person{Name: pair.A, Limit: ref.PersonLimit(pair.A)},
		B:          core.Person{Name: pair.B, Limit: ref.PersonLimit(pair.B)},
	}, nil
}

// Household returns the resolved names of both persons.
func (s *HouseholdService) Household() (a, b string) {
	p := s.pair(s.ref.Snapshot())
	return p.A, p.B
}

// Allowed reports whether caller is on the allow-list.
func (s *HouseholdService) Allowed(caller int64) bool {
	return slices.Contains(s.opts.AllowedIDs, caller)
}

func (s *HouseholdService) publish(ctx context.Context, kind string, tx core.Transaction, line core.CategoryLine, bal core.PersonBalance, household ...core.PersonBalance) {
	if s.publisher == nil {
		s.logger.DebugContext(ctx, "No event publisher configured, skipping ledger event")
		return
	}
	ev := amqp.NewLedgerEvent(kind)
	ev.Month = string(tx.Month)
	ev.Person = tx.Person
	ev.Category = tx.Category
	ev.Amount = tx.Amount
	ev.Note = tx.Note
	ev.CategorySpend = line.Spend
	ev.CategoryLimit = line.Limit
	ev.CategoryWarning = line.Warning.String()
	ev.PersonSpend = bal.Spend
	ev.PersonLimit = bal.Limit
	ev.PersonWarning = bal.Warning.String()
	for _, p := range household {
		ev.Household = append(ev.Household, amqp.PersonLevel{
			Name:    p.Name,
			Spend:   p.Spend,
			Limit:   p.Limit,
			Warning: p.Warning.String(),
		})
	}
	if err := s.publisher.PublishLedgerEvent(ctx, ev); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish ledger event", "kind", kind, "error", err)
	}
}
