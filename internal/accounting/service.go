package accounting

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ifrs-ledger/internal/shared"
)

// RepositoryPort abstracts transactional repository behaviour.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// AuditPort records ledger events for compliance.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// MetricsPort counts posting outcomes.
type MetricsPort interface {
	JournalPosted(source SourceType)
	JournalRejected(reason string)
}

// Service coordinates posting and reversing journal entries.
type Service struct {
	repo    RepositoryPort
	audit   AuditPort
	metrics MetricsPort
	now     func() time.Time
}

// NewService constructs the ledger service. audit and metrics may be nil.
func NewService(repo RepositoryPort, audit AuditPort, metrics MetricsPort) *Service {
	return &Service{repo: repo, audit: audit, metrics: metrics, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// PostJournal validates and persists a new journal entry. Accounts are locked,
// the entry and its lines written, the source linked and balances updated in a
// single transaction; any failure leaves the ledger untouched.
func (s *Service) PostJournal(ctx context.Context, input PostingInput) (JournalEntry, error) {
	if input.Date.IsZero() {
		input.Date = s.now()
	}
	if err := input.Validate(); err != nil {
		s.rejected(err)
		return JournalEntry{}, err
	}
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		entry, err = s.post(ctx, tx, input)
		return err
	})
	if err != nil {
		s.rejected(err)
		return JournalEntry{}, err
	}
	s.record(ctx, shared.AuditLog{
		CompanyID: entry.CompanyID,
		ActorID:   input.PostedBy,
		Action:    "journal.post",
		Entity:    "journal_entry",
		EntityID:  strconv.FormatInt(entry.ID, 10),
		Meta: map[string]any{
			"number":       entry.Number,
			"source":       entry.Source.String(),
			"total_debit":  entry.TotalDebit.StringFixed(2),
			"total_credit": entry.TotalCredit.StringFixed(2),
		},
		At: s.now(),
	})
	if s.metrics != nil {
		s.metrics.JournalPosted(entry.Source.Type)
	}
	return entry, nil
}

func (s *Service) post(ctx context.Context, tx TxRepository, input PostingInput) (JournalEntry, error) {
	accounts, err := lockAccounts(ctx, tx, input.CompanyID, input.Lines)
	if err != nil {
		return JournalEntry{}, err
	}
	number, err := tx.NextJournalNumber(ctx, input.CompanyID)
	if err != nil {
		return JournalEntry{}, err
	}
	debit, credit := input.Totals()
	inserted, err := tx.InsertJournalEntry(ctx, JournalEntry{
		CompanyID:   input.CompanyID,
		Number:      number,
		Date:        input.Date,
		Description: input.Description,
		Source:      input.Source,
		Status:      JournalStatusPosted,
		TotalDebit:  debit,
		TotalCredit: credit,
		PostedBy:    input.PostedBy,
		PostedAt:    s.now(),
		ReversalOf:  input.reversalOf,
	})
	if err != nil {
		return JournalEntry{}, err
	}
	lines := toJournalLines(inserted.ID, input.Lines, accounts)
	if err := tx.InsertJournalLines(ctx, inserted.ID, lines); err != nil {
		return JournalEntry{}, err
	}
	if err := tx.LinkSource(ctx, input.CompanyID, input.Source, inserted.ID); err != nil {
		if errors.Is(err, ErrSourceConflict) {
			return JournalEntry{}, ErrSourceAlreadyLinked
		}
		return JournalEntry{}, err
	}
	if err := applyBalances(ctx, tx, accounts, input.Lines); err != nil {
		return JournalEntry{}, err
	}
	inserted.Lines = lines
	return inserted, nil
}

// lockAccounts resolves every referenced code with a row lock, taking locks in
// ascending code order so concurrent postings cannot deadlock.
func lockAccounts(ctx context.Context, tx TxRepository, companyID int64, lines []PostingLineInput) (map[string]Account, error) {
	codes := make([]string, 0, len(lines))
	seen := make(map[string]struct{}, len(lines))
	for _, line := range lines {
		if _, ok := seen[line.AccountCode]; ok {
			continue
		}
		seen[line.AccountCode] = struct{}{}
		codes = append(codes, line.AccountCode)
	}
	sort.Strings(codes)
	accounts := make(map[string]Account, len(codes))
	for _, code := range codes {
		acc, err := tx.FindAccountByCodeForUpdate(ctx, companyID, code)
		if err != nil {
			if errors.Is(err, ErrAccountNotFound) {
				return nil, &AccountNotFoundError{CompanyID: companyID, Code: code}
			}
			return nil, err
		}
		accounts[code] = acc
	}
	return accounts, nil
}

func applyBalances(ctx context.Context, tx TxRepository, accounts map[string]Account, lines []PostingLineInput) error {
	deltas := make(map[string]decimal.Decimal, len(accounts))
	for _, line := range lines {
		acc := accounts[line.AccountCode]
		deltas[line.AccountCode] = deltas[line.AccountCode].Add(acc.Type.BalanceDelta(line.Debit, line.Credit))
	}
	codes := make([]string, 0, len(deltas))
	for code := range deltas {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	for _, code := range codes {
		acc := accounts[code]
		if err := tx.UpdateAccountBalance(ctx, acc.ID, acc.CurrentBalance.Add(deltas[code])); err != nil {
			return err
		}
	}
	return nil
}

// ReverseJournal creates a new posted entry that mirrors the original with
// debits and credits swapped. The original entry is never modified and can be
// reversed at most once.
func (s *Service) ReverseJournal(ctx context.Context, input ReverseInput) (JournalEntry, error) {
	if input.CompanyID <= 0 || input.EntryID <= 0 {
		return JournalEntry{}, errors.New("accounting: company and entry id required")
	}
	var reversal JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		original, lines, err := tx.GetJournalWithLines(ctx, input.CompanyID, input.EntryID)
		if err != nil {
			return err
		}
		if original.Status != JournalStatusPosted {
			return ErrInvalidStatus
		}
		date := s.now()
		if input.Date != nil {
			date = *input.Date
		}
		originalID := original.ID
		posting := PostingInput{
			CompanyID:   input.CompanyID,
			Date:        date,
			Description: defaultReversalMemo(input.Memo, original.Number),
			Source:      SourceRef{Type: SourceReversal, ID: strconv.FormatInt(original.ID, 10)},
			PostedBy:    input.ActorID,
			Lines:       reverseLines(lines),
			reversalOf:  &originalID,
		}
		if err := posting.Validate(); err != nil {
			return err
		}
		reversal, err = s.post(ctx, tx, posting)
		if errors.Is(err, ErrSourceAlreadyLinked) {
			return ErrAlreadyReversed
		}
		return err
	})
	if err != nil {
		s.rejected(err)
		return JournalEntry{}, err
	}
	s.record(ctx, shared.AuditLog{
		CompanyID: input.CompanyID,
		ActorID:   input.ActorID,
		Action:    "journal.reverse",
		Entity:    "journal_entry",
		EntityID:  strconv.FormatInt(input.EntryID, 10),
		Meta: map[string]any{
			"reversal_id":     reversal.ID,
			"reversal_number": reversal.Number,
		},
		At: s.now(),
	})
	if s.metrics != nil {
		s.metrics.JournalPosted(SourceReversal)
	}
	return reversal, nil
}

func reverseLines(lines []JournalLine) []PostingLineInput {
	out := make([]PostingLineInput, 0, len(lines))
	for _, line := range lines {
		out = append(out, PostingLineInput{
			AccountCode: line.AccountCode,
			Description: line.Description,
			Debit:       line.Credit,
			Credit:      line.Debit,
		})
	}
	return out
}

func toJournalLines(entryID int64, lines []PostingLineInput, accounts map[string]Account) []JournalLine {
	out := make([]JournalLine, 0, len(lines))
	for idx, line := range lines {
		out = append(out, JournalLine{
			EntryID:     entryID,
			LineNo:      idx + 1,
			AccountID:   accounts[line.AccountCode].ID,
			AccountCode: line.AccountCode,
			Description: line.Description,
			Debit:       line.Debit,
			Credit:      line.Credit,
		})
	}
	return out
}

func defaultReversalMemo(memo, number string) string {
	if memo != "" {
		return memo
	}
	return "Reversal of " + number
}

// SeedChart installs the standard chart of accounts for a company. Codes that
// already exist are left untouched.
func (s *Service) SeedChart(ctx context.Context, companyID int64) ([]Account, error) {
	chart, err := StandardChart(companyID)
	if err != nil {
		return nil, err
	}
	var accounts []Account
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		for _, acc := range chart {
			if err := tx.InsertAccount(ctx, acc); err != nil {
				return fmt.Errorf("seed %s: %w", acc.Code, err)
			}
		}
		var err error
		accounts, err = tx.ListAccounts(ctx, companyID)
		return err
	})
	return accounts, err
}

// ListAccounts retrieves the company's chart of accounts ordered by code.
func (s *Service) ListAccounts(ctx context.Context, companyID int64) ([]Account, error) {
	var accounts []Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		accounts, err = tx.ListAccounts(ctx, companyID)
		return err
	})
	return accounts, err
}

// GetJournal loads a posted entry with its lines.
func (s *Service) GetJournal(ctx context.Context, companyID, entryID int64) (JournalEntry, error) {
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, lines, err := tx.GetJournalWithLines(ctx, companyID, entryID)
		if err != nil {
			return err
		}
		entry = current
		entry.Lines = lines
		return nil
	})
	return entry, err
}

// ListCompanies returns every company that owns a chart of accounts.
func (s *Service) ListCompanies(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		ids, err = tx.ListCompanies(ctx)
		return err
	})
	return ids, err
}

// TrialBalance sums posted lines, entry headers and account balances.
func (s *Service) TrialBalance(ctx context.Context, companyID int64) (TrialBalance, error) {
	var tb TrialBalance
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		tb, err = tx.TrialBalance(ctx, companyID)
		if err != nil {
			return err
		}
		accounts, err := tx.ListAccounts(ctx, companyID)
		if err != nil {
			return err
		}
		tb.DebitBalances, tb.CreditBalances = decimal.Zero, decimal.Zero
		for _, acc := range accounts {
			if acc.NormalBalance() == NormalDebit {
				tb.DebitBalances = tb.DebitBalances.Add(acc.CurrentBalance)
			} else {
				tb.CreditBalances = tb.CreditBalances.Add(acc.CurrentBalance)
			}
		}
		return nil
	})
	if err != nil {
		return TrialBalance{}, err
	}
	tb.CompanyID = companyID
	return tb, nil
}

// CheckIntegrity returns ErrLedgerOutOfBalance, wrapped with the totals, when
// the company's trial balance does not agree.
func (s *Service) CheckIntegrity(ctx context.Context, companyID int64) (TrialBalance, error) {
	tb, err := s.TrialBalance(ctx, companyID)
	if err != nil {
		return TrialBalance{}, err
	}
	if !tb.Balanced() {
		return tb, fmt.Errorf("%w: company %d lines %s/%s headers %s/%s balances %s/%s unbalanced entries %d",
			ErrLedgerOutOfBalance, companyID,
			tb.LineDebit.StringFixed(2), tb.LineCredit.StringFixed(2),
			tb.HeaderDebit.StringFixed(2), tb.HeaderCredit.StringFixed(2),
			tb.DebitBalances.StringFixed(2), tb.CreditBalances.StringFixed(2),
			tb.UnbalancedEntries)
	}
	return tb, nil
}

func (s *Service) record(ctx context.Context, log shared.AuditLog) {
	if s.audit != nil {
		_ = s.audit.Record(ctx, log)
	}
}

func (s *Service) rejected(err error) {
	if s.metrics != nil {
		s.metrics.JournalRejected(RejectReason(err))
	}
}

// RejectReason classifies a posting failure for metrics labels.
func RejectReason(err error) string {
	switch {
	case errors.Is(err, ErrUnbalanced):
		return "unbalanced"
	case errors.Is(err, ErrAccountNotFound):
		return "account_not_found"
	case errors.Is(err, ErrSourceAlreadyLinked), errors.Is(err, ErrAlreadyReversed):
		return "duplicate_source"
	case errors.Is(err, ErrTooFewLines), errors.Is(err, ErrInvalidLine), errors.Is(err, ErrInvalidPosting):
		return "invalid"
	case errors.Is(err, ErrJournalNotFound), errors.Is(err, ErrInvalidStatus):
		return "not_reversible"
	default:
		return "error"
	}
}
