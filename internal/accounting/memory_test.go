package accounting

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
)

// memoryRepo is an in-memory RepositoryPort. Each WithTx call works on a copy
// of the state that is only published when fn succeeds.
type memoryRepo struct {
	mu        sync.Mutex
	state     *memoryState
	lastLocks []string
}

type memoryState struct {
	accounts  map[int64]Account
	nextAcc   int64
	sequences map[int64]int64
	entries   map[int64]JournalEntry
	lines     map[int64][]JournalLine
	nextEntry int64
	links     map[string]int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{state: &memoryState{
		accounts:  map[int64]Account{},
		sequences: map[int64]int64{},
		entries:   map[int64]JournalEntry{},
		lines:     map[int64][]JournalLine{},
		links:     map[string]int64{},
	}}
}

func (s *memoryState) clone() *memoryState {
	out := &memoryState{
		accounts:  make(map[int64]Account, len(s.accounts)),
		nextAcc:   s.nextAcc,
		sequences: make(map[int64]int64, len(s.sequences)),
		entries:   make(map[int64]JournalEntry, len(s.entries)),
		lines:     make(map[int64][]JournalLine, len(s.lines)),
		nextEntry: s.nextEntry,
		links:     make(map[string]int64, len(s.links)),
	}
	for k, v := range s.accounts {
		out.accounts[k] = v
	}
	for k, v := range s.sequences {
		out.sequences[k] = v
	}
	for k, v := range s.entries {
		out.entries[k] = v
	}
	for k, v := range s.lines {
		out.lines[k] = append([]JournalLine(nil), v...)
	}
	for k, v := range s.links {
		out.links[k] = v
	}
	return out
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	work := r.state.clone()
	tx := &memoryTx{state: work}
	err := fn(ctx, tx)
	r.lastLocks = tx.locked
	if err != nil {
		return err
	}
	r.state = work
	return nil
}

func (r *memoryRepo) balance(companyID int64, code string) decimal.Decimal {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, acc := range r.state.accounts {
		if acc.CompanyID == companyID && acc.Code == code {
			return acc.CurrentBalance
		}
	}
	return decimal.Zero
}

func (r *memoryRepo) entryCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.state.entries)
}

// setBalance corrupts a balance directly, bypassing the posting path.
func (r *memoryRepo) setBalance(companyID int64, code string, v decimal.Decimal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, acc := range r.state.accounts {
		if acc.CompanyID == companyID && acc.Code == code {
			acc.CurrentBalance = v
			r.state.accounts[id] = acc
		}
	}
}

type memoryTx struct {
	state  *memoryState
	locked []string
}

func (tx *memoryTx) ListAccounts(ctx context.Context, companyID int64) ([]Account, error) {
	var out []Account
	for _, acc := range tx.state.accounts {
		if acc.CompanyID == companyID {
			out = append(out, acc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (tx *memoryTx) InsertAccount(ctx context.Context, acc Account) error {
	for _, existing := range tx.state.accounts {
		if existing.CompanyID == acc.CompanyID && existing.Code == acc.Code {
			return nil
		}
	}
	tx.state.nextAcc++
	acc.ID = tx.state.nextAcc
	tx.state.accounts[acc.ID] = acc
	return nil
}

func (tx *memoryTx) FindAccountByCodeForUpdate(ctx context.Context, companyID int64, code string) (Account, error) {
	for _, acc := range tx.state.accounts {
		if acc.CompanyID == companyID && acc.Code == code {
			tx.locked = append(tx.locked, code)
			return acc, nil
		}
	}
	return Account{}, ErrAccountNotFound
}

func (tx *memoryTx) UpdateAccountBalance(ctx context.Context, accountID int64, balance decimal.Decimal) error {
	acc, ok := tx.state.accounts[accountID]
	if !ok {
		return ErrAccountNotFound
	}
	acc.CurrentBalance = balance
	tx.state.accounts[accountID] = acc
	return nil
}

func (tx *memoryTx) NextJournalNumber(ctx context.Context, companyID int64) (string, error) {
	tx.state.sequences[companyID]++
	return FormatJournalNumber(tx.state.sequences[companyID]), nil
}

func (tx *memoryTx) InsertJournalEntry(ctx context.Context, entry JournalEntry) (JournalEntry, error) {
	tx.state.nextEntry++
	entry.ID = tx.state.nextEntry
	tx.state.entries[entry.ID] = entry
	return entry, nil
}

func (tx *memoryTx) InsertJournalLines(ctx context.Context, entryID int64, lines []JournalLine) error {
	tx.state.lines[entryID] = append(tx.state.lines[entryID], lines...)
	return nil
}

func (tx *memoryTx) LinkSource(ctx context.Context, companyID int64, source SourceRef, entryID int64) error {
	key := decimal.NewFromInt(companyID).String() + "|" + source.String()
	if _, ok := tx.state.links[key]; ok {
		return ErrSourceConflict
	}
	tx.state.links[key] = entryID
	return nil
}

func (tx *memoryTx) GetJournalWithLines(ctx context.Context, companyID, entryID int64) (JournalEntry, []JournalLine, error) {
	entry, ok := tx.state.entries[entryID]
	if !ok || entry.CompanyID != companyID {
		return JournalEntry{}, nil, ErrJournalNotFound
	}
	return entry, tx.state.lines[entryID], nil
}

func (tx *memoryTx) TrialBalance(ctx context.Context, companyID int64) (TrialBalance, error) {
	tb := TrialBalance{CompanyID: companyID}
	for id, entry := range tx.state.entries {
		if entry.CompanyID != companyID || entry.Status != JournalStatusPosted {
			continue
		}
		tb.Entries++
		tb.HeaderDebit = tb.HeaderDebit.Add(entry.TotalDebit)
		tb.HeaderCredit = tb.HeaderCredit.Add(entry.TotalCredit)
		debit, credit := decimal.Zero, decimal.Zero
		for _, line := range tx.state.lines[id] {
			debit = debit.Add(line.Debit)
			credit = credit.Add(line.Credit)
		}
		tb.LineDebit = tb.LineDebit.Add(debit)
		tb.LineCredit = tb.LineCredit.Add(credit)
		if debit.Sub(credit).Abs().GreaterThan(decimal.RequireFromString("0.01")) {
			tb.UnbalancedEntries++
		}
	}
	return tb, nil
}

func (tx *memoryTx) ListCompanies(ctx context.Context) ([]int64, error) {
	seen := map[int64]struct{}{}
	var ids []int64
	for _, acc := range tx.state.accounts {
		if _, ok := seen[acc.CompanyID]; ok {
			continue
		}
		seen[acc.CompanyID] = struct{}{}
		ids = append(ids, acc.CompanyID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}
