package accounting

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ifrs-ledger/internal/money"
)

// AccountType enumerates CoA categories.
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeEquity    AccountType = "EQUITY"
	AccountTypeRevenue   AccountType = "REVENUE"
	AccountTypeExpense   AccountType = "EXPENSE"
)

// NormalBalance is the side on which an account type increases.
type NormalBalance string

const (
	NormalDebit  NormalBalance = "DEBIT"
	NormalCredit NormalBalance = "CREDIT"
)

// Valid reports whether t is one of the five account types.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeRevenue, AccountTypeExpense:
		return true
	}
	return false
}

// NormalBalance derives the normal side from the account type.
func (t AccountType) NormalBalance() NormalBalance {
	if t == AccountTypeAsset || t == AccountTypeExpense {
		return NormalDebit
	}
	return NormalCredit
}

// BalanceDelta converts a debit/credit pair into the signed change of an
// account's running balance. This is the only place the sign convention lives.
func (t AccountType) BalanceDelta(debit, credit decimal.Decimal) decimal.Decimal {
	if t.NormalBalance() == NormalDebit {
		return debit.Sub(credit)
	}
	return credit.Sub(debit)
}

// AccountCategory sub-classifies accounts for statements and ratios.
type AccountCategory string

const (
	CategoryCurrentAsset      AccountCategory = "CURRENT_ASSET"
	CategoryFixedAsset        AccountCategory = "FIXED_ASSET"
	CategoryCurrentLiability  AccountCategory = "CURRENT_LIABILITY"
	CategoryLongTermLiability AccountCategory = "LONG_TERM_LIABILITY"
	CategoryCapital           AccountCategory = "CAPITAL"
	CategoryRetainedEarnings  AccountCategory = "RETAINED_EARNINGS"
	CategoryOperatingRevenue  AccountCategory = "OPERATING_REVENUE"
	CategoryOtherIncome       AccountCategory = "OTHER_INCOME"
	CategoryCostOfGoodsSold   AccountCategory = "COST_OF_GOODS_SOLD"
	CategoryOperatingExpense  AccountCategory = "OPERATING_EXPENSE"
	CategoryOtherExpense      AccountCategory = "OTHER_EXPENSE"
)

// JournalStatus enumerates journal lifecycle values.
type JournalStatus string

const (
	JournalStatusDraft  JournalStatus = "DRAFT"
	JournalStatusPosted JournalStatus = "POSTED"
)

// SourceType names the business event a journal entry originates from.
type SourceType string

const (
	SourceInvoice            SourceType = "INVOICE"
	SourcePaymentReceived    SourceType = "PAYMENT_RECEIVED"
	SourceBill               SourceType = "BILL"
	SourcePaymentMade        SourceType = "PAYMENT_MADE"
	SourceExpense            SourceType = "EXPENSE"
	SourcePOSSale            SourceType = "POS_SALE"
	SourceCOGS               SourceType = "COGS"
	SourceDepreciation       SourceType = "DEPRECIATION"
	SourceImpairment         SourceType = "IMPAIRMENT"
	SourceInventoryWriteDown SourceType = "INVENTORY_WRITE_DOWN"
	SourceContractBilling    SourceType = "CONTRACT_BILLING"
	SourceRevenueRecognition SourceType = "REVENUE_RECOGNITION"
	SourceSalesReturn        SourceType = "SALES_RETURN"
	SourcePurchaseReturn     SourceType = "PURCHASE_RETURN"
	SourceLoanDrawdown       SourceType = "LOAN_DRAWDOWN"
	SourceLoanPayment        SourceType = "LOAN_PAYMENT"
	SourceInterestAccrual    SourceType = "INTEREST_ACCRUAL"
	SourcePrepaidExpense     SourceType = "PREPAID_EXPENSE"
	SourceAmortization       SourceType = "AMORTIZATION"
	SourceManual             SourceType = "MANUAL"
	SourceReversal           SourceType = "REVERSAL"
)

// Account models a chart of accounts node scoped to a company.
type Account struct {
	ID             int64
	CompanyID      int64
	Code           string
	Name           string
	Type           AccountType
	Category       AccountCategory
	CurrentBalance decimal.Decimal
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NormalBalance is implied by the account type and cannot be set directly.
func (a Account) NormalBalance() NormalBalance {
	return a.Type.NormalBalance()
}

// NewAccount builds an account with a zero balance.
func NewAccount(companyID int64, code, name string, typ AccountType, category AccountCategory) (Account, error) {
	if companyID <= 0 {
		return Account{}, errors.New("accounting: company required")
	}
	if code == "" || name == "" {
		return Account{}, errors.New("accounting: account code and name required")
	}
	if !typ.Valid() {
		return Account{}, fmt.Errorf("accounting: unknown account type %q", typ)
	}
	return Account{
		CompanyID:      companyID,
		Code:           code,
		Name:           name,
		Type:           typ,
		Category:       category,
		CurrentBalance: decimal.Zero,
	}, nil
}

// SourceRef identifies the originating business event.
type SourceRef struct {
	Type SourceType `validate:"required"`
	ID   string     `validate:"required"`
}

// String renders TYPE:ID.
func (s SourceRef) String() string {
	return string(s.Type) + ":" + s.ID
}

// JournalEntry captures posting metadata.
type JournalEntry struct {
	ID          int64
	CompanyID   int64
	Number      string
	Date        time.Time
	Description string
	Source      SourceRef
	Status      JournalStatus
	TotalDebit  decimal.Decimal
	TotalCredit decimal.Decimal
	PostedBy    int64
	PostedAt    time.Time
	ReversalOf  *int64
	Lines       []JournalLine
}

// JournalLine stores debit or credit amount for an account.
type JournalLine struct {
	ID          int64
	EntryID     int64
	LineNo      int
	AccountID   int64
	AccountCode string
	Description string
	Debit       decimal.Decimal
	Credit      decimal.Decimal
}

// PostingLineInput describes a journal line for a posting request.
type PostingLineInput struct {
	AccountCode string `validate:"required,max=32"`
	Description string `validate:"max=255"`
	Debit       decimal.Decimal
	Credit      decimal.Decimal
}

// PostingInput groups fields required to create a journal entry. A zero
// Date is replaced by the posting clock.
type PostingInput struct {
	CompanyID   int64 `validate:"gt=0"`
	Date        time.Time
	Description string `validate:"required,max=500"`
	Source      SourceRef
	PostedBy    int64 `validate:"gte=0"`
	Lines       []PostingLineInput `validate:"dive"`
	reversalOf  *int64
}

// ReverseInput wraps parameters for reversal.
type ReverseInput struct {
	CompanyID int64
	EntryID   int64
	ActorID   int64
	Memo      string
	Date      *time.Time
}

// TrialBalance sums posted activity for a company. DebitBalances and
// CreditBalances total the running balances of normal-debit and normal-credit
// accounts respectively; they agree whenever every posting balanced.
type TrialBalance struct {
	CompanyID         int64
	Entries           int64
	LineDebit         decimal.Decimal
	LineCredit        decimal.Decimal
	HeaderDebit       decimal.Decimal
	HeaderCredit      decimal.Decimal
	UnbalancedEntries int64
	DebitBalances     decimal.Decimal
	CreditBalances    decimal.Decimal
}

// Balanced reports whether line totals agree with each other and with the
// entry headers, no single entry is out of balance, and account balances net
// to zero.
func (tb TrialBalance) Balanced() bool {
	return money.Balanced(tb.LineDebit, tb.LineCredit) &&
		money.Balanced(tb.LineDebit, tb.HeaderDebit) &&
		money.Balanced(tb.LineCredit, tb.HeaderCredit) &&
		money.Balanced(tb.DebitBalances, tb.CreditBalances) &&
		tb.UnbalancedEntries == 0
}

var (
	// ErrUnbalanced indicates debit != credit.
	ErrUnbalanced = errors.New("accounting: journal lines must balance")
	// ErrAccountNotFound indicates an unknown account code.
	ErrAccountNotFound = errors.New("accounting: account not found")
	// ErrTooFewLines indicates less than two lines.
	ErrTooFewLines = errors.New("accounting: journal requires at least two lines")
	// ErrInvalidLine indicates a line with negative, double-sided or empty amounts.
	ErrInvalidLine = errors.New("accounting: invalid journal line")
	// ErrInvalidPosting indicates header fields failed validation.
	ErrInvalidPosting = errors.New("accounting: invalid posting")
	// ErrSourceAlreadyLinked indicates idempotency conflict.
	ErrSourceAlreadyLinked = errors.New("accounting: source already linked")
	// ErrSourceConflict is returned by repositories on a duplicate source link.
	ErrSourceConflict = errors.New("accounting: source link conflict")
	// ErrJournalNotFound indicates missing entry.
	ErrJournalNotFound = errors.New("accounting: journal entry not found")
	// ErrInvalidStatus indicates action can't proceed.
	ErrInvalidStatus = errors.New("accounting: invalid status transition")
	// ErrAlreadyReversed indicates a second reversal of the same entry.
	ErrAlreadyReversed = errors.New("accounting: journal entry already reversed")
	// ErrLedgerOutOfBalance indicates a failed integrity check.
	ErrLedgerOutOfBalance = errors.New("accounting: ledger out of balance")
)

// UnbalancedError carries the computed totals of a rejected posting.
type UnbalancedError struct {
	TotalDebit  decimal.Decimal
	TotalCredit decimal.Decimal
}

func (e *UnbalancedError) Error() string {
	return fmt.Sprintf("accounting: journal lines must balance: debits %s, credits %s",
		e.TotalDebit.StringFixed(2), e.TotalCredit.StringFixed(2))
}

// Is matches ErrUnbalanced.
func (e *UnbalancedError) Is(target error) bool {
	return target == ErrUnbalanced
}

// AccountNotFoundError names the code that failed to resolve.
type AccountNotFoundError struct {
	CompanyID int64
	Code      string
}

func (e *AccountNotFoundError) Error() string {
	return fmt.Sprintf("accounting: account not found: company %d code %s", e.CompanyID, e.Code)
}

// Is matches ErrAccountNotFound.
func (e *AccountNotFoundError) Is(target error) bool {
	return target == ErrAccountNotFound
}

var validate = validator.New()

// Validate ensures posting input meets minimum criteria and balances.
func (in PostingInput) Validate() error {
	if len(in.Lines) < 2 {
		return ErrTooFewLines
	}
	if err := validate.Struct(in); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPosting, err)
	}
	debit, credit := decimal.Zero, decimal.Zero
	for idx, line := range in.Lines {
		if line.Debit.IsNegative() || line.Credit.IsNegative() {
			return fmt.Errorf("%w: line %d negative amount", ErrInvalidLine, idx)
		}
		if line.Debit.IsPositive() && line.Credit.IsPositive() {
			return fmt.Errorf("%w: line %d cannot be both debit and credit", ErrInvalidLine, idx)
		}
		if line.Debit.IsZero() && line.Credit.IsZero() {
			return fmt.Errorf("%w: line %d has no amount", ErrInvalidLine, idx)
		}
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	if !money.Balanced(debit, credit) {
		return &UnbalancedError{TotalDebit: debit, TotalCredit: credit}
	}
	return nil
}

// Totals sums both sides of the posting.
func (in PostingInput) Totals() (decimal.Decimal, decimal.Decimal) {
	debit, credit := decimal.Zero, decimal.Zero
	for _, line := range in.Lines {
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	return debit, credit
}

// FormatJournalNumber renders the company-scoped sequence as JE-000001.
func FormatJournalNumber(seq int64) string {
	return fmt.Sprintf("JE-%06d", seq)
}
