package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/groupledger/internal/common"
	"github.com/dmitrijs2005/groupledger/internal/server/access"
	"github.com/dmitrijs2005/groupledger/internal/server/models"
	"github.com/dmitrijs2005/groupledger/internal/server/repositories/repomanager"
	"github.com/shopspring/decimal"
)

const (
	DefaultPageLimit     = 50
	MaxPageLimit         = 200
	DefaultMonthlyWindow = 6
	MaxPage              = 1_000_000
)

var (
	errTransactionNotFound = common.NewError(common.ErrorNotFound, "transaction not found")
	errNotCreator          = common.NewError(common.ErrorForbidden, "only an admin or the creator may modify this transaction")
	errForeignReceipt      = common.NewError(common.ErrorForbidden, "receipt belongs to another user")
)

// TransactionInput is a new ledger entry as submitted by a client.
type TransactionInput struct {
	GroupID     int64            `json:"groupId"`
	Type        string           `json:"type"`
	Amount      *decimal.Decimal `json:"amount"`
	Description string           `json:"description"`
	Date        string           `json:"date"`
	Category    *string          `json:"category"`
	ReceiptURL  *string          `json:"receiptUrl"`
}

// TransactionPatchInput carries the fields to change; nil keeps the stored value.
type TransactionPatchInput struct {
	GroupID     int64            `json:"groupId"`
	Type        *string          `json:"type"`
	Amount      *decimal.Decimal `json:"amount"`
	Description *string          `json:"description"`
	Date        *string          `json:"date"`
	Category    *string          `json:"category"`
	ReceiptURL  *string          `json:"receiptUrl"`
}

// TransactionPage is one page of a group's ledger, newest first.
type TransactionPage struct {
	Items []models.Transaction `json:"items"`
	Limit int                  `json:"limit"`
	Page  int                  `json:"page"`
}

// TransactionService is the Financial Ledger.
type TransactionService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	guard       *access.Guard
	loc         *time.Location
}

func NewTransactionService(db *sql.DB, m repomanager.RepositoryManager, loc *time.Location) *TransactionService {
	if loc == nil {
		loc = time.UTC
	}
	return &TransactionService{
		db:          db,
		repomanager: m,
		guard:       access.NewGuard(m.Groups(db)),
		loc:         loc,
	}
}

func validateType(s string) (models.TransactionType, error) {
	t := models.TransactionType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", invalid("type must be income or expense")
	}
	return t, nil
}

func validateAmount(a decimal.Decimal) error {
	if a.IsNegative() {
		return invalid("amount must not be negative")
	}
	if !a.Equal(a.Round(2)) {
		return invalid("amount must have at most 2 decimal places")
	}
	return nil
}

// optionalText trims s; blanks become nil.
func optionalText(field string, s *string, max int) (*string, error) {
	if s == nil {
		return nil, nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil, nil
	}
	if len([]rune(v)) > max {
		return nil, invalid("%s must be at most %d characters", field, max)
	}
	return &v, nil
}

func (in TransactionInput) toModel() (*models.Transaction, error) {
	typ, err := validateType(in.Type)
	if err != nil {
		return nil, err
	}
	if in.Amount == nil {
		return nil, invalid("amount is required")
	}
	if err := validateAmount(*in.Amount); err != nil {
		return nil, err
	}
	desc, err := requireText("description", in.Description, 1, 500)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Date) == "" {
		return nil, invalid("date is required")
	}
	date, err := ParseDay(in.Date)
	if err != nil {
		return nil, err
	}
	category, err := optionalText("category", in.Category, 50)
	if err != nil {
		return nil, err
	}
	receipt, err := optionalText("receiptUrl", in.ReceiptURL, 1024)
	if err != nil {
		return nil, err
	}
	return &models.Transaction{
		GroupID:     in.GroupID,
		Type:        typ,
		Amount:      *in.Amount,
		Description: desc,
		Date:        date,
		Category:    category,
		ReceiptURL:  receipt,
	}, nil
}

func (in TransactionPatchInput) toPatch() (models.TransactionPatch, error) {
	var p models.TransactionPatch
	if in.Type != nil {
		t, err := validateType(*in.Type)
		if err != nil {
			return p, err
		}
		p.Type = &t
	}
	if in.Amount != nil {
		if err := validateAmount(*in.Amount); err != nil {
			return p, err
		}
		p.Amount = in.Amount
	}
	if in.Description != nil {
		d, err := requireText("description", *in.Description, 1, 500)
		if err != nil {
			return p, err
		}
		p.Description = &d
	}
	if in.Date != nil {
		d, err := ParseDay(*in.Date)
		if err != nil {
			return p, err
		}
		p.Date = &d
	}
	var err error
	if p.Category, err = optionalText("category", in.Category, 50); err != nil {
		return p, err
	}
	if p.ReceiptURL, err = optionalText("receiptUrl", in.ReceiptURL, 1024); err != nil {
		return p, err
	}
	return p, nil
}

func (s *TransactionService) CreateTransaction(ctx context.Context, callerID int64, in TransactionInput) (*models.Transaction, error) {
	if in.GroupID <= 0 {
		return nil, invalid("groupId is required")
	}
	if _, err := s.guard.Require(ctx, callerID, in.GroupID, models.RoleMember); err != nil {
		return nil, err
	}
	t, err := in.toModel()
	if err != nil {
		return nil, err
	}
	if err := s.checkReceipt(ctx, callerID, in.GroupID, t.ReceiptURL); err != nil {
		return nil, err
	}
	t.CreatedBy = callerID
	if err := s.repomanager.Transactions(s.db).Create(ctx, t); err != nil {
		return nil, fmt.Errorf("error creating transaction: %w", err)
	}
	return t, nil
}

// checkReceipt admits a stored receipt reference only when the caller
// uploaded it or it is already attached to an entry of groupID. Links
// outside receipt storage are taken as is.
func (s *TransactionService) checkReceipt(ctx context.Context, callerID, groupID int64, ref *string) error {
	if ref == nil {
		return nil
	}
	key := keyFromReceiptURL(*ref)
	if !strings.HasPrefix(key, receiptKeyPrefix) {
		return nil
	}
	if !validReceiptKey(key) {
		return invalid("invalid receipt key")
	}
	if uploadedBy(key, callerID) {
		return nil
	}
	owner, err := s.repomanager.Transactions(s.db).GetByReceiptKey(ctx, key)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return errForeignReceipt
		}
		return fmt.Errorf("error loading receipt owner: %w", err)
	}
	if owner.GroupID != groupID {
		return errForeignReceipt
	}
	return nil
}

// authorizeModify checks membership, then that id lives in groupID, then
// that the caller is an admin or the creator.
func (s *TransactionService) authorizeModify(ctx context.Context, callerID, groupID, id int64) error {
	role, err := s.guard.Require(ctx, callerID, groupID, models.RoleMember)
	if err != nil {
		return err
	}
	t, err := s.repomanager.Transactions(s.db).GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return errTransactionNotFound
		}
		return fmt.Errorf("error loading transaction: %w", err)
	}
	if t.GroupID != groupID {
		return errTransactionNotFound
	}
	if !access.CanModifyTransaction(role, callerID, t.CreatedBy) {
		return errNotCreator
	}
	return nil
}

func (s *TransactionService) UpdateTransaction(ctx context.Context, callerID, id int64, in TransactionPatchInput) (*models.Transaction, error) {
	if in.GroupID <= 0 {
		return nil, invalid("groupId is required")
	}
	if err := s.authorizeModify(ctx, callerID, in.GroupID, id); err != nil {
		return nil, err
	}
	patch, err := in.toPatch()
	if err != nil {
		return nil, err
	}
	if err := s.checkReceipt(ctx, callerID, in.GroupID, patch.ReceiptURL); err != nil {
		return nil, err
	}
	t, err := s.repomanager.Transactions(s.db).Update(ctx, id, patch)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, errTransactionNotFound
		}
		return nil, fmt.Errorf("error updating transaction: %w", err)
	}
	return t, nil
}

func (s *TransactionService) DeleteTransaction(ctx context.Context, callerID, groupID, id int64) error {
	if groupID <= 0 {
		return invalid("groupId is required")
	}
	if err := s.authorizeModify(ctx, callerID, groupID, id); err != nil {
		return err
	}
	if err := s.repomanager.Transactions(s.db).Delete(ctx, id); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return errTransactionNotFound
		}
		return fmt.Errorf("error deleting transaction: %w", err)
	}
	return nil
}

// ListTransactions pages through the group's ledger. Zero limit or page
// selects the default.
func (s *TransactionService) ListTransactions(ctx context.Context, callerID, groupID int64, limit, page int) (*TransactionPage, error) {
	if limit == 0 {
		limit = DefaultPageLimit
	}
	if page == 0 {
		page = 1
	}
	if limit < 1 || limit > MaxPageLimit {
		return nil, invalid("limit must be between 1 and %d", MaxPageLimit)
	}
	if page < 1 || page > MaxPage {
		return nil, invalid("page must be between 1 and %d", MaxPage)
	}
	if _, err := s.guard.Require(ctx, callerID, groupID, models.RoleMember); err != nil {
		return nil, err
	}
	items, err := s.repomanager.Transactions(s.db).ListByGroup(ctx, groupID, limit, (page-1)*limit)
	if err != nil {
		return nil, fmt.Errorf("error listing transactions: %w", err)
	}
	return &TransactionPage{Items: items, Limit: limit, Page: page}, nil
}

func (s *TransactionService) GetStats(ctx context.Context, callerID, groupID int64) (*models.GroupStats, error) {
	if _, err := s.guard.Require(ctx, callerID, groupID, models.RoleMember); err != nil {
		return nil, err
	}
	st, err := s.repomanager.Transactions(s.db).Stats(ctx, groupID, models.DateRange{})
	if err != nil {
		return nil, fmt.Errorf("error computing stats: %w", err)
	}
	return &st, nil
}

// monthlyWindowStart is the first day of the month months-1 before now.
func monthlyWindowStart(now time.Time, months int, loc *time.Location) time.Time {
	now = now.In(loc)
	return time.Date(now.Year(), now.Month()-time.Month(months-1), 1, 0, 0, 0, 0, loc)
}

func (s *TransactionService) GetMonthlyStats(ctx context.Context, callerID, groupID int64, months int) ([]models.MonthlyStat, error) {
	if months <= 0 {
		months = DefaultMonthlyWindow
	}
	if _, err := s.guard.Require(ctx, callerID, groupID, models.RoleMember); err != nil {
		return nil, err
	}
	since := monthlyWindowStart(timeNow(), months, s.loc)
	list, err := s.repomanager.Transactions(s.db).MonthlyStats(ctx, groupID, since)
	if err != nil {
		return nil, fmt.Errorf("error computing monthly stats: %w", err)
	}
	return list, nil
}

func validateRange(rng models.DateRange) error {
	if !rng.From.IsZero() && !rng.To.IsZero() && rng.From.After(rng.To) {
		return invalid("from must not be after to")
	}
	return nil
}

func (s *TransactionService) GetCategoryStats(ctx context.Context, callerID, groupID int64, rng models.DateRange) ([]models.CategoryStat, error) {
	if err := validateRange(rng); err != nil {
		return nil, err
	}
	if _, err := s.guard.Require(ctx, callerID, groupID, models.RoleMember); err != nil {
		return nil, err
	}
	list, err := s.repomanager.Transactions(s.db).CategoryStats(ctx, groupID, rng)
	if err != nil {
		return nil, fmt.Errorf("error computing category stats: %w", err)
	}
	return list, nil
}
