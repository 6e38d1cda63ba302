package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/swarnapay/backend/internal/models"
)

// SettlementService is the transactional core of the wallet. Every
// money-moving operation goes through settleTx: the account row is locked,
// the funds/holding guards run, balance and holding are written, and a
// ledger entry with the post-entry balance is appended, all inside one
// database transaction. Settlements for the same account serialize on the
// row lock; different accounts proceed in parallel.
type SettlementService struct {
	db *sql.DB
}

func NewSettlementService(db *sql.DB) *SettlementService {
	return &SettlementService{db: db}
}

type settlement struct {
	userID      int64
	entryType   string // models.EntryTypeDebit or models.EntryTypeCredit
	amount      decimal.Decimal
	category    string
	description string
	gramsDelta  decimal.Decimal // holding change, zero for cash-only ops
}

// CreateAccountTx inserts a fresh zero-balance account row.
func (s *SettlementService) CreateAccountTx(tx *sql.Tx, userID int64) error {
	_, err := tx.Exec(`
		INSERT INTO accounts (user_id, balance, gold_grams, version, updated_at)
		VALUES ($1, 0, 0, 1, $2)`,
		userID, time.Now())
	return err
}

// Deposit credits the wallet and appends a DEPOSIT ledger entry.
func (s *SettlementService) Deposit(ctx context.Context, userID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, ErrInvalidAmount
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to begin settlement: %w", err)
	}
	defer tx.Rollback()

	acct, err := s.settleTx(tx, settlement{
		userID:      userID,
		entryType:   models.EntryTypeCredit,
		amount:      amount.Round(2),
		category:    models.CategoryDeposit,
		description: "Funds Deposited",
	})
	if err != nil {
		return decimal.Zero, err
	}

	if err := tx.Commit(); err != nil {
		return decimal.Zero, fmt.Errorf("failed to commit settlement: %w", err)
	}
	return acct.Balance, nil
}

// CreditBonusTx credits the joining bonus inside the caller's transaction,
// so account creation and the bonus entry commit together.
func (s *SettlementService) CreditBonusTx(tx *sql.Tx, userID int64, amount decimal.Decimal) error {
	_, err := s.settleTx(tx, settlement{
		userID:      userID,
		entryType:   models.EntryTypeCredit,
		amount:      amount.Round(2),
		category:    models.CategoryJoiningBonus,
		description: "Welcome Bonus",
	})
	return err
}

// ExecuteBuy settles a consumed quote lock: debit the locked INR amount,
// increment the holding by the locked grams, and persist the trade record.
func (s *SettlementService) ExecuteBuy(ctx context.Context, userID int64, amountINR, grams, pricePerGram decimal.Decimal) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin settlement: %w", err)
	}
	defer tx.Rollback()

	_, err = s.settleTx(tx, settlement{
		userID:      userID,
		entryType:   models.EntryTypeDebit,
		amount:      amountINR.Round(2),
		category:    models.CategoryGoldBuy,
		description: fmt.Sprintf("Bought %sg Gold", grams),
		gramsDelta:  grams,
	})
	if err != nil {
		return err
	}

	if err := s.insertTrade(tx, userID, models.TradeTypeBuy, amountINR, grams, pricePerGram); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit settlement: %w", err)
	}
	return nil
}

// ExecuteSell settles a sale at the given sell price: the holding guard
// runs before any balance mutation, then the proceeds are credited and the
// trade record persisted.
func (s *SettlementService) ExecuteSell(ctx context.Context, userID int64, grams, sellPrice decimal.Decimal) (decimal.Decimal, error) {
	amountINR := grams.Mul(sellPrice).Round(2)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to begin settlement: %w", err)
	}
	defer tx.Rollback()

	_, err = s.settleTx(tx, settlement{
		userID:      userID,
		entryType:   models.EntryTypeCredit,
		amount:      amountINR,
		category:    models.CategoryGoldSell,
		description: fmt.Sprintf("Sold %sg Gold", grams),
		gramsDelta:  grams.Neg(),
	})
	if err != nil {
		return decimal.Zero, err
	}

	if err := s.insertTrade(tx, userID, models.TradeTypeSell, amountINR, grams, sellPrice); err != nil {
		return decimal.Zero, err
	}

	if err := tx.Commit(); err != nil {
		return decimal.Zero, fmt.Errorf("failed to commit settlement: %w", err)
	}
	return amountINR, nil
}

// BillPaymentParams carries the validated bill details into settlement.
type BillPaymentParams struct {
	Category       string
	BillerID       string
	BillerName     string
	ConsumerNumber string
	Amount         decimal.Decimal
}

// PayBill debits the bill amount and persists the bill payment record in
// the same transaction. Returns the wallet transaction id and the mock
// BBPS reference.
func (s *SettlementService) PayBill(ctx context.Context, userID int64, p BillPaymentParams) (string, string, error) {
	if p.Amount.LessThanOrEqual(decimal.Zero) {
		return "", "", ErrInvalidAmount
	}

	txID := uuid.NewString()
	bbpsRefID := "BBPS_" + uuid.NewString()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", "", fmt.Errorf("failed to begin settlement: %w", err)
	}
	defer tx.Rollback()

	_, err = s.settleTx(tx, settlement{
		userID:      userID,
		entryType:   models.EntryTypeDebit,
		amount:      p.Amount.Round(2),
		category:    models.CategoryBillPayment,
		description: fmt.Sprintf("Paid Bill to %s", p.BillerID),
	})
	if err != nil {
		return "", "", err
	}

	_, err = tx.Exec(`
		INSERT INTO bill_payments (user_id, category, biller_id, biller_name, consumer_number, bill_amount, transaction_id, bbps_ref_id, status, payment_mode, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'SUCCESS', 'WALLET', $9)`,
		userID, p.Category, p.BillerID, p.BillerName, p.ConsumerNumber, p.Amount.Round(2), txID, bbpsRefID, time.Now())
	if err != nil {
		return "", "", fmt.Errorf("failed to store bill payment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", "", fmt.Errorf("failed to commit settlement: %w", err)
	}
	return txID, bbpsRefID, nil
}

// settleTx performs one atomic settlement step against a locked account
// row. All guards run against the locked state; the ledger entry carries
// the post-entry balance.
func (s *SettlementService) settleTx(tx *sql.Tx, st settlement) (*models.Account, error) {
	acct, err := s.lockAccount(tx, st.userID)
	if err != nil {
		return nil, err
	}

	newGrams := acct.GoldGrams
	if !st.gramsDelta.IsZero() {
		newGrams = acct.GoldGrams.Add(st.gramsDelta)
		if newGrams.IsNegative() {
			return nil, ErrInsufficientHolding
		}
	}

	newBalance := acct.Balance
	switch st.entryType {
	case models.EntryTypeDebit:
		if st.amount.GreaterThan(acct.Balance) {
			return nil, ErrInsufficientFunds
		}
		newBalance = acct.Balance.Sub(st.amount)
	case models.EntryTypeCredit:
		newBalance = acct.Balance.Add(st.amount)
	default:
		return nil, fmt.Errorf("unknown entry type %q", st.entryType)
	}

	if err := s.updateAccount(tx, st.userID, newBalance, newGrams, acct.Version); err != nil {
		return nil, err
	}

	if err := s.appendLedgerEntry(tx, st, newBalance); err != nil {
		return nil, err
	}

	acct.Balance = newBalance
	acct.GoldGrams = newGrams
	acct.Version++
	return acct, nil
}

func (s *SettlementService) lockAccount(tx *sql.Tx, userID int64) (*models.Account, error) {
	var account models.Account
	err := tx.QueryRow(`
		SELECT user_id, balance, gold_grams, version, updated_at
		FROM accounts
		WHERE user_id = $1
		FOR UPDATE`, userID).Scan(&account.UserID, &account.Balance, &account.GoldGrams, &account.Version, &account.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock account: %w", err)
	}
	return &account, nil
}

func (s *SettlementService) updateAccount(tx *sql.Tx, userID int64, balance, grams decimal.Decimal, version int) error {
	result, err := tx.Exec(`
		UPDATE accounts
		SET balance = $1, gold_grams = $2, version = version + 1, updated_at = $3
		WHERE user_id = $4 AND version = $5`,
		balance, grams, time.Now(), userID, version)
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return fmt.Errorf("optimistic lock failed for account %d", userID)
	}
	return nil
}

func (s *SettlementService) appendLedgerEntry(tx *sql.Tx, st settlement, balanceAfter decimal.Decimal) error {
	_, err := tx.Exec(`
		INSERT INTO ledger_entries (user_id, amount, entry_type, category, description, balance_after, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, 'SUCCESS', $7)`,
		st.userID, st.amount, st.entryType, st.category, st.description, balanceAfter, time.Now())
	if err != nil {
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}
	return nil
}

func (s *SettlementService) insertTrade(tx *sql.Tx, userID int64, tradeType string, amountINR, grams, pricePerGram decimal.Decimal) error {
	_, err := tx.Exec(`
		INSERT INTO gold_trades (user_id, type, amount_inr, gold_grams, price_per_gram, provider_ref_id, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, 'SUCCESS', $7)`,
		userID, tradeType, amountINR.Round(2), grams, pricePerGram, "MOCK_PROVIDER_"+uuid.NewString(), time.Now())
	if err != nil {
		return fmt.Errorf("failed to store gold trade: %w", err)
	}
	return nil
}

// Ledger returns the user's ledger entries, newest first.
func (s *SettlementService) Ledger(ctx context.Context, userID int64) ([]models.LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, amount, entry_type, category, description, balance_after, status, created_at
		FROM ledger_entries
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []models.LedgerEntry{}
	for rows.Next() {
		var e models.LedgerEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Amount, &e.EntryType, &e.Category, &e.Description, &e.BalanceAfter, &e.Status, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Account reads the current balance and holding without locking.
func (s *SettlementService) Account(ctx context.Context, userID int64) (*models.Account, error) {
	var account models.Account
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, balance, gold_grams, version, updated_at
		FROM accounts
		WHERE user_id = $1`, userID).Scan(&account.UserID, &account.Balance, &account.GoldGrams, &account.Version, &account.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// BillHistory returns the user's bill payments, newest first.
func (s *SettlementService) BillHistory(ctx context.Context, userID int64) ([]models.BillPayment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, category, biller_id, biller_name, consumer_number, bill_amount, transaction_id, bbps_ref_id, status, payment_mode, created_at
		FROM bill_payments
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := []models.BillPayment{}
	for rows.Next() {
		var p models.BillPayment
		if err := rows.Scan(&p.ID, &p.UserID, &p.Category, &p.BillerID, &p.BillerName, &p.ConsumerNumber, &p.BillAmount, &p.TransactionID, &p.BBPSRefID, &p.Status, &p.PaymentMode, &p.CreatedAt); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}
