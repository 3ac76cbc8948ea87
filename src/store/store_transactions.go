package store

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/username/portfoly/backend/src/logger"
	"github.com/username/portfoly/backend/src/models"
)

// transactionUpdateFields are the columns a partial update may touch.
var transactionUpdateFields = map[string]bool{
	"type":         true,
	"quantity":     true,
	"price":        true,
	"date":         true,
	"portfolio_id": true,
	"asset_id":     true,
}

func validateTransaction(tx models.Transaction) error {
	if tx.Type != models.TransactionBuy && tx.Type != models.TransactionSell {
		return fmt.Errorf("%w: transaction type must be %q or %q", ErrValidation, models.TransactionBuy, models.TransactionSell)
	}
	if tx.Quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive", ErrValidation)
	}
	if tx.Price <= 0 {
		return fmt.Errorf("%w: price must be positive", ErrValidation)
	}
	if tx.Date <= 0 {
		return fmt.Errorf("%w: date is required", ErrValidation)
	}
	return nil
}

func (s *Store) AddTransaction(ctx context.Context, tx models.Transaction) (int64, error) {
	if err := validateTransaction(tx); err != nil {
		return 0, err
	}

	query, args, err := s.sqlBuilder.
		Insert("transactions").
		Columns("type", "quantity", "price", "date", "portfolio_id", "asset_id").
		Values(tx.Type, tx.Quantity, tx.Price, tx.Date, tx.PortfolioID, tx.AssetID).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build insert transaction: %w", err)
	}

	res, err := s.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("exec insert transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert transaction id: %w", err)
	}

	logger.L.Info("store: transaction added", "id", id, "type", tx.Type, "portfolioID", tx.PortfolioID, "assetID", tx.AssetID)
	return id, nil
}

// AddTransactions inserts a batch inside one database transaction.
func (s *Store) AddTransactions(ctx context.Context, txs []models.Transaction) ([]int64, error) {
	for _, tx := range txs {
		if err := validateTransaction(tx); err != nil {
			return nil, err
		}
	}

	dbTx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction batch: %w", err)
	}
	defer dbTx.Rollback()

	stmt, err := dbTx.PrepareContext(ctx,
		`INSERT INTO transactions (type, quantity, price, date, portfolio_id, asset_id) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("prepare transaction batch insert: %w", err)
	}
	defer stmt.Close()

	ids := make([]int64, 0, len(txs))
	for _, tx := range txs {
		res, err := stmt.ExecContext(ctx, tx.Type, tx.Quantity, tx.Price, tx.Date, tx.PortfolioID, tx.AssetID)
		if err != nil {
			return nil, fmt.Errorf("exec transaction batch insert: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("transaction batch insert id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := dbTx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction batch: %w", err)
	}
	return ids, nil
}

const transactionJoinQuery = `
	SELECT t.id, t.type, t.quantity, t.price, t.date,
		COALESCE(t.portfolio_id, 0), COALESCE(t.asset_id, 0),
		COALESCE(a.symbol, ''), COALESCE(a.name, ''), COALESCE(p.name, '')
	FROM transactions t
	LEFT JOIN assets a ON t.asset_id = a.id
	LEFT JOIN portfolios p ON t.portfolio_id = p.id`

func (s *Store) GetPortfolioTransactions(ctx context.Context, portfolioID int64) ([]models.Transaction, error) {
	return s.queryTransactions(ctx,
		transactionJoinQuery+` WHERE t.portfolio_id = ? ORDER BY t.date DESC`, portfolioID)
}

func (s *Store) GetAllTransactions(ctx context.Context) ([]models.Transaction, error) {
	return s.queryTransactions(ctx, transactionJoinQuery+` ORDER BY t.date DESC`)
}

func (s *Store) GetTransactionsByAsset(ctx context.Context, assetID int64) ([]models.Transaction, error) {
	return s.queryTransactions(ctx,
		transactionJoinQuery+` WHERE t.asset_id = ? ORDER BY t.date DESC`, assetID)
}

func (s *Store) GetTransactionsByDateRange(ctx context.Context, portfolioID, startDate, endDate int64) ([]models.Transaction, error) {
	return s.queryTransactions(ctx,
		transactionJoinQuery+` WHERE t.portfolio_id = ? AND t.date BETWEEN ? AND ? ORDER BY t.date DESC`,
		portfolioID, startDate, endDate)
}

func (s *Store) queryTransactions(ctx context.Context, query string, args ...interface{}) ([]models.Transaction, error) {
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("exec select transactions: %w", err)
	}
	defer rows.Close()

	var transactions []models.Transaction
	for rows.Next() {
		var tx models.Transaction
		if err := rows.Scan(&tx.ID, &tx.Type, &tx.Quantity, &tx.Price, &tx.Date,
			&tx.PortfolioID, &tx.AssetID, &tx.Symbol, &tx.AssetName, &tx.PortfolioName); err != nil {
			return nil, fmt.Errorf("scan transaction row: %w", err)
		}
		transactions = append(transactions, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transaction rows: %w", err)
	}
	return transactions, nil
}

// validateTransactionUpdate holds updated values to the same rules
// AddTransaction enforces. A row must never leave the buy/sell,
// positive-quantity, positive-price invariant through the update path:
// the SQL summary and the in-memory aggregator both depend on it.
func validateTransactionUpdate(field string, value interface{}) error {
	switch field {
	case "type":
		txType, ok := value.(string)
		if !ok || (txType != models.TransactionBuy && txType != models.TransactionSell) {
			return fmt.Errorf("%w: transaction type must be %q or %q", ErrValidation, models.TransactionBuy, models.TransactionSell)
		}
	case "quantity":
		quantity, ok := asNumber(value)
		if !ok || quantity <= 0 {
			return fmt.Errorf("%w: quantity must be positive", ErrValidation)
		}
	case "price":
		price, ok := asNumber(value)
		if !ok || price <= 0 {
			return fmt.Errorf("%w: price must be positive", ErrValidation)
		}
	case "date":
		date, ok := asNumber(value)
		if !ok || date <= 0 {
			return fmt.Errorf("%w: date is required", ErrValidation)
		}
	}
	return nil
}

// asNumber accepts the numeric shapes a JSON decode or a direct call produces.
func asNumber(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

// UpdateTransaction applies a partial update. Unknown fields and invalid
// values are rejected rather than silently dropped.
func (s *Store) UpdateTransaction(ctx context.Context, id int64, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return fmt.Errorf("%w: no fields to update", ErrValidation)
	}

	builder := s.sqlBuilder.Update("transactions")
	for field, value := range updates {
		if !transactionUpdateFields[field] {
			return fmt.Errorf("%w: field %q cannot be updated", ErrValidation, field)
		}
		if err := validateTransactionUpdate(field, value); err != nil {
			return err
		}
		builder = builder.Set(field, value)
	}

	query, args, err := builder.Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build update transaction: %w", err)
	}

	res, err := s.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("exec update transaction: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update transaction rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	logger.L.Info("store: transaction updated", "id", id)
	return nil
}

func (s *Store) DeleteTransaction(ctx context.Context, id int64) error {
	query, args, err := s.sqlBuilder.
		Delete("transactions").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete transaction: %w", err)
	}

	res, err := s.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("exec delete transaction: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete transaction rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	logger.L.Info("store: transaction deleted", "id", id)
	return nil
}

// CountTransactionsSince counts transactions recorded at or after the given
// epoch second. Used for the free-tier daily transaction cap.
func (s *Store) CountTransactionsSince(ctx context.Context, since int64) (int, error) {
	query, args, err := s.sqlBuilder.
		Select("COUNT(*)").
		From("transactions").
		Where("date >= ?", since).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count transactions: %w", err)
	}

	var count int
	if err := s.DB.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("exec count transactions: %w", err)
	}
	return count, nil
}
