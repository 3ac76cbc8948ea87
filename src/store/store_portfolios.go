package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/username/portfoly/backend/src/logger"
	"github.com/username/portfoly/backend/src/models"
)

func (s *Store) AddPortfolio(ctx context.Context, name, portfolioType string) (int64, error) {
	if name == "" {
		return 0, fmt.Errorf("%w: portfolio name is required", ErrValidation)
	}
	switch portfolioType {
	case models.PortfolioCrypto, models.PortfolioBist, models.PortfolioFund, models.PortfolioMixed:
	default:
		return 0, fmt.Errorf("%w: unknown portfolio type %q", ErrValidation, portfolioType)
	}

	query, args, err := s.sqlBuilder.
		Insert("portfolios").
		Columns("name", "type", "created_at").
		Values(name, portfolioType, time.Now().Unix()).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build insert portfolio: %w", err)
	}

	res, err := s.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("exec insert portfolio: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert portfolio id: %w", err)
	}

	logger.L.Info("store: portfolio created", "id", id, "name", name, "type", portfolioType)
	return id, nil
}

func (s *Store) GetPortfolios(ctx context.Context) ([]models.Portfolio, error) {
	query, args, err := s.sqlBuilder.
		Select("id", "name", "type", "created_at").
		From("portfolios").
		OrderBy("created_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select portfolios: %w", err)
	}

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("exec select portfolios: %w", err)
	}
	defer rows.Close()

	var portfolios []models.Portfolio
	for rows.Next() {
		var p models.Portfolio
		if err := rows.Scan(&p.ID, &p.Name, &p.Type, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan portfolio row: %w", err)
		}
		portfolios = append(portfolios, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate portfolio rows: %w", err)
	}
	return portfolios, nil
}

// DeletePortfolio removes the grouping only. Transactions that pointed at it
// are left in place; reads of orphaned rows stay valid through LEFT JOINs.
func (s *Store) DeletePortfolio(ctx context.Context, id int64) error {
	query, args, err := s.sqlBuilder.
		Delete("portfolios").
		Where("id = ?", id).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete portfolio: %w", err)
	}

	res, err := s.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("exec delete portfolio: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete portfolio rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	logger.L.Info("store: portfolio deleted", "id", id)
	return nil
}

func (s *Store) CountPortfolios(ctx context.Context) (int, error) {
	query, args, err := s.sqlBuilder.
		Select("COUNT(*)").
		From("portfolios").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count portfolios: %w", err)
	}

	var count int
	if err := s.DB.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("exec count portfolios: %w", err)
	}
	return count, nil
}

// GetPortfolioSummary is the store-side pre-aggregation of holdings. It must
// agree with processors.HoldingsProcessor on the aggregation rule: signed
// quantity sum, AVG(price) over every transaction of the group, and only
// positive net positions surfaced.
func (s *Store) GetPortfolioSummary(ctx context.Context, portfolioID int64) ([]models.Holding, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT
			COALESCE(a.symbol, ?) AS symbol,
			COALESCE(a.name, '') AS name,
			SUM(CASE WHEN t.type = 'buy' THEN t.quantity ELSE -t.quantity END) AS total_quantity,
			AVG(t.price) AS avg_price
		FROM transactions t
		LEFT JOIN assets a ON t.asset_id = a.id
		WHERE t.portfolio_id = ?
		GROUP BY COALESCE(a.symbol, ?), COALESCE(a.name, '')
		HAVING total_quantity > 0`,
		models.UnknownSymbol, portfolioID, models.UnknownSymbol)
	if err != nil {
		return nil, fmt.Errorf("exec portfolio summary query: %w", err)
	}
	defer rows.Close()

	var holdings []models.Holding
	for rows.Next() {
		var h models.Holding
		if err := rows.Scan(&h.Symbol, &h.Name, &h.TotalQuantity, &h.AvgPrice); err != nil {
			return nil, fmt.Errorf("scan portfolio summary row: %w", err)
		}
		holdings = append(holdings, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate portfolio summary rows: %w", err)
	}
	return holdings, nil
}

// GetPortfolioValueHistory returns the signed net cash flow per transaction date.
func (s *Store) GetPortfolioValueHistory(ctx context.Context, portfolioID int64) ([]models.ValuePoint, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT
			date,
			SUM(CASE WHEN type = 'buy' THEN quantity * price ELSE -quantity * price END) AS daily_net
		FROM transactions
		WHERE portfolio_id = ?
		GROUP BY date
		ORDER BY date ASC`, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("exec value history query: %w", err)
	}
	defer rows.Close()

	var points []models.ValuePoint
	for rows.Next() {
		var p models.ValuePoint
		if err := rows.Scan(&p.Date, &p.DailyNet); err != nil {
			return nil, fmt.Errorf("scan value history row: %w", err)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate value history rows: %w", err)
	}
	return points, nil
}

// GetTotalPortfolioValue returns the net invested amount (buys minus sells)
// of a portfolio at transaction prices, not current market prices.
func (s *Store) GetTotalPortfolioValue(ctx context.Context, portfolioID int64) (float64, error) {
	var total sql.NullFloat64
	err := s.DB.QueryRowContext(ctx, `
		SELECT SUM(CASE WHEN type = 'buy' THEN quantity * price ELSE -quantity * price END)
		FROM transactions
		WHERE portfolio_id = ?`, portfolioID).Scan(&total)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("exec total value query: %w", err)
	}
	return total.Float64, nil
}

func (s *Store) GetPortfolioStats(ctx context.Context, portfolioID int64) (*models.PortfolioStats, error) {
	var stats models.PortfolioStats
	var investment, sales sql.NullFloat64
	var first, last sql.NullInt64
	err := s.DB.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			SUM(CASE WHEN type = 'buy' THEN quantity * price ELSE 0 END),
			SUM(CASE WHEN type = 'sell' THEN quantity * price ELSE 0 END),
			MIN(date),
			MAX(date)
		FROM transactions
		WHERE portfolio_id = ?`, portfolioID).Scan(
		&stats.TotalTransactions, &investment, &sales, &first, &last)
	if err != nil {
		return nil, fmt.Errorf("exec portfolio stats query: %w", err)
	}
	stats.TotalInvestment = investment.Float64
	stats.TotalSales = sales.Float64
	stats.FirstTransactionDate = first.Int64
	stats.LastTransactionDate = last.Int64
	return &stats, nil
}
