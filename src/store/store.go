package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/username/portfoly/backend/src/logger"
	"github.com/username/portfoly/backend/src/models"
)

// Store wraps the single-file SQLite database with parameterized queries.
// All reads that join assets tolerate dangling asset_ids: the joined
// symbol/name come back empty rather than failing the row.
type Store struct {
	DB         *sql.DB
	sqlBuilder sq.StatementBuilderType
}

func New(db *sql.DB) *Store {
	return &Store{
		DB:         db,
		sqlBuilder: sq.StatementBuilder.PlaceholderFormat(sq.Question),
	}
}

// ClearAllData wipes transactions, portfolios and assets. Used by the
// explicit "reset everything" maintenance action only.
func (s *Store) ClearAllData(ctx context.Context) error {
	for _, table := range []string{"transactions", "portfolios", "assets"} {
		query, args, err := s.sqlBuilder.Delete(table).ToSql()
		if err != nil {
			return fmt.Errorf("build clear %s query: %w", table, err)
		}
		if _, err := s.DB.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("exec clear %s query: %w", table, err)
		}
	}
	logger.L.Info("store: all data cleared")
	return nil
}

// ExportData dumps the full store contents for backup.
func (s *Store) ExportData(ctx context.Context) (*models.ExportBundle, error) {
	portfolios, err := s.GetPortfolios(ctx)
	if err != nil {
		return nil, fmt.Errorf("export portfolios: %w", err)
	}
	assets, err := s.GetAssets(ctx)
	if err != nil {
		return nil, fmt.Errorf("export assets: %w", err)
	}
	transactions, err := s.GetAllTransactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("export transactions: %w", err)
	}

	return &models.ExportBundle{
		Portfolios:   portfolios,
		Assets:       assets,
		Transactions: transactions,
		ExportDate:   time.Now().Unix(),
		Version:      "1.0",
	}, nil
}
