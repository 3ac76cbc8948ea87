package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/username/portfoly/backend/src/logger"
	"github.com/username/portfoly/backend/src/models"
)

func (s *Store) AddAsset(ctx context.Context, asset models.Asset) (int64, error) {
	if asset.Symbol == "" || asset.Name == "" || asset.APISymbol == "" || asset.Type == "" {
		return 0, fmt.Errorf("%w: symbol, name, api_symbol and type are required", ErrValidation)
	}

	query, args, err := s.sqlBuilder.
		Insert("assets").
		Columns("symbol", "name", "api_symbol", "type").
		Values(asset.Symbol, asset.Name, asset.APISymbol, asset.Type).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build insert asset: %w", err)
	}

	res, err := s.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("exec insert asset: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert asset id: %w", err)
	}

	logger.L.Info("store: asset created", "id", id, "symbol", asset.Symbol)
	return id, nil
}

func (s *Store) GetAssets(ctx context.Context) ([]models.Asset, error) {
	query, args, err := s.sqlBuilder.
		Select("id", "symbol", "name", "api_symbol", "type").
		From("assets").
		OrderBy("symbol ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select assets: %w", err)
	}
	return s.queryAssets(ctx, query, args...)
}

func (s *Store) GetAssetBySymbol(ctx context.Context, symbol string) (*models.Asset, error) {
	query, args, err := s.sqlBuilder.
		Select("id", "symbol", "name", "api_symbol", "type").
		From("assets").
		Where(sq.Eq{"symbol": symbol}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select asset by symbol: %w", err)
	}

	var a models.Asset
	err = s.DB.QueryRowContext(ctx, query, args...).Scan(&a.ID, &a.Symbol, &a.Name, &a.APISymbol, &a.Type)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("exec select asset by symbol: %w", err)
	}
	return &a, nil
}

func (s *Store) SearchAssets(ctx context.Context, searchTerm string) ([]models.Asset, error) {
	pattern := "%" + searchTerm + "%"
	query, args, err := s.sqlBuilder.
		Select("id", "symbol", "name", "api_symbol", "type").
		From("assets").
		Where(sq.Or{
			sq.Like{"symbol": pattern},
			sq.Like{"name": pattern},
		}).
		OrderBy("symbol ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build search assets: %w", err)
	}
	return s.queryAssets(ctx, query, args...)
}

// GetAssetPerformance aggregates every transaction of one asset across all
// portfolios. AvgBuyPrice follows the same mean-over-all-rows rule as the
// holdings aggregation.
func (s *Store) GetAssetPerformance(ctx context.Context, assetID int64) (*models.AssetPerformance, error) {
	var perf models.AssetPerformance
	var quantity, avgPrice, investment sql.NullFloat64
	err := s.DB.QueryRowContext(ctx, `
		SELECT
			SUM(CASE WHEN type = 'buy' THEN quantity ELSE -quantity END),
			AVG(price),
			SUM(CASE WHEN type = 'buy' THEN quantity * price ELSE 0 END)
		FROM transactions
		WHERE asset_id = ?`, assetID).Scan(&quantity, &avgPrice, &investment)
	if err != nil {
		return nil, fmt.Errorf("exec asset performance query: %w", err)
	}
	perf.TotalQuantity = quantity.Float64
	perf.AvgBuyPrice = avgPrice.Float64
	perf.TotalInvestment = investment.Float64
	return &perf, nil
}

func (s *Store) queryAssets(ctx context.Context, query string, args ...interface{}) ([]models.Asset, error) {
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("exec select assets: %w", err)
	}
	defer rows.Close()

	var assets []models.Asset
	for rows.Next() {
		var a models.Asset
		if err := rows.Scan(&a.ID, &a.Symbol, &a.Name, &a.APISymbol, &a.Type); err != nil {
			return nil, fmt.Errorf("scan asset row: %w", err)
		}
		assets = append(assets, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate asset rows: %w", err)
	}
	return assets, nil
}
