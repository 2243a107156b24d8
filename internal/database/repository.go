package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"market-doctor/internal/decision"
	"market-doctor/internal/engine"
)

// Repository provides data access methods for diagnosis reports
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// HealthCheck performs a database health check
func (r *Repository) HealthCheck(ctx context.Context) error {
	return r.db.Pool.Ping(ctx)
}

// SaveReport inserts a generated report
func (r *Repository) SaveReport(ctx context.Context, report *engine.Report) error {
	analyses, err := json.Marshal(report.Analyses)
	if err != nil {
		return fmt.Errorf("marshal analyses: %w", err)
	}

	query := `
		INSERT INTO reports (id, symbol, timeframe, decision, strength, confidence, text, analyses, generated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = r.db.Pool.Exec(
		ctx, query,
		report.ID, report.Symbol, report.Timeframe,
		string(report.Decision), string(report.Strength),
		report.Confidence, report.Text, analyses, report.GeneratedAt,
	)
	if err != nil {
		return fmt.Errorf("save report %s: %w", report.ID, err)
	}
	return nil
}

// GetReportByID retrieves a report by ID; (nil, nil) if not found
func (r *Repository) GetReportByID(ctx context.Context, id string) (*engine.Report, error) {
	query := `
		SELECT id, symbol, timeframe, decision, strength, confidence, text, analyses, generated_at
		FROM reports
		WHERE id = $1
	`
	report, err := r.scanReport(r.db.Pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return report, err
}

// GetLatestReport retrieves the newest report for a symbol/timeframe;
// (nil, nil) if none exists yet.
func (r *Repository) GetLatestReport(ctx context.Context, symbol, timeframe string) (*engine.Report, error) {
	query := `
		SELECT id, symbol, timeframe, decision, strength, confidence, text, analyses, generated_at
		FROM reports
		WHERE symbol = $1 AND timeframe = $2
		ORDER BY generated_at DESC
		LIMIT 1
	`
	report, err := r.scanReport(r.db.Pool.QueryRow(ctx, query, symbol, timeframe))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return report, err
}

// listReportsQuery builds the history query; an empty symbol means no
// symbol filter
func listReportsQuery(symbol string, limit, offset int) (string, []any) {
	query := `
		SELECT id, symbol, timeframe, decision, strength, confidence, text, analyses, generated_at
		FROM reports
	`
	args := []any{limit, offset}
	if symbol != "" {
		query += ` WHERE symbol = $3`
		args = append(args, symbol)
	}
	query += ` ORDER BY generated_at DESC LIMIT $1 OFFSET $2`
	return query, args
}

// ListReports retrieves report history with pagination. An empty
// symbol lists reports across all symbols.
func (r *Repository) ListReports(ctx context.Context, symbol string, limit, offset int) ([]*engine.Report, error) {
	query, args := listReportsQuery(symbol, limit, offset)
	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	var reports []*engine.Report
	for rows.Next() {
		report, err := r.scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}
	return reports, rows.Err()
}

// DeleteReportsBefore prunes reports older than the cutoff and returns
// how many rows were removed.
func (r *Repository) DeleteReportsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM reports WHERE generated_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune reports: %w", err)
	}
	return tag.RowsAffected(), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *Repository) scanReport(row rowScanner) (*engine.Report, error) {
	var (
		report      engine.Report
		decisionStr string
		strength    string
		analyses    []byte
	)
	err := row.Scan(
		&report.ID, &report.Symbol, &report.Timeframe,
		&decisionStr, &strength, &report.Confidence,
		&report.Text, &analyses, &report.GeneratedAt,
	)
	if err != nil {
		return nil, err
	}
	report.Decision = decision.Action(decisionStr)
	report.Strength = decision.Strength(strength)
	if len(analyses) > 0 {
		if err := json.Unmarshal(analyses, &report.Analyses); err != nil {
			return nil, fmt.Errorf("unmarshal analyses for %s: %w", report.ID, err)
		}
	}
	return &report, nil
}
