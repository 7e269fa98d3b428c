package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/apex/log"

	"qr-analyze-service/models"
)

// StoreService owns all reads and writes against the three bucket tables.
// Counter updates and the suspected->warning move run inside row-locking
// transactions so concurrent scans or reports of the same URL serialize at
// the database instead of racing past a threshold check.
type StoreService struct {
	db *sql.DB
}

// NewStoreService creates a new store service instance
func NewStoreService(db *sql.DB) *StoreService {
	return &StoreService{db: db}
}

const recordColumns = `original_url, final_url, domain, ssl_valid, whois_creation_date,
		reputation_score, phishtank_result, label, count, reported_count, analysis_json, created_at`

// UpsertReport inserts the record into the reports bucket, or increments the
// occurrence counter and refreshes every other field when a row for the URL
// already exists. Returns the resulting occurrence count.
func (s *StoreService) UpsertReport(ctx context.Context, rec *models.UrlRecord) (int, error) {
	return s.upsert(ctx, "reports", rec)
}

// UpsertSuspected applies the same increment-or-insert semantics to the
// suspected bucket. The suspected counter is independent of the reports one.
func (s *StoreService) UpsertSuspected(ctx context.Context, rec *models.UrlRecord) (int, error) {
	return s.upsert(ctx, "suspected", rec)
}

func (s *StoreService) upsert(ctx context.Context, table string, rec *models.UrlRecord) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var id, count int
	query := fmt.Sprintf("SELECT id, count FROM %s WHERE original_url = ? FOR UPDATE", table)
	err = tx.QueryRowContext(ctx, query, rec.OriginalURL).Scan(&id, &count)
	if err != nil && err != sql.ErrNoRows {
		return 0, fmt.Errorf("failed to query %s row: %w", table, err)
	}

	if err == sql.ErrNoRows {
		insert := fmt.Sprintf(`
			INSERT INTO %s (original_url, final_url, domain, ssl_valid, whois_creation_date,
				reputation_score, phishtank_result, label, analysis_json)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, table)
		_, err = tx.ExecContext(ctx, insert,
			rec.OriginalURL, rec.FinalURL, rec.Domain, rec.SSLValid,
			nullable(rec.WhoisCreationDate), rec.ReputationScore, rec.PhishtankResult,
			string(rec.Label), rec.RawAnalysis)
		if err != nil {
			return 0, fmt.Errorf("failed to insert %s row: %w", table, err)
		}
		count = 1
	} else {
		count++
		update := fmt.Sprintf(`
			UPDATE %s SET count = ?, final_url = ?, domain = ?, ssl_valid = ?,
				whois_creation_date = ?, reputation_score = ?, phishtank_result = ?,
				label = ?, analysis_json = ?
			WHERE id = ?`, table)
		_, err = tx.ExecContext(ctx, update,
			count, rec.FinalURL, rec.Domain, rec.SSLValid,
			nullable(rec.WhoisCreationDate), rec.ReputationScore, rec.PhishtankResult,
			string(rec.Label), rec.RawAnalysis, id)
		if err != nil {
			return 0, fmt.Errorf("failed to update %s row: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit %s upsert: %w", table, err)
	}
	return count, nil
}

// InsertWarningIfAbsent inserts the record into the warning bucket unless a
// row for the URL is already there. Idempotent.
func (s *StoreService) InsertWarningIfAbsent(ctx context.Context, rec *models.UrlRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT IGNORE INTO warning (original_url, final_url, domain, ssl_valid,
			whois_creation_date, reputation_score, phishtank_result, label, analysis_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.OriginalURL, rec.FinalURL, rec.Domain, rec.SSLValid,
		nullable(rec.WhoisCreationDate), rec.ReputationScore, rec.PhishtankResult,
		string(rec.Label), rec.RawAnalysis)
	if err != nil {
		return fmt.Errorf("failed to insert warning row: %w", err)
	}
	return nil
}

// HasWarning reports whether the URL already has a warning row.
func (s *StoreService) HasWarning(ctx context.Context, originalURL string) (bool, error) {
	var id int
	err := s.db.QueryRowContext(ctx,
		"SELECT id FROM warning WHERE original_url = ?", originalURL).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query warning row: %w", err)
	}
	return true, nil
}

// MoveSuspectedToWarning copies the suspected row for the URL into the
// warning bucket and deletes it from suspected, in one transaction. Calling
// it for a URL that is no longer suspected is a no-op, so two requests
// crossing a threshold at the same time cannot double-move.
func (s *StoreService) MoveSuspectedToWarning(ctx context.Context, originalURL string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	rec, id, err := scanLockedRecord(tx.QueryRowContext(ctx,
		"SELECT id, "+recordColumns+" FROM suspected WHERE original_url = ? FOR UPDATE",
		originalURL))
	if err == sql.ErrNoRows {
		// Already moved by a concurrent request.
		return tx.Commit()
	}
	if err != nil {
		return fmt.Errorf("failed to query suspected row: %w", err)
	}

	// The reported counter is not carried across the move; warning rows
	// start over at zero.
	_, err = tx.ExecContext(ctx, `
		INSERT IGNORE INTO warning (original_url, final_url, domain, ssl_valid,
			whois_creation_date, reputation_score, phishtank_result, label, count, analysis_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.OriginalURL, rec.FinalURL, rec.Domain, rec.SSLValid,
		nullable(rec.WhoisCreationDate), rec.ReputationScore, rec.PhishtankResult,
		string(rec.Label), rec.Count, rec.RawAnalysis)
	if err != nil {
		return fmt.Errorf("failed to copy row into warning: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM suspected WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete suspected row: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit suspected->warning move: %w", err)
	}

	log.Infof("Escalated %s from suspected to warning", originalURL)
	return nil
}

// IncrementReported adds one to the reported counter of a suspected URL and
// returns the new value. Returns models.ErrNotReportable when the URL has no
// suspected row (never flagged, or already escalated to warning).
func (s *StoreService) IncrementReported(ctx context.Context, originalURL string) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var id, reported int
	err = tx.QueryRowContext(ctx,
		"SELECT id, reported_count FROM suspected WHERE original_url = ? FOR UPDATE",
		originalURL).Scan(&id, &reported)
	if err == sql.ErrNoRows {
		return 0, models.ErrNotReportable
	}
	if err != nil {
		return 0, fmt.Errorf("failed to query suspected row: %w", err)
	}

	reported++
	if _, err := tx.ExecContext(ctx,
		"UPDATE suspected SET reported_count = ? WHERE id = ?", reported, id); err != nil {
		return 0, fmt.Errorf("failed to update reported_count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit report increment: %w", err)
	}
	return reported, nil
}

// GetSuspected returns the suspected row for the URL, or (nil, nil) when no
// such row exists. Absence is an ordinary result, not an error.
func (s *StoreService) GetSuspected(ctx context.Context, originalURL string) (*models.UrlRecord, error) {
	rec, err := scanRecord(s.db.QueryRowContext(ctx,
		"SELECT "+recordColumns+" FROM suspected WHERE original_url = ?", originalURL))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query suspected row: %w", err)
	}
	return rec, nil
}

// GetWarnings returns every row in the warning bucket.
func (s *StoreService) GetWarnings(ctx context.Context) ([]models.UrlRecord, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+recordColumns+" FROM warning ORDER BY created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to query warning rows: %w", err)
	}
	defer rows.Close()

	var records []models.UrlRecord
	for rows.Next() {
		rec, err := scanRecordFromRows(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan warning row: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over warning rows: %w", err)
	}
	return records, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanInto(sc rowScanner, rec *models.UrlRecord, extra ...interface{}) error {
	var finalURL, domain, whoisDate, reputation, analysis sql.NullString
	var label string

	dest := append(extra,
		&rec.OriginalURL, &finalURL, &domain, &rec.SSLValid, &whoisDate,
		&reputation, &rec.PhishtankResult, &label, &rec.Count, &rec.ReportedCount,
		&analysis, &rec.CreatedAt)
	if err := sc.Scan(dest...); err != nil {
		return err
	}

	rec.FinalURL = finalURL.String
	rec.Domain = domain.String
	rec.WhoisCreationDate = whoisDate.String
	rec.ReputationScore = reputation.String
	rec.RawAnalysis = analysis.String
	rec.Label = models.Label(label)
	return nil
}

func scanRecord(row *sql.Row) (*models.UrlRecord, error) {
	rec := &models.UrlRecord{}
	if err := scanInto(row, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func scanRecordFromRows(rows *sql.Rows) (*models.UrlRecord, error) {
	rec := &models.UrlRecord{}
	if err := scanInto(rows, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func scanLockedRecord(row *sql.Row) (*models.UrlRecord, int, error) {
	rec := &models.UrlRecord{}
	var id int
	if err := scanInto(row, rec, &id); err != nil {
		return nil, 0, err
	}
	return rec, id, nil
}
