package storage

import (
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/toftmakemore/makemoreV2/models"
)

// SQLiteStore holds operational data: pipeline runs, run logs, and manual
// commands. Domain data lives in Postgres.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS pipeline_runs (
		id INTEGER PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		dealer_id TEXT,
		started_at DATETIME,
		finished_at DATETIME,
		status TEXT,
		failed_step TEXT,
		vehicles_found INTEGER,
		new_count INTEGER,
		price_count INTEGER,
		sold_count INTEGER,
		rotation_count INTEGER,
		posts_created INTEGER,
		errors_count INTEGER
	);

	CREATE TABLE IF NOT EXISTS run_logs (
		id INTEGER PRIMARY KEY,
		run_id INTEGER,
		timestamp DATETIME,
		level TEXT,
		message TEXT,
		tenant_id TEXT
	);

	CREATE TABLE IF NOT EXISTS commands (
		id INTEGER PRIMARY KEY,
		command TEXT,
		params JSON,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		processed_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS tenant_stats (
		tenant_id TEXT PRIMARY KEY,
		last_run_at DATETIME,
		last_run_status TEXT,
		total_posts INTEGER,
		success_rate REAL,
		avg_run_duration_sec INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_runs_tenant ON pipeline_runs(tenant_id, started_at);
	CREATE INDEX IF NOT EXISTS idx_logs_run ON run_logs(run_id, timestamp);
	CREATE INDEX IF NOT EXISTS idx_commands_pending ON commands(processed_at) WHERE processed_at IS NULL;
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) CreateRun(run *models.PipelineRun) (int64, error) {
	result, err := s.db.Exec(`
		INSERT INTO pipeline_runs (tenant_id, dealer_id, started_at, status,
			vehicles_found, new_count, price_count, sold_count, rotation_count, posts_created, errors_count)
		VALUES (?, ?, ?, ?, 0, 0, 0, 0, 0, 0, 0)`,
		run.TenantID, run.DealerID, run.StartedAt, run.Status)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (s *SQLiteStore) UpdateRun(run *models.PipelineRun) error {
	_, err := s.db.Exec(`
		UPDATE pipeline_runs SET finished_at = ?, status = ?, failed_step = ?, vehicles_found = ?,
			new_count = ?, price_count = ?, sold_count = ?, rotation_count = ?, posts_created = ?, errors_count = ?
		WHERE id = ?`,
		run.FinishedAt, run.Status, run.FailedStep, run.VehiclesFound,
		run.NewCount, run.PriceCount, run.SoldCount, run.RotationCount, run.PostsCreated, run.ErrorsCount, run.ID)
	return err
}

func (s *SQLiteStore) Log(runID *int64, level models.LogLevel, message, tenantID string) error {
	_, err := s.db.Exec(`
		INSERT INTO run_logs (run_id, timestamp, level, message, tenant_id)
		VALUES (?, ?, ?, ?, ?)`,
		runID, time.Now(), level, message, tenantID)
	return err
}

func (s *SQLiteStore) UpdateTenantStats(tenantID string) error {
	_, err := s.db.Exec(`
		INSERT INTO tenant_stats (tenant_id, last_run_at, last_run_status, total_posts, success_rate, avg_run_duration_sec)
		SELECT
			?,
			(SELECT started_at FROM pipeline_runs WHERE tenant_id = ? ORDER BY started_at DESC LIMIT 1),
			(SELECT status FROM pipeline_runs WHERE tenant_id = ? ORDER BY started_at DESC LIMIT 1),
			(SELECT COALESCE(SUM(posts_created), 0) FROM pipeline_runs WHERE tenant_id = ?),
			(SELECT CAST(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END) AS REAL) /
				NULLIF(COUNT(*), 0) FROM pipeline_runs WHERE tenant_id = ?),
			(SELECT AVG(CAST((julianday(finished_at) - julianday(started_at)) * 86400 AS INTEGER))
				FROM pipeline_runs WHERE tenant_id = ? AND finished_at IS NOT NULL)
		ON CONFLICT(tenant_id) DO UPDATE SET
			last_run_at = excluded.last_run_at,
			last_run_status = excluded.last_run_status,
			total_posts = excluded.total_posts,
			success_rate = excluded.success_rate,
			avg_run_duration_sec = excluded.avg_run_duration_sec`,
		tenantID, tenantID, tenantID, tenantID, tenantID, tenantID)
	return err
}

func (s *SQLiteStore) GetPendingCommands() ([]models.Command, error) {
	rows, err := s.db.Query(`
		SELECT id, command, params, created_at, processed_at
		FROM commands WHERE processed_at IS NULL ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cmds []models.Command
	for rows.Next() {
		var cmd models.Command
		var params sql.NullString
		if err := rows.Scan(&cmd.ID, &cmd.Command, &params, &cmd.CreatedAt, &cmd.ProcessedAt); err != nil {
			return nil, err
		}
		if params.Valid {
			cmd.Params = json.RawMessage(params.String)
		}
		cmds = append(cmds, cmd)
	}
	return cmds, rows.Err()
}

func (s *SQLiteStore) MarkCommandProcessed(id int64) error {
	_, err := s.db.Exec(`UPDATE commands SET processed_at = ? WHERE id = ?`, time.Now(), id)
	return err
}

func (s *SQLiteStore) ParseCommandParams(cmd *models.Command) (*models.CommandParams, error) {
	if cmd.Params == nil || string(cmd.Params) == "null" {
		return &models.CommandParams{}, nil
	}
	var params models.CommandParams
	if err := json.Unmarshal(cmd.Params, &params); err != nil {
		return nil, err
	}
	return &params, nil
}
