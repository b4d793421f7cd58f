package migration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"
)

type migrationStep struct {
	Name string
	SQL  string
}

var steps = []migrationStep{
	{
		Name: "create_extension_uuid_ossp",
		SQL:  `CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,
	},
	{
		Name: "create_table_scans",
		SQL: `CREATE TABLE IF NOT EXISTS scans (
  id               UUID        PRIMARY KEY DEFAULT uuid_generate_v4(),
  owner_id         TEXT        NOT NULL,
  stored_name      TEXT        NOT NULL,
  original_name    TEXT        NOT NULL,
  file_size        BIGINT      NOT NULL CHECK (file_size >= 0),
  mime_type        TEXT        NOT NULL,
  file_path        TEXT        NOT NULL,
  md5              TEXT        NOT NULL,
  sha1             TEXT        NOT NULL,
  sha256           TEXT        NOT NULL,
  status           TEXT        NOT NULL DEFAULT 'scanning',
  result           JSONB,
  error_message    TEXT        NOT NULL DEFAULT '',
  scan_duration_ms BIGINT      NOT NULL DEFAULT 0,
  created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
	{
		// Dedup lookups are owner-scoped by the authoritative digest. Not
		// unique: racing double uploads may produce rare duplicates, which
		// the pipeline tolerates.
		Name: "create_index_scans_owner_sha256",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_scans_owner_sha256 ON scans (owner_id, sha256);`,
	},
	{
		Name: "create_index_scans_owner_created_at",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_scans_owner_created_at ON scans (owner_id, created_at);`,
	},
	{
		Name: "create_index_scans_status",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_scans_status ON scans (status);`,
	},
}

// EnsureMigrated checks if the 'scans' table exists and runs migrations if it doesn't.
func EnsureMigrated(ctx context.Context, db *sql.DB, loc *time.Location, dbHost string) error {
	start := time.Now()

	logJSON(loc, map[string]any{
		"component": "database",
		"event":     "db_migration_check",
		"status":    "starting",
		"db_host":   dbHost,
	})

	var exists bool
	query := "SELECT to_regclass('public.scans') IS NOT NULL"
	err := db.QueryRowContext(ctx, query).Scan(&exists)
	if err != nil {
		logJSON(loc, map[string]any{
			"component":     "database",
			"event":         "db_migration_failed",
			"status":        "error",
			"error_message": fmt.Sprintf("failed to check sentinel table: %v", err),
			"db_host":       dbHost,
			"duration_ms":   time.Since(start).Milliseconds(),
		})
		return fmt.Errorf("failed to check sentinel table: %w", err)
	}

	if exists {
		logJSON(loc, map[string]any{
			"component":   "database",
			"event":       "db_migration_skip",
			"status":      "success",
			"msg":         "schema already exists, skipping migration",
			"db_host":     dbHost,
			"duration_ms": time.Since(start).Milliseconds(),
		})
		return nil
	}

	logJSON(loc, map[string]any{
		"component": "database",
		"event":     "db_migration_start",
		"status":    "in_progress",
		"db_host":   dbHost,
	})

	for _, step := range steps {
		stepStart := time.Now()
		_, err := db.ExecContext(ctx, step.SQL)
		if err != nil {
			logJSON(loc, map[string]any{
				"component":        "database",
				"event":            "db_migration_failed",
				"status":           "error",
				"migration_step":   step.Name,
				"error_message":    err.Error(),
				"db_host":          dbHost,
				"duration_ms":      time.Since(start).Milliseconds(),
				"step_duration_ms": time.Since(stepStart).Milliseconds(),
			})
			return fmt.Errorf("migration step %s failed: %w", step.Name, err)
		}

		logJSON(loc, map[string]any{
			"component":        "database",
			"event":            "db_migration_step",
			"status":           "success",
			"migration_step":   step.Name,
			"db_host":          dbHost,
			"step_duration_ms": time.Since(stepStart).Milliseconds(),
		})
	}

	logJSON(loc, map[string]any{
		"component":   "database",
		"event":       "db_migration_success",
		"status":      "success",
		"db_host":     dbHost,
		"duration_ms": time.Since(start).Milliseconds(),
	})

	return nil
}

func logJSON(loc *time.Location, data map[string]any) {
	data["ts"] = time.Now().In(loc).Format(time.RFC3339Nano)
	if _, ok := data["level"]; !ok {
		if data["status"] == "error" {
			data["level"] = "error"
		} else {
			data["level"] = "info"
		}
	}

	b, err := json.Marshal(data)
	if err != nil {
		log.Printf("failed to marshal migration log: %v", err)
		return
	}
	log.SetFlags(0)
	log.Println(string(b))
}
