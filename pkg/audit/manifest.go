package audit

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/carrotexpress/backoffice/pkg/output"
)

// Input is one input file of a run.
type Input struct {
	Path string
	Role string
}

// Warning is one non-fatal finding of a run.
type Warning struct {
	Kind    string
	Message string
}

// Manifest is everything recorded about a run.
type Manifest struct {
	RunID      string
	Pipeline   string
	StartedAt  time.Time
	FinishedAt time.Time
	OK         bool
	Summary    string
	Inputs     []Input
	Artifacts  []output.Artifact
	Warnings   []Warning
}

// Write records m into a new database at dbPath.
func Write(dbPath string, m Manifest) error {
	conn, err := Open(dbPath)
	if err != nil {
		return err
	}
	defer conn.Close()

	return conn.Transaction(func(tx *sql.Tx) error {
		if _, err := tx.Exec(
			`INSERT INTO runs (run_id, pipeline, started_at, finished_at, ok, summary) VALUES (?, ?, ?, ?, ?, ?)`,
			m.RunID,
			m.Pipeline,
			m.StartedAt.UTC().Format(time.RFC3339),
			m.FinishedAt.UTC().Format(time.RFC3339),
			m.OK,
			m.Summary,
		); err != nil {
			return fmt.Errorf("failed to record run: %w", err)
		}

		for _, in := range m.Inputs {
			if _, err := tx.Exec(`INSERT INTO inputs (run_id, path, role) VALUES (?, ?, ?)`,
				m.RunID, in.Path, in.Role); err != nil {
				return fmt.Errorf("failed to record input: %w", err)
			}
		}

		for _, a := range m.Artifacts {
			if _, err := tx.Exec(
				`INSERT INTO artifacts (run_id, rel_path, rows, bytes, sha256) VALUES (?, ?, ?, ?, ?)`,
				m.RunID, a.RelPath, a.Rows, a.Bytes, a.SHA256,
			); err != nil {
				return fmt.Errorf("failed to record artifact: %w", err)
			}
		}

		for _, w := range m.Warnings {
			if _, err := tx.Exec(`INSERT INTO warnings (run_id, kind, message) VALUES (?, ?, ?)`,
				m.RunID, w.Kind, w.Message); err != nil {
				return fmt.Errorf("failed to record warning: %w", err)
			}
		}
		return nil
	})
}
