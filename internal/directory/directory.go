// Package directory answers the org-structure questions the invalidation
// router asks: who manages whom, who is allocated where, who is a manager.
// It is a read-optimized local mirror of the HR system of record, kept
// current by the same change events that drive cache invalidation.
package directory

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Directory is the org-lookup contract the invalidation router depends on.
type Directory interface {
	// ManagerOf returns the direct manager's username, or "" when the
	// employee has none (or is unknown).
	ManagerOf(ctx context.Context, username string) (string, error)

	// ManagersWithTeamMember returns every manager whose team includes the
	// given employee.
	ManagersWithTeamMember(ctx context.Context, username string) ([]string, error)

	// AllocatedTo returns the usernames currently allocated to a project.
	AllocatedTo(ctx context.Context, projectID int64) ([]string, error)

	// AllManagers returns every user flagged as a manager.
	AllManagers(ctx context.Context) ([]string, error)
}

// SQLite is a Directory backed by a local SQLite database.
type SQLite struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS employees (
	username   TEXT PRIMARY KEY,
	manager    TEXT NOT NULL DEFAULT '',
	is_manager INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_employees_manager ON employees(manager);
CREATE TABLE IF NOT EXISTS allocations (
	project_id INTEGER NOT NULL,
	username   TEXT NOT NULL,
	PRIMARY KEY (project_id, username)
);
CREATE INDEX IF NOT EXISTS idx_allocations_project ON allocations(project_id);
`

// Open opens (or creates) the directory database and applies the schema.
// Use ":memory:" in tests.
func Open(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open directory db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate directory db: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (d *SQLite) Close() error {
	return d.db.Close()
}

// UpsertEmployee records or updates an employee's manager edge and manager
// flag. Called by the change-event ingest to keep the mirror current.
func (d *SQLite) UpsertEmployee(ctx context.Context, username, manager string, isManager bool) error {
	flag := 0
	if isManager {
		flag = 1
	}
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO employees (username, manager, is_manager) VALUES (?, ?, ?)
		ON CONFLICT(username) DO UPDATE SET manager = excluded.manager, is_manager = excluded.is_manager`,
		username, manager, flag,
	)
	if err != nil {
		return fmt.Errorf("upsert employee %s: %w", username, err)
	}
	return nil
}

// Allocate records an allocation of an employee to a project.
func (d *SQLite) Allocate(ctx context.Context, projectID int64, username string) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO allocations (project_id, username) VALUES (?, ?)
		ON CONFLICT(project_id, username) DO NOTHING`,
		projectID, username,
	)
	if err != nil {
		return fmt.Errorf("allocate %s to project %d: %w", username, projectID, err)
	}
	return nil
}

// Deallocate removes an employee from a project.
func (d *SQLite) Deallocate(ctx context.Context, projectID int64, username string) error {
	_, err := d.db.ExecContext(ctx,
		`DELETE FROM allocations WHERE project_id = ? AND username = ?`,
		projectID, username,
	)
	if err != nil {
		return fmt.Errorf("deallocate %s from project %d: %w", username, projectID, err)
	}
	return nil
}

// Known reports whether the directory has any record of the user.
func (d *SQLite) Known(ctx context.Context, username string) (bool, error) {
	var n int
	err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM employees WHERE username = ?`, username,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("lookup %s: %w", username, err)
	}
	return n > 0, nil
}

func (d *SQLite) ManagerOf(ctx context.Context, username string) (string, error) {
	var manager string
	err := d.db.QueryRowContext(ctx,
		`SELECT manager FROM employees WHERE username = ?`, username,
	).Scan(&manager)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("manager of %s: %w", username, err)
	}
	return manager, nil
}

func (d *SQLite) ManagersWithTeamMember(ctx context.Context, username string) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT m.username
		FROM employees m
		JOIN employees e ON e.manager = m.username
		WHERE e.username = ? AND m.is_manager = 1`,
		username,
	)
	if err != nil {
		return nil, fmt.Errorf("managers with team member %s: %w", username, err)
	}
	defer rows.Close()
	return collect(rows)
}

func (d *SQLite) AllocatedTo(ctx context.Context, projectID int64) ([]string, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT username FROM allocations WHERE project_id = ?`, projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("allocated to project %d: %w", projectID, err)
	}
	defer rows.Close()
	return collect(rows)
}

// TeamOf returns the direct reports of a manager.
func (d *SQLite) TeamOf(ctx context.Context, manager string) ([]string, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT username FROM employees WHERE manager = ?`, manager,
	)
	if err != nil {
		return nil, fmt.Errorf("team of %s: %w", manager, err)
	}
	defer rows.Close()
	return collect(rows)
}

// ProjectsOf returns the projects an employee is allocated to.
func (d *SQLite) ProjectsOf(ctx context.Context, username string) ([]int64, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT project_id FROM allocations WHERE username = ?`, username,
	)
	if err != nil {
		return nil, fmt.Errorf("projects of %s: %w", username, err)
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (d *SQLite) AllManagers(ctx context.Context) ([]string, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT username FROM employees WHERE is_manager = 1`,
	)
	if err != nil {
		return nil, fmt.Errorf("all managers: %w", err)
	}
	defer rows.Close()
	return collect(rows)
}

func collect(rows *sql.Rows) ([]string, error) {
	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}
