package main

import (
	"bufio"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const downMarker = "-- +migrate Down"

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

type migrationDB interface {
	execer
	Get(dest any, query string, args ...any) error
	Select(dest any, query string, args ...any) error
}

type migrationState struct {
	Name    string
	Applied bool
}

func ensureMigrationsTable(database execer) error {
	if _, err := database.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (filename TEXT PRIMARY KEY, applied_at TIMESTAMPTZ DEFAULT NOW())`); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}
	return nil
}

func migrationFiles(dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

func migrateUp(database migrationDB, dir string) ([]string, error) {
	files, err := migrationFiles(dir)
	if err != nil {
		return nil, err
	}
	var applied []string
	for _, file := range files {
		name := filepath.Base(file)
		var exists bool
		if err := database.Get(&exists, `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE filename = $1)`, name); err != nil {
			return applied, fmt.Errorf("read migration state: %w", err)
		}
		if exists {
			continue
		}
		up, _, err := readMigration(file)
		if err != nil {
			return applied, err
		}
		if err := execStatements(database, up); err != nil {
			return applied, fmt.Errorf("apply %s: %w", name, err)
		}
		if _, err := database.Exec(`INSERT INTO schema_migrations (filename) VALUES ($1)`, name); err != nil {
			return applied, fmt.Errorf("record %s: %w", name, err)
		}
		applied = append(applied, name)
	}
	return applied, nil
}

func migrateDown(database migrationDB, dir string) (string, error) {
	var names []string
	if err := database.Select(&names, `SELECT filename FROM schema_migrations ORDER BY filename DESC LIMIT 1`); err != nil {
		return "", fmt.Errorf("read migration state: %w", err)
	}
	if len(names) == 0 {
		return "", nil
	}
	name := names[0]
	_, down, err := readMigration(filepath.Join(dir, name))
	if err != nil {
		return "", err
	}
	if err := execStatements(database, down); err != nil {
		return "", fmt.Errorf("revert %s: %w", name, err)
	}
	if _, err := database.Exec(`DELETE FROM schema_migrations WHERE filename = $1`, name); err != nil {
		return "", fmt.Errorf("unrecord %s: %w", name, err)
	}
	return name, nil
}

func migrationStatus(database migrationDB, dir string) ([]migrationState, error) {
	files, err := migrationFiles(dir)
	if err != nil {
		return nil, err
	}
	var appliedNames []string
	if err := database.Select(&appliedNames, `SELECT filename FROM schema_migrations`); err != nil {
		return nil, fmt.Errorf("read migration state: %w", err)
	}
	applied := make(map[string]bool, len(appliedNames))
	for _, name := range appliedNames {
		applied[name] = true
	}
	rows := make([]migrationState, 0, len(files))
	for _, file := range files {
		name := filepath.Base(file)
		rows = append(rows, migrationState{Name: name, Applied: applied[name]})
	}
	return rows, nil
}

func readMigration(path string) (string, string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", "", err
	}
	up, down := splitSections(string(content))
	return up, down, nil
}

// splitSections separates the up and down halves of a migration file.
func splitSections(content string) (string, string) {
	up, down, _ := strings.Cut(content, downMarker)
	return up, down
}

func execStatements(database execer, sqlText string) error {
	for _, stmt := range splitSQL(sqlText) {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := database.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// splitSQL cuts a script into statements on lines containing a semicolon.
// Comment lines are dropped.
func splitSQL(sqlText string) []string {
	var statements []string
	var current strings.Builder
	scanner := bufio.NewScanner(strings.NewReader(sqlText))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		current.WriteString(line)
		current.WriteRune('\n')
		if strings.Contains(line, ";") {
			statements = append(statements, current.String())
			current.Reset()
		}
	}
	if strings.TrimSpace(current.String()) != "" {
		statements = append(statements, current.String())
	}
	return statements
}
