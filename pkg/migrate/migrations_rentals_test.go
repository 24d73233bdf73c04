package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRentalsMigrationContainsConstraints(t *testing.T) {
	content := readMigration(t, "*_create_rentals.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS rentals",
		"CREATE UNIQUE INDEX IF NOT EXISTS uniq_active_rental",
		"WHERE state = 'active'",
		"CHECK (access_count >= 0)",
		"CHECK (play_seconds >= 0)",
		"FOREIGN KEY (content_id) REFERENCES contents(id) ON DELETE CASCADE",
		"DROP TABLE IF EXISTS rentals",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestContentsMigrationContainsConstraints(t *testing.T) {
	content := readMigration(t, "*_create_contents.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS contents",
		"CHECK (inventory >= 0)",
		"DROP TABLE IF EXISTS contents",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestUserSubscriptionsMigrationContainsCounterGuard(t *testing.T) {
	content := readMigration(t, "*_create_user_subscriptions.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS user_subscriptions",
		"CHECK (current_access_count >= 0)",
		"CHECK (lifetime_access_count >= 0)",
		"DROP TABLE IF EXISTS user_subscriptions",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestTermsMigrationKeepsOneActiveVersionPerCategory(t *testing.T) {
	content := readMigration(t, "*_create_terms.sql")

	checks := []string{
		"CREATE UNIQUE INDEX IF NOT EXISTS uniq_active_terms_version",
		"WHERE is_active",
		"FOREIGN KEY (terms_version_id) REFERENCES terms_versions(id) ON DELETE RESTRICT",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func readMigration(t *testing.T, pattern string) string {
	t.Helper()

	matches, err := filepath.Glob(filepath.Join("migrations", pattern))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no migration file matching %s", pattern)
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}
