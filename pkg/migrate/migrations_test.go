package migrate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const migrationsDir = "../../migrations"

func TestMigrationsDirValidates(t *testing.T) {
	if err := ValidateDir(migrationsDir); err != nil {
		t.Fatalf("validate migrations dir: %v", err)
	}
}

func TestPaymentRecordsMigrationContainsConstraints(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join(migrationsDir, "*_create_payment_records.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no payment records migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TYPE payment_status AS ENUM ('pending', 'paid', 'failed', 'expired')",
		"CREATE TYPE payment_method AS ENUM ('pix', 'credit_card', 'boleto')",
		"CREATE TYPE status_source AS ENUM ('provider', 'local')",
		"amount NUMERIC NOT NULL CHECK (amount > 0)",
		"idx_payment_records_external_payment_id",
		"WHERE external_payment_id IS NOT NULL",
		"DROP TABLE IF EXISTS payment_records",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestCreateSQLMigrationWritesGooseTemplate(t *testing.T) {
	dir := t.TempDir()

	path, err := CreateSQLMigration(dir, "Add Loyalty Points!")
	if err != nil {
		t.Fatalf("create migration: %v", err)
	}
	if !strings.HasSuffix(path, "_add_loyalty_points.sql") {
		t.Fatalf("unexpected filename %q", path)
	}

	if err := ValidateDir(dir); err != nil {
		t.Fatalf("validate generated migration: %v", err)
	}
}
