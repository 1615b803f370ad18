package migrate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestMigrationsDirIsValid(t *testing.T) {
	if err := ValidateDir("migrations"); err != nil {
		t.Fatalf("migrations dir failed validation: %v", err)
	}
}

func TestListingsMigrationDefinesCoreColumns(t *testing.T) {
	entries, err := os.ReadDir("migrations")
	if err != nil {
		t.Fatalf("read migrations dir: %v", err)
	}

	var createListings string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), "_create_listings.sql") {
			b, err := os.ReadFile(filepath.Join("migrations", e.Name()))
			if err != nil {
				t.Fatalf("read migration: %v", err)
			}
			createListings = string(b)
		}
	}
	if createListings == "" {
		t.Fatal("create_listings migration not found")
	}

	for _, col := range []string{
		"token_id BIGINT PRIMARY KEY",
		"is_for_sale",
		"is_for_rent",
		"auction_end_time",
		"ready_for_purchase",
		"version BIGINT NOT NULL DEFAULT 0",
		"ck_listings_sale_rent_xor",
		"uq_listings_metadata_uri",
	} {
		if !strings.Contains(createListings, col) {
			t.Fatalf("create_listings migration missing %q", col)
		}
	}
}

// The expired-auction scan filters on is_auction AND is_for_sale, so the
// partial index predicate must match or postgres will never use it.
func TestExpiredAuctionIndexCoversFinalizerScan(t *testing.T) {
	entries, err := os.ReadDir("migrations")
	if err != nil {
		t.Fatalf("read migrations dir: %v", err)
	}

	var indexes string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), "_add_finalization_indexes.sql") {
			b, err := os.ReadFile(filepath.Join("migrations", e.Name()))
			if err != nil {
				t.Fatalf("read migration: %v", err)
			}
			indexes = string(b)
		}
	}
	if indexes == "" {
		t.Fatal("finalization index migration not found")
	}

	if !strings.Contains(indexes, "WHERE is_auction AND is_for_sale") {
		t.Fatal("expired-auction index predicate does not match the finalizer scan")
	}
	if strings.Contains(indexes, "NOT ready_for_purchase") {
		t.Fatal("expired-auction index predicate constrains a column the scan never filters on")
	}
}

func TestCreateSQLMigrationWritesTemplate(t *testing.T) {
	dir := t.TempDir()

	path, err := CreateSQLMigration(dir, "Add Listing Flags!")
	if err != nil {
		t.Fatalf("create migration: %v", err)
	}
	if !strings.HasSuffix(path, "_add_listing_flags.sql") {
		t.Fatalf("unexpected filename %q", path)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read created migration: %v", err)
	}
	if !strings.Contains(string(b), "-- +goose Up") || !strings.Contains(string(b), "-- +goose Down") {
		t.Fatalf("template missing goose headers: %s", string(b))
	}

	if err := ValidateDir(dir); err != nil {
		t.Fatalf("created migration failed validation: %v", err)
	}
}
