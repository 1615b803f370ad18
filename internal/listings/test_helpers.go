package listings

import (
	"testing"
	"time"

	"github.com/mintaro-labs/mintaro-backend/pkg/logger"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const listingsSchema = `
CREATE TABLE IF NOT EXISTS listings (
  token_id INTEGER PRIMARY KEY,
  owner TEXT NOT NULL,
  renter TEXT,
  name TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  metadata_uri TEXT NOT NULL UNIQUE,
  image_url TEXT NOT NULL DEFAULT '',
  base_price TEXT NOT NULL,
  is_for_sale INTEGER NOT NULL DEFAULT 0,
  is_for_rent INTEGER NOT NULL DEFAULT 0,
  rental_fee TEXT,
  rental_duration_hours INTEGER,
  rental_end_time DATETIME,
  is_auction INTEGER NOT NULL DEFAULT 0,
  auction_end_time DATETIME,
  upvotes INTEGER NOT NULL DEFAULT 0,
  downvotes INTEGER NOT NULL DEFAULT 0,
  ready_for_purchase INTEGER NOT NULL DEFAULT 0,
  finalized_at DATETIME,
  last_sale_price TEXT,
  total_sales INTEGER NOT NULL DEFAULT 0,
  purchased_at DATETIME,
  purchase_tx_ref TEXT,
  version INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`

func setupListingsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.Exec(listingsSchema).Error)
	return conn
}

type testHarness struct {
	t    *testing.T
	db   *gorm.DB
	repo *Repository
	svc  Service
	now  *time.Time
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()

	conn := setupListingsTestDB(t)
	repo := NewRepository(conn)
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	harness := &testHarness{t: t, db: conn, repo: repo, now: &now}
	svc, err := NewService(ServiceParams{
		Repo:   repo,
		Logger: logger.New(logger.Options{ServiceName: "listings-test"}),
		Now:    func() time.Time { return *harness.now },
	})
	require.NoError(t, err)
	harness.svc = svc
	return harness
}

func (h *testHarness) advance(d time.Duration) {
	next := h.now.Add(d)
	*h.now = next
}
