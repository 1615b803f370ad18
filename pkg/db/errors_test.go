package db

import (
	"errors"
	"testing"
)

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		identifiers []string
		want        bool
	}{
		{
			name:        "postgres message with constraint name",
			err:         errors.New(`ERROR: duplicate key value violates unique constraint "uq_listings_metadata_uri" (SQLSTATE 23505)`),
			identifiers: []string{"uq_listings_metadata_uri", "listings.metadata_uri"},
			want:        true,
		},
		{
			name:        "sqlite message with qualified column",
			err:         errors.New("UNIQUE constraint failed: listings.metadata_uri"),
			identifiers: []string{"uq_listings_metadata_uri", "listings.metadata_uri"},
			want:        true,
		},
		{
			name:        "unique violation on a different constraint",
			err:         errors.New(`duplicate key value violates unique constraint "uq_other"`),
			identifiers: []string{"uq_listings_metadata_uri", "listings.metadata_uri"},
			want:        false,
		},
		{
			name: "any unique violation when no identifiers given",
			err:  errors.New("UNIQUE constraint failed: listings.metadata_uri"),
			want: true,
		},
		{
			name:        "unrelated error",
			err:         errors.New("connection refused"),
			identifiers: []string{"uq_listings_metadata_uri"},
			want:        false,
		},
		{
			name: "nil error",
			err:  nil,
			want: false,
		},
	}

	for _, tt := range tests {
		if got := IsUniqueViolation(tt.err, tt.identifiers...); got != tt.want {
			t.Fatalf("%s: expected %v got %v", tt.name, tt.want, got)
		}
	}
}
