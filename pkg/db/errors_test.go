package db

import (
	"errors"
	"testing"
)

func TestIsUniqueViolation(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		constraint string
		want       bool
	}{
		{name: "nil error", err: nil, constraint: "ux_bundles_active", want: false},
		{
			name:       "postgres phrasing",
			err:        errors.New(`ERROR: duplicate key value violates unique constraint "bundles_pkey"`),
			constraint: "",
			want:       true,
		},
		{
			name:       "sqlite phrasing",
			err:        errors.New("UNIQUE constraint failed: bundles.id"),
			constraint: "",
			want:       true,
		},
		{
			name:       "named constraint",
			err:        errors.New(`conflicting row on ux_bundles_active`),
			constraint: "ux_bundles_active",
			want:       true,
		},
		{
			name:       "unrelated error",
			err:        errors.New("connection refused"),
			constraint: "ux_bundles_active",
			want:       false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsUniqueViolation(tc.err, tc.constraint); got != tc.want {
				t.Fatalf("IsUniqueViolation(%v, %q) = %v, want %v", tc.err, tc.constraint, got, tc.want)
			}
		})
	}
}
