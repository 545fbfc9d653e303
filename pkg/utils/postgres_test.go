package utils

import (
	"context"
	"testing"
	"testing/fstest"
	"time"
)

func TestPostgresPoolConfigDefaults(t *testing.T) {
	c := PostgresPoolConfig{MaxOpenConns: 5}.withDefaults()
	if c.MaxOpenConns != 5 {
		t.Fatalf("expected explicit value kept, got %d", c.MaxOpenConns)
	}
	if c.MaxIdleConns != 25 || c.PingTimeout != 5*time.Second {
		t.Fatalf("unexpected defaults: %+v", c)
	}
}

func TestMigrate_RequiresDB(t *testing.T) {
	fsys := fstest.MapFS{"00001_init.sql": {Data: []byte("-- +goose Up\nSELECT 1;\n")}}
	if _, err := Migrate(context.Background(), nil, fsys); err == nil {
		t.Fatalf("expected error for nil db")
	}
}

func TestContainsPattern(t *testing.T) {
	cases := map[string]string{
		"bob":     "%bob%",
		"50%":     `%50\%%`,
		"a_b":     `%a\_b%`,
		`c:\path`: `%c:\\path%`,
		"":        "%%",
	}
	for in, want := range cases {
		if got := ContainsPattern(in); got != want {
			t.Fatalf("ContainsPattern(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestOpenPostgres_RequiresDSN(t *testing.T) {
	if _, err := OpenPostgres(context.Background(), "pgx", "", PostgresPoolConfig{}); err == nil {
		t.Fatalf("expected error without dsn")
	}
}
