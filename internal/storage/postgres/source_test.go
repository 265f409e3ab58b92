package postgres

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"lendingScope/internal/model"
	"lendingScope/internal/storage"
)

func TestIsRecoverable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled", context.Canceled, false},
		{"page timeout", fmt.Errorf("query: %w", context.DeadlineExceeded), true},
		{"unexpected eof", io.ErrUnexpectedEOF, true},
		{"connection exception", &pgconn.PgError{Code: "08006"}, true},
		{"admin shutdown", &pgconn.PgError{Code: "57P01"}, true},
		{"syntax error", &pgconn.PgError{Code: "42601"}, false},
		{"plain", errors.New("boom"), false},
	}
	for _, tc := range cases {
		if got := IsRecoverable(tc.err); got != tc.want {
			t.Fatalf("%s: IsRecoverable = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestPageQueryKinds(t *testing.T) {
	for _, kind := range storage.Kinds() {
		q, err := pageQuery(kind)
		if err != nil {
			t.Fatalf("page query %s: %v", kind, err)
		}
		if q.sql == "" || q.scan == nil {
			t.Fatalf("page query %s incomplete", kind)
		}
	}
	if _, err := pageQuery(storage.Kind("blocks")); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
}

func TestNewStoreRequiresDSN(t *testing.T) {
	if _, err := NewStore(context.Background(), ""); err == nil {
		t.Fatalf("expected error for empty dsn")
	}
}

func TestPageQueryUsesRowKeys(t *testing.T) {
	want := map[storage.Kind]string{
		storage.KindDSValues:  "(block_number, -1, -1)",
		storage.KindSaiPrices: "(block_number, -1, -2)",
		storage.KindChi:       "(block_number, -5, -5)",
	}
	for kind, bound := range want {
		q, err := pageQuery(kind)
		if err != nil {
			t.Fatalf("page query %s: %v", kind, err)
		}
		if !strings.Contains(q.sql, bound) {
			t.Fatalf("%s query does not page on %s: %s", kind, bound, q.sql)
		}
	}
}

func TestDropYielded(t *testing.T) {
	row := func(block int64, address string) model.Event {
		return storage.PriceRow{BlockNumber: block, Address: address, Price: "1"}.DSValueEvent()
	}
	page := []model.Event{row(5, "0x01"), row(5, "0x02"), row(5, "0x03"), row(6, "0x01")}
	last := page[0].Key()

	got := dropYielded(page, last, 2)
	if len(got) != 2 || got[0].Address != "0x03" {
		t.Fatalf("dropYielded(2) = %+v", got)
	}
	got = dropYielded(page, last, 5)
	if len(got) != 1 || got[0].BlockNumber != 6 {
		t.Fatalf("dropYielded stops at the next key, got %+v", got)
	}
	if got := dropYielded(page, model.PointInTime{BlockNumber: 4}, 3); len(got) != len(page) {
		t.Fatalf("rows at other keys must be kept, got %d", len(got))
	}
}
