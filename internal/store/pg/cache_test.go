package pg

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

func newMockCache(t *testing.T) (*Cache, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
		db.Close()
	})
	return NewCache(db), mock
}

func TestEnsureSchema(t *testing.T) {
	c, mock := newMockCache(t)
	mock.ExpectExec("create table if not exists ledger_cache").
		WillReturnResult(sqlmock.NewResult(0, 0))
	if err := c.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
}

func TestCacheGet(t *testing.T) {
	c, mock := newMockCache(t)
	query := regexp.QuoteMeta(`select value from ledger_cache where key = $1`)

	mock.ExpectQuery(query).WithArgs("payment/3").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow([]byte(`{"id":3}`)))
	raw, ok, err := c.Get(context.Background(), "payment/3")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if string(raw) != `{"id":3}` {
		t.Fatalf("value = %s", raw)
	}

	mock.ExpectQuery(query).WithArgs("payment/4").
		WillReturnRows(sqlmock.NewRows([]string{"value"}))
	_, ok, err = c.Get(context.Background(), "payment/4")
	if err != nil || ok {
		t.Fatalf("missing key: ok=%v err=%v", ok, err)
	}
}

func TestCachePut(t *testing.T) {
	c, mock := newMockCache(t)
	mock.ExpectExec("insert into ledger_cache").
		WithArgs("counter", []byte(`5`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	if err := c.Put(context.Background(), "counter", []byte(`5`)); err != nil {
		t.Fatalf("put: %v", err)
	}
}

func TestCacheDelete(t *testing.T) {
	c, mock := newMockCache(t)
	mock.ExpectExec(regexp.QuoteMeta(`delete from ledger_cache where key = $1`)).
		WithArgs("counter").
		WillReturnResult(sqlmock.NewResult(0, 1))
	if err := c.Delete(context.Background(), "counter"); err != nil {
		t.Fatalf("delete: %v", err)
	}
}
