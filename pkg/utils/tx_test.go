package utils

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"reflect"
	"sync"
	"testing"
)

// txLog records transaction boundaries seen by recordingConnector.
type txLog struct {
	mu     sync.Mutex
	events []string
}

func (l *txLog) add(e string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *txLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

type recordingConnector struct{ log *txLog }

func (c recordingConnector) Connect(context.Context) (driver.Conn, error) {
	return recordingConn(c), nil
}
func (c recordingConnector) Driver() driver.Driver { return nil }

type recordingConn struct{ log *txLog }

func (c recordingConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("statements not supported")
}
func (c recordingConn) Close() error { return nil }
func (c recordingConn) Begin() (driver.Tx, error) {
	c.log.add("begin")
	return recordingTx(c), nil
}

type recordingTx struct{ log *txLog }

func (t recordingTx) Commit() error   { t.log.add("commit"); return nil }
func (t recordingTx) Rollback() error { t.log.add("rollback"); return nil }

func newRecordingDB(t *testing.T) (*sql.DB, *txLog) {
	t.Helper()
	log := &txLog{}
	db := sql.OpenDB(recordingConnector{log: log})
	t.Cleanup(func() { _ = db.Close() })
	return db, log
}

func TestWithTx_Commits(t *testing.T) {
	db, log := newRecordingDB(t)
	if err := WithTx(context.Background(), db, nil, func(context.Context, *sql.Tx) error { return nil }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := log.list(); !reflect.DeepEqual(got, []string{"begin", "commit"}) {
		t.Fatalf("unexpected tx events: %v", got)
	}
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	db, log := newRecordingDB(t)
	want := errors.New("boom")
	err := WithTx(context.Background(), db, nil, func(context.Context, *sql.Tx) error { return want })
	if !errors.Is(err, want) {
		t.Fatalf("expected fn error, got %v", err)
	}
	if got := log.list(); !reflect.DeepEqual(got, []string{"begin", "rollback"}) {
		t.Fatalf("unexpected tx events: %v", got)
	}
}

func TestWithTx_RollsBackOnPanic(t *testing.T) {
	db, log := newRecordingDB(t)
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic to propagate")
		}
		if got := log.list(); !reflect.DeepEqual(got, []string{"begin", "rollback"}) {
			t.Fatalf("unexpected tx events: %v", got)
		}
	}()
	_ = WithTx(context.Background(), db, nil, func(context.Context, *sql.Tx) error { panic("fn") })
}
