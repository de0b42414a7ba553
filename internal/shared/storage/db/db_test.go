package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type nopDriver struct{}

func (d nopDriver) Open(name string) (driver.Conn, error) {
	return nopConn{}, nil
}

type nopConn struct{}

func (nopConn) Prepare(query string) (driver.Stmt, error) { return nopStmt{}, nil }
func (nopConn) Close() error                              { return nil }
func (nopConn) Begin() (driver.Tx, error)                 { return nopTx{}, nil }
func (nopConn) Ping(ctx context.Context) error            { return nil }

type nopStmt struct{}

func (nopStmt) Close() error                                   { return nil }
func (nopStmt) NumInput() int                                  { return -1 }
func (nopStmt) Exec(args []driver.Value) (driver.Result, error) { return nopResult{}, nil }
func (nopStmt) Query(args []driver.Value) (driver.Rows, error)  { return nopRows{}, nil }

type nopTx struct{}

func (nopTx) Commit() error   { return nil }
func (nopTx) Rollback() error { return nil }

type nopResult struct{}

func (nopResult) LastInsertId() (int64, error) { return 0, nil }
func (nopResult) RowsAffected() (int64, error) { return 0, nil }

type nopRows struct{}

func (nopRows) Columns() []string              { return []string{} }
func (nopRows) Close() error                   { return nil }
func (nopRows) Next(dest []driver.Value) error { return driver.ErrBadConn }

var registerTestDriverOnce sync.Once

func ensureTestDriverRegistered() {
	registerTestDriverOnce.Do(func() {
		sql.Register("dbtest", nopDriver{})
	})
}

func withTestDriver(t *testing.T) func() {
	t.Helper()
	ensureTestDriverRegistered()
	prev := openDB
	openDB = func(name, dsn string) (*sql.DB, error) {
		return sql.Open("dbtest", dsn)
	}
	return func() {
		openDB = prev
	}
}

func resetSingleton() {
	shared.Lock()
	shared.db = nil
	shared.Unlock()
}

func TestConnectRejectsBlankURL(t *testing.T) {
	if _, err := Connect(context.Background(), "  ", DefaultOptions(RoleServer)); err == nil {
		t.Fatalf("expected error for blank DATABASE_URL")
	}
}

func TestDefaultOptions(t *testing.T) {
	tests := []struct {
		name     string
		role     Role
		wantOpen int
	}{
		{name: "server", role: RoleServer, wantOpen: 10},
		{name: "migrate", role: RoleMigrate, wantOpen: 1},
		{name: "unknown role uses server", role: Role("batch"), wantOpen: 10},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got := DefaultOptions(tt.role)
			if got.MaxOpenConns != tt.wantOpen {
				t.Fatalf("MaxOpenConns = %d, want %d", got.MaxOpenConns, tt.wantOpen)
			}
			if got.PingTimeout <= 0 || got.ConnMaxLifetime <= 0 {
				t.Fatalf("incomplete defaults: %+v", got)
			}
		})
	}
}

func TestOptionsFromEnv(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want Options
	}{
		{
			name: "no overrides",
			env:  map[string]string{},
			want: DefaultOptions(RoleServer),
		},
		{
			name: "all overrides",
			env: map[string]string{
				"DB_MAX_OPEN_CONNS":     "7",
				"DB_MAX_IDLE_CONNS":     "3",
				"DB_CONN_MAX_LIFETIME":  "20m",
				"DB_CONN_MAX_IDLE_TIME": "45s",
				"DB_PING_TIMEOUT":       "1s",
			},
			want: Options{MaxOpenConns: 7, MaxIdleConns: 3, ConnMaxLifetime: 20 * time.Minute, ConnMaxIdleTime: 45 * time.Second, PingTimeout: time.Second},
		},
		{
			name: "invalid values keep defaults",
			env:  map[string]string{"DB_MAX_OPEN_CONNS": "many", "DB_PING_TIMEOUT": "soon"},
			want: DefaultOptions(RoleServer),
		},
		{
			name: "partial override",
			env:  map[string]string{"DB_MAX_IDLE_CONNS": " 2 "},
			want: func() Options { o := DefaultOptions(RoleServer); o.MaxIdleConns = 2; return o }(),
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			for _, key := range []string{"DB_MAX_OPEN_CONNS", "DB_MAX_IDLE_CONNS", "DB_CONN_MAX_LIFETIME", "DB_CONN_MAX_IDLE_TIME", "DB_PING_TIMEOUT"} {
				t.Setenv(key, tt.env[key])
			}
			if got := OptionsFromEnv(DefaultOptions(RoleServer)); got != tt.want {
				t.Fatalf("OptionsFromEnv = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestConnectAppliesPoolLimits(t *testing.T) {
	restore := withTestDriver(t)
	defer restore()

	db, err := Connect(context.Background(), "ignored", Options{MaxOpenConns: 4, MaxIdleConns: 2})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer db.Close()
	if got := db.Stats().MaxOpenConnections; got != 4 {
		t.Fatalf("MaxOpenConnections = %d, want 4", got)
	}
}

func TestGetSingletonReusesConnection(t *testing.T) {
	restore := withTestDriver(t)
	defer restore()
	resetSingleton()
	defer resetSingleton()

	first, err := GetSingleton(context.Background(), "ignored", DefaultOptions(RoleMigrate))
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	second, err := GetSingleton(context.Background(), "ignored", DefaultOptions(RoleMigrate))
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if first != second {
		t.Fatalf("expected the same *sql.DB")
	}
}

func TestGetSingletonRetriesAfterFailure(t *testing.T) {
	ensureTestDriverRegistered()
	var calls int32
	prev := openDB
	openDB = func(name, dsn string) (*sql.DB, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return nil, driver.ErrBadConn
		}
		return sql.Open("dbtest", dsn)
	}
	defer func() { openDB = prev }()
	resetSingleton()
	defer resetSingleton()

	if _, err := GetSingleton(context.Background(), "ignored", DefaultOptions(RoleMigrate)); err == nil {
		t.Fatalf("expected first call to fail")
	}
	db, err := GetSingleton(context.Background(), "ignored", DefaultOptions(RoleMigrate))
	if err != nil || db == nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
}

func TestGetSingletonSharesPoolAcrossGoroutines(t *testing.T) {
	ensureTestDriverRegistered()
	var opens int32
	prev := openDB
	openDB = func(name, dsn string) (*sql.DB, error) {
		atomic.AddInt32(&opens, 1)
		return sql.Open("dbtest", dsn)
	}
	defer func() { openDB = prev }()
	resetSingleton()
	defer resetSingleton()

	const callers = 8
	results := make([]*sql.DB, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = GetSingleton(context.Background(), "ignored", DefaultOptions(RoleServer))
		}(i)
	}
	wg.Wait()

	if got := atomic.LoadInt32(&opens); got != 1 {
		t.Fatalf("opened %d pools, want 1", got)
	}
	for i, db := range results {
		if db == nil || db != results[0] {
			t.Fatalf("caller %d got a different pool", i)
		}
	}
}
