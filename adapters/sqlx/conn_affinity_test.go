package sqlx_test

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	libsqlx "github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	storage "rewardkit/adapters/sqlx"
	"rewardkit/core"
)

// ledgerState is a tiny MySQL stand-in shared by every connection the
// pool opens. Each connection keeps its own LAST_INSERT_ID, matching
// MySQL's per-connection semantics, so only the connection that ran the
// UPDATE knows the fresh total.
type ledgerState struct {
	mu sync.Mutex
	xp map[string]int64
}

type ledgerConnector struct{ state *ledgerState }

func (c *ledgerConnector) Connect(context.Context) (driver.Conn, error) {
	return &ledgerConn{state: c.state}, nil
}

func (c *ledgerConnector) Driver() driver.Driver { return ledgerDriver{} }

type ledgerDriver struct{}

func (ledgerDriver) Open(string) (driver.Conn, error) {
	return nil, errors.New("use the connector")
}

type ledgerConn struct {
	state *ledgerState
	last  int64
}

func (c *ledgerConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("prepare not supported")
}

func (c *ledgerConn) Close() error { return nil }

func (c *ledgerConn) Begin() (driver.Tx, error) {
	return nil, errors.New("transactions not supported")
}

func (c *ledgerConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	if !strings.HasPrefix(query, "UPDATE user_progress") {
		return nil, fmt.Errorf("unexpected exec: %s", query)
	}
	delta := args[0].Value.(int64)
	user := args[2].Value.(string)

	c.state.mu.Lock()
	defer c.state.mu.Unlock()
	cur, ok := c.state.xp[user]
	if !ok {
		return driver.RowsAffected(0), nil
	}
	total := cur + delta
	c.state.xp[user] = total
	c.last = total
	return driver.RowsAffected(1), nil
}

func (c *ledgerConn) QueryContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Rows, error) {
	if !strings.Contains(query, "LAST_INSERT_ID()") {
		return nil, fmt.Errorf("unexpected query: %s", query)
	}
	return &singleRow{cols: []string{"LAST_INSERT_ID()"}, val: c.last}, nil
}

type singleRow struct {
	cols []string
	val  int64
	done bool
}

func (r *singleRow) Columns() []string { return r.cols }
func (r *singleRow) Close() error      { return nil }

func (r *singleRow) Next(dest []driver.Value) error {
	if r.done {
		return io.EOF
	}
	dest[0] = r.val
	r.done = true
	return nil
}

// The UPDATE and the LAST_INSERT_ID read must ride the same connection.
// Idle pooling is disabled so every pooled operation gets a fresh
// connection: splitting the two statements across the pool would read a
// connection that never ran the UPDATE and report a total of 0.
func TestMySQLAddXPSameConnectionTotal(t *testing.T) {
	state := &ledgerState{xp: map[string]int64{"u1": 95}}
	db := sql.OpenDB(&ledgerConnector{state: state})
	db.SetMaxIdleConns(0)

	store := storage.NewWithDB(libsqlx.NewDb(db, "mysql"), storage.DriverMySQL)
	defer store.Close()

	ctx := context.Background()

	p, err := store.AddXP(ctx, "u1", 10)
	require.NoError(t, err)
	require.Equal(t, int64(105), p.XP)
	require.Equal(t, 2, p.Level)

	p, err = store.AddXP(ctx, "u1", 150)
	require.NoError(t, err)
	require.Equal(t, int64(255), p.XP)
	require.Equal(t, 3, p.Level)

	_, err = store.AddXP(ctx, "ghost", 10)
	require.ErrorIs(t, err, core.ErrUserNotFound)
}

// Concurrent grants each report their own connection's total, never a
// sibling's.
func TestMySQLAddXPConcurrentTotalsDistinct(t *testing.T) {
	state := &ledgerState{xp: map[string]int64{"u1": 0}}
	db := sql.OpenDB(&ledgerConnector{state: state})
	db.SetMaxIdleConns(0)

	store := storage.NewWithDB(libsqlx.NewDb(db, "mysql"), storage.DriverMySQL)
	defer store.Close()

	ctx := context.Background()
	const workers = 8

	totals := make(chan int64, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := store.AddXP(ctx, "u1", 10)
			if err != nil {
				t.Error(err)
				return
			}
			totals <- p.XP
		}()
	}
	wg.Wait()
	close(totals)

	seen := map[int64]bool{}
	for total := range totals {
		require.False(t, seen[total], "total %d reported twice", total)
		seen[total] = true
	}
	require.Len(t, seen, workers)
}
