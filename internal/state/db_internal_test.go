package state

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRebind(t *testing.T) {
	pg := &Store{dialect: DialectPostgres}
	require.Equal(t,
		`UPDATE t SET a = $1 WHERE b = $2 AND c = $3;`,
		pg.rebind(`UPDATE t SET a = ? WHERE b = ? AND c = ?;`))

	lite := &Store{dialect: DialectSQLite}
	require.Equal(t, `SELECT 1 WHERE a = ?;`, lite.rebind(`SELECT 1 WHERE a = ?;`))
}
