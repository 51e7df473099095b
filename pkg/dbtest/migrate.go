package dbtest

import (
	"fmt"
	"os"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	_ "github.com/jackc/pgx/v5/stdlib" // golang postgres driver
)

// Open подключается к базе из переменной окружения envDSN, выполняет reset и
// накатывает миграции. Без переменной тест пропускается.
func Open(t *testing.T, envDSN, reset string, migrations ...string) *sqlx.DB {
	t.Helper()

	dsn := os.Getenv(envDSN)
	if dsn == "" {
		t.Skipf("%s is not set", envDSN)
	}

	db, err := sqlx.Connect("pgx", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	if reset != "" {
		_, err = db.Exec(reset)
		require.NoError(t, err)
	}
	require.NoError(t, MigrateFromFile(db, migrations...))

	return db
}

// MigrateFromFile выполняет SQL из файлов по порядку. Запросы без
// аргументов идут простым протоколом, поэтому файл может содержать
// несколько выражений.
func MigrateFromFile(db *sqlx.DB, fileNames ...string) error {
	for _, fileName := range fileNames {
		query, err := os.ReadFile(fileName)
		if err != nil {
			return fmt.Errorf("os.ReadFile: %w", err)
		}

		if _, err = db.Exec(string(query)); err != nil {
			return fmt.Errorf("migrate %s: %w", fileName, err)
		}
	}

	return nil
}
