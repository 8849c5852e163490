package database

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func TestTableColumns_SQLite(t *testing.T) {
	db, err := Connect(Config{Driver: DriverSQLite, Name: ":memory:"})
	require.NoError(t, err)

	err = db.Exec("CREATE TABLE test_items (id INTEGER PRIMARY KEY, name TEXT, description TEXT)").Error
	require.NoError(t, err)

	columns, err := TableColumns(db, "test_items")
	require.NoError(t, err)
	assert.Equal(t, []Column{{"id", "integer"}, {"name", "text"}, {"description", "text"}}, columns)

	// PRAGMA table_info returns nothing for a missing table.
	cols, err := TableColumns(db, "non_existent")
	assert.NoError(t, err)
	assert.Empty(t, cols)
}

func TestMissingColumns(t *testing.T) {
	db, err := Connect(Config{Driver: DriverSQLite, Name: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, db.Exec("CREATE TABLE things (id INTEGER PRIMARY KEY, Name TEXT)").Error)

	missing, err := MissingColumns(db, "things", "id", "name", "slug", "attributes")
	require.NoError(t, err)
	assert.Equal(t, []string{"attributes", "slug"}, missing)
}

func TestTableColumns_MySQL(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db, err := gorm.Open(mysql.New(mysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true}), &gorm.Config{})
	require.NoError(t, err)

	mock.ExpectQuery("SHOW COLUMNS FROM `things`").
		WillReturnRows(sqlmock.NewRows([]string{"Field", "Type", "Null", "Key", "Default", "Extra"}).
			AddRow("ID", "INT", "NO", "PRI", nil, "auto_increment").
			AddRow("name", "VARCHAR(255)", "YES", "", nil, ""))

	columns, err := TableColumns(db, "things")
	require.NoError(t, err)
	assert.Equal(t, []Column{{"id", "int"}, {"name", "varchar(255)"}}, columns)
	assert.NoError(t, mock.ExpectationsWereMet())
}
