package db

import "gorm.io/gorm"

// Dialect identifiers supported by the database layer.
const (
	// DialectPostgres is the PostgreSQL dialect name.
	DialectPostgres = "postgres"
	// DialectSQLite is the SQLite dialect name.
	DialectSQLite = "sqlite"
)

// DialectName returns the active database dialect name.
func DialectName(conn *gorm.DB) string {
	if conn == nil || conn.Dialector == nil {
		return ""
	}
	return conn.Dialector.Name()
}

// IsSQLite reports whether the connection uses SQLite.
func IsSQLite(conn *gorm.DB) bool {
	return DialectName(conn) == DialectSQLite
}

// BoolLiteral returns the SQL literal for a boolean in partial index predicates.
func BoolLiteral(conn *gorm.DB, value bool) string {
	if IsSQLite(conn) {
		if value {
			return "1"
		}
		return "0"
	}
	if value {
		return "TRUE"
	}
	return "FALSE"
}
