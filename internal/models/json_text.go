package models

import (
	"database/sql/driver"
	"fmt"
	"strconv"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// JSONText is a JSON document column: jsonb on postgres, TEXT elsewhere.
// SQLite gives any other declared JSON type NUMERIC affinity, which turns
// scalar documents such as 5 into integers.
type JSONText datatypes.JSON

// GormDataType returns the generic gorm data type.
func (JSONText) GormDataType() string {
	return "json"
}

// GormDBDataType returns the column type for the active dialect.
func (JSONText) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	if db != nil && db.Dialector != nil && db.Dialector.Name() == "postgres" {
		return datatypes.JSON(nil).GormDBDataType(db, field)
	}
	return "TEXT"
}

// Value stores the document as text.
func (j JSONText) Value() (driver.Value, error) {
	return datatypes.JSON(j).Value()
}

// Scan reads a document, including scalars written to a NUMERIC column.
func (j *JSONText) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		*j = nil
		return nil
	case int64:
		*j = JSONText(strconv.FormatInt(v, 10))
		return nil
	case float64:
		*j = JSONText(strconv.FormatFloat(v, 'f', -1, 64))
		return nil
	case bool:
		*j = JSONText(strconv.FormatBool(v))
		return nil
	case []byte, string:
		var inner datatypes.JSON
		if errScan := inner.Scan(v); errScan != nil {
			return errScan
		}
		*j = JSONText(inner)
		return nil
	default:
		return fmt.Errorf("models: unsupported json column value %T", value)
	}
}
