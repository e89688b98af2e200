package store

import (
	"errors"

	"github.com/router-for-me/CLIProxyAPIKeyManager/internal/credential"
	"github.com/router-for-me/CLIProxyAPIKeyManager/internal/db"
)

var errNotInitialized = errors.New("gorm key store: not initialized")

// translate maps a gorm error onto a credential kind. what names the record, e.g. "provider key".
func translate(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case credential.KindOf(err) != "":
		return err
	case db.IsNotFound(err):
		return credential.NotFoundError("%s not found", what)
	case db.IsUniqueViolation(err):
		return credential.ConflictError(err, "%s conflicts with an existing record", what)
	default:
		return credential.StoreUnavailableError(err, "%s storage unavailable", what)
	}
}

func unavailable() error {
	return credential.StoreUnavailableError(errNotInitialized, "gorm key store: not initialized")
}
