package handlers

import (
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/router-for-me/CLIProxyAPIKeyManager/internal/credential"
	log "github.com/sirupsen/logrus"
)

var registerValidatorsOnce sync.Once

// RegisterValidators adds the custom binding tags used by the request payloads.
// It is safe to call more than once.
func RegisterValidators() {
	registerValidatorsOnce.Do(func() {
		engine, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			log.Warn("dashboard: gin validator engine is not go-playground/validator")
			return
		}
		if errRegister := engine.RegisterValidation("provider", validateProvider); errRegister != nil {
			log.WithError(errRegister).Error("dashboard: register provider validator")
		}
	})
}

// validateProvider accepts canonical provider names and their aliases.
func validateProvider(fl validator.FieldLevel) bool {
	return credential.NormalizeProvider(fl.Field().String()) != ""
}
