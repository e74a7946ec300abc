package server

import (
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	letterdomain "github.com/smallbiznis/lexdraft/internal/letter/domain"
)

var registerValidatorsOnce sync.Once

// registerValidators adds the custom binding tags used by request structs.
func registerValidators() {
	registerValidatorsOnce.Do(func() {
		engine, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = engine.RegisterValidation("lettertype", func(fl validator.FieldLevel) bool {
			return letterdomain.IsValidLetterType(fl.Field().String())
		})
	})
}
