package handlers

import (
	"fmt"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"filmsociety/api/models"
	"filmsociety/api/utils"
)

// RegisterValidators adds the custom binding tags used by the request
// models: "eventname" and "slug".
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("unexpected validator engine %T", binding.Validator.Engine())
	}
	if err := v.RegisterValidation("eventname", func(fl validator.FieldLevel) bool {
		return models.IsKnownEvent(fl.Field().String())
	}); err != nil {
		return fmt.Errorf("registering eventname validator: %w", err)
	}
	if err := v.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		return utils.IsSlug(fl.Field().String())
	}); err != nil {
		return fmt.Errorf("registering slug validator: %w", err)
	}
	return nil
}
