package application

import (
	"fmt"
	"net"
	"strconv"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	configValidator     *validator.Validate
	configValidatorErr  error
	configValidatorOnce sync.Once
)

// newConfigValidator returns the shared validator with the configuration
// specific rules registered. The instance is built once and is safe for
// concurrent use.
func newConfigValidator() (*validator.Validate, error) {
	configValidatorOnce.Do(func() {
		v := validator.New()
		if err := registerConfigValidators(v); err != nil {
			configValidatorErr = fmt.Errorf("failed to register validators: %w", err)
			return
		}
		configValidator = v
	})
	return configValidator, configValidatorErr
}

// registerConfigValidators registers domain-specific validation functions
// with the validator instance.
func registerConfigValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("scalesize", validateScaleSize); err != nil {
		return fmt.Errorf("failed to register scalesize validator: %w", err)
	}
	if err := v.RegisterValidation("listenaddr", validateListenAddr); err != nil {
		return fmt.Errorf("failed to register listenaddr validator: %w", err)
	}
	return nil
}

// validateScaleSize accepts 0 (infer from the ballots) or the size of a
// built-in mention scale.
func validateScaleSize(fl validator.FieldLevel) bool {
	switch fl.Field().Int() {
	case 0, 5, 6:
		return true
	default:
		return false
	}
}

// validateListenAddr accepts "host:port" and ":port" with a numeric port.
func validateListenAddr(fl validator.FieldLevel) bool {
	_, port, err := net.SplitHostPort(fl.Field().String())
	if err != nil {
		return false
	}
	n, err := strconv.Atoi(port)
	return err == nil && n >= 0 && n <= 65535
}
