package validators

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"racebeacon/internal/models"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

var phoneRegex = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)

func init() {
	validate = validator.New()

	validate.RegisterValidation("transport_mode", validateTransportMode)
	validate.RegisterValidation("availability", validateAvailability)
	validate.RegisterValidation("phone_number", validatePhoneNumber)
}

// ValidationError represents a field validation error
type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	messages := make([]string, 0, len(v))
	for _, err := range v {
		messages = append(messages, fmt.Sprintf("%s: %s", err.Field, err.Message))
	}
	return strings.Join(messages, "; ")
}

// ValidateStruct checks an inbound payload against its validate tags. It
// returns nil when the payload is acceptable.
func ValidateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return err
	}

	validationErrors := make(ValidationErrors, 0, len(fieldErrors))
	for _, fieldErr := range fieldErrors {
		validationErrors = append(validationErrors, ValidationError{
			Field:   fieldErr.Field(),
			Tag:     fieldErr.Tag(),
			Message: getErrorMessage(fieldErr),
		})
	}
	return validationErrors
}

func getErrorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", err.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s", err.Field(), err.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", err.Field(), err.Param())
	case "transport_mode":
		return "transport mode must be one of walk, bike, scooter, car, ambulance"
	case "availability":
		return "availability must be available or responding"
	case "phone_number":
		return "Invalid phone number format"
	default:
		return fmt.Sprintf("Validation failed for %s", err.Field())
	}
}

func validateTransportMode(fl validator.FieldLevel) bool {
	return models.TransportMode(fl.Field().String()).IsValid()
}

func validateAvailability(fl validator.FieldLevel) bool {
	return models.Availability(fl.Field().String()).IsValid()
}

func validatePhoneNumber(fl validator.FieldLevel) bool {
	phone := fl.Field().String()
	if phone == "" {
		return true
	}
	return IsValidPhone(phone)
}

// IsValidPhone reports whether phone is in E.164 form, e.g. +85291234567.
func IsValidPhone(phone string) bool {
	return phoneRegex.MatchString(phone)
}
