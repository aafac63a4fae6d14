package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/BradenHooton/schoolmis/internal/models"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

const dateLayout = "2006-01-02"

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their JSON names so details match the request body.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("date", func(fl validator.FieldLevel) bool {
		_, err := time.Parse(dateLayout, fl.Field().String())
		return err == nil
	})
	return v
}

// ValidateRequest runs struct tag validation and aggregates every failed
// field into a *models.ValidationError.
func ValidateRequest(req interface{}) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return models.NewValidationError("body", "Invalid request")
	}

	verr := &models.ValidationError{}
	for _, fe := range fieldErrs {
		verr.Add(fe.Field(), formatValidationError(fe))
	}
	return verr
}

func formatValidationError(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must contain at least %s item(s)", field, fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must not exceed %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must contain at most %s item(s)", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "uuid":
		return fmt.Sprintf("%s must be a valid id", field)
	case "date":
		return fmt.Sprintf("%s must be a date in YYYY-MM-DD format", field)
	case "len":
		return fmt.Sprintf("%s must be exactly %s characters", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

// decodeJSON reads the request body into dst and validates it.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return models.NewValidationError("body", "Invalid request body")
	}
	return ValidateRequest(dst)
}

const maxBodyBytes = 1 << 20

// parseID accepts only the canonical hyphenated UUID form, the one the
// database stores and prints.
func parseID(field, value string) (string, error) {
	if !models.IsID(value) {
		return "", invalidID(field)
	}
	return value, nil
}

// parseOptionalID returns "" for an empty value.
func parseOptionalID(field, value string) (string, error) {
	if value == "" {
		return "", nil
	}
	return parseID(field, value)
}

// pathID reads a chi route parameter holding a record id.
func pathID(r *http.Request, name string) (string, error) {
	return parseID(name, chi.URLParam(r, name))
}

func invalidID(field string) error {
	return models.NewValidationError(field, fmt.Sprintf("%s must be a valid id", field))
}

// parseDate parses a YYYY-MM-DD value as midnight in loc.
func parseDate(field, value string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(dateLayout, value, loc)
	if err != nil {
		return time.Time{}, models.NewValidationError(field, fmt.Sprintf("%s must be a date in YYYY-MM-DD format", field))
	}
	return t, nil
}

// parseOptionalDate returns nil for an empty value.
func parseOptionalDate(field, value string, loc *time.Location) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := parseDate(field, value, loc)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// queryRange reads the optional from/to query parameters.
func queryRange(r *http.Request, loc *time.Location) (models.DateRange, error) {
	verr := &models.ValidationError{}
	from, err := parseOptionalDate("from", r.URL.Query().Get("from"), loc)
	if err != nil {
		verr.Add("from", "from must be a date in YYYY-MM-DD format")
	}
	to, err := parseOptionalDate("to", r.URL.Query().Get("to"), loc)
	if err != nil {
		verr.Add("to", "to must be a date in YYYY-MM-DD format")
	}
	if err := verr.Err(); err != nil {
		return models.DateRange{}, err
	}
	return models.DateRange{From: from, To: to}, nil
}
