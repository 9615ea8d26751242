package domain

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
}

// ExperimentDraft is the input for creating an experiment.
type ExperimentDraft struct {
	Name              string    `json:"name" yaml:"name" validate:"required,max=200"`
	Description       string    `json:"description" yaml:"description" validate:"max=2000"`
	TrafficPercentage int       `json:"trafficPercentage" yaml:"traffic_percentage" validate:"gte=1,lte=100"`
	Variants          []Variant `json:"variants" yaml:"variants" validate:"required,dive"`
}

// Validate checks field-level constraints. The variant-set invariants
// (count, sum, uniqueness) are checked by the allocator.
func (d *ExperimentDraft) Validate() error {
	return validateStruct(d)
}

// Validate checks the field-level constraints of a participation record.
func (r *ParticipationRecord) Validate() error {
	return validateStruct(r)
}

func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return Validationf("invalid input: %v", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describeFieldError(fe))
	}
	return Validationf("%s", strings.Join(msgs, "; "))
}

func describeFieldError(fe validator.FieldError) string {
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s is too long (max %s)", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
