package validator

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	apperrors "github.com/learnsphere/exam-service/internal/errors"
	"github.com/learnsphere/exam-service/internal/models"
)

// Validator wraps go-playground struct validation plus domain rules
// that tags cannot express.
type Validator struct {
	structValidator *validator.Validate
}

// New creates the shared validator instance with custom rules registered.
func New() *Validator {
	structValidator := validator.New()
	registerCustomValidators(structValidator)

	return &Validator{structValidator: structValidator}
}

// ValidateStruct validates struct tags only.
func (v *Validator) ValidateStruct(s interface{}) error {
	return v.structValidator.Struct(s)
}

// Validate performs struct validation and returns field-level errors.
func (v *Validator) Validate(s interface{}) error {
	if err := v.structValidator.Struct(s); err != nil {
		if errs := apperrors.ToValidationErrors(err); len(errs) > 0 {
			return errs
		}
		return err
	}
	return nil
}

// ValidateQuestionOptions checks the rules a jsonb column cannot carry
// in tags: at least two options and at least one marked correct.
func (v *Validator) ValidateQuestionOptions(options []models.ExamOption) apperrors.ValidationErrors {
	var errs apperrors.ValidationErrors

	if len(options) < 2 {
		errs = append(errs, apperrors.ValidationError{
			Field:   "options",
			Message: "must have at least 2 options",
			Rule:    "question_options",
		})
		return errs
	}

	hasCorrect := false
	for i, opt := range options {
		if strings.TrimSpace(opt.Text) == "" {
			errs = append(errs, apperrors.ValidationError{
				Field:   "options",
				Message: "option text must not be empty",
				Value:   i,
				Rule:    "question_options",
			})
		}
		if opt.IsCorrect {
			hasCorrect = true
		}
	}
	if !hasCorrect {
		errs = append(errs, apperrors.ValidationError{
			Field:   "options",
			Message: "must have at least 1 correct option",
			Rule:    "question_options",
		})
	}

	return errs
}

func registerCustomValidators(validate *validator.Validate) {
	validate.RegisterValidation("user_role", validateUserRole)
	validate.RegisterValidation("completion_item_type", validateCompletionItemType)
	validate.RegisterValidation("pass_percent", validatePassPercent)

	// Report errors against json field names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

func validateUserRole(fl validator.FieldLevel) bool {
	switch models.UserRole(fl.Field().String()) {
	case models.RoleStudent, models.RoleTeacher, models.RoleAdmin:
		return true
	}
	return false
}

func validateCompletionItemType(fl validator.FieldLevel) bool {
	return models.CompletionItemType(fl.Field().String()).Valid()
}

func validatePassPercent(fl validator.FieldLevel) bool {
	value := fl.Field().Int()
	return value >= 0 && value <= 100
}
