package simplenews

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// fieldValidator returns the shared validator. Field names in errors follow
// the json tags so API callers see the names they sent.
func fieldValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
		_ = v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
			return Category(fl.Field().String()).IsValid()
		})
		_ = v.RegisterValidation("nonblank", func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		})
		validate = v
	})
	return validate
}

// ValidateContentFields trims and checks the fields of a new content item.
// Every repository calls it before writing so all backends reject the same input.
func ValidateContentFields(fields ContentFields) (ContentFields, error) {
	fields.Title = strings.TrimSpace(fields.Title)
	fields.Description = strings.TrimSpace(fields.Description)
	fields.Category = Category(strings.TrimSpace(string(fields.Category)))
	if fields.MediaRef != nil && strings.TrimSpace(*fields.MediaRef) == "" {
		fields.MediaRef = nil
	}
	if err := structErrors(KindContentItem, fields); err != nil {
		return fields, err
	}
	return fields, nil
}

// ValidateContentPatch trims and checks a partial content update.
func ValidateContentPatch(patch ContentPatch) (ContentPatch, error) {
	patch.Title = trimmed(patch.Title)
	patch.Description = trimmed(patch.Description)
	if patch.Category != nil {
		c := Category(strings.TrimSpace(string(*patch.Category)))
		patch.Category = &c
	}
	if err := structErrors(KindContentItem, patch); err != nil {
		return patch, err
	}
	return patch, nil
}

// ValidateSliderFields checks a new slider entry and defaults its kind to image.
func ValidateSliderFields(fields SliderFields) (SliderFields, error) {
	fields.MediaRef = strings.TrimSpace(fields.MediaRef)
	if fields.MediaKind == "" {
		fields.MediaKind = MediaKindImage
	}
	if err := structErrors(KindSliderEntry, fields); err != nil {
		return fields, err
	}
	return fields, nil
}

// ValidateSliderPatch checks a partial slider update.
func ValidateSliderPatch(patch SliderPatch) (SliderPatch, error) {
	patch.MediaRef = trimmed(patch.MediaRef)
	if err := structErrors(KindSliderEntry, patch); err != nil {
		return patch, err
	}
	return patch, nil
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	return &t
}

func structErrors(kind string, v any) error {
	err := fieldValidator().Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &ValidationError{Kind: kind, Fields: []FieldError{{Tag: "invalid", Message: err.Error()}}}
	}
	out := &ValidationError{Kind: kind}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Message: fieldMessage(fe),
		})
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()

	switch fe.Tag() {
	case "required", "nonblank":
		return fmt.Sprintf("%s is required", field)
	case "category":
		return fmt.Sprintf("%s must be one of the fixed categories", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
