package api

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validationMessage flattens validator errors into one readable line.
func validationMessage(err error) (field, message string) {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return "", err.Error()
	}

	var msgs []string
	for _, fe := range errs {
		name := fe.Namespace()
		if i := strings.IndexByte(name, '.'); i >= 0 {
			name = name[i+1:]
		}
		switch fe.ActualTag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("field %s is required", name))
		case "hexcolor":
			msgs = append(msgs, fmt.Sprintf("field %s must be a hex color", name))
		case "uuid":
			msgs = append(msgs, fmt.Sprintf("field %s must be a uuid", name))
		case "gte", "lte", "min", "max":
			msgs = append(msgs, fmt.Sprintf("field %s must satisfy %s=%s", name, fe.ActualTag(), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("field %s is invalid", name))
		}
	}
	return errs[0].Field(), strings.Join(msgs, ", ")
}
