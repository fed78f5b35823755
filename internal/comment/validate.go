package comment

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrInvalid marks errors caused by bad user input.
var ErrInvalid = errors.New("invalid input")

// ErrNotFound is returned when a requested page does not exist.
var ErrNotFound = errors.New("not found")

var validate = validator.New(validator.WithRequiredStructEnabled())

// ParseBounded parses the named parameter as an integer in [min, max].
func ParseBounded(raw, param string, min, max int) (int, error) {
	if max < min {
		return 0, fmt.Errorf("max (%d) must be greater than or equal to min (%d)", max, min)
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("%w: parameter %s was not found", ErrInvalid, param)
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: could not convert %s to an integer: %q", ErrInvalid, param, raw)
	}
	if err := validate.Var(n, fmt.Sprintf("min=%d,max=%d", min, max)); err != nil {
		return 0, rangeError(param, min, max)
	}
	return n, nil
}

// ValidateSubmission trims and checks a submission against the limits.
func ValidateSubmission(sub *Submission, limits Limits) error {
	sub.Name = strings.TrimSpace(sub.Name)
	sub.Content = strings.TrimSpace(sub.Content)

	if err := validate.Var(sub.BlogID, fmt.Sprintf("min=1,max=%d", limits.MaxBlogs)); err != nil {
		return rangeError("blog-number", 1, limits.MaxBlogs)
	}

	if err := validate.Struct(sub); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fieldError(verrs[0])
		}
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	if sub.Image != nil {
		if err := validateImage(sub.Image, limits.MaxImageBytes); err != nil {
			return err
		}
	}
	return nil
}

// validateImage sniffs the content type and enforces the size cap.
func validateImage(img *Image, maxBytes int64) error {
	if len(img.Data) == 0 {
		return fmt.Errorf("%w: image is empty", ErrInvalid)
	}
	if maxBytes > 0 && int64(len(img.Data)) > maxBytes {
		return fmt.Errorf("%w: image is larger than %d bytes", ErrInvalid, maxBytes)
	}
	sniffed := http.DetectContentType(img.Data)
	if !strings.HasPrefix(sniffed, "image/") {
		return fmt.Errorf("%w: %s is not an image (%s)", ErrInvalid, img.Filename, sniffed)
	}
	img.ContentType = sniffed
	return nil
}

func rangeError(param string, min, max int) error {
	return fmt.Errorf("%w: please enter an integer between %d to %d for %s", ErrInvalid, min, max, param)
}

func fieldError(fe validator.FieldError) error {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%w: %s is required", ErrInvalid, field)
	case "max":
		return fmt.Errorf("%w: please enter a %s with 1 to %s characters", ErrInvalid, field, fe.Param())
	default:
		return fmt.Errorf("%w: %s failed %s", ErrInvalid, field, fe.Tag())
	}
}
