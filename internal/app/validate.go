package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/0x-mperego/unimec-display/internal/domain"
	"github.com/go-playground/validator/v10"
)

func (s *Service) validatePayload(kind domain.ItemKind, raw json.RawMessage) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: payload is required", domain.ErrInvalidPayload)
	}

	var target any
	switch kind {
	case domain.KindText:
		target = &domain.TextPayload{}
	case domain.KindImage:
		target = &domain.ImagePayload{}
	default:
		return fmt.Errorf("%w: %q", domain.ErrInvalidKind, kind)
	}

	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("%w: %s payload is not valid JSON", domain.ErrInvalidPayload, kind)
	}
	if err := s.validate.Struct(target); err != nil {
		return fmt.Errorf("%w: %s", domain.ErrInvalidPayload, describeValidation(err))
	}
	return nil
}

// describeValidation turns validator output into "field: rule" pairs that
// are safe to show to the admin.
func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		parts = append(parts, fmt.Sprintf("%s: %s", lowerFirst(fe.Field()), rule))
	}
	return strings.Join(parts, ", ")
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
