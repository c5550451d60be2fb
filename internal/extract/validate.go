package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/dgallion1/medrag/internal/llm"
)

var (
	hhmmRe      = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)
	shortTimeRe = regexp.MustCompile(`^(\d):([0-5]\d)$`)

	injectionPattern = regexp.MustCompile(
		`(?i)\b(ignore\s+(previous|all|above)|system\s*prompt|you\s+are\s+now|` +
			`act\s+as|pretend|forget\s+(everything|all)|override|` +
			`new\s+instructions)\b`,
	)
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
		return hhmmRe.MatchString(fl.Field().String())
	}); err != nil {
		panic(err)
	}
	return v
}

// reply mirrors ReminderSchedule with pointers so missing keys can be told
// apart from empty values.
type reply struct {
	Drug         *string  `json:"drug"`
	Dosage       *string  `json:"dosage" validate:"required"`
	Times        []string `json:"times" validate:"required"`
	Instructions *string  `json:"instructions" validate:"required"`
}

// ParseSchedule strictly decodes and validates a model reply. Small
// deviations are repaired: H:MM times are zero padded, an empty drug takes
// drugName and duplicate times are dropped.
func ParseSchedule(raw, drugName string) (ReminderSchedule, error) {
	text := llm.StripCodeBlock(raw)
	if text == "" {
		return ReminderSchedule{}, errors.New("empty reply")
	}

	dec := json.NewDecoder(strings.NewReader(text))
	dec.DisallowUnknownFields()
	var r reply
	if err := dec.Decode(&r); err != nil {
		return ReminderSchedule{}, fmt.Errorf("decode schedule: %w", err)
	}
	if dec.More() {
		return ReminderSchedule{}, errors.New("decode schedule: trailing data after object")
	}
	if err := validate.Struct(r); err != nil {
		return ReminderSchedule{}, formatValidationError(err)
	}

	s := ReminderSchedule{
		Dosage:       strings.TrimSpace(*r.Dosage),
		Times:        repairTimes(r.Times),
		Instructions: strings.TrimSpace(*r.Instructions),
	}
	if r.Drug != nil {
		s.Drug = strings.TrimSpace(*r.Drug)
	}
	if s.Drug == "" {
		s.Drug = strings.TrimSpace(drugName)
	}
	if err := ValidateSchedule(s); err != nil {
		return ReminderSchedule{}, err
	}
	return s, nil
}

// ValidateSchedule checks a schedule against the output contract.
func ValidateSchedule(s ReminderSchedule) error {
	if err := validate.Struct(s); err != nil {
		return formatValidationError(err)
	}
	if injectionPattern.MatchString(s.Instructions) || injectionPattern.MatchString(s.Dosage) {
		return errors.New("schedule contains instruction-like text")
	}
	return nil
}

func repairTimes(times []string) []string {
	out := make([]string, 0, len(times))
	seen := make(map[string]bool, len(times))
	for _, t := range times {
		t = strings.TrimSpace(t)
		if m := shortTimeRe.FindStringSubmatch(t); m != nil {
			t = "0" + m[1] + ":" + m[2]
		}
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func formatValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, formatFieldError(e))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func formatFieldError(e validator.FieldError) string {
	field := e.Field()
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "hhmm":
		return fmt.Sprintf("%s must be a 24h HH:MM time, got %q", field, e.Value())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
