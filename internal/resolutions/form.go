package resolutions

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Score and age bounds accepted by the submission form.
const (
	MinScore = 0
	MaxScore = 5
	MinAge   = 13
	MaxAge   = 100
)

var (
	// ErrCategoryRequired indicates that no resolution category was selected.
	ErrCategoryRequired = errors.New("resolutions: at least one resolution category is required")
	// ErrMotivationRequired indicates that no motivation was selected.
	ErrMotivationRequired = errors.New("resolutions: at least one motivation is required")
	// ErrMessageRequired indicates that the message is empty after trimming.
	ErrMessageRequired = errors.New("resolutions: message is required")
	// ErrMessageTooLong indicates that the message exceeds the configured maximum.
	ErrMessageTooLong = errors.New("resolutions: message exceeds maximum length")
	// ErrAgeOutOfRange indicates a disclosed age outside the accepted bounds.
	ErrAgeOutOfRange = errors.New("resolutions: age out of range")
	// ErrScoreOutOfRange indicates a self-assessment score outside [0,5].
	ErrScoreOutOfRange = errors.New("resolutions: score out of range")
	// ErrUnknownCountry indicates a country outside the configured enumeration.
	ErrUnknownCountry = errors.New("resolutions: unknown country")
	// ErrUnknownCategory indicates a category outside the configured enumeration.
	ErrUnknownCategory = errors.New("resolutions: unknown resolution category")
	// ErrUnknownMotivation indicates a motivation outside the configured enumeration.
	ErrUnknownMotivation = errors.New("resolutions: unknown motivation")
)

// FormInput carries the raw widget values of one submission attempt.
// Age <= 0 is the widget's "not disclosed" sentinel; an empty country means
// the same for the country select.
type FormInput struct {
	Message              string
	Age                  int64
	Country              string
	Categories           []string
	Motivations          []string
	PastYearScore        int64
	NewYearScore         int64
	CompletionConfidence int64
	Submitted            bool
}

// CollectOptions parameterizes validation with the configured bounds and
// enumerations.
type CollectOptions struct {
	Enabled       bool
	MaxMessageLen int
	Countries     []string
	Categories    []string
	Motivations   []string
}

// Collect validates raw form input and produces a candidate Draft. It
// performs no I/O and never touches the store. It returns (nil, nil) when
// the form is disabled or no submit action occurred, and (nil, err) when a
// constraint fails; the caller must not attempt an insert in either case.
func Collect(input FormInput, opts CollectOptions) (*Draft, error) {
	if !opts.Enabled {
		return nil, nil
	}
	if !input.Submitted {
		return nil, nil
	}

	categories := normalizeSet(input.Categories)
	if len(categories) == 0 {
		return nil, ErrCategoryRequired
	}
	motivations := normalizeSet(input.Motivations)
	if len(motivations) == 0 {
		return nil, ErrMotivationRequired
	}

	message := strings.TrimSpace(input.Message)
	if message == "" {
		return nil, ErrMessageRequired
	}
	if opts.MaxMessageLen > 0 && len([]rune(message)) > opts.MaxMessageLen {
		return nil, fmt.Errorf("%w: %d > %d", ErrMessageTooLong, len([]rune(message)), opts.MaxMessageLen)
	}

	var age *int64
	if input.Age > 0 {
		if input.Age < MinAge || input.Age > MaxAge {
			return nil, fmt.Errorf("%w: %d", ErrAgeOutOfRange, input.Age)
		}
		value := input.Age
		age = &value
	}

	var country *string
	if trimmed := strings.TrimSpace(input.Country); trimmed != "" {
		if !slices.Contains(opts.Countries, trimmed) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownCountry, trimmed)
		}
		country = &trimmed
	}

	for _, category := range categories {
		if !slices.Contains(opts.Categories, category) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
		}
	}
	for _, motivation := range motivations {
		if !slices.Contains(opts.Motivations, motivation) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownMotivation, motivation)
		}
	}

	for _, score := range []int64{input.PastYearScore, input.NewYearScore, input.CompletionConfidence} {
		if score < MinScore || score > MaxScore {
			return nil, fmt.Errorf("%w: %d", ErrScoreOutOfRange, score)
		}
	}

	return &Draft{
		Message:              message,
		Age:                  age,
		Country:              country,
		Categories:           categories,
		Motivations:          motivations,
		PastYearScore:        input.PastYearScore,
		NewYearScore:         input.NewYearScore,
		CompletionConfidence: input.CompletionConfidence,
	}, nil
}

// normalizeSet trims entries, drops blanks, and removes duplicates while
// preserving selection order.
func normalizeSet(values []string) []string {
	normalized := make([]string, 0, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		if slices.Contains(normalized, trimmed) {
			continue
		}
		normalized = append(normalized, trimmed)
	}
	return normalized
}
