package recurrence

import "fmt"

// ErrorKind classifies recurrence errors.
type ErrorKind string

const (
	// KindInvalidRuleField marks a value outside its valid range.
	KindInvalidRuleField ErrorKind = "invalid_rule_field"
	// KindInvalidRule marks a structurally broken rule.
	KindInvalidRule ErrorKind = "invalid_rule"
	// KindInvalidWeekday marks an unknown weekday value or code.
	KindInvalidWeekday ErrorKind = "invalid_weekday"
	// KindMissingData marks a transform call without a rule.
	KindMissingData ErrorKind = "missing_data"
)

// Error represents a recurrence validation or expansion failure.
type Error struct {
	Kind    ErrorKind
	Field   string
	Message string
	Err     error
}

// Sentinels for errors.Is; only the Kind is compared.
var (
	ErrInvalidRuleField = &Error{Kind: KindInvalidRuleField}
	ErrInvalidRule      = &Error{Kind: KindInvalidRule}
	ErrInvalidWeekday   = &Error{Kind: KindInvalidWeekday}
	ErrMissingData      = &Error{Kind: KindMissingData}
)

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Field != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Field)
	}
	if e.Message != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Message)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func fieldError(field, format string, args ...any) *Error {
	return &Error{Kind: KindInvalidRuleField, Field: field, Message: fmt.Sprintf(format, args...)}
}

func ruleError(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidRule, Message: fmt.Sprintf(format, args...)}
}
