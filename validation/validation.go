package validation

import (
	"errors"
	"fmt"
	"net"
	"slices"
	"strconv"
	"strings"
)

var ErrInvalidRule = errors.New("validation: invalid rule")

type Violations struct {
	Errors map[string][]error
}

func (violations Violations) IsEmpty() bool {
	return len(violations.Errors) == 0
}

// Err joins every violation, ordered by attribute name, or returns nil.
func (violations Violations) Err() error {
	if violations.IsEmpty() {
		return nil
	}

	names := make([]string, 0, len(violations.Errors))
	for name := range violations.Errors {
		names = append(names, name)
	}
	slices.Sort(names)

	var errs []error
	for _, name := range names {
		errs = append(errs, violations.Errors[name]...)
	}

	return errors.Join(errs...)
}

// ValidateMap checks every attribute in data against its rules. An attribute
// without rules is itself a violation. Supported rules are "required",
// "min:N", "max:N" (integers) and "hostport".
func ValidateMap(data map[string]any, rules map[string][]string) Violations {
	var violations Violations
	violations.Errors = make(map[string][]error)

	for attributeName, attributeValue := range data {
		attributeRules, attributeRulesExists := rules[attributeName]
		if !attributeRulesExists {
			violations.Errors[attributeName] = append(violations.Errors[attributeName], fmt.Errorf("validation: no rules found :: %s", attributeName))
			continue
		}

		var errorCollection []error
		for _, attributeRule := range attributeRules {
			if err := validate(attributeRule, attributeName, attributeValue); err != nil {
				errorCollection = append(errorCollection, err)
			}
		}

		if len(errorCollection) != 0 {
			violations.Errors[attributeName] = errorCollection
		}
	}

	return violations
}

func validate(rule string, name string, value any) error {
	rule, argument, _ := strings.Cut(rule, ":")

	switch rule {
	case "required":
		{
			err := fmt.Errorf("%s is required", name)

			switch v := value.(type) {
			case nil:
				{
					return err
				}
			case string:
				{
					if v == "" {
						return err
					}
				}
			case []any:
				{
					if len(v) == 0 {
						return err
					}
				}
			}
		}
	case "min", "max":
		{
			limit, err := strconv.Atoi(argument)
			if err != nil {
				return fmt.Errorf("%w :: %s:%s", ErrInvalidRule, rule, argument)
			}

			n, ok := value.(int)
			if !ok {
				return fmt.Errorf("%s must be an integer", name)
			}

			if rule == "min" && n < limit {
				return fmt.Errorf("%s must be at least %d, got %d", name, limit, n)
			}
			if rule == "max" && n > limit {
				return fmt.Errorf("%s must be at most %d, got %d", name, limit, n)
			}
		}
	case "hostport":
		{
			s, ok := value.(string)
			if !ok {
				return fmt.Errorf("%s must be a string", name)
			}

			if _, port, err := net.SplitHostPort(s); err != nil {
				return fmt.Errorf("%s must be host:port, got %q", name, s)
			} else if _, err := strconv.ParseUint(port, 10, 16); err != nil {
				return fmt.Errorf("%s has an invalid port %q", name, port)
			}
		}
	default:
		{
			return fmt.Errorf("%w :: %s", ErrInvalidRule, rule)
		}
	}

	return nil
}
