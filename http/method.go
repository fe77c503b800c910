package http

import "fmt"

// Method is one of the request verbs the server understands.
type Method uint8

const (
	MethodGet Method = iota + 1
	MethodPost
	MethodPut
	MethodPatch
	MethodDelete
)

var methodNames = [...]string{
	MethodGet:    "GET",
	MethodPost:   "POST",
	MethodPut:    "PUT",
	MethodPatch:  "PATCH",
	MethodDelete: "DELETE",
}

// Methods returns every recognized verb in declaration order.
func Methods() []Method {
	return []Method{MethodGet, MethodPost, MethodPut, MethodPatch, MethodDelete}
}

// ParseMethod maps a request-line token to a Method. Matching is exact and
// case-sensitive.
func ParseMethod(token string) (Method, error) {
	for _, method := range Methods() {
		if methodNames[method] == token {
			return method, nil
		}
	}

	return 0, fmt.Errorf("%w: %q", ErrUnrecognizedMethod, token)
}

func (method Method) Valid() bool {
	return method >= MethodGet && method <= MethodDelete
}

func (method Method) String() string {
	if !method.Valid() {
		return fmt.Sprintf("Method(%d)", uint8(method))
	}
	return methodNames[method]
}

func (method Method) MarshalText() ([]byte, error) {
	if !method.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnrecognizedMethod, uint8(method))
	}
	return []byte(methodNames[method]), nil
}

func (method *Method) UnmarshalText(text []byte) error {
	parsed, err := ParseMethod(string(text))
	if err != nil {
		return err
	}

	*method = parsed
	return nil
}
