package http

import "strconv"

// StatusCode is the closed set of statuses the server can emit.
type StatusCode uint16

const (
	StatusOK        StatusCode = 200 // RFC 7231, 6.3.1
	StatusCreated   StatusCode = 201 // RFC 7231, 6.3.2
	StatusAccepted  StatusCode = 202 // RFC 7231, 6.3.3
	StatusNoContent StatusCode = 204 // RFC 7231, 6.3.5

	StatusBadRequest   StatusCode = 400 // RFC 7231, 6.5.1
	StatusUnauthorized StatusCode = 401 // RFC 7235, 3.1
	StatusForbidden    StatusCode = 403 // RFC 7231, 6.5.3
	StatusNotFound     StatusCode = 404 // RFC 7231, 6.5.4

	StatusInternalServerError StatusCode = 500 // RFC 7231, 6.6.1
)

var (
	unknownStatusCode = "Unknown Status Code"

	statusMessages = map[StatusCode]string{
		StatusOK:        "OK",
		StatusCreated:   "Created",
		StatusAccepted:  "Accepted",
		StatusNoContent: "No Content",

		StatusBadRequest:   "Bad Request",
		StatusUnauthorized: "Unauthorized",
		StatusForbidden:    "Forbidden",
		StatusNotFound:     "Not Found",

		StatusInternalServerError: "Internal Server Error",
	}
)

// Valid reports whether code belongs to the emitted set.
func (code StatusCode) Valid() bool {
	_, ok := statusMessages[code]
	return ok
}

// Reason returns the reason phrase, e.g. "Not Found".
func (code StatusCode) Reason() string {
	if msg, ok := statusMessages[code]; ok {
		return msg
	}
	return unknownStatusCode
}

// Text returns the status as it appears on the status line, e.g. "404 Not Found".
func (code StatusCode) Text() string {
	return strconv.Itoa(int(code)) + " " + code.Reason()
}

func (code StatusCode) String() string {
	return code.Text()
}
