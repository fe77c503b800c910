package http

import (
	"bufio"
	"bytes"
	"strconv"
	"strings"
	"testing"

	"github.com/freekieb7/websrv/test"
)

func TestResponseFraming(t *testing.T) {
	tests := []struct {
		name     string
		response Response
		expected string
	}{
		{
			name:     "body",
			response: Response{Protocol: "HTTP/1.1", Status: StatusOK, Body: "pong"},
			expected: "HTTP/1.1 200 OK\r\nContent-Length: 4\r\n\r\npong",
		},
		{
			name:     "empty body is status line only",
			response: Response{Protocol: "HTTP/1.1", Status: StatusNoContent},
			expected: "HTTP/1.1 204 No Content\r\n",
		},
		{
			name:     "protocol copied from request",
			response: Response{Protocol: "HTTP/1.0", Status: StatusNotFound, Body: "<h1>gone</h1>"},
			expected: "HTTP/1.0 404 Not Found\r\nContent-Length: 13\r\n\r\n<h1>gone</h1>",
		},
		{
			name:     "length counts bytes",
			response: Response{Protocol: "HTTP/1.1", Status: StatusCreated, Body: "héllo"},
			expected: "HTTP/1.1 201 Created\r\nContent-Length: 6\r\n\r\nhéllo",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			test.AssertEqual(t, tt.expected, string(tt.response.Bytes()))
		})
	}
}

func TestResponseFramingLaw(t *testing.T) {
	for _, length := range []int{0, 1, 17, 4096} {
		body := strings.Repeat("x", length)
		res := Response{Protocol: "HTTP/1.1", Status: StatusOK, Body: body}
		raw := string(res.Bytes())

		if length == 0 {
			test.AssertEqual(t, 1, strings.Count(raw, "\r\n"))
			test.AssertTrue(t, strings.HasSuffix(raw, "\r\n"), "status line must end in CRLF")
			test.AssertTrue(t, !strings.Contains(raw, "Content-Length"), "no Content-Length for empty body")
			continue
		}

		head, rest, found := strings.Cut(raw, "\r\n\r\n")
		test.AssertTrue(t, found, "blank line missing")
		test.AssertTrue(t, strings.HasSuffix(head, "Content-Length: "+strconv.Itoa(length)), "Content-Length mismatch")
		test.AssertEqual(t, length, len(rest))
	}
}

func TestResponseWrite(t *testing.T) {
	var out bytes.Buffer
	bw := bufio.NewWriter(&out)

	res := Response{Protocol: "HTTP/1.1", Status: StatusForbidden, Body: "no"}
	test.AssertNoError(t, res.Write(bw))
	test.AssertEqual(t, "HTTP/1.1 403 Forbidden\r\nContent-Length: 2\r\n\r\nno", out.String())
}

func TestStatusText(t *testing.T) {
	tests := map[StatusCode]string{
		StatusOK:                  "200 OK",
		StatusCreated:             "201 Created",
		StatusAccepted:            "202 Accepted",
		StatusNoContent:           "204 No Content",
		StatusBadRequest:          "400 Bad Request",
		StatusUnauthorized:        "401 Unauthorized",
		StatusForbidden:           "403 Forbidden",
		StatusNotFound:            "404 Not Found",
		StatusInternalServerError: "500 Internal Server Error",
	}

	for code, expected := range tests {
		test.AssertTrue(t, code.Valid(), "status should be valid")
		test.AssertEqual(t, expected, code.Text())
	}

	test.AssertTrue(t, !StatusCode(418).Valid(), "418 is not emitted")
	test.AssertEqual(t, "418 Unknown Status Code", StatusCode(418).Text())
}
