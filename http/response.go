package http

import (
	"bufio"
	"strconv"
)

// Protocol is the version the server writes on every status line, whatever
// version token the request carried.
const Protocol = "HTTP/1.1"

var (
	crlf                = []byte("\r\n")
	contentLengthPrefix = []byte("Content-Length: ")
)

// Response is the framed reply for one request.
type Response struct {
	Protocol string
	Status   StatusCode
	Body     string
}

// AppendTo renders the response onto dst. The Content-Length header and the
// blank line are only written for a non-empty body, so an empty body yields
// the status line alone.
func (res *Response) AppendTo(dst []byte) []byte {
	dst = append(dst, res.Protocol...)
	dst = append(dst, ' ')
	dst = append(dst, res.Status.Text()...)
	dst = append(dst, crlf...)

	if len(res.Body) == 0 {
		return dst
	}

	dst = append(dst, contentLengthPrefix...)
	dst = strconv.AppendInt(dst, int64(len(res.Body)), 10)
	dst = append(dst, crlf...)
	dst = append(dst, crlf...)
	dst = append(dst, res.Body...)
	return dst
}

func (res *Response) Bytes() []byte {
	return res.AppendTo(make([]byte, 0, 64+len(res.Body)))
}

// Write renders the response to bw and flushes it.
func (res *Response) Write(bw *bufio.Writer) error {
	var scratch [64]byte
	if _, err := bw.Write(res.AppendTo(scratch[:0])); err != nil {
		return err
	}
	return bw.Flush()
}
