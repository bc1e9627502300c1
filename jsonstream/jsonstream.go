package jsonstream

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"sync/atomic"

	"github.com/AmmannChristian/go-oauth2http/httpclient"
)

// ErrConsumed is yielded when a sequence is ranged over a second time.
var ErrConsumed = errors.New("jsonstream: sequence already consumed")

// StatusError reports a non-2xx response that was not decoded.
type StatusError struct {
	StatusCode int
	// Status is the status line as sent by the server, e.g. "404 Not Found".
	Status string
}

func (e *StatusError) Error() string {
	return "jsonstream: unexpected response status " + e.Status
}

func newStatusError(resp *http.Response) *StatusError {
	status := resp.Status
	if status == "" {
		status = fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	return &StatusError{StatusCode: resp.StatusCode, Status: status}
}

// Decode returns a forward-only sequence over the JSON elements of resp.Body.
//
// A body holding a top-level JSON array yields its elements one at a time;
// any other body is read as a stream of whitespace separated values (for
// example NDJSON). A non-2xx response yields a single *StatusError without
// reading the body. The sequence stops at the end of input, at the first
// decoding error, or when ctx is cancelled, and closes the body when it ends.
// It can be ranged over once.
func Decode[T any](ctx context.Context, resp *http.Response) iter.Seq2[T, error] {
	if ctx == nil {
		ctx = context.Background()
	}

	var started atomic.Bool

	return func(yield func(T, error) bool) {
		var zero T

		if !started.CompareAndSwap(false, true) {
			yield(zero, ErrConsumed)
			return
		}

		body := resp.Body
		if body == nil {
			body = http.NoBody
		}
		defer body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			yield(zero, newStatusError(resp))
			return
		}

		// Closing the body unblocks a read waiting on the network.
		stop := context.AfterFunc(ctx, func() { _ = body.Close() })
		defer stop()

		br := bufio.NewReader(body)
		first, err := peekNonSpace(br)
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			yield(zero, cause(ctx, err))
			return
		}

		dec := json.NewDecoder(br)
		array := first == '['
		if array {
			if _, err := dec.Token(); err != nil {
				yield(zero, cause(ctx, err))
				return
			}
		}

		for {
			if err := ctx.Err(); err != nil {
				yield(zero, err)
				return
			}

			if array && !dec.More() {
				// Consume the closing bracket; a truncated array fails here.
				if _, err := dec.Token(); err != nil {
					yield(zero, cause(ctx, err))
				}
				return
			}

			var v T
			if err := dec.Decode(&v); err != nil {
				if !array && errors.Is(err, io.EOF) {
					return
				}
				yield(zero, cause(ctx, err))
				return
			}

			if !yield(v, nil) {
				return
			}
		}
	}
}

// Get sends an authorized GET request to uri and decodes the streamed body.
func Get[T any](ctx context.Context, client *httpclient.Client, uri string) iter.Seq2[T, error] {
	if ctx == nil {
		ctx = context.Background()
	}

	return func(yield func(T, error) bool) {
		resp, err := client.GetStream(ctx, uri)
		if err != nil {
			var zero T
			yield(zero, err)
			return
		}

		for v, err := range Decode[T](ctx, resp) {
			if !yield(v, err) {
				return
			}
		}
	}
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.Peek(1)
		if err != nil {
			return 0, err
		}
		switch b[0] {
		case ' ', '\t', '\r', '\n':
			_, _ = br.ReadByte()
		default:
			return b[0], nil
		}
	}
}

// cause prefers the context error over the read error it provoked.
func cause(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}
