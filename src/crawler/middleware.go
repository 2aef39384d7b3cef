package crawler

import (
	"context"
	"strconv"
)

// ErrSkipRequest signals that a request middleware wants the task
// dropped before it is ever fetched (spec §4.6). The task is recorded
// as Dropped, never Failed.
var ErrSkipRequest = skipSignal{"skip request"}

// ErrSkipResponse signals that a response middleware wants the fetched
// page discarded: no link extraction, and the task reaches the sink as
// Dropped rather than Emitted. The fetch itself already happened and is
// not retried.
var ErrSkipResponse = skipSignal{"skip response"}

type skipSignal struct{ msg string }

func (s skipSignal) Error() string { return "middleware: " + s.msg }

// RequestMiddleware may rewrite the outbound task before it is fetched
// (most commonly to set or override headers) or return ErrSkipRequest to
// abort it. Request middlewares run in registration order so each adds
// its own layer on top of the ones before it (spec §4.6).
type RequestMiddleware func(ctx context.Context, task CrawlTask) (CrawlTask, error)

// ResponseMiddleware may inspect or rewrite a fetched page, or return
// ErrSkipResponse to discard it. Response middlewares run in reverse
// registration order, so the last-registered layer sees the raw
// response first (spec §4.6).
type ResponseMiddleware func(ctx context.Context, task CrawlTask, page *PageData) error

// middlewareChain is a fixed, immutable pipeline built once at engine
// construction time.
type middlewareChain struct {
	request  []namedRequestMW
	response []namedResponseMW
}

type namedRequestMW struct {
	name string
	fn   RequestMiddleware
}

type namedResponseMW struct {
	name string
	fn   ResponseMiddleware
}

func newMiddlewareChain(request []RequestMiddleware, response []ResponseMiddleware) *middlewareChain {
	c := &middlewareChain{}
	for i, fn := range request {
		c.request = append(c.request, namedRequestMW{name: requestMWName(i), fn: fn})
	}
	for i, fn := range response {
		c.response = append(c.response, namedResponseMW{name: responseMWName(i), fn: fn})
	}
	return c
}

func requestMWName(i int) string  { return "request[" + strconv.Itoa(i) + "]" }
func responseMWName(i int) string { return "response[" + strconv.Itoa(i) + "]" }

// runRequest applies every request middleware in order, returning the
// (possibly rewritten) task. ErrSkipRequest propagates unwrapped so
// callers can distinguish a deliberate skip from a genuine failure;
// every other middleware error is wrapped in MiddlewareError.
func (c *middlewareChain) runRequest(ctx context.Context, task CrawlTask) (CrawlTask, error) {
	for _, stage := range c.request {
		next, err := stage.fn(ctx, task)
		if err != nil {
			if err == ErrSkipRequest {
				return task, err
			}
			return task, &MiddlewareError{Stage: stage.name, Err: err}
		}
		task = next
	}
	return task, nil
}

// runResponse applies every response middleware in reverse registration
// order. ErrSkipResponse propagates unwrapped; other errors are wrapped
// in MiddlewareError.
func (c *middlewareChain) runResponse(ctx context.Context, task CrawlTask, page *PageData) error {
	for i := len(c.response) - 1; i >= 0; i-- {
		stage := c.response[i]
		if err := stage.fn(ctx, task, page); err != nil {
			if err == ErrSkipResponse {
				return err
			}
			return &MiddlewareError{Stage: stage.name, Err: err}
		}
	}
	return nil
}

// metadataMiddleware copies caller-supplied string task metadata into
// the page's Metadata map so sinks can see both without reaching back
// into the frontier. It is always registered first, so in the reverse
// execution order it runs last, after every caller-supplied response
// middleware has already observed the raw response.
func metadataMiddleware(_ context.Context, task CrawlTask, page *PageData) error {
	if page.Metadata == nil {
		page.Metadata = make(map[string]string)
	}
	for k, v := range task.Metadata {
		if s, ok := v.(string); ok {
			page.Metadata[k] = s
		}
	}
	return nil
}
