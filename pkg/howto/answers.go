package howto

import (
	"context"
	"iter"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// Answers is a blocking, pull-based sequence of results produced by a
// background goroutine. It is meant for a single consumer.
type Answers struct {
	ch     chan Result
	done   chan struct{} // closed when the producer has returned
	cancel context.CancelFunc
	closed atomic.Bool
	once   sync.Once
}

func start(ctx context.Context, c *Client, query string) *Answers {
	ctx, cancel := context.WithCancel(ctx)
	a := &Answers{
		ch:     make(chan Result, c.buffer),
		done:   make(chan struct{}),
		cancel: cancel,
	}

	go a.produce(ctx, c, query)
	return a
}

// failed returns a sequence holding only err.
func failed(err error) *Answers {
	a := &Answers{
		ch:     make(chan Result, 1),
		done:   make(chan struct{}),
		cancel: func() {},
	}
	a.ch <- Result{Err: err}
	close(a.ch)
	close(a.done)
	return a
}

func (a *Answers) produce(ctx context.Context, c *Client, query string) {
	defer close(a.done)
	defer close(a.ch)

	send := func(res Result) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		select {
		case a.ch <- res:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("search worker panicked", "query", query, "panic", r)
			_ = send(Result{Err: &PanicError{Value: r, Stack: debug.Stack()}})
		}
	}()

	slug := Normalize(query)
	ranAt := time.Now()
	position := 0
	err := c.pipeline.Run(ctx, query, func(res Result) error {
		if err := send(res); err != nil {
			return err
		}
		c.record(ctx, slug, position, ranAt, res)
		position++
		return nil
	})

	if err != nil && ctx.Err() == nil {
		if send(Result{Err: err}) == nil {
			c.record(ctx, slug, position, ranAt, Result{Err: err})
		}
	}
}

// Next blocks until the next result is available. It returns false once
// the background work has finished and every result has been read, or
// after Close; from then on it returns false immediately.
func (a *Answers) Next() (Result, bool) {
	if a.closed.Load() {
		return Result{}, false
	}
	res, ok := <-a.ch
	return res, ok
}

// All ranges over the remaining results. Breaking out of the loop leaves
// the rest unread; call Close to stop the background work.
func (a *Answers) All() iter.Seq2[Answer, error] {
	return func(yield func(Answer, error) bool) {
		for {
			res, ok := a.Next()
			if !ok {
				return
			}
			if !yield(res.Answer, res.Err) {
				return
			}
		}
	}
}

// Collect reads every remaining result.
func (a *Answers) Collect() []Result {
	var out []Result
	for {
		res, ok := a.Next()
		if !ok {
			return out
		}
		out = append(out, res)
	}
}

// Close cancels the background work and waits for it to stop. Unread
// results are discarded. It is safe to call more than once.
func (a *Answers) Close() {
	a.once.Do(func() {
		a.closed.Store(true)
		a.cancel()
		<-a.done
	})
}
