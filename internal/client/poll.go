package client

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"

	"github.com/JaimeStill/sift/internal/executions"
)

// DefaultPollInterval is the fixed delay between status reads.
const DefaultPollInterval = time.Second

var errPending = errors.New("execution not terminal")

// Poll reads the status of id at a fixed interval until it is terminal.
// onUpdate, when set, sees every view read. Transient failures (network errors
// and 5xx responses) are retried; other failures end polling.
func (c *Client) Poll(ctx context.Context, id uuid.UUID, interval time.Duration, onUpdate func(executions.StatusView)) (*executions.StatusView, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	var view *executions.StatusView
	err := retry.Do(ctx, retry.NewConstant(interval), func(ctx context.Context) error {
		v, err := c.Status(ctx, id)
		if err != nil {
			var apiErr *Error
			if errors.As(err, &apiErr) && apiErr.Status < http.StatusInternalServerError {
				return err
			}
			return retry.RetryableError(err)
		}
		if onUpdate != nil {
			onUpdate(*v)
		}
		if !v.Status.Terminal() {
			return retry.RetryableError(errPending)
		}
		view = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// PollAll polls every id concurrently and calls onDone once per execution as it
// reaches a terminal status. Results are returned in the order of ids.
func (c *Client) PollAll(ctx context.Context, ids []uuid.UUID, interval time.Duration, onDone func(uuid.UUID, executions.StatusView)) ([]executions.StatusView, error) {
	out := make([]executions.StatusView, len(ids))
	g, ctx := errgroup.WithContext(ctx)

	for i, id := range ids {
		g.Go(func() error {
			v, err := c.Poll(ctx, id, interval, nil)
			if err != nil {
				return err
			}
			out[i] = *v
			if onDone != nil {
				onDone(id, *v)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
