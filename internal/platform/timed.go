package platform

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// DefaultCallTimeout bounds every adapter call.
const DefaultCallTimeout = 15 * time.Second

// TimedClient decorates a Client with a per-call timeout and a short retry
// loop for rate-limited calls. Account-class errors are never retried.
type TimedClient struct {
	inner      Client
	timeout    time.Duration
	maxRetries int
	backoff    time.Duration
	logger     *zap.Logger
}

// NewTimedClient wraps inner. A zero timeout falls back to DefaultCallTimeout.
func NewTimedClient(inner Client, timeout time.Duration, logger *zap.Logger) *TimedClient {
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimedClient{
		inner:      inner,
		timeout:    timeout,
		maxRetries: 2,
		backoff:    2 * time.Second,
		logger:     logger,
	}
}

// call runs fn under the per-call timeout, retrying transient rate limits.
func (c *TimedClient) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; ; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		err = fn(callCtx)
		cancel()

		if err == nil {
			return nil
		}
		if callCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			c.logger.Warn("adapter call timed out", zap.String("op", op))
			return ErrTimeout
		}
		if Classify(err) != ErrClassRateLimit || attempt >= c.maxRetries {
			return err
		}
		c.logger.Warn("rate limited, backing off",
			zap.String("op", op), zap.Int("attempt", attempt+1))
		select {
		case <-time.After(c.backoff * time.Duration(attempt+1)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *TimedClient) Search(ctx context.Context, query string, n int) ([]Post, error) {
	var out []Post
	err := c.call(ctx, "search", func(ctx context.Context) error {
		var e error
		out, e = c.inner.Search(ctx, query, n)
		return e
	})
	return out, err
}

func (c *TimedClient) GetMentions(ctx context.Context, n int) ([]Post, error) {
	var out []Post
	err := c.call(ctx, "get_mentions", func(ctx context.Context) error {
		var e error
		out, e = c.inner.GetMentions(ctx, n)
		return e
	})
	return out, err
}

func (c *TimedClient) GetAllNotifications(ctx context.Context, n int) ([]Notification, error) {
	var out []Notification
	err := c.call(ctx, "get_all_notifications", func(ctx context.Context) error {
		var e error
		out, e = c.inner.GetAllNotifications(ctx, n)
		return e
	})
	return out, err
}

func (c *TimedClient) GetFollowingList(ctx context.Context, screenName string, n int) ([]User, error) {
	var out []User
	err := c.call(ctx, "get_following_list", func(ctx context.Context) error {
		var e error
		out, e = c.inner.GetFollowingList(ctx, screenName, n)
		return e
	})
	return out, err
}

func (c *TimedClient) GetUserTweets(ctx context.Context, userID string, n int) ([]Post, error) {
	var out []Post
	err := c.call(ctx, "get_user_tweets", func(ctx context.Context) error {
		var e error
		out, e = c.inner.GetUserTweets(ctx, userID, n)
		return e
	})
	return out, err
}

func (c *TimedClient) GetPost(ctx context.Context, id string) (*Post, error) {
	var out *Post
	err := c.call(ctx, "get_post", func(ctx context.Context) error {
		var e error
		out, e = c.inner.GetPost(ctx, id)
		return e
	})
	return out, err
}

func (c *TimedClient) GetUser(ctx context.Context, idOrScreenName string) (*User, error) {
	var out *User
	err := c.call(ctx, "get_user", func(ctx context.Context) error {
		var e error
		out, e = c.inner.GetUser(ctx, idOrScreenName)
		return e
	})
	return out, err
}

func (c *TimedClient) Post(ctx context.Context, content string, replyTo string) (string, error) {
	var out string
	err := c.call(ctx, "post", func(ctx context.Context) error {
		var e error
		out, e = c.inner.Post(ctx, content, replyTo)
		return e
	})
	return out, err
}

func (c *TimedClient) Like(ctx context.Context, id string) (bool, error) {
	var ok bool
	err := c.call(ctx, "like", func(ctx context.Context) error {
		var e error
		ok, e = c.inner.Like(ctx, id)
		return e
	})
	return ok, err
}

func (c *TimedClient) Repost(ctx context.Context, id string) (bool, error) {
	var ok bool
	err := c.call(ctx, "repost", func(ctx context.Context) error {
		var e error
		ok, e = c.inner.Repost(ctx, id)
		return e
	})
	return ok, err
}

func (c *TimedClient) Follow(ctx context.Context, userID string) (bool, error) {
	var ok bool
	err := c.call(ctx, "follow", func(ctx context.Context) error {
		var e error
		ok, e = c.inner.Follow(ctx, userID)
		return e
	})
	return ok, err
}

func (c *TimedClient) GetTrends(ctx context.Context, locale string) ([]string, error) {
	var out []string
	err := c.call(ctx, "get_trends", func(ctx context.Context) error {
		var e error
		out, e = c.inner.GetTrends(ctx, locale)
		return e
	})
	return out, err
}
