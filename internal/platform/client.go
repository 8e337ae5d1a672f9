package platform

import "context"

// Client is the caller-supplied platform adapter. Every call must honour the
// context deadline; the agent wraps each call with a per-call timeout.
type Client interface {
	Search(ctx context.Context, query string, n int) ([]Post, error)
	GetMentions(ctx context.Context, n int) ([]Post, error)
	GetAllNotifications(ctx context.Context, n int) ([]Notification, error)
	GetFollowingList(ctx context.Context, screenName string, n int) ([]User, error)
	GetUserTweets(ctx context.Context, userID string, n int) ([]Post, error)
	GetPost(ctx context.Context, id string) (*Post, error)
	GetUser(ctx context.Context, idOrScreenName string) (*User, error)
	Post(ctx context.Context, content string, replyTo string) (string, error)
	Like(ctx context.Context, id string) (bool, error)
	Repost(ctx context.Context, id string) (bool, error)
	Follow(ctx context.Context, userID string) (bool, error)
	GetTrends(ctx context.Context, locale string) ([]string, error)
}
