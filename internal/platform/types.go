// Package platform defines the contract between the agent and a concrete
// social-platform API client. The agent never talks to the network directly;
// it goes through the Client interface so the real adapter (and the test
// fake) are interchangeable.
package platform

import "time"

// Post is a single timeline entry as seen by the agent.
type Post struct {
	ID         string
	AuthorID   string
	AuthorName string // screen name / handle
	Text       string
	LikeCount  int
	RepostNum  int
	ReplyToID  string
	CreatedAt  time.Time
}

// User is a counterparty profile.
type User struct {
	ID             string
	ScreenName     string
	Bio            string
	HasImage       bool
	FollowerCount  int
	FollowingCount int
	FollowsMe      bool
	CreatedAt      time.Time
}

// NotificationType classifies an incoming notification.
type NotificationType string

const (
	NotifReply   NotificationType = "reply"
	NotifMention NotificationType = "mention"
	NotifQuote   NotificationType = "quote"
	NotifFollow  NotificationType = "follow"
	NotifRepost  NotificationType = "repost"
	NotifLike    NotificationType = "like"
)

// Notification is one event delivered to the persona's account.
type Notification struct {
	ID        string
	Type      NotificationType
	Post      *Post // nil for follow notifications
	User      User
	CreatedAt time.Time
}

// Priority returns the processing rank for a notification type. Lower runs
// first. Likes and reposts share the lowest rank and are acknowledged only.
func (t NotificationType) Priority() int {
	switch t {
	case NotifReply:
		return 1
	case NotifMention:
		return 2
	case NotifQuote:
		return 3
	case NotifFollow:
		return 4
	default:
		return 10
	}
}
