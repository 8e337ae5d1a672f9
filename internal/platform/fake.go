package platform

import (
	"context"
	"fmt"
	"sync"
)

// Fake is an in-memory Client used by tests and by dry runs. It records every
// side-effecting call so tests can assert on the exact action sequence.
type Fake struct {
	mu sync.Mutex

	Posts         map[string]*Post
	Users         map[string]*User
	Notifications []Notification
	Trends        []string

	// Call log of side effects, e.g. "like:123", "post:hello".
	Calls []string

	// FailWith, when non-nil, is returned by every call. Used to exercise the
	// error taxonomy.
	FailWith error

	nextID int
}

// NewFake returns an empty fake platform.
func NewFake() *Fake {
	return &Fake{
		Posts: make(map[string]*Post),
		Users: make(map[string]*User),
	}
}

// AddPost seeds a post and returns its id.
func (f *Fake) AddPost(p Post) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p.ID == "" {
		f.nextID++
		p.ID = fmt.Sprintf("p%d", f.nextID)
	}
	cp := p
	f.Posts[p.ID] = &cp
	return p.ID
}

// AddUser seeds a user profile.
func (f *Fake) AddUser(u User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := u
	f.Users[u.ID] = &cp
	if u.ScreenName != "" {
		f.Users[u.ScreenName] = &cp
	}
}

func (f *Fake) record(call string) {
	f.Calls = append(f.Calls, call)
}

// CallLog returns a copy of the recorded side effects.
func (f *Fake) CallLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.Calls))
	copy(out, f.Calls)
	return out
}

func (f *Fake) Search(ctx context.Context, query string, n int) ([]Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailWith != nil {
		return nil, f.FailWith
	}
	var out []Post
	for _, p := range f.Posts {
		out = append(out, *p)
		if len(out) >= n {
			break
		}
	}
	return out, nil
}

func (f *Fake) GetMentions(ctx context.Context, n int) ([]Post, error) {
	return f.Search(ctx, "", n)
}

func (f *Fake) GetAllNotifications(ctx context.Context, n int) ([]Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailWith != nil {
		return nil, f.FailWith
	}
	if n > len(f.Notifications) {
		n = len(f.Notifications)
	}
	out := make([]Notification, n)
	copy(out, f.Notifications[:n])
	return out, nil
}

func (f *Fake) GetFollowingList(ctx context.Context, screenName string, n int) ([]User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailWith != nil {
		return nil, f.FailWith
	}
	return nil, nil
}

func (f *Fake) GetUserTweets(ctx context.Context, userID string, n int) ([]Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailWith != nil {
		return nil, f.FailWith
	}
	var out []Post
	for _, p := range f.Posts {
		if p.AuthorID == userID {
			out = append(out, *p)
		}
		if len(out) >= n {
			break
		}
	}
	return out, nil
}

func (f *Fake) GetPost(ctx context.Context, id string) (*Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailWith != nil {
		return nil, f.FailWith
	}
	p, ok := f.Posts[id]
	if !ok {
		return nil, fmt.Errorf("404 post %s not found", id)
	}
	cp := *p
	return &cp, nil
}

func (f *Fake) GetUser(ctx context.Context, idOrScreenName string) (*User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailWith != nil {
		return nil, f.FailWith
	}
	u, ok := f.Users[idOrScreenName]
	if !ok {
		return nil, fmt.Errorf("404 user %s not found", idOrScreenName)
	}
	cp := *u
	return &cp, nil
}

func (f *Fake) Post(ctx context.Context, content string, replyTo string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailWith != nil {
		return "", f.FailWith
	}
	f.nextID++
	id := fmt.Sprintf("p%d", f.nextID)
	f.Posts[id] = &Post{ID: id, AuthorID: "me", Text: content, ReplyToID: replyTo}
	if replyTo != "" {
		f.record("reply:" + replyTo)
	} else {
		f.record("post:" + content)
	}
	return id, nil
}

func (f *Fake) Like(ctx context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailWith != nil {
		return false, f.FailWith
	}
	f.record("like:" + id)
	return true, nil
}

func (f *Fake) Repost(ctx context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailWith != nil {
		return false, f.FailWith
	}
	f.record("repost:" + id)
	return true, nil
}

func (f *Fake) Follow(ctx context.Context, userID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailWith != nil {
		return false, f.FailWith
	}
	f.record("follow:" + userID)
	return true, nil
}

func (f *Fake) GetTrends(ctx context.Context, locale string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailWith != nil {
		return nil, f.FailWith
	}
	return f.Trends, nil
}
