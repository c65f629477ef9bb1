package memory

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"guides-server/core"
)

type storedMedia struct {
	contentType string
	data        []byte
}

// memStore keeps everything in process memory. It implements every store
// interface in core.
type memStore struct {
	mu            sync.RWMutex
	guides        map[string]*core.Guide
	users         map[string]*core.User
	notifications map[string][]*core.Notification // keyed by user id, oldest first
	media         map[string]storedMedia
}

// NewStore creates a new in-memory store.
func NewStore() *memStore {
	return &memStore{
		guides:        make(map[string]*core.Guide),
		users:         make(map[string]*core.User),
		notifications: make(map[string][]*core.Notification),
		media:         make(map[string]storedMedia),
	}
}

func (s *memStore) Close() error { return nil }

func copyGuide(g *core.Guide, withElements bool) *core.Guide {
	out := *g
	out.Elements = nil
	if withElements {
		out.Elements = make([]core.Element, len(g.Elements))
		copy(out.Elements, g.Elements)
	}
	return &out
}

// MediaStore implementation

func (s *memStore) FindID(ctx context.Context, id string) (*core.Media, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log := logrus.WithField("media_id", id)
	m, ok := s.media[id]
	if !ok {
		log.Warn("Media with specified ID not found")
		return nil, fmt.Errorf("media with id %s: %w", id, core.ErrNotFound)
	}
	media := &core.Media{ContentType: m.contentType}
	media.Data.Write(m.data)
	log.Debug("Media retrieved successfully")
	return media, nil
}

func (s *memStore) Create(ctx context.Context, media *core.Media) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := ulid.Make().String()
	s.media[id] = storedMedia{
		contentType: media.ContentType,
		data:        bytes.Clone(media.Data.Bytes()),
	}
	logrus.WithFields(logrus.Fields{
		"media_id":    id,
		"data_length": media.Data.Len(),
	}).Info("Media created successfully")
	return id, nil
}

// GuideStore implementation

func (s *memStore) ListGuides(ctx context.Context, filter core.GuideFilter) ([]*core.Guide, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	guides := make([]*core.Guide, 0)
	for _, g := range s.guides {
		if filter.OwnerID != "" && g.OwnerID != filter.OwnerID {
			continue
		}
		if filter.PublishedOnly && !g.Published {
			continue
		}
		guides = append(guides, copyGuide(g, false))
	}
	sort.Slice(guides, func(i, j int) bool {
		if guides[i].CreatedAt.Equal(guides[j].CreatedAt) {
			return guides[i].ID > guides[j].ID
		}
		return guides[i].CreatedAt.After(guides[j].CreatedAt)
	})

	logrus.WithField("owner_id", filter.OwnerID).Debugf("Listed %d guides", len(guides))
	return guides, nil
}

func (s *memStore) GetGuide(ctx context.Context, id string) (*core.Guide, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.guides[id]
	if !ok {
		logrus.WithField("guide_id", id).Warn("Guide not found")
		return nil, fmt.Errorf("guide with id %s: %w", id, core.ErrNotFound)
	}
	return copyGuide(g, true), nil
}

func (s *memStore) GetGuideBySlug(ctx context.Context, slug string) (*core.Guide, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, g := range s.guides {
		if g.Slug == slug && g.Published {
			return copyGuide(g, true), nil
		}
	}
	logrus.WithField("slug", slug).Warn("Published guide not found")
	return nil, fmt.Errorf("guide with slug %s: %w", slug, core.ErrNotFound)
}

func (s *memStore) slugTaken(slug, except string) bool {
	if slug == "" {
		return false
	}
	for id, g := range s.guides {
		if id != except && g.Slug == slug {
			return true
		}
	}
	return false
}

func (s *memStore) CreateGuide(ctx context.Context, guide *core.Guide) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.slugTaken(guide.Slug, "") {
		return fmt.Errorf("guide slug %s: %w", guide.Slug, core.ErrConflict)
	}

	now := time.Now()
	guide.ID = ulid.Make().String()
	guide.CreatedAt = now
	guide.UpdatedAt = now
	guide.Elements = nil
	s.guides[guide.ID] = copyGuide(guide, false)

	logrus.WithFields(logrus.Fields{"guide_id": guide.ID, "owner_id": guide.OwnerID}).Info("Guide created successfully")
	return nil
}

func (s *memStore) UpdateGuide(ctx context.Context, guide *core.Guide) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := logrus.WithField("guide_id", guide.ID)
	existing, ok := s.guides[guide.ID]
	if !ok {
		log.Warn("Guide not found for update")
		return fmt.Errorf("guide with id %s: %w", guide.ID, core.ErrNotFound)
	}
	if s.slugTaken(guide.Slug, guide.ID) {
		return fmt.Errorf("guide slug %s: %w", guide.Slug, core.ErrConflict)
	}

	existing.Title = guide.Title
	existing.Description = guide.Description
	existing.Published = guide.Published
	existing.Slug = guide.Slug
	existing.UpdatedAt = time.Now()
	guide.CreatedAt = existing.CreatedAt
	guide.UpdatedAt = existing.UpdatedAt

	log.Info("Guide updated successfully")
	return nil
}

func (s *memStore) DeleteGuide(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := logrus.WithField("guide_id", id)
	if _, ok := s.guides[id]; !ok {
		log.Warn("Guide not found for deletion")
		return fmt.Errorf("guide with id %s: %w", id, core.ErrNotFound)
	}
	delete(s.guides, id)
	log.Info("Guide deleted successfully")
	return nil
}

func (s *memStore) ReplaceElements(ctx context.Context, guideID string, elements []core.Element) ([]core.Element, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := logrus.WithFields(logrus.Fields{"guide_id": guideID, "elements": len(elements)})
	g, ok := s.guides[guideID]
	if !ok {
		log.Warn("Guide not found for element replace")
		return nil, fmt.Errorf("guide with id %s: %w", guideID, core.ErrNotFound)
	}

	now := time.Now()
	stored := make([]core.Element, len(elements))
	for i, e := range elements {
		e.ID = ulid.Make().String()
		if e.CreatedAt.IsZero() {
			e.CreatedAt = now
		}
		stored[i] = e
	}
	g.Elements = stored
	g.UpdatedAt = now

	out := make([]core.Element, len(stored))
	copy(out, stored)
	log.Info("Guide elements replaced successfully")
	return out, nil
}

// UserStore implementation

func (s *memStore) userConflict(u *core.User) bool {
	for id, other := range s.users {
		if id == u.ID {
			continue
		}
		if other.Username == u.Username ||
			(u.Email != "" && other.Email == u.Email) ||
			(u.Subject != "" && other.Subject == u.Subject) {
			return true
		}
	}
	return false
}

func (s *memStore) CreateUser(ctx context.Context, user *core.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user.ID = ""
	if s.userConflict(user) {
		return fmt.Errorf("user %s: %w", user.Username, core.ErrConflict)
	}

	now := time.Now()
	user.ID = ulid.Make().String()
	user.CreatedAt = now
	user.UpdatedAt = now
	u := *user
	s.users[user.ID] = &u

	logrus.WithFields(logrus.Fields{"user_id": user.ID, "username": user.Username}).Info("User created successfully")
	return nil
}

func (s *memStore) GetUser(ctx context.Context, id string) (*core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user with id %s: %w", id, core.ErrNotFound)
	}
	out := *u
	return &out, nil
}

func (s *memStore) findUser(match func(*core.User) bool) (*core.User, bool) {
	for _, u := range s.users {
		if match(u) {
			out := *u
			return &out, true
		}
	}
	return nil, false
}

func (s *memStore) GetUserByUsername(ctx context.Context, username string) (*core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if u, ok := s.findUser(func(u *core.User) bool { return u.Username == username }); ok {
		return u, nil
	}
	return nil, fmt.Errorf("user %s: %w", username, core.ErrNotFound)
}

func (s *memStore) GetUserBySubject(ctx context.Context, subject string) (*core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if u, ok := s.findUser(func(u *core.User) bool { return subject != "" && u.Subject == subject }); ok {
		return u, nil
	}
	return nil, fmt.Errorf("user with subject %s: %w", subject, core.ErrNotFound)
}

func (s *memStore) ListUsers(ctx context.Context, filter core.UserFilter) ([]*core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]*core.User, 0, len(s.users))
	for _, u := range s.users {
		if filter.PendingOnly && u.Approved {
			continue
		}
		out := *u
		users = append(users, &out)
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].ID < users[j].ID
	})
	return users, nil
}

func (s *memStore) UpdateUser(ctx context.Context, user *core.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.users[user.ID]
	if !ok {
		return fmt.Errorf("user with id %s: %w", user.ID, core.ErrNotFound)
	}
	if user.Email != "" && s.userConflict(&core.User{ID: user.ID, Username: existing.Username, Email: user.Email}) {
		return fmt.Errorf("user email %s: %w", user.Email, core.ErrConflict)
	}

	existing.Email = user.Email
	existing.PasswordHash = user.PasswordHash
	existing.Role = user.Role
	existing.Approved = user.Approved
	existing.UpdatedAt = time.Now()
	user.UpdatedAt = existing.UpdatedAt

	logrus.WithField("user_id", user.ID).Info("User updated successfully")
	return nil
}

func (s *memStore) DeleteUser(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return fmt.Errorf("user with id %s: %w", id, core.ErrNotFound)
	}
	delete(s.users, id)
	delete(s.notifications, id)
	for gid, g := range s.guides {
		if g.OwnerID == id {
			delete(s.guides, gid)
		}
	}

	logrus.WithField("user_id", id).Info("User deleted successfully")
	return nil
}

// NotificationStore implementation

func (s *memStore) AddNotification(ctx context.Context, n *core.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n.ID = ulid.Make().String()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	stored := *n
	s.notifications[n.UserID] = append(s.notifications[n.UserID], &stored)
	return nil
}

func (s *memStore) ListNotifications(ctx context.Context, userID string) ([]*core.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.notifications[userID]
	out := make([]*core.Notification, 0, len(list))
	for i := len(list) - 1; i >= 0; i-- {
		n := *list[i]
		out = append(out, &n)
	}
	return out, nil
}

func (s *memStore) MarkNotificationRead(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, n := range s.notifications[userID] {
		if n.ID == id {
			n.Read = true
			return nil
		}
	}
	return fmt.Errorf("notification with id %s: %w", id, core.ErrNotFound)
}
