// Package chat keeps the global chat room in memory.
package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"guides-server/core"
)

const (
	MaxHistory       = 500
	MaxMessageLength = 500
)

var (
	ErrDisabled = errors.New("chat is disabled")
	ErrEmpty    = errors.New("message is empty")
	ErrTooLong  = errors.New("message is too long")
)

// Broadcaster pushes new messages to connected clients.
type Broadcaster interface {
	BroadcastChat(msg core.ChatMessage)
}

type Room struct {
	mu       sync.Mutex
	messages []core.ChatMessage
	disabled bool
	push     Broadcaster
	now      func() time.Time
}

// NewRoom creates an empty room. push may be nil.
func NewRoom(push Broadcaster) *Room {
	return &Room{push: push, now: time.Now}
}

// Messages returns the history, oldest first, and whether chat is disabled.
func (r *Room) Messages() ([]core.ChatMessage, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]core.ChatMessage, len(r.messages))
	copy(out, r.messages)
	return out, r.disabled
}

func (r *Room) Send(user *core.User, content string) (core.ChatMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return core.ChatMessage{}, ErrEmpty
	}
	if utf8.RuneCountInString(content) > MaxMessageLength {
		return core.ChatMessage{}, ErrTooLong
	}

	r.mu.Lock()
	if r.disabled {
		r.mu.Unlock()
		return core.ChatMessage{}, ErrDisabled
	}
	msg := core.ChatMessage{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Username:  user.Username,
		Content:   content,
		Timestamp: r.now().UnixMilli(),
	}
	r.messages = append(r.messages, msg)
	if over := len(r.messages) - MaxHistory; over > 0 {
		r.messages = append(r.messages[:0:0], r.messages[over:]...)
	}
	r.mu.Unlock()

	if r.push != nil {
		r.push.BroadcastChat(msg)
	}
	return msg, nil
}

func (r *Room) SetDisabled(disabled bool) {
	r.mu.Lock()
	r.disabled = disabled
	r.mu.Unlock()
	logrus.WithField("disabled", disabled).Info("Chat availability changed")
}

func (r *Room) Clear() {
	r.mu.Lock()
	n := len(r.messages)
	r.messages = nil
	r.mu.Unlock()
	logrus.WithField("messages", n).Info("Chat cleared")
}

func (r *Room) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages)
}

// Run clears the room on every tick until ctx is done.
func (r *Room) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Clear()
		}
	}
}
