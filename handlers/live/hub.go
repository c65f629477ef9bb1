// Package live pushes chat messages and notifications to browsers over
// socket.io. Clients join the chat room on connect and their own user room
// after sending a valid session token with "subscribe".
package live

import (
	"fmt"
	"reflect"
	"regexp"
	"sync/atomic"

	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/engine.io/v2/utils"
	socketio "github.com/zishang520/socket.io/v2/socket"

	"guides-server/core"
	"guides-server/handlers/auth"
)

const chatRoom socketio.Room = "chat"

var devOrigin = regexp.MustCompile(`^https?://(localhost|127\.0\.0\.1|\[::1\])(:\d+)?$`)

type Hub struct {
	srv         *socketio.Server
	connections atomic.Int64
}

func userRoom(userID string) socketio.Room {
	return socketio.Room("user:" + userID)
}

func NewHub() *Hub {
	opts := socketio.DefaultServerOptions()
	opts.SetPath("/socket.io")
	opts.SetMaxHttpBufferSize(64 << 10)
	opts.SetCors(&types.Cors{
		Origin:      []any{devOrigin},
		Credentials: true,
	})

	h := &Hub{srv: socketio.NewServer(nil, opts)}

	//nolint:errcheck // Socket.IO event handlers do not return useful errors
	h.srv.On("connection", func(clients ...any) {
		socket, ok := clients[0].(*socketio.Socket)
		if !ok {
			return
		}
		h.connections.Add(1)
		socket.Join(chatRoom)
		utils.Log().Printf("socket %v connected\n", socket.Id())

		//nolint:errcheck // Socket.IO event handlers do not return useful errors
		socket.On("subscribe", func(datas ...any) {
			reply, args := splitCallback(datas)
			userID, err := subscriber(args)
			if err != nil {
				answer(socket, reply, "subscribe-ack", map[string]any{"status": "error", "error": err.Error()}, err)
				return
			}

			room := userRoom(userID)
			socket.Join(room)
			utils.Log().Printf("socket %v subscribed to %v\n", socket.Id(), room)
			answer(socket, reply, "subscribe-ack", map[string]any{"status": "ok"}, nil)
		})

		socket.On("disconnect", func(datas ...any) {
			h.connections.Add(-1)
			socket.RemoveAllListeners("")
		})
	})

	return h
}

// Server exposes the socket.io server for mounting and shutdown.
func (h *Hub) Server() *socketio.Server { return h.srv }

// Len returns the number of open connections.
func (h *Hub) Len() int { return int(h.connections.Load()) }

func (h *Hub) BroadcastChat(msg core.ChatMessage) {
	if err := h.srv.To(chatRoom).Emit("chat-message", chatPayload(msg)); err != nil {
		utils.Log().Printf("failed to broadcast chat message %v: %v\n", msg.ID, err)
	}
}

func (h *Hub) Notify(userID string, n *core.Notification) {
	if err := h.srv.To(userRoom(userID)).Emit("notification", notificationPayload(n)); err != nil {
		utils.Log().Printf("failed to push notification %v: %v\n", n.ID, err)
	}
}

func chatPayload(msg core.ChatMessage) map[string]any {
	return map[string]any{
		"id":        msg.ID,
		"user_id":   msg.UserID,
		"username":  msg.Username,
		"content":   msg.Content,
		"timestamp": msg.Timestamp,
	}
}

func notificationPayload(n *core.Notification) map[string]any {
	return map[string]any{
		"id":         n.ID,
		"message":    n.Message,
		"type":       string(n.Type),
		"read":       n.Read,
		"created_at": n.CreatedAt.UnixMilli(),
	}
}

// subscriber validates the token passed with "subscribe" and returns its
// user id.
func subscriber(args []any) (string, error) {
	if len(args) == 0 {
		return "", fmt.Errorf("token is required")
	}
	token, ok := args[0].(string)
	if !ok || token == "" {
		return "", fmt.Errorf("invalid token")
	}
	claims, err := auth.ParseJWT(token)
	if err != nil {
		return "", fmt.Errorf("invalid token")
	}
	return claims.Subject, nil
}

// splitCallback separates a trailing client acknowledgement from the event
// arguments. Clients pass either func(payload) or func(err, payload).
func splitCallback(datas []any) (reply func(payload map[string]any, err error), args []any) {
	if len(datas) == 0 {
		return nil, datas
	}
	fn := reflect.ValueOf(datas[len(datas)-1])
	if fn.Kind() != reflect.Func || fn.Type().NumIn() == 0 {
		return nil, datas
	}

	reply = func(payload map[string]any, err error) {
		in := make([]reflect.Value, fn.Type().NumIn())
		for i := range in {
			var v any = payload
			if i == 0 && (len(in) > 1 || err != nil) {
				v = err
			}
			in[i] = argValue(v, fn.Type().In(i))
		}
		fn.Call(in)
	}
	return reply, datas[:len(datas)-1]
}

// argValue fits v to the callback parameter type t.
func argValue(v any, t reflect.Type) reflect.Value {
	if v == nil {
		return reflect.Zero(t)
	}
	if err, ok := v.(error); ok && t.Kind() == reflect.String {
		return reflect.ValueOf(err.Error()).Convert(t)
	}
	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(t) {
		return rv
	}
	if rv.Type().ConvertibleTo(t) {
		return rv.Convert(t)
	}
	return reflect.Zero(t)
}

// answer acknowledges an event through the client callback when present and
// always as an event, for clients that do not use callbacks.
func answer(socket *socketio.Socket, reply func(map[string]any, error), event string, payload map[string]any, err error) {
	if reply != nil {
		reply(payload, err)
	}
	if err := socket.Emit(event, payload); err != nil {
		utils.Log().Printf("failed to emit %v to %v: %v\n", event, socket.Id(), err)
	}
}
