package chat

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"

	chatroom "guides-server/chat"
	"guides-server/core"
	"guides-server/handlers/api"
	"guides-server/middleware"
)

type SendRequest struct {
	Message string `json:"message"`
}

func HandleMessages(room *chatroom.Room) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		messages, disabled := room.Messages()
		render.JSON(w, r, map[string]any{"messages": messages, "disabled": disabled})
	}
}

func HandleSend(room *chatroom.Room) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := middleware.UserFromContext(r.Context())

		var req SendRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			api.Error(w, r, http.StatusBadRequest, "Invalid request body")
			return
		}

		msg, err := room.Send(user, req.Message)
		switch {
		case errors.Is(err, chatroom.ErrDisabled):
			api.Error(w, r, http.StatusForbidden, "Chat is disabled")
			return
		case errors.Is(err, chatroom.ErrEmpty), errors.Is(err, chatroom.ErrTooLong):
			api.Error(w, r, http.StatusBadRequest, err.Error())
			return
		case err != nil:
			logrus.WithError(err).WithField("user_id", user.ID).Error("Failed to send chat message")
			api.Error(w, r, http.StatusInternalServerError, "Failed to send message")
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, map[string]core.ChatMessage{"message": msg})
	}
}
