// Package api holds the response helpers shared by the JSON handlers.
package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"

	"guides-server/core"
)

func Error(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render.Status(r, status)
	render.JSON(w, r, map[string]string{"error": msg})
}

// StoreError writes the status matching a store error. what names the
// resource in the message, e.g. "Guide".
func StoreError(w http.ResponseWriter, r *http.Request, err error, what string) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		Error(w, r, http.StatusNotFound, what+" not found")
	case errors.Is(err, core.ErrConflict):
		Error(w, r, http.StatusConflict, what+" already exists")
	case errors.Is(err, core.ErrForbidden):
		Error(w, r, http.StatusForbidden, "Forbidden")
	case errors.Is(err, core.ErrInvalidElement):
		Error(w, r, http.StatusBadRequest, err.Error())
	default:
		logrus.WithError(err).WithField("resource", what).Error("Request failed")
		Error(w, r, http.StatusInternalServerError, "Internal server error")
	}
}
