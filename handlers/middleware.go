package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"video-site/users"
)

const userKey = "user"

// AuthMiddleware loads the session's user into the context.
func (h *Handlers) AuthMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := sessionUserID(c)
		if err != nil {
			log.Debugln("authMiddleware:", err)
			return echo.NewHTTPError(http.StatusUnauthorized, "not logged in")
		}
		user, err := users.Get(h.DB, id)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusUnauthorized, "not logged in")
		} else if err != nil {
			return err
		}
		c.Set(userKey, user)
		return next(c)
	}
}

// AdminMiddleware must run after AuthMiddleware.
func AdminMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !CurrentUser(c).Admin {
			return echo.NewHTTPError(http.StatusForbidden, "admin only")
		}
		return next(c)
	}
}

func CurrentUser(c echo.Context) users.User {
	user, _ := c.Get(userKey).(users.User)
	return user
}
