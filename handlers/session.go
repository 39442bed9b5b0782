package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"video-site/users"
)

const sessionName = "session"

func sessionUserID(c echo.Context) (uint, error) {
	session, err := store.Get(c.Request(), sessionName)
	if err != nil {
		return 0, fmt.Errorf("couldn't retrieve session from store: %w", err)
	}
	val, ok := session.Values["user_id"]
	if !ok {
		return 0, fmt.Errorf("user_id not in session")
	}
	id, ok := val.(uint)
	if !ok {
		return 0, fmt.Errorf("unexpected user_id %v in session", val)
	}
	return id, nil
}

type loginResponse struct {
	ID          uint   `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	Admin       bool   `json:"admin"`
}

func (h *Handlers) LoginPost(c echo.Context) error {
	username := c.FormValue("username")
	password := c.FormValue("password")

	user, err := users.Authenticate(h.DB, username, password)
	if errors.Is(err, users.ErrInvalidCredentials) {
		log.Infoln("failed login for", username)
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid credentials")
	} else if err != nil {
		return err
	}

	session, err := store.Get(c.Request(), sessionName)
	if err != nil {
		log.Warnln("replacing unreadable session:", err)
	}
	session.Values["user_id"] = user.ID
	if err := session.Save(c.Request(), c.Response().Writer); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Unable to save session")
	}

	return c.JSON(http.StatusOK, loginResponse{
		ID:          user.ID,
		Username:    user.Username,
		DisplayName: user.DisplayName,
		Admin:       user.Admin,
	})
}

func (h *Handlers) LogoutGet(c echo.Context) error {
	session, _ := store.Get(c.Request(), sessionName)
	delete(session.Values, "user_id")
	session.Options.MaxAge = -1
	if err := session.Save(c.Request(), c.Response().Writer); err != nil {
		log.Errorln("logout:", err)
	}
	return c.NoContent(http.StatusNoContent)
}
