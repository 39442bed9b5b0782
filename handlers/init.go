package handlers

import (
	"github.com/gorilla/sessions"
	"github.com/sirupsen/logrus"

	"video-site/config"
)

var log = logrus.NewEntry(logrus.StandardLogger())
var store *sessions.CookieStore

func Init(logger *logrus.Logger) error {
	log = logger.WithFields(logrus.Fields{
		"component": "handlers",
	})

	// create the cookie store
	key, err := config.GetSessionAuthKey()
	if err != nil {
		return err
	}
	store = sessions.NewCookieStore(key)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   30 * 24 * 60 * 60, // seconds
		HttpOnly: true,
		Secure:   config.GetSecure(),
	}

	return nil
}

func Fini() {}
