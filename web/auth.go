package web

import (
	"github.com/goji/httpauth"
	"github.com/gorilla/securecookie"
	"go.uber.org/zap"
	"net/http"
)

const (
	cookieName  = "dataloader"
	cookieValue = "authenticated"
)

type AuthMiddleware struct {
	sc   *securecookie.SecureCookie
	opts httpauth.AuthOptions
	log  *zap.SugaredLogger
}

// Setup new middleware for authenticating requests against a single user and password.
func NewAuthMiddleware(user, password string, log *zap.SugaredLogger) AuthMiddleware {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	hashKey := securecookie.GenerateRandomKey(32)
	blockKey := securecookie.GenerateRandomKey(32)
	return AuthMiddleware{
		sc:   securecookie.New(hashKey, blockKey),
		opts: httpauth.AuthOptions{Realm: "Restricted", User: user, Password: password},
		log:  log,
	}
}

// If session cookie is not present then use basic auth to login and set a cookie.
func (mw AuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if cookie, err := r.Cookie(cookieName); err == nil {
			var value string
			if err = mw.sc.Decode(cookieName, cookie.Value, &value); err == nil && value == cookieValue {
				next.ServeHTTP(w, r)
				return
			}
		}
		httpauth.BasicAuth(mw.opts)(mw.setCookie(next)).ServeHTTP(w, r)
	})
}

func (mw AuthMiddleware) setCookie(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if encoded, err := mw.sc.Encode(cookieName, cookieValue); err == nil {
			cookie := &http.Cookie{Name: cookieName, Value: encoded, Path: "/", HttpOnly: true}
			http.SetCookie(w, cookie)
		} else {
			mw.log.Errorw("error encoding cookie", "error", err)
		}
		h.ServeHTTP(w, r)
	})
}
