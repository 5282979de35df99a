package middleware

import (
	"context"
	"github.com/google/uuid"
	"github.com/rookgm/storefront/internal/service"
	"go.uber.org/zap"
	"net/http"
	"time"
)

type contextKey int

const (
	contextKeySession contextKey = iota
)

// SessionCookie is name of cookie holding cart session token
const SessionCookie = "cart_session"

// WithSession returns ctx carrying cart session
func WithSession(ctx context.Context, session string) context.Context {
	return context.WithValue(ctx, contextKeySession, session)
}

// Session extracts cart session from context
func Session(ctx context.Context) (string, bool) {
	s, ok := ctx.Value(contextKeySession).(string)
	return s, ok && s != ""
}

// CartSession gets cart session from the cookie and passes it to the context.
// Visitor without valid cookie gets new session.
func CartSession(ts service.TokenService, secure bool, logger *zap.Logger) func(handler http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cookie, err := r.Cookie(SessionCookie); err == nil {
				if payload, err := ts.VerifyToken(cookie.Value); err == nil {
					next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), payload.Session)))
					return
				}
			}

			session := uuid.NewString()
			token, err := ts.CreateToken(session)
			if err != nil {
				logger.Error("can not create session token", zap.Error(err))
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}

			http.SetCookie(w, &http.Cookie{
				Name:     SessionCookie,
				Value:    token,
				Path:     "/",
				Expires:  time.Now().Add(30 * 24 * time.Hour),
				HttpOnly: true,
				Secure:   secure,
				SameSite: http.SameSiteLaxMode,
			})

			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), session)))
		})
	}
}
