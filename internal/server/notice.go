package server

import (
	"context"
	"net/http"
	"time"

	"benchsite/internal/common"
	"benchsite/internal/notice"

	"github.com/google/uuid"
)

// visitorTTL is how long the anonymous visitor cookie lives.
const visitorTTL = 365 * 24 * time.Hour

// cookieStore keeps notice flags in the visitor's browser: the flag is a
// cookie with value "1" on path "/" that the browser expires. It serves a
// single request, so the visitor argument is ignored.
type cookieStore struct {
	w http.ResponseWriter
	r *http.Request
}

func (c cookieStore) Get(_ context.Context, _, name string) (bool, error) {
	ck, err := c.r.Cookie(name)
	if err != nil {
		return false, nil
	}
	return ck.Value == "1", nil
}

func (c cookieStore) Set(_ context.Context, _, name string, expires time.Time) error {
	http.SetCookie(c.w, &http.Cookie{
		Name:     name,
		Value:    "1",
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// noticeFor returns the notice for this request and the visitor key its
// store is indexed by.
func (s *Server) noticeFor(w http.ResponseWriter, r *http.Request) (*notice.Notice, string, error) {
	if s.boltNotice != nil {
		return s.boltNotice, s.visitorID(w, r), nil
	}

	n, err := notice.New(s.settings.NoticeName, s.settings.NoticeTTL, cookieStore{w: w, r: r},
		notice.WithClock(s.now), notice.WithTracker(s.metrics))
	if err != nil {
		return nil, "", err
	}
	return n, "", nil
}

// visitorID returns the caller's anonymous ID, issuing a new one if the
// cookie is missing or malformed.
func (s *Server) visitorID(w http.ResponseWriter, r *http.Request) string {
	if ck, err := r.Cookie(common.VisitorCookie); err == nil {
		if id, err := uuid.Parse(ck.Value); err == nil {
			return id.String()
		}
	}

	id := uuid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     common.VisitorCookie,
		Value:    id,
		Path:     "/",
		Expires:  s.now().Add(visitorTTL),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}
