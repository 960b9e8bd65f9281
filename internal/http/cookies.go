package http

import (
	"net/http"

	"kakeibo/internal/log"
	"kakeibo/internal/session"
)

// currentSession returns the state named by the session cookie. When the
// cookie is missing or its session has expired, a new signed-out session is
// created and the cookie rewritten if create is set; otherwise nil is returned.
func (s *Server) currentSession(w http.ResponseWriter, r *http.Request, create bool) *session.State {
	// A cookie that fails verification (e.g. after a key change) yields a fresh session.
	cookie, _ := s.cookies.Get(r, cookieName)

	if id, ok := cookie.Values[cookieSessionKey].(string); ok && id != "" {
		if st, ok := s.deps.Sessions.Get(id); ok {
			return st
		}
	}
	if !create {
		return nil
	}

	st := s.deps.Sessions.Create()
	cookie.Values[cookieSessionKey] = st.ID()
	if err := cookie.Save(r, w); err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Failed to save session cookie",
			log.NewFields().WithComponent(log.ComponentSession).WithError(err).ToSlice()...)
	}
	return st
}

// dropSession deletes the server-side session and expires the cookie.
func (s *Server) dropSession(w http.ResponseWriter, r *http.Request, st *session.State) {
	s.deps.Sessions.Delete(st.ID())
	cookie, _ := s.cookies.Get(r, cookieName)
	cookie.Options.MaxAge = -1
	delete(cookie.Values, cookieSessionKey)
	_ = cookie.Save(r, w)
}
