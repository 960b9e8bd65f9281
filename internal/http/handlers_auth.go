package http

import (
	"context"
	"errors"
	"net/http"

	"kakeibo/internal/auth"
	"kakeibo/internal/log"
	"kakeibo/internal/session"
)

// handleLogin redirects to the consent screen. Until the provider has loaded
// (or after it failed to) sign-in is unavailable and the answer is 503.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	st := s.currentSession(w, r, true)
	if st.Phase() != session.SignedOut {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	state, err := st.BeginSignIn()
	if err != nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.deps.Config.AuthReadyTimeout)
	defer cancel()
	target, err := st.Gate().LoginURL(ctx, state)
	if err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Sign-in unavailable",
			log.NewFields().WithComponent(log.ComponentAuth).WithOperation(log.OpSignIn).WithError(err).ToSlice()...)
		if errors.Is(err, auth.ErrNotReady) {
			ServiceUnavailableError("サインインの準備ができていません。しばらくしてから再度お試しください").Write(w)
			return
		}
		InternalServerError("サインインを開始できません").Write(w)
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// handleCallback completes the consent flow. Every failure is logged and the
// user lands back on the signed-out page.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	st := s.currentSession(w, r, false)
	if st == nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "OAuth callback without a session",
			log.FieldComponent, log.ComponentAuth)
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	q := r.URL.Query()
	logger := log.FromContext(r.Context())
	if reason := q.Get("error"); reason != "" {
		logger.WarnContext(r.Context(), "Consent was not granted",
			append(log.NewFields().WithComponent(log.ComponentAuth).WithOperation(log.OpSignIn).ToSlice(), "reason", reason)...)
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	if err := st.SignIn(r.Context(), q.Get("state"), q.Get("code")); err != nil {
		// Gate.Acquire logs exchange failures itself.
		if errors.Is(err, session.ErrOAuthState) || errors.Is(err, session.ErrTransitionNotAllowed) {
			logger.WarnContext(r.Context(), "Rejected OAuth callback",
				log.NewFields().WithComponent(log.ComponentAuth).WithOperation(log.OpSignIn).WithError(err).ToSlice()...)
		}
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	s.documents.Forget(st.ID())
	logger.InfoContext(r.Context(), "Signed in",
		log.NewFields().WithComponent(log.ComponentAuth).WithOperation(log.OpSignIn).ToSlice()...)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleLogout signs out from any phase and drops the session.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if st := s.currentSession(w, r, false); st != nil {
		s.dropSession(w, r, st)
		log.FromContext(r.Context()).InfoContext(r.Context(), "Signed out",
			log.NewFields().WithComponent(log.ComponentAuth).WithOperation(log.OpSignOut).ToSlice()...)
	}
	if isHTMX(r) {
		NewHTMXResponse().Redirect("/").Write(w)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
