package server

import (
	"errors"
	"net/http"

	"blog/internal/auth"
	"blog/internal/db"
	"blog/internal/models"
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var form registerForm
	if r.Method == http.MethodGet {
		s.render(w, r, http.StatusOK, "register", map[string]any{"Form": form})
		return
	}

	form.bind(r)
	if err := s.validate.Struct(form); err != nil {
		s.render(w, r, http.StatusBadRequest, "register", map[string]any{"Form": form, "Error": formError(err)})
		return
	}

	hash, err := auth.HashPassword(form.Password)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	user := &models.User{Name: form.Name, Email: form.Email, PasswordHash: hash, CreatedAt: s.clock.Now()}
	var cookie *http.Cookie
	err = s.store.Tx(r.Context(), func(q db.Querier) error {
		if err := auth.CreateAccount(r.Context(), q, user); err != nil {
			return err
		}
		var err error
		cookie, err = s.sessions.Issue(r.Context(), q, user)
		return err
	})
	if errors.Is(err, models.ErrDuplicateEmail) {
		s.sessions.SetFlash(w, "There is already an account using this email. Try logging in?")
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	if err != nil {
		s.serverError(w, r, err)
		return
	}

	http.SetCookie(w, cookie)
	s.log.Info("user registered", "user_id", user.ID, "role", user.Role)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var form loginForm
	if r.Method == http.MethodGet {
		s.render(w, r, http.StatusOK, "login", map[string]any{"Form": form})
		return
	}

	form.bind(r)
	if err := s.validate.Struct(form); err != nil {
		s.render(w, r, http.StatusBadRequest, "login", map[string]any{"Form": form, "Error": formError(err)})
		return
	}

	user, err := auth.Authenticate(r.Context(), s.store, form.Email, form.Password)
	switch {
	case errors.Is(err, models.ErrNoAccount):
		s.render(w, r, http.StatusUnauthorized, "login", map[string]any{"Form": form, "Error": "There is no account with this email address."})
		return
	case errors.Is(err, models.ErrInvalidCredentials):
		s.render(w, r, http.StatusUnauthorized, "login", map[string]any{"Form": form, "Error": "Incorrect password."})
		return
	case err != nil:
		s.serverError(w, r, err)
		return
	}

	if err := s.sessions.Establish(r.Context(), w, user); err != nil {
		s.serverError(w, r, err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Teardown(r.Context(), w, r); err != nil {
		s.log.Error("logout failed", "error", err)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
