package server

import (
	"net/http"

	"blog/internal/mail"
)

func (s *Server) handleContact(w http.ResponseWriter, r *http.Request) {
	var form contactForm
	if r.Method == http.MethodGet {
		s.render(w, r, http.StatusOK, "contact", map[string]any{"Form": form, "Message": "Contact Me"})
		return
	}

	form.bind(r)
	if err := s.validate.Struct(form); err != nil {
		s.render(w, r, http.StatusBadRequest, "contact", map[string]any{
			"Form":    form,
			"Message": "Contact Me",
			"Error":   formError(err),
		})
		return
	}

	msg := mail.ContactMessage(form.Name, form.Email, form.Phone, form.Message)
	if err := s.mailer.Send(r.Context(), msg); err != nil {
		s.log.Error("contact mail failed", "error", err)
		s.render(w, r, http.StatusBadGateway, "contact", map[string]any{
			"Form":    form,
			"Message": "Contact Me",
			"Error":   "Failed to send your message, please try again later.",
		})
		return
	}
	s.render(w, r, http.StatusOK, "contact", map[string]any{
		"Form":    contactForm{},
		"Message": "Successfully sent, thank you!",
	})
}
