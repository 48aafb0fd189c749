package server

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"blog/internal/models"
)

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	posts, err := models.ListPosts(r.Context(), s.store)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "index", map[string]any{"Posts": posts})
}

func (s *Server) handleAbout(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "about", nil)
}

func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		s.handleNotFound(w, r)
		return
	}
	post, err := models.GetPost(r.Context(), s.store, id)
	if errors.Is(err, models.ErrNotFound) {
		s.handleNotFound(w, r)
		return
	}
	if err != nil {
		s.serverError(w, r, err)
		return
	}

	var form commentForm
	status := http.StatusOK
	var formErr string

	if r.Method == http.MethodPost {
		user := currentUser(r)
		if user == nil {
			s.sessions.SetFlash(w, "Please login, if you would like to comment.")
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		form.bind(r)
		if err := s.validate.Struct(form); err != nil {
			status, formErr = http.StatusBadRequest, formError(err)
		} else {
			c := &models.Comment{
				PostID:    post.ID,
				UserID:    sql.NullInt64{Int64: int64(user.ID), Valid: true},
				Name:      user.Name,
				Body:      form.Body,
				CreatedAt: s.clock.Now(),
			}
			err := models.CreateComment(r.Context(), s.store, c)
			if errors.Is(err, models.ErrNotFound) {
				s.handleNotFound(w, r)
				return
			}
			if err != nil {
				s.serverError(w, r, err)
				return
			}
			http.Redirect(w, r, postURL(post.ID), http.StatusSeeOther)
			return
		}
	}

	comments, err := models.ListComments(r.Context(), s.store, post.ID, models.RecentComments)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	s.render(w, r, status, "post", map[string]any{
		"Post":     post,
		"Comments": comments,
		"Form":     form,
		"Error":    formErr,
	})
}

func (s *Server) handleNewPost(w http.ResponseWriter, r *http.Request, user *models.User) {
	var form postForm
	page := map[string]any{"Heading": "New Post", "Action": "/new-post"}
	if r.Method == http.MethodGet {
		page["Form"] = form
		s.render(w, r, http.StatusOK, "make_post", page)
		return
	}

	form.bind(r)
	page["Form"] = form
	if err := s.validate.Struct(form); err != nil {
		page["Error"] = formError(err)
		s.render(w, r, http.StatusBadRequest, "make_post", page)
		return
	}

	now := s.clock.Now()
	post := &models.Post{
		UserID:    sql.NullInt64{Int64: int64(user.ID), Valid: true},
		Title:     form.Title,
		Subtitle:  form.Subtitle,
		Date:      now.Format(models.DateLayout),
		Body:      form.Body,
		ImgURL:    form.ImgURL,
		Category:  form.Category,
		CreatedAt: now,
	}
	err := models.CreatePost(r.Context(), s.store, post)
	if errors.Is(err, models.ErrDuplicateTitle) {
		page["Error"] = "A post with this title already exists."
		s.render(w, r, http.StatusConflict, "make_post", page)
		return
	}
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	s.log.Info("post created", "post_id", post.ID, "user_id", user.ID)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleEditPost(w http.ResponseWriter, r *http.Request, user *models.User) {
	id, ok := pathID(r)
	if !ok {
		s.handleNotFound(w, r)
		return
	}
	post, err := models.GetPost(r.Context(), s.store, id)
	if errors.Is(err, models.ErrNotFound) {
		s.handleNotFound(w, r)
		return
	}
	if err != nil {
		s.serverError(w, r, err)
		return
	}

	page := map[string]any{"Heading": "Edit Post", "Action": "/edit-post/" + strconv.Itoa(post.ID)}
	if r.Method == http.MethodGet {
		page["Form"] = postForm{
			Title:    post.Title,
			Subtitle: post.Subtitle,
			ImgURL:   post.ImgURL,
			Category: post.Category,
			Body:     post.Body,
		}
		s.render(w, r, http.StatusOK, "make_post", page)
		return
	}

	var form postForm
	form.bind(r)
	page["Form"] = form
	if err := s.validate.Struct(form); err != nil {
		page["Error"] = formError(err)
		s.render(w, r, http.StatusBadRequest, "make_post", page)
		return
	}

	post.Title = form.Title
	post.Subtitle = form.Subtitle
	post.ImgURL = form.ImgURL
	post.Body = form.Body
	post.Category = form.Category
	err = models.UpdatePost(r.Context(), s.store, post)
	switch {
	case errors.Is(err, models.ErrDuplicateTitle):
		page["Error"] = "A post with this title already exists."
		s.render(w, r, http.StatusConflict, "make_post", page)
		return
	case errors.Is(err, models.ErrNotFound):
		s.handleNotFound(w, r)
		return
	case err != nil:
		s.serverError(w, r, err)
		return
	}
	s.log.Info("post updated", "post_id", post.ID, "user_id", user.ID)
	http.Redirect(w, r, postURL(post.ID), http.StatusSeeOther)
}

func (s *Server) handleDeletePost(w http.ResponseWriter, r *http.Request, user *models.User) {
	id, ok := pathID(r)
	if !ok {
		s.handleNotFound(w, r)
		return
	}
	err := models.DeletePost(r.Context(), s.store, id)
	if errors.Is(err, models.ErrNotFound) {
		s.handleNotFound(w, r)
		return
	}
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	s.log.Info("post deleted", "post_id", id, "user_id", user.ID)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleDeleteComment(w http.ResponseWriter, r *http.Request, user *models.User) {
	id, ok := pathID(r)
	if !ok {
		s.handleNotFound(w, r)
		return
	}
	postID, err := models.DeleteComment(r.Context(), s.store, id)
	if errors.Is(err, models.ErrNotFound) {
		s.handleNotFound(w, r)
		return
	}
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	s.log.Info("comment deleted", "comment_id", id, "user_id", user.ID)
	http.Redirect(w, r, postURL(postID), http.StatusSeeOther)
}
