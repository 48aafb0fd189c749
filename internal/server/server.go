package server

import (
	"bytes"
	"html/template"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/microcosm-cc/bluemonday"

	"blog/internal/auth"
	"blog/internal/clock"
	"blog/internal/db"
	"blog/internal/mail"
	"blog/internal/models"
)

// Config locates the on-disk assets. Clock defaults to the real clock.
type Config struct {
	TemplateDir string
	StaticDir   string
	Clock       clock.Clock
}

type Server struct {
	store    *db.DB
	sessions *auth.Manager
	mailer   mail.Sender
	log      *slog.Logger
	clock    clock.Clock

	tmpl     map[string]*template.Template
	validate *validator.Validate
	router   http.Handler
}

func New(store *db.DB, sessions *auth.Manager, mailer mail.Sender, logger *slog.Logger, cfg Config) (*Server, error) {
	s := &Server{
		store:    store,
		sessions: sessions,
		mailer:   mailer,
		log:      logger,
		clock:    cfg.Clock,
		validate: newValidator(),
	}
	if s.clock == nil {
		s.clock = clock.Real{}
	}

	policy := bluemonday.UGCPolicy()
	funcs := template.FuncMap{
		// Post bodies are rich text from the editor.
		"richtext": func(html string) template.HTML {
			return template.HTML(policy.Sanitize(html))
		},
		"date": func(t time.Time) string {
			return t.Format(models.DateLayout)
		},
	}

	templates := map[string]*template.Template{}
	layout := filepath.Join(cfg.TemplateDir, "layout.html")
	pages, err := filepath.Glob(filepath.Join(cfg.TemplateDir, "*.html"))
	if err != nil {
		return nil, err
	}
	for _, page := range pages {
		if filepath.Base(page) == "layout.html" {
			continue
		}
		t, err := template.New("layout.html").Funcs(funcs).ParseFiles(layout, page)
		if err != nil {
			return nil, err
		}
		name := strings.TrimSuffix(filepath.Base(page), ".html")
		templates[name] = t
	}
	s.tmpl = templates
	s.router = s.routes(cfg.StaticDir)
	return s, nil
}

func (s *Server) routes(staticDir string) http.Handler {
	r := mux.NewRouter()
	// mux skips r.Use middleware when no route matches.
	r.NotFoundHandler = s.logRequests(s.loadIdentity(http.HandlerFunc(s.handleNotFound)))
	r.MethodNotAllowedHandler = s.logRequests(s.loadIdentity(http.HandlerFunc(s.handleMethodNotAllowed)))
	r.Use(s.logRequests, s.loadIdentity)

	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/register", s.handleRegister).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/login", s.handleLogin).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/logout", s.handleLogout).Methods(http.MethodGet)
	r.HandleFunc("/post/{id:[0-9]+}", s.handlePost).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/about", s.handleAbout).Methods(http.MethodGet)
	r.HandleFunc("/contact", s.handleContact).Methods(http.MethodGet, http.MethodPost)

	r.HandleFunc("/new-post", s.requireAdmin(s.handleNewPost)).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/edit-post/{id:[0-9]+}", s.requireAdmin(s.handleEditPost)).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/delete/{id:[0-9]+}", s.requireAdmin(s.handleDeletePost)).Methods(http.MethodGet)
	r.HandleFunc("/delete_comment/{id:[0-9]+}", s.requireAdmin(s.handleDeleteComment)).Methods(http.MethodGet)

	if staticDir != "" {
		r.PathPrefix("/static/").Handler(http.StripPrefix("/static/", http.FileServer(http.Dir(staticDir))))
	}
	return r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// render executes a page into a buffer first so a template error never
// leaves a half-written response.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data map[string]any) {
	t, ok := s.tmpl[name]
	if !ok {
		s.log.Error("template not found", "template", name)
		http.Error(w, "template not found", http.StatusInternalServerError)
		return
	}
	if data == nil {
		data = map[string]any{}
	}
	user := currentUser(r)
	data["User"] = user
	data["IsAdmin"] = user.IsAdmin()
	data["Flash"] = s.sessions.PopFlash(w, r)

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		s.log.Error("render failed", "template", name, "error", err)
		http.Error(w, "render error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

func (s *Server) renderError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	s.render(w, r, status, "error", map[string]any{
		"Status":  status,
		"Title":   http.StatusText(status),
		"Message": msg,
	})
}

func (s *Server) serverError(w http.ResponseWriter, r *http.Request, err error) {
	s.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	s.renderError(w, r, http.StatusInternalServerError, "Something went wrong. Please try again later.")
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.renderError(w, r, http.StatusNotFound, "The page you are looking for does not exist.")
}

func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	s.renderError(w, r, http.StatusMethodNotAllowed, "This page does not accept "+r.Method+" requests.")
}

// helpers
func pathID(r *http.Request) (int, bool) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	return id, err == nil && id > 0
}

func postURL(id int) string {
	return "/post/" + strconv.Itoa(id)
}
