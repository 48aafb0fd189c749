package server

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

type registerForm struct {
	Name     string `label:"Name" validate:"required,max=250"`
	Email    string `label:"Email" validate:"required,email,max=250"`
	Password string `label:"Password" validate:"required,min=6"`
}

func (f *registerForm) bind(r *http.Request) {
	f.Name = strings.TrimSpace(r.FormValue("name"))
	f.Email = strings.TrimSpace(r.FormValue("email"))
	f.Password = r.FormValue("password")
}

type loginForm struct {
	Email    string `label:"Email" validate:"required,email"`
	Password string `label:"Password" validate:"required"`
}

func (f *loginForm) bind(r *http.Request) {
	f.Email = strings.TrimSpace(r.FormValue("email"))
	f.Password = r.FormValue("password")
}

type commentForm struct {
	Body string `label:"Comment" validate:"required"`
}

func (f *commentForm) bind(r *http.Request) {
	f.Body = strings.TrimSpace(r.FormValue("body"))
}

type contactForm struct {
	Name    string `label:"Name" validate:"required,max=250"`
	Email   string `label:"Email" validate:"required,email"`
	Phone   string `label:"Phone" validate:"max=40"`
	Message string `label:"Message" validate:"required"`
}

func (f *contactForm) bind(r *http.Request) {
	f.Name = strings.TrimSpace(r.FormValue("name"))
	f.Email = strings.TrimSpace(r.FormValue("email"))
	f.Phone = strings.TrimSpace(r.FormValue("phone"))
	f.Message = strings.TrimSpace(r.FormValue("message"))
}

type postForm struct {
	Title    string `label:"Blog Post Title" validate:"required,max=250"`
	Subtitle string `label:"Subtitle" validate:"required,max=250"`
	ImgURL   string `label:"Blog Image URL" validate:"required,url,max=250"`
	Category string `label:"Category" validate:"max=80"`
	Body     string `label:"Blog Content" validate:"required"`
}

func (f *postForm) bind(r *http.Request) {
	f.Title = strings.TrimSpace(r.FormValue("title"))
	f.Subtitle = strings.TrimSpace(r.FormValue("subtitle"))
	f.ImgURL = strings.TrimSpace(r.FormValue("img_url"))
	f.Category = strings.TrimSpace(r.FormValue("category"))
	f.Body = r.FormValue("body")
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if label := f.Tag.Get("label"); label != "" {
			return label
		}
		return f.Name
	})
	return v
}

// formError turns a validation failure into the message shown above a form.
func formError(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Invalid form submission."
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required."
	case "email":
		return "Please enter a valid email address."
	case "url":
		return fe.Field() + " must be a valid URL."
	case "min":
		return fmt.Sprintf("%s must be at least %s characters.", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters.", fe.Field(), fe.Param())
	}
	return fe.Field() + " is invalid."
}
