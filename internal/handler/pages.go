// Package handler contains HTTP request handlers for the waitlist site.
//
// WHAT IS A HANDLER?
// In Go, an HTTP handler is anything that implements the http.Handler interface:
//
//	type Handler interface {
//	    ServeHTTP(ResponseWriter, *Request)
//	}
//
// Or more commonly, we use http.HandlerFunc, a function with the right signature
// that automatically satisfies the Handler interface. Chi's router accepts these directly.
//
// HANDLER RESPONSIBILITIES:
// 1. Parse the incoming HTTP request (body, headers)
// 2. Call the service layer (or, for pages, render a template)
// 3. Write the HTTP response (status code, headers, body)
//
// Handlers should NOT contain business logic; they are the glue between HTTP and the app.
// Each handler depends on a small interface rather than a concrete service,
// so tests can drive it with a hand-written fake.
package handler

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
)

// Page names, one per template file under templates/.
const (
	PageLanding = "landing"
	PagePrivacy = "privacy"
	PageAdmin   = "admin"
)

// PagesHandler renders the server-side pages.
//
// WHY ONE TEMPLATE SET PER PAGE?
// Every page file defines {{define "content"}}. Parsing them all into one
// set would make the last one win, so each page is parsed together with
// base.html into its own *template.Template.
type PagesHandler struct {
	pages  map[string]*template.Template
	logger *slog.Logger
}

// NewPagesHandler parses base.html plus each page template from fsys.
//
// fsys is rooted so that "templates/base.html" exists; in production it is
// web.FS, embedded into the binary, so the server has no runtime
// dependency on the working directory.
func NewPagesHandler(fsys fs.FS, logger *slog.Logger) (*PagesHandler, error) {
	pages := make(map[string]*template.Template)
	for _, name := range []string{PageLanding, PagePrivacy, PageAdmin} {
		tmpl, err := template.ParseFS(fsys, "templates/base.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("handler: parsing %s template: %w", name, err)
		}
		pages[name] = tmpl
	}

	return &PagesHandler{
		pages:  pages,
		logger: logger,
	}, nil
}

// HandleLanding serves GET /.
func (h *PagesHandler) HandleLanding(w http.ResponseWriter, r *http.Request) {
	h.render(w, PageLanding, map[string]interface{}{
		"Title": "HeyFriend | Join the waitlist",
	})
}

// HandlePrivacy serves GET /privacy.
func (h *PagesHandler) HandlePrivacy(w http.ResponseWriter, r *http.Request) {
	h.render(w, PagePrivacy, map[string]interface{}{
		"Title":       "Privacy Policy | HeyFriend",
		"LastUpdated": "2025-08-12",
	})
}

// HandleAdmin serves GET /admin/emails. The page holds no data; it asks for
// the password and then calls the admin API from the browser.
func (h *PagesHandler) HandleAdmin(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Robots-Tag", "noindex")
	h.render(w, PageAdmin, map[string]interface{}{
		"Title":          "Subscribers | HeyFriend admin",
		"PasswordHeader": PasswordHeader,
	})
}

// render executes into a buffer first so a template error can still become
// a clean 500 instead of half a page.
func (h *PagesHandler) render(w http.ResponseWriter, page string, data map[string]interface{}) {
	var buf bytes.Buffer
	if err := h.pages[page].ExecuteTemplate(&buf, "base", data); err != nil {
		h.logger.Error("failed to render template",
			slog.String("page", page),
			slog.String("error", err.Error()),
		)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.Warn("failed to write page", slog.String("page", page), slog.String("error", err.Error()))
	}
}
