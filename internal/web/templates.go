package web

import (
	"embed"
	"fmt"
	"html/template"
	"io"

	"github.com/labstack/echo/v4"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/birdo-app/birdo/internal/errors"
)

//go:embed views/*.html
var viewsFS embed.FS

// TemplateRenderer is the echo renderer over the embedded views.
type TemplateRenderer struct {
	templates *template.Template
}

// Render renders a template with the given data.
func (t *TemplateRenderer) Render(w io.Writer, name string, data any, _ echo.Context) error {
	return t.templates.ExecuteTemplate(w, name, data)
}

func newTemplateRenderer() (*TemplateRenderer, error) {
	tmpl, err := template.New("").Funcs(templateFunctions()).ParseFS(viewsFS, "views/*.html")
	if err != nil {
		return nil, errors.New(err).
			Component("web").
			Category(errors.CategoryFileParsing).
			Context("operation", "parse-templates").
			Build()
	}
	return &TemplateRenderer{templates: tmpl}, nil
}

func templateFunctions() template.FuncMap {
	return template.FuncMap{
		"title":     cases.Title(language.English).String,
		"coord":     func(v float64) string { return fmt.Sprintf("%.4f", v) },
		"calcWidth": calcWidth,
		"add1":      func(i int) int { return i + 1 },
	}
}

// calcWidth scales a population to a bar width in percent of max.
func calcWidth(quantity, maxQuantity int) int {
	if maxQuantity <= 0 {
		return 0
	}
	width := quantity * 100 / maxQuantity
	if width < 1 && quantity > 0 {
		return 1
	}
	return min(width, 100)
}

// PageData is the common data of every page.
type PageData struct {
	Title         string
	Page          string
	CSRFToken     string
	Authenticated bool
	UserEmail     string
	Error         string
}

func (s *Server) pageData(c echo.Context, page, title string) PageData {
	cl, _ := s.clientFor(c)
	data := PageData{Title: title, Page: page, CSRFToken: csrfToken(c)}
	if user, ok := cl.session.Current(); ok {
		data.Authenticated = true
		data.UserEmail = user.Email
	}
	return data
}
