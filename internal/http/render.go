package http

import (
	"bytes"
	"html/template"
	"net/http"

	"kakeibo/internal/core"
	"kakeibo/internal/log"
	"kakeibo/internal/session"
)

// Template names.
const (
	tmplIndex   = "index.html"
	tmplApp     = "app"
	tmplForm    = "entry_form"
	tmplConfirm = "confirm_dialog"
)

var templateFuncs = template.FuncMap{
	"selected": func(a, b string) bool { return a == b },
}

// pageData is what every template renders from.
type pageData struct {
	session.View
	Accounts  []string
	AuthReady bool
	Today     string // day of month, the date column format
}

func (p pageData) HasDocument() bool { return p.DocumentID != "" }

func (p pageData) HasRegion() bool { return p.Region != "" }

// SubmitOK reports whether the last message was a successful submission.
func (p pageData) SubmitOK() bool { return p.Message == core.MsgSubmitSucceeded }

func (s *Server) pageData(st *session.State) pageData {
	return pageData{
		View:      st.View(),
		Accounts:  s.deps.Config.Accounts,
		AuthReady: s.deps.Auth.Ready().Err() == nil,
		Today:     s.deps.Clock.Now().Format("2"),
	}
}

// render executes a template into a buffer first so a failure can still
// produce a clean 500.
func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any, resp *HTMXResponseBuilder) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Template execution failed",
			log.NewFields().WithComponent(log.ComponentTemplate).WithOperation(log.OpRender).WithError(err).ToSlice()...)
		InternalServerError("表示に失敗しました").Write(w)
		return
	}
	if resp == nil {
		resp = NewHTMXResponse()
	}
	resp.BodyHTML(buf.Bytes()).Write(w)
}
