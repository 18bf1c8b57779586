package httpapi

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"github.com/R3E-Network/demo_gateway/internal/httputil"
)

//go:embed templates/*.html
var templateFS embed.FS

// pageRoutes maps static page paths to their template. Aliases share a template.
var pageRoutes = map[string]string{
	"/":              "index.html",
	"/healthz/":      "health.html",
	"/wallet/qr/":    "wallet_qr.html",
	"/groq/test/ui/": "groq_test_ui.html",
	"/groq/test/":    "groq_test_ui.html",
	"/groq/chat/":    "groq_chat_ui.html",
	"/groq/chat/ui/": "groq_chat_ui.html",
	"/simulate/":     "simulate.html",
	"/upcoming/":     "upcoming.html",
}

type pageRenderer struct {
	templates map[string]*template.Template
}

// newPageRenderer parses every page together with the shared layout. The
// templates are embedded, so a parse failure is a build defect.
func newPageRenderer() *pageRenderer {
	entries, err := templateFS.ReadDir("templates")
	if err != nil {
		panic(err)
	}
	r := &pageRenderer{templates: make(map[string]*template.Template)}
	for _, entry := range entries {
		name := entry.Name()
		if name == "layout.html" {
			continue
		}
		r.templates[name] = template.Must(template.ParseFS(templateFS, "templates/layout.html", "templates/"+name))
	}
	return r
}

func (p *pageRenderer) render(w http.ResponseWriter, name string, data interface{}) error {
	tmpl, ok := p.templates[name]
	if !ok {
		return errUnknownPage(name)
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, err := buf.WriteTo(w)
	return err
}

type errUnknownPage string

func (e errUnknownPage) Error() string {
	return "unknown page " + string(e)
}

func (h *handler) page(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.pages.render(w, name, nil); err != nil {
			h.logger.WithContext(r.Context()).WithError(err).WithField("page", name).Error("render page")
			httputil.InternalError(w, "page unavailable")
		}
	}
}

// walletPageData is passed to wallet.html.
type walletPageData struct {
	RPCURL string
}

func (h *handler) walletPage(w http.ResponseWriter, r *http.Request) {
	if err := h.pages.render(w, "wallet.html", walletPageData{RPCURL: h.rpcURL}); err != nil {
		h.logger.WithContext(r.Context()).WithError(err).Error("render wallet page")
		httputil.InternalError(w, "page unavailable")
	}
}
