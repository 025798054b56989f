package admin

import (
	"log/slog"
	"net/http"

	"bluticconsent/internal/config"
	"bluticconsent/internal/consent"
	bhtml "bluticconsent/internal/html"
	"bluticconsent/internal/templates"
)

type handler struct {
	cfg   *config.Config
	title string
}

// NewHandler serves the plugin settings page on the administrative side of the site.
func NewHandler(cfg *config.Config, title string) *handler {
	return &handler{cfg: cfg, title: title}
}

// Register mounts the settings page under every admin prefix.
func (h *handler) Register(mux *http.ServeMux) {
	for _, prefix := range h.cfg.Admin.PathPrefixes {
		prefix = normalizePrefix(prefix)
		if prefix == "" {
			continue
		}
		mux.HandleFunc(prefix+"/", h.handleSettingsPage)
	}
}

func (h *handler) handleSettingsPage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	page := templates.AdminPage{
		Title:    h.title,
		Enabled:  h.cfg.Blutic.Enabled,
		DomainID: h.cfg.Blutic.DomainID,
		Debug:    h.cfg.Blutic.Debug,
	}
	// preview what the public site would get
	directive, _ := consent.Evaluate(h.cfg.Consent(), consent.RenderContext{Frontend: true, DocumentType: consent.DocumentHTML})
	page.ScriptTag = string(bhtml.ScriptTag(directive))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.Admin.Execute(w, page); err != nil {
		slog.ErrorContext(ctx, "admin template execute error", "error", err)
		http.Error(w, "template error", http.StatusInternalServerError)
	}
}
