package templates

import (
	"embed"
	"html/template"
)

//go:embed *.html
var htmlFiles embed.FS

var Site,
	Admin *template.Template

func Init() error {
	tmpls, err := template.New("all").ParseFS(htmlFiles, "*.html")
	if err != nil {
		return err
	}
	Site = ensure(tmpls, "site.html")
	Admin = ensure(tmpls, "admin.html")
	return nil
}

func ensure(templates *template.Template, name string) *template.Template {
	tmpl := templates.Lookup(name)
	if tmpl == nil {
		panic("template " + name + " not found")
	}
	return tmpl
}

type Article struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

type SitePage struct {
	Title    string
	Articles []Article
}

type AdminPage struct {
	Title     string
	Enabled   bool
	DomainID  string
	Debug     bool
	ScriptTag string
}
