package templates

import (
	"bytes"
	"io/fs"
	"regexp"
	"strings"
	"testing"
)

var (
	scriptTagRE     = regexp.MustCompile(`(?is)<script\b([^>]*)>`)
	inlineHandlerRE = regexp.MustCompile(`(?is)\son[a-z]+\s*=`)
	javascriptURLRE = regexp.MustCompile(`(?i)javascript:`)
)

// The consent banner is added by middleware; templates must not carry scripts of their own.
func TestTemplatesAvoidJavaScript(t *testing.T) {
	entries, err := fs.ReadDir(htmlFiles, ".")
	if err != nil {
		t.Fatalf("failed to read embedded templates: %v", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".html") {
			continue
		}
		content, err := fs.ReadFile(htmlFiles, entry.Name())
		if err != nil {
			t.Fatalf("failed to read template %s: %v", entry.Name(), err)
		}
		src := string(content)

		if inlineHandlerRE.MatchString(src) {
			t.Fatalf("template %s contains inline on* handlers", entry.Name())
		}
		if javascriptURLRE.MatchString(src) {
			t.Fatalf("template %s contains javascript: URL", entry.Name())
		}
		if scriptTagRE.MatchString(src) {
			t.Fatalf("template %s contains a <script> tag", entry.Name())
		}
	}
}

func TestAdminPageEscapesScriptTag(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	var out bytes.Buffer
	err := Admin.Execute(&out, AdminPage{Title: "Site", Enabled: true, DomainID: "acme123", ScriptTag: `<script src="x" async="async"></script>`})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if strings.Contains(out.String(), "<script") {
		t.Fatalf("script tag should be shown escaped, got %s", out.String())
	}
	if !strings.Contains(out.String(), "&lt;script") {
		t.Fatalf("expected escaped script tag, got %s", out.String())
	}
}
