// Package consent decides whether the Blutic consent banner belongs on a rendered page
// and builds the script reference for it.
package consent

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// ScriptBase is the pinned banner SDK; the domain id is appended as a query value.
const ScriptBase = "https://cdn.jsdelivr.net/gh/Blutic-club/banner-sdk@v1.7.0/dist/banner-sdk.js?domainId="

const (
	msgSkipped     = "plugin disabled or not on frontend"
	msgMissing     = "domain id is missing or invalid"
	msgEmpty       = "domain id is empty after sanitization"
	msgNotHTML     = "document is not HTML type, skipping script injection"
	msgSuccess     = "successfully added consent banner script for domain: "
	msgFailedToAdd = "failed to add script - "
)

// Head is the document head a directive is applied to.
type Head interface {
	AddScript(url string, attrs map[string]string) error
	AddScriptDeclaration(js string) error
}

// Evaluate runs the guard checks in order and stops at the first one that fails.
// It returns the directive only when every check passes. Each outcome carries exactly one
// diagnostic.
func Evaluate(cfg Config, rc RenderContext) (*ScriptDirective, []Diagnostic) {
	if !rc.Frontend || !cfg.Enabled {
		return nil, single(msgSkipped, SeverityInfo, ErrSkipped)
	}

	raw, ok := cfg.DomainID.(string)
	if !ok || raw == "" {
		return nil, single(msgMissing, SeverityError, ErrInvalidConfiguration)
	}

	domainID := Sanitize(raw)
	if domainID == "" {
		return nil, single(msgEmpty, SeverityError, ErrInvalidConfiguration)
	}

	if rc.DocumentType != DocumentHTML {
		return nil, single(msgNotHTML, SeverityInfo, ErrSkipped)
	}

	directive := &ScriptDirective{
		URL:        ScriptBase + domainID,
		Attributes: map[string]string{"async": "async"},
	}
	return directive, single(msgSuccess+domainID, SeveritySuccess, nil)
}

// Apply evaluates and hands the directive, if any, to head. Failures from head, including
// panics, are reported as an injection failure diagnostic in place of the success one.
func Apply(cfg Config, rc RenderContext, head Head) []Diagnostic {
	directive, diags := Evaluate(cfg, rc)
	if directive == nil {
		return diags
	}
	if err := addScript(head, directive); err != nil {
		return Failed(err)
	}
	return diags
}

// Failed is the diagnostic reported when a directive could not be put on the page.
func Failed(err error) []Diagnostic {
	return single(msgFailedToAdd+err.Error(), SeverityError, ErrInjectionFailure)
}

func addScript(head Head, d *ScriptDirective) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	if head == nil {
		return errors.New("no document head")
	}
	return head.AddScript(d.URL, d.Attributes)
}

func single(msg string, sev Severity, kind error) []Diagnostic {
	return []Diagnostic{{Message: msg, Severity: sev, Kind: kind}}
}

// trimCutset is PHP's default trim() set.
const trimCutset = " \t\n\r\x00\x0b"

var entityRE = regexp.MustCompile(`^&(?:[A-Za-z][A-Za-z0-9]*|#[0-9]+|#[xX][0-9A-Fa-f]+);`)

// Sanitize trims the value and escapes it for a double quoted HTML attribute.
// Existing character references are left alone so sanitizing twice changes nothing.
// Invalid UTF-8 sanitizes to the empty string.
func Sanitize(s string) string {
	s = strings.Trim(s, trimCutset)
	if !utf8.ValidString(s) {
		return ""
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '&':
			if ref := entityRE.FindString(s[i:]); ref != "" {
				b.WriteString(ref)
				i += len(ref) - 1
				continue
			}
			b.WriteString("&amp;")
		case '<':
			b.WriteString("&lt;")
		case '>':
			b.WriteString("&gt;")
		case '"':
			b.WriteString("&quot;")
		case '\'':
			b.WriteString("&#039;")
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
