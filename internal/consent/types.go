package consent

import "errors"

// Prefix labels every message surfaced to site users or written to logs.
const Prefix = "Blutic Consent: "

const (
	DocumentHTML = "html"
	DocumentJSON = "json"
	DocumentFeed = "feed"
	DocumentRaw  = "raw"
)

var (
	// ErrSkipped marks expected, non-actionable skips (admin pages, disabled plugin, non-HTML output).
	ErrSkipped = errors.New("consent injection skipped")
	// ErrInvalidConfiguration marks a missing or unusable domain id.
	ErrInvalidConfiguration = errors.New("invalid consent configuration")
	// ErrInjectionFailure marks a failure while handing the script to the document head.
	ErrInjectionFailure = errors.New("consent injection failed")
)

// Config is the per-render plugin configuration supplied by the host.
type Config struct {
	Enabled bool
	// DomainID is whatever the host stored for domain_id; only non-empty strings are accepted.
	DomainID any
}

func DefaultConfig() Config {
	return Config{Enabled: true, DomainID: ""}
}

// RenderContext describes the request being rendered.
type RenderContext struct {
	Frontend     bool
	DocumentType string
}

type Severity int

const (
	SeverityInfo Severity = iota
	SeveritySuccess
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeveritySuccess:
		return "success"
	case SeverityError:
		return "error"
	default:
		return "info"
	}
}

// ConsoleMethod is the browser console function used when mirroring a diagnostic.
func (s Severity) ConsoleMethod() string {
	switch s {
	case SeverityError:
		return "error"
	case SeveritySuccess:
		return "log"
	default:
		return "info"
	}
}

type Diagnostic struct {
	Message  string
	Severity Severity
	// Kind is one of the Err* sentinels, nil for success.
	Kind error
}

// String renders the message the way it is shown to users.
func (d Diagnostic) String() string {
	return Prefix + d.Message
}

// ScriptDirective asks the document head to reference an external script.
type ScriptDirective struct {
	URL        string
	Attributes map[string]string
}
