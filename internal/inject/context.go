package inject

import (
	"mime"
	"net/http"
	"strings"

	"bluticconsent/internal/admin"
	"bluticconsent/internal/consent"
)

// RenderContextFor describes a finished response: whether it belongs to the public site and
// what kind of document it is.
func RenderContextFor(r *http.Request, header http.Header, body []byte, adminPrefixes []string) consent.RenderContext {
	return consent.RenderContext{
		Frontend:     !admin.IsAdminPath(r.URL.Path, adminPrefixes),
		DocumentType: documentType(header, body),
	}
}

func documentType(header http.Header, body []byte) string {
	// a compressed body can't be rewritten
	if enc := header.Get("Content-Encoding"); enc != "" && !strings.EqualFold(enc, "identity") {
		return consent.DocumentRaw
	}

	contentType := header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(body)
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return consent.DocumentRaw
	}

	switch {
	case mediaType == "text/html" || mediaType == "application/xhtml+xml":
		return consent.DocumentHTML
	case mediaType == "application/json" || strings.HasSuffix(mediaType, "+json"):
		return consent.DocumentJSON
	case mediaType == "application/rss+xml", mediaType == "application/atom+xml",
		mediaType == "application/xml", mediaType == "text/xml":
		return consent.DocumentFeed
	default:
		return consent.DocumentRaw
	}
}
