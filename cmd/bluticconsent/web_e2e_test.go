package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"bluticconsent/internal/config"
	"bluticconsent/internal/consent"
	"bluticconsent/internal/inject"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/net/html"
)

const bannerSrc = consent.ScriptBase + "acme123"

func TestWebEndToEndInjectsOnlyOnPublicHTML(t *testing.T) {
	srv := newTestServer(t, testConfig("acme123", false), nil)
	defer srv.Close()

	client := &http.Client{}
	resp := mustGet(t, client, srv.URL+"/ready")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected /ready to return 200 OK, got %d", resp.StatusCode)
	}

	// Step 1: the public home page carries exactly one banner script in its head.
	home := mustGetBody(t, client, srv.URL+"/")
	if got := headScripts(t, home); len(got) != 1 || got[0] != bannerSrc {
		t.Fatalf("expected banner script in head, got %v", got)
	}

	// Step 2: the admin page shows the tag but never loads it.
	admin := mustGetBody(t, client, srv.URL+"/administrator/")
	if got := headScripts(t, admin); len(got) != 0 {
		t.Fatalf("admin page should not load scripts, got %v", got)
	}
	if !strings.Contains(admin, "&lt;script src=&#34;"+bannerSrc) {
		t.Fatalf("admin page should show the escaped tag, got %s", admin)
	}

	// Step 3: the feed is JSON and stays untouched.
	resp = mustGet(t, client, srv.URL+"/feed")
	feed := readAll(t, resp.Body)
	_ = resp.Body.Close()
	if strings.Contains(feed, "<script") || !strings.HasPrefix(feed, "[") {
		t.Fatalf("feed should be plain JSON, got %s", feed)
	}

	// Step 4: metrics count one success, one admin skip and one non-HTML skip.
	resp = mustGet(t, client, srv.URL+"/metrics")
	metrics := readAll(t, resp.Body)
	_ = resp.Body.Close()
	for _, want := range []string{
		`consent_diagnostics_total{kind="injected",severity="success"} 1`,
		`consent_diagnostics_total{kind="skipped",severity="info"} 2`,
		`http_request_duration_seconds_count{`,
		`handler="/feed"`,
	} {
		if !strings.Contains(metrics, want) {
			t.Fatalf("expected metrics to contain %q, got %s", want, metrics)
		}
	}
}

func TestWebDebugMirrorsMisconfiguration(t *testing.T) {
	srv := newTestServer(t, testConfig("   ", true), nil)
	defer srv.Close()

	home := mustGetBody(t, &http.Client{}, srv.URL+"/")
	if got := headScripts(t, home); len(got) != 0 {
		t.Fatalf("no banner expected for blank domain id, got %v", got)
	}
	if !strings.Contains(home, "console.error('Blutic Consent: domain id is empty after sanitization');") {
		t.Fatalf("expected console mirror of the error, got %s", home)
	}
}

func TestWebNotReadyUntilChecksPass(t *testing.T) {
	failing := ReadyFunc(func(context.Context) error { return errors.New("log sink unreachable") })
	srv := newTestServer(t, testConfig("acme123", false), failing)
	defer srv.Close()

	resp := mustGet(t, &http.Client{}, srv.URL+"/ready")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
}

func TestRenderFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "page.html")
	if err := os.WriteFile(path, []byte(`<html><head><title>x</title></head><body></body></html>`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	rec := &inject.Recorder{}
	var out bytes.Buffer
	if err := runRender(testConfig("acme123", false), path, &out, rec); err != nil {
		t.Fatalf("render: %v", err)
	}
	if got := headScripts(t, out.String()); len(got) != 1 || got[0] != bannerSrc {
		t.Fatalf("expected banner script, got %v", got)
	}
	if diags := rec.Diagnostics(); len(diags) != 1 || diags[0].Severity != consent.SeveritySuccess {
		t.Fatalf("expected one success diagnostic, got %v", diags)
	}
}

func TestRunTag(t *testing.T) {
	var out bytes.Buffer
	if err := runTag(testConfig("acme123", false), &out); err != nil {
		t.Fatalf("tag: %v", err)
	}
	if strings.TrimSpace(out.String()) != `<script src="`+bannerSrc+`" async="async"></script>` {
		t.Fatalf("unexpected tag %q", out.String())
	}

	err := runTag(testConfig("", false), &out)
	if err == nil || !strings.Contains(err.Error(), "domain id is missing or invalid") {
		t.Fatalf("expected missing domain error, got %v", err)
	}
}

func testConfig(domainID string, debug bool) *config.Config {
	return &config.Config{
		Blutic: config.BluticConfig{Enabled: true, DomainID: domainID, Debug: debug},
		Admin:  config.AdminConfig{PathPrefixes: []string{"/administrator"}},
	}
}

func newTestServer(t *testing.T, cfg *config.Config, ready Readyable) *httptest.Server {
	t.Helper()
	handler, err := newHandler(cfg, prometheus.NewRegistry(), ready)
	if err != nil {
		t.Fatalf("failed to create handler: %v", err)
	}
	return httptest.NewServer(handler)
}

func mustGet(t *testing.T, client *http.Client, url string) *http.Response {
	t.Helper()
	resp, err := client.Get(url)
	if err != nil {
		t.Fatalf("GET %s failed: %v", url, err)
	}
	return resp
}

func mustGetBody(t *testing.T, client *http.Client, url string) string {
	t.Helper()
	resp := mustGet(t, client, url)
	defer func() {
		if err := resp.Body.Close(); err != nil {
			t.Fatalf("failed to close response body: %v", err)
		}
	}()
	if resp.StatusCode != http.StatusOK {
		body := readAll(t, resp.Body)
		t.Fatalf("GET %s expected 200, got %d: %s", url, resp.StatusCode, body)
	}
	body := readAll(t, resp.Body)
	requireValidHTML(t, url, resp.Header.Get("Content-Type"), body)
	return body
}

func readAll(t *testing.T, r io.Reader) string {
	t.Helper()
	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(data)
}

func requireValidHTML(t *testing.T, url, contentType, body string) {
	t.Helper()
	if strings.TrimSpace(body) == "" {
		t.Fatalf("GET %s returned empty body", url)
	}
	if contentType != "" && !strings.Contains(strings.ToLower(contentType), "text/html") {
		t.Fatalf("GET %s expected HTML content-type, got %q", url, contentType)
	}
	if !strings.Contains(strings.ToLower(body), "<html") {
		t.Fatalf("GET %s expected HTML body, missing <html> tag", url)
	}
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		t.Fatalf("GET %s returned invalid HTML: %v", url, err)
	}
	if findElement(doc, "body") == nil {
		t.Fatalf("GET %s expected HTML body element", url)
	}
}

// headScripts lists the src of every script element in the head.
func headScripts(t *testing.T, body string) []string {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		t.Fatalf("invalid HTML: %v", err)
	}
	head := findElement(doc, "head")
	if head == nil {
		t.Fatal("missing head")
	}
	var srcs []string
	for c := head.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || c.Data != "script" {
			continue
		}
		for _, a := range c.Attr {
			if a.Key == "src" {
				srcs = append(srcs, a.Val)
			}
		}
	}
	return srcs
}

func findElement(n *html.Node, name string) *html.Node {
	if n.Type == html.ElementNode && n.Data == name {
		return n
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if found := findElement(child, name); found != nil {
			return found
		}
	}
	return nil
}

func TestModeDefaultsToServe(t *testing.T) {
	cases := []struct {
		render string
		tag    bool
		want   string
	}{
		{"", false, modeServe},
		{"page.html", false, modeRender},
		{"-", true, modeRender},
		{"", true, modeTag},
	}
	for _, c := range cases {
		if got := mode(c.render, c.tag); got != c.want {
			t.Fatalf("mode(%q, %v) = %q, want %q", c.render, c.tag, got, c.want)
		}
	}
}
