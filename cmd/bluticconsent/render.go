package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"bluticconsent/internal/config"
	"bluticconsent/internal/consent"
	"bluticconsent/internal/inject"
)

// runRender treats the file as a public HTML page and writes it back with the banner applied.
func runRender(cfg *config.Config, path string, w io.Writer, queue inject.MessageQueue) error {
	var page []byte
	var err error
	if path == "-" {
		page, err = io.ReadAll(os.Stdin)
	} else {
		page, err = os.ReadFile(path)
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	mw := inject.New(inject.Options{
		Params: func(context.Context) consent.Config { return cfg.Consent() },
		Debug:  cfg.Blutic.Debug,
		Queue:  queue,
	})

	req, err := http.NewRequest(http.MethodGet, "/", nil)
	if err != nil {
		return err
	}
	header := http.Header{}
	header.Set("Content-Type", "text/html; charset=utf-8")

	_, err = w.Write(mw.Render(req, header, page))
	return err
}
