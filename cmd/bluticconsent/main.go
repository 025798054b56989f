package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"bluticconsent/internal/config"
	"bluticconsent/internal/consent"
	bhtml "bluticconsent/internal/html"
	"bluticconsent/internal/inject"
	"bluticconsent/internal/logging"
)

func main() {
	var addr string
	var render string
	var tag bool
	var help bool

	flag.Bool("serve", true, "Run HTTP server mode (the default)")
	flag.StringVar(&addr, "addr", ":8080", "Address to bind in server mode")
	flag.StringVar(&render, "render", "", "Inject the banner into an HTML file and print it (- for stdin)")
	flag.BoolVar(&tag, "tag", false, "Print the script tag for the configured domain id")
	flag.BoolVar(&help, "help", false, "Show help message")
	flag.BoolVar(&help, "h", false, "Show help message")
	flag.Parse()

	if help {
		showHelp()
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	switch mode(render, tag) {
	case modeRender:
		if _, err := logging.Setup(context.Background(), &config.Config{}, os.Stderr); err != nil {
			log.Fatalf("failed to set up logging: %v", err)
		}
		if err := runRender(cfg, render, os.Stdout, inject.SlogQueue{}); err != nil {
			log.Fatalf("render error: %v", err)
		}
	case modeTag:
		if err := runTag(cfg, os.Stdout); err != nil {
			log.Fatalf("Error: %v", err)
		}
	default:
		ctx := context.Background()
		providers, err := logging.Setup(ctx, cfg, os.Stdout)
		if err != nil {
			log.Fatalf("failed to set up logging: %v", err)
		}
		err = runServer(ctx, cfg, providers, addr)
		if shutdownErr := providers.Shutdown(context.Background()); shutdownErr != nil {
			log.Printf("logging shutdown: %v", shutdownErr)
		}
		if err != nil {
			log.Fatalf("server error: %v", err)
		}
	}
}

const (
	modeServe  = "serve"
	modeRender = "render"
	modeTag    = "tag"
)

// mode picks what to run. Serving is the default.
func mode(render string, tag bool) string {
	switch {
	case render != "":
		return modeRender
	case tag:
		return modeTag
	}
	return modeServe
}

// runTag prints the tag a static site could paste into its head.
func runTag(cfg *config.Config, w io.Writer) error {
	directive, diags := consent.Evaluate(cfg.Consent(), consent.RenderContext{Frontend: true, DocumentType: consent.DocumentHTML})
	if directive == nil {
		return fmt.Errorf("%s", diags[0])
	}
	_, err := fmt.Fprintln(w, bhtml.ScriptTag(directive))
	return err
}

func showHelp() {
	fmt.Println("bluticconsent - Blutic consent banner injection")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  bluticconsent [-serve] [-addr :8080]")
	fmt.Println("  bluticconsent -render page.html")
	fmt.Println("  bluticconsent -tag")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  -serve          Run the demo site with the banner middleware (default)")
	fmt.Println("  -render         Inject the banner into an HTML file (- for stdin) and print it")
	fmt.Println("  -tag            Print the script tag for BLUTIC_DOMAIN_ID")
	fmt.Println("  -help, -h       Show this help message")
	fmt.Println()
	fmt.Println("Environment:")
	fmt.Println("  BLUTIC_ENABLED, BLUTIC_DOMAIN_ID, BLUTIC_DEBUG, BLUTIC_ADMIN_PREFIXES")
}
