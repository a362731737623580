// Package setup is the interactive first-run wizard and the small prompts
// the CLI uses.
package setup

import (
	"context"
	"fmt"
	"os"

	"github.com/thrane20/dillinger/internal/config"
)

// Run is the entrypoint of "dillinger init". It seeds the form from the
// existing config at path, if any, and writes the result back.
func Run(ctx context.Context, path string) error {
	base, err := config.LoadOrDefault(path)
	if err != nil {
		return fmt.Errorf("loading existing config: %w", err)
	}

	fmt.Println("Probing docker and GPU drivers...")
	host := Discover(ctx, base.Docker.Socket)

	answers := DefaultAnswers(base)
	form := BuildForm(host, answers, path)
	if err := form.RunWithContext(ctx); err != nil {
		return fmt.Errorf("setup cancelled: %w", err)
	}
	if !answers.Confirmed {
		fmt.Println("Setup cancelled.")
		return nil
	}

	cfg, err := answers.Apply(base)
	if err != nil {
		return fmt.Errorf("invalid input: %w", err)
	}
	if err := os.MkdirAll(cfg.DataDir, 0750); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	if err := cfg.Save(path); err != nil {
		return err
	}

	fmt.Println()
	fmt.Println("Setup complete!")
	fmt.Println()
	fmt.Printf("  Config:    %s\n", path)
	fmt.Printf("  Database:  %s\n", cfg.DBPath())
	fmt.Printf("  API:       http://%s/api/health\n", cfg.ListenAddr())
	fmt.Printf("  Start:     dillinger serve --config %s\n", path)
	fmt.Println()
	return nil
}
