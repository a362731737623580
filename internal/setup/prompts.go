package setup

import (
	"fmt"

	"github.com/charmbracelet/huh"

	"github.com/thrane20/dillinger/internal/lutris"
)

// SelectInstaller asks the user to pick one of several Lutris installers.
func SelectInstaller(installers []lutris.Installer) (string, error) {
	if len(installers) == 0 {
		return "", fmt.Errorf("no lutris installers attached")
	}
	opts := make([]huh.Option[string], 0, len(installers))
	for _, inst := range installers {
		label := fmt.Sprintf("%s (%s)", inst.Slug, inst.Version)
		if inst.Notes != "" {
			label += " - " + inst.Notes
		}
		opts = append(opts, huh.NewOption(label, inst.ID))
	}
	var choice string
	err := huh.NewForm(huh.NewGroup(
		huh.NewSelect[string]().
			Title("Lutris installer").
			Options(opts...).
			Value(&choice),
	)).WithTheme(huh.ThemeCatppuccin()).Run()
	if err != nil {
		return "", err
	}
	return choice, nil
}

// Confirm asks a yes/no question, defaulting to no.
func Confirm(title, description string) (bool, error) {
	var ok bool
	err := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title(title).
			Description(description).
			Value(&ok),
	)).WithTheme(huh.ThemeCatppuccin()).Run()
	return ok, err
}
