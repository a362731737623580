package setup

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/thrane20/dillinger/internal/config"
)

// BuildForm constructs the setup wizard form.
func BuildForm(host *HostInfo, answers *Answers, configPath string) *huh.Form {
	if host.HasGPU() && !answers.GPU {
		answers.GPU = true
	}
	groups := []*huh.Group{
		welcomeGroup(host),
		storageGroup(answers),
		serviceGroup(answers),
		authModeGroup(answers),
		passwordGroup(answers),
		dockerGroup(host, answers),
		installerGroup(answers),
		eventsGroup(answers),
		confirmGroup(answers, configPath),
	}
	return huh.NewForm(groups...).WithTheme(huh.ThemeCatppuccin())
}

func welcomeGroup(host *HostInfo) *huh.Group {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Host:      %s\n", host.Hostname))
	if host.DockerErr != nil {
		sb.WriteString(fmt.Sprintf("Docker:    unreachable at %s (%v)\n", host.DockerSocket, host.DockerErr))
	} else {
		sb.WriteString(fmt.Sprintf("Docker:    %s at %s\n", host.DockerVersion, host.DockerSocket))
	}
	g := host.GPU
	sb.WriteString(fmt.Sprintf("GPU:       nvidia=%v intel=%v amd=%v render nodes=%d", g.NvidiaDriverLoaded, g.IntelDriverLoaded, g.AmdDriverLoaded, g.RenderNodes))

	return huh.NewGroup(
		huh.NewNote().
			Title("Dillinger Setup").
			Description("Here's what we detected on this host:\n\n" + sb.String() + "\n\nLet's configure Dillinger."),
	)
}

func storageGroup(answers *Answers) *huh.Group {
	return huh.NewGroup(
		huh.NewInput().
			Title("Data directory").
			Description("Holds the game database. Game files live on volumes you add later.").
			Value(&answers.DataDir).
			Validate(ValidateAbsPath),
		huh.NewInput().
			Title("Log file").
			Description("Leave empty to log to stderr only.").
			Value(&answers.LogFile),
	)
}

func serviceGroup(answers *Answers) *huh.Group {
	return huh.NewGroup(
		huh.NewInput().
			Title("Bind address").
			Value(&answers.BindAddress).
			Validate(func(s string) error {
				if strings.TrimSpace(s) == "" {
					return fmt.Errorf("bind address cannot be empty")
				}
				return nil
			}),
		huh.NewInput().
			Title("Port").
			Value(&answers.PortStr).
			Validate(ValidatePort),
	)
}

func authModeGroup(answers *Answers) *huh.Group {
	return huh.NewGroup(
		huh.NewSelect[string]().
			Title("API authentication").
			Options(
				huh.NewOption("Password", config.AuthModePassword),
				huh.NewOption("None (trusted network only)", config.AuthModeNone),
			).
			Value(&answers.AuthMode),
	)
}

func passwordGroup(answers *Answers) *huh.Group {
	return huh.NewGroup(
		huh.NewInput().
			Title("Password").
			EchoMode(huh.EchoModePassword).
			Value(&answers.Password).
			Validate(func(s string) error {
				if len(s) < 8 {
					return fmt.Errorf("password must be at least 8 characters")
				}
				return nil
			}),
		huh.NewInput().
			Title("Confirm Password").
			EchoMode(huh.EchoModePassword).
			Value(&answers.PasswordConfirm).
			Validate(func(s string) error {
				if s != answers.Password {
					return fmt.Errorf("passwords do not match")
				}
				return nil
			}),
	).WithHideFunc(func() bool { return answers.AuthMode != config.AuthModePassword })
}

func dockerGroup(host *HostInfo, answers *Answers) *huh.Group {
	return huh.NewGroup(
		huh.NewInput().
			Title("Docker socket").
			Value(&answers.DockerSocket),
		huh.NewInput().
			Title("Wine installer image").
			Value(&answers.WineImage),
		huh.NewConfirm().
			Title("Pass GPUs into installer containers?").
			Description("Exposes /dev/dri and NVIDIA device nodes to Wine.").
			Value(&answers.GPU),
	)
}

func installerGroup(answers *Answers) *huh.Group {
	return huh.NewGroup(
		huh.NewInput().
			Title("Installer poll interval").
			Value(&answers.PollIntervalStr).
			Validate(ValidateDuration),
		huh.NewSelect[string]().
			Title("Default Wine architecture").
			Options(
				huh.NewOption("64-bit (win64)", "win64"),
				huh.NewOption("32-bit (win32)", "win32"),
			).
			Value(&answers.DefaultArch),
		huh.NewConfirm().
			Title("Require at least one platform per game?").
			Value(&answers.RequirePlatform),
	)
}

func eventsGroup(answers *Answers) *huh.Group {
	return huh.NewGroup(
		huh.NewInput().
			Title("NATS URL (optional)").
			Description("Publish installation and volume events, e.g. nats://localhost:4222").
			Value(&answers.NATSURL),
	)
}

func confirmGroup(answers *Answers, configPath string) *huh.Group {
	return huh.NewGroup(
		huh.NewNote().
			Title("Ready").
			Description("Setup will write the configuration to " + configPath + "\n" +
				"and create the data directory."),
		huh.NewConfirm().
			Title("Write configuration?").
			Value(&answers.Confirmed),
	)
}
