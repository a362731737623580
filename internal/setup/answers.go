package setup

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/thrane20/dillinger/internal/config"
)

// Answers holds raw string values from the setup form.
// Numeric fields are strings because huh.Input binds to *string.
type Answers struct {
	// Storage
	DataDir string
	LogFile string

	// Service
	BindAddress string
	PortStr     string

	// Auth
	AuthMode        string
	Password        string
	PasswordConfirm string

	// Docker
	DockerSocket string
	WineImage    string
	GPU          bool

	// Installer
	PollIntervalStr string
	DefaultArch     string
	RequirePlatform bool

	// Events
	NATSURL string

	// Confirmation
	Confirmed bool
}

// DefaultAnswers seeds the form from an existing or default config.
func DefaultAnswers(cfg *config.Config) *Answers {
	return &Answers{
		DataDir:         cfg.DataDir,
		LogFile:         cfg.Log.File,
		BindAddress:     cfg.Service.BindAddress,
		PortStr:         strconv.Itoa(cfg.Service.Port),
		AuthMode:        cfg.Auth.Mode,
		DockerSocket:    cfg.Docker.Socket,
		WineImage:       cfg.Docker.WineImage,
		GPU:             cfg.Docker.GPU,
		PollIntervalStr: cfg.Installer.PollInterval,
		DefaultArch:     cfg.Installer.DefaultArch,
		RequirePlatform: cfg.Installer.RequirePlatform,
		NATSURL:         cfg.Events.NATSURL,
	}
}

// Apply writes the answers onto base and validates the result. A password
// is hashed with bcrypt; an empty password keeps base's existing hash.
func (a *Answers) Apply(base *config.Config) (*config.Config, error) {
	cfg := *base
	port, err := strconv.Atoi(strings.TrimSpace(a.PortStr))
	if err != nil || port < 1 || port > 65535 {
		return nil, fmt.Errorf("port must be 1-65535, got %q", a.PortStr)
	}

	cfg.DataDir = strings.TrimSpace(a.DataDir)
	cfg.Log.File = strings.TrimSpace(a.LogFile)
	cfg.Service.BindAddress = strings.TrimSpace(a.BindAddress)
	cfg.Service.Port = port
	cfg.Auth.Mode = a.AuthMode
	cfg.Docker.Socket = strings.TrimSpace(a.DockerSocket)
	cfg.Docker.WineImage = strings.TrimSpace(a.WineImage)
	cfg.Docker.GPU = a.GPU
	cfg.Installer.PollInterval = strings.TrimSpace(a.PollIntervalStr)
	cfg.Installer.DefaultArch = a.DefaultArch
	cfg.Installer.RequirePlatform = a.RequirePlatform
	cfg.Events.NATSURL = strings.TrimSpace(a.NATSURL)

	switch {
	case cfg.Auth.Mode != config.AuthModePassword:
		cfg.Auth.PasswordHash = ""
	case a.Password != "":
		if a.Password != a.PasswordConfirm {
			return nil, fmt.Errorf("passwords do not match")
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(a.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hashing password: %w", err)
		}
		cfg.Auth.PasswordHash = string(hash)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ValidatePort returns nil if s is a valid port number.
func ValidatePort(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("must be a number")
	}
	if n < 1 || n > 65535 {
		return fmt.Errorf("must be 1-65535")
	}
	return nil
}

// ValidateAbsPath returns nil if s is an absolute path.
func ValidateAbsPath(s string) error {
	if !filepath.IsAbs(strings.TrimSpace(s)) {
		return fmt.Errorf("must be an absolute path")
	}
	return nil
}

// ValidateDuration returns nil if s parses as a duration of at least 100ms.
func ValidateDuration(s string) error {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("must be a duration such as 3s")
	}
	if d < 100*time.Millisecond {
		return fmt.Errorf("must be at least 100ms")
	}
	return nil
}
