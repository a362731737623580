// Package lutris reads community installer scripts and turns a selected
// script into the Wine settings it implies.
package lutris

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Installer is one community installer attached to a platform config.
// It is reference data: it is selected, never edited.
type Installer struct {
	ID      string `json:"id" yaml:"id"`
	Slug    string `json:"slug" yaml:"slug"`
	Version string `json:"version" yaml:"version"`
	Notes   string `json:"notes,omitempty" yaml:"notes,omitempty"`
	Script  Script `json:"script" yaml:"script"`
}

// Script is the "script" section of an installer.
type Script struct {
	Game      GameSection `json:"game" yaml:"game"`
	Wine      WineSection `json:"wine" yaml:"wine"`
	Files     []File      `json:"files,omitempty" yaml:"files,omitempty"`
	Installer []Task      `json:"installer,omitempty" yaml:"installer,omitempty"`
}

type GameSection struct {
	Exe        string `json:"exe,omitempty" yaml:"exe,omitempty"`
	Args       string `json:"args,omitempty" yaml:"args,omitempty"`
	Arch       string `json:"arch,omitempty" yaml:"arch,omitempty"`
	Prefix     string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	WorkingDir string `json:"working_dir,omitempty" yaml:"working_dir,omitempty"`
}

type WineSection struct {
	Version   string            `json:"version,omitempty" yaml:"version,omitempty"`
	Overrides map[string]string `json:"overrides,omitempty" yaml:"overrides,omitempty"`
}

// File is an entry of the script's files list. Lutris writes these either
// as "id: url" or as "id: {url: ..., filename: ...}".
type File struct {
	ID       string `json:"id"`
	URL      string `json:"url,omitempty"`
	Filename string `json:"filename,omitempty"`
}

// UserProvided reports whether the file must be supplied by the user
// ("N/A:<prompt>" in Lutris scripts).
func (f File) UserProvided() bool {
	return strings.HasPrefix(f.URL, "N/A")
}

func (f *File) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode || len(node.Content) != 2 {
		return fmt.Errorf("line %d: file entry must be a single-key mapping", node.Line)
	}
	f.ID = node.Content[0].Value
	val := node.Content[1]
	switch val.Kind {
	case yaml.ScalarNode:
		f.URL = val.Value
	case yaml.MappingNode:
		var spec struct {
			URL      string `yaml:"url"`
			Filename string `yaml:"filename"`
		}
		if err := val.Decode(&spec); err != nil {
			return fmt.Errorf("file %q: %w", f.ID, err)
		}
		f.URL = spec.URL
		f.Filename = spec.Filename
	default:
		return fmt.Errorf("file %q: unsupported value", f.ID)
	}
	return nil
}

// Step kinds found in the installer list.
const (
	StepTask     = "task"
	StepExecute  = "execute"
	StepMove     = "move"
	StepMerge    = "merge"
	StepExtract  = "extract"
	StepChmodx   = "chmodx"
	StepDownload = "download"
)

// Task is one installer step. Kind is the step key ("task", "execute",
// "move", ...). For Kind == "task" Name holds the task name, e.g.
// "winetricks" or "create_prefix". Scalar parameters land in Params.
type Task struct {
	Kind   string            `json:"kind"`
	Name   string            `json:"name,omitempty"`
	Params map[string]string `json:"params,omitempty"`
}

func (t *Task) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode || len(node.Content) != 2 {
		return fmt.Errorf("line %d: installer step must be a single-key mapping", node.Line)
	}
	t.Kind = node.Content[0].Value
	t.Params = make(map[string]string)
	val := node.Content[1]
	switch val.Kind {
	case yaml.ScalarNode:
		// "chmodx: $GAMEDIR/start.sh"
		t.Params["file"] = val.Value
	case yaml.MappingNode:
		for i := 0; i+1 < len(val.Content); i += 2 {
			k, v := val.Content[i], val.Content[i+1]
			if v.Kind != yaml.ScalarNode {
				continue
			}
			t.Params[k.Value] = v.Value
		}
	}
	if t.Kind == StepTask {
		t.Name = t.Params["name"]
		delete(t.Params, "name")
	}
	return nil
}

// envelope is the full installer document as served by Lutris.
type envelope struct {
	ID       interface{} `yaml:"id"`
	Slug     string      `yaml:"slug"`
	GameSlug string      `yaml:"game_slug"`
	Name     string      `yaml:"name"`
	Version  string      `yaml:"version"`
	Runner   string      `yaml:"runner"`
	Notes    string      `yaml:"notes"`
	Script   *Script     `yaml:"script"`
}

// ParseScript decodes a script from YAML or JSON. Both the bare script and
// the full installer document are accepted.
func ParseScript(data []byte) (*Script, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("empty installer script")
	}
	var env envelope
	if err := yaml.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("parsing installer script: %w", err)
	}
	if env.Script != nil {
		return env.Script, nil
	}
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing installer script: %w", err)
	}
	return &s, nil
}

// ParseInstaller decodes a full installer document. fallbackID is used when
// the document carries no id of its own (e.g. a local file).
func ParseInstaller(data []byte, fallbackID string) (*Installer, error) {
	var env envelope
	if err := yaml.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("parsing installer: %w", err)
	}
	if env.Script == nil {
		return nil, fmt.Errorf("installer has no script section")
	}
	inst := &Installer{
		ID:      fallbackID,
		Slug:    env.Slug,
		Version: env.Version,
		Notes:   env.Notes,
		Script:  *env.Script,
	}
	if env.ID != nil {
		inst.ID = fmt.Sprintf("%v", env.ID)
	}
	if inst.Slug == "" {
		inst.Slug = env.GameSlug
	}
	if inst.ID == "" {
		inst.ID = inst.Slug
	}
	if inst.ID == "" {
		return nil, fmt.Errorf("installer has no id or slug")
	}
	return inst, nil
}
