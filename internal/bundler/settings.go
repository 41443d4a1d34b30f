package bundler

import (
	"appupdate-go/internal/cstmerr"
	"fmt"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/charmbracelet/huh"
)

var environments = []string{"development", "production"}

// Settings are the release parameters for one platform upload.
type Settings struct {
	APIToken    string
	ProjectID   string
	Environment string
	Version     string
	BuildNumber string
	ForceUpdate bool
	// ForceSet records that ForceUpdate came from a flag or the environment and must not be asked.
	ForceSet bool
}

// Validate checks every field and returns the build number as an integer.
func (s Settings) Validate() (int, error) {
	if err := requireValue("API Token")(s.APIToken); err != nil {
		return 0, cstmerr.NewConfigError(err.Error(), nil)
	}
	if err := requireValue("Project ID")(s.ProjectID); err != nil {
		return 0, cstmerr.NewConfigError(err.Error(), nil)
	}
	if err := validateEnvironment(s.Environment); err != nil {
		return 0, cstmerr.NewConfigError(err.Error(), nil)
	}
	if err := validateVersion(s.Version); err != nil {
		return 0, cstmerr.NewConfigError(err.Error(), nil)
	}
	if err := validateBuildNumber(s.BuildNumber); err != nil {
		return 0, cstmerr.NewConfigError(err.Error(), nil)
	}
	n, _ := strconv.Atoi(strings.TrimSpace(s.BuildNumber))
	return n, nil
}

func requireValue(name string) func(string) error {
	return func(v string) error {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("%s is required", name)
		}
		return nil
	}
}

func validateEnvironment(env string) error {
	for _, e := range environments {
		if env == e {
			return nil
		}
	}
	return fmt.Errorf("environment must be one of %s, got %q", strings.Join(environments, ", "), env)
}

func validateVersion(v string) error {
	if err := requireValue("Version")(v); err != nil {
		return err
	}
	if _, err := semver.NewVersion(strings.TrimSpace(v)); err != nil {
		return fmt.Errorf("version %q is not a valid semantic version (e.g. 1.0.0)", v)
	}
	return nil
}

func validateBuildNumber(v string) error {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n < 0 {
		return fmt.Errorf("build number must be a number")
	}
	return nil
}

// Prompter fills in the settings a platform run is still missing.
type Prompter interface {
	Complete(platform string, s *Settings) error
}

// HuhPrompter asks for missing settings with an interactive form.
type HuhPrompter struct{}

func (HuhPrompter) Complete(platform string, s *Settings) error {
	var fields []huh.Field
	label := func(msg string) string { return fmt.Sprintf("(%s) %s", platform, msg) }

	if strings.TrimSpace(s.APIToken) == "" {
		fields = append(fields, huh.NewInput().
			Title(label("Enter API Token:")).
			EchoMode(huh.EchoModePassword).
			Value(&s.APIToken).
			Validate(requireValue("API Token")))
	}
	if strings.TrimSpace(s.ProjectID) == "" {
		fields = append(fields, huh.NewInput().
			Title(label("Enter Project ID:")).
			Value(&s.ProjectID).
			Validate(requireValue("Project ID")))
	}
	if validateEnvironment(s.Environment) != nil {
		s.Environment = environments[0]
		fields = append(fields, huh.NewSelect[string]().
			Title(label("Select Environment:")).
			Options(huh.NewOptions(environments...)...).
			Value(&s.Environment))
	}
	if validateVersion(s.Version) != nil {
		fields = append(fields, huh.NewInput().
			Title(label("Enter App Version (e.g. 1.0.0):")).
			Value(&s.Version).
			Validate(validateVersion))
	}
	if validateBuildNumber(s.BuildNumber) != nil {
		fields = append(fields, huh.NewInput().
			Title(label("Enter Build Number:")).
			Value(&s.BuildNumber).
			Validate(validateBuildNumber))
	}
	if !s.ForceSet {
		fields = append(fields, huh.NewConfirm().
			Title(label("Force Update?")).
			Value(&s.ForceUpdate))
	}

	if len(fields) == 0 {
		return nil
	}
	fmt.Printf("\nEnter configuration for %s\n\n", strings.ToUpper(platform))
	if err := huh.NewForm(huh.NewGroup(fields...)).Run(); err != nil {
		return cstmerr.NewConfigError("release settings were not provided", err)
	}
	return nil
}

// NoPrompt never asks; missing settings fail validation.
type NoPrompt struct{}

func (NoPrompt) Complete(string, *Settings) error { return nil }
