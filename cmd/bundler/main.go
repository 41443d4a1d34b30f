package main

import (
	"appupdate-go/configs/config"
	"appupdate-go/internal/apiclient"
	"appupdate-go/internal/bundler"
	"appupdate-go/internal/cstmerr"
	"os"
	"os/signal"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var debug bool

// releaseArgs are the flags that are not release settings.
type releaseArgs struct {
	configPath     string
	projectDir     string
	reactNative    string
	nonInteractive bool
}

func newRootCmd(v *viper.Viper) *cobra.Command {
	ra := releaseArgs{}

	rootCmd := &cobra.Command{
		Use:   "appupdate-bundle",
		Short: "Build and upload React Native OTA bundles",
		Long:  "Builds the JavaScript bundle for android, ios or both, zips it and uploads it to the update server.",
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if debug {
				log.SetLevel(log.DebugLevel)
			}
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			_ = cmd.Usage()
			return cstmerr.NewConfigError("please specify a platform: android | ios | all", nil)
		},
		SilenceUsage: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.BoolVar(&debug, "debug", false, "enable debug level logging")
	flags.StringVarP(&ra.configPath, "config", "c", "", "Path to config.toml")
	flags.StringVarP(&ra.projectDir, "project-dir", "p", ".", "React Native project root")
	flags.StringVar(&ra.reactNative, "react-native", "npx react-native", "Command that runs the react-native CLI")
	flags.BoolVar(&ra.nonInteractive, "non-interactive", false, "Fail instead of prompting for missing settings")
	flags.String("token", "", "API token used to authenticate the upload")
	flags.String("project", "", "Project ID")
	flags.String("environment", "", "Target environment (development or production)")
	flags.String("app-version", "", "App version (semantic version, e.g. 1.0.0)")
	flags.String("build-number", "", "Build number")
	flags.Bool("force", false, "Mark the bundle as a forced update")
	for name, key := range releaseKeys {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(err)
		}
	}

	for _, target := range []string{"android", "ios", "all"} {
		rootCmd.AddCommand(newReleaseCmd(v, &ra, target))
	}
	return rootCmd
}

func newReleaseCmd(v *viper.Viper, ra *releaseArgs, target string) *cobra.Command {
	short := "Release the " + target + " bundle"
	if target == "all" {
		short = "Release the android and ios bundles"
	}
	return &cobra.Command{
		Use:     target,
		Short:   short,
		Example: "appupdate-bundle " + target + " --project my-app --environment production --app-version 1.2.0 --build-number 42",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer cancel()

			platforms, err := bundler.Platforms(target)
			if err != nil {
				return err
			}
			cfg, err := config.LoadWith(v, ra.configPath)
			if err != nil {
				return err
			}

			var prompter bundler.Prompter = bundler.HuhPrompter{}
			if ra.nonInteractive {
				prompter = bundler.NoPrompt{}
			}
			b := bundler.New(ra.projectDir, bundler.ExecRunner{}, apiclient.New(cfg), prompter)
			if fields := strings.Fields(ra.reactNative); len(fields) > 0 {
				b.ReactNative = fields
			}
			return b.Run(ctx, platforms, settingsFrom(v))
		},
	}
}

// releaseKeys maps flag names to viper keys; the APPUPDATE_RELEASE_* variables set the same keys.
var releaseKeys = map[string]string{
	"token":        "release.api_token",
	"project":      "release.project_id",
	"environment":  "release.environment",
	"app-version":  "release.version",
	"build-number": "release.build_number",
	"force":        "release.force_update",
}

// settingsFrom reads the release settings bound to flags, environment and config file.
func settingsFrom(v *viper.Viper) bundler.Settings {
	return bundler.Settings{
		APIToken:    v.GetString("release.api_token"),
		ProjectID:   v.GetString("release.project_id"),
		Environment: v.GetString("release.environment"),
		Version:     v.GetString("release.version"),
		BuildNumber: v.GetString("release.build_number"),
		ForceUpdate: v.GetBool("release.force_update"),
		ForceSet:    v.IsSet("release.force_update"),
	}
}

func main() {
	if err := newRootCmd(config.New()).Execute(); err != nil {
		log.Errorf("Error: %v", err)
		os.Exit(1)
	}
}
