package bundler

import (
	"appupdate-go/internal/cstmerr"
	SharedModels "appupdate-go/internal/shared"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
)

// platformLayout is where each platform's bundle is written inside the project.
type platformLayout struct {
	dir        string
	bundleName string
	archive    string
}

var layouts = map[string]platformLayout{
	"android": {dir: "android", bundleName: "index.android.bundle", archive: "index.android.bundle.zip"},
	"ios":     {dir: "ios", bundleName: "main.jsbundle", archive: "main.jsbundle.zip"},
}

// Platforms expands a command target (android, ios or all) into the platforms to release.
func Platforms(target string) ([]string, error) {
	switch target {
	case "android", "ios":
		return []string{target}, nil
	case "all":
		return []string{"android", "ios"}, nil
	}
	return nil, cstmerr.NewConfigError(fmt.Sprintf("invalid platform %q, use: android | ios | all", target), nil)
}

// Runner executes a build command inside dir.
type Runner interface {
	Run(ctx context.Context, dir, name string, args ...string) error
}

// ExecRunner runs commands with the caller's stdout and stderr.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, dir, name string, args ...string) error {
	log.Infof("Running: %s %s", name, strings.Join(args, " "))
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// Uploader sends a built archive to the distribution API.
type Uploader interface {
	UploadBundle(ctx context.Context, req SharedModels.UploadRequest) (SharedModels.UploadResponse, error)
}

// Bundler builds, zips and uploads release bundles for a React Native project.
type Bundler struct {
	ProjectDir  string
	ReactNative []string // command that runs the react-native CLI
	EntryFile   string

	runner   Runner
	uploader Uploader
	prompter Prompter
}

func New(projectDir string, runner Runner, uploader Uploader, prompter Prompter) *Bundler {
	if prompter == nil {
		prompter = NoPrompt{}
	}
	return &Bundler{
		ProjectDir:  projectDir,
		ReactNative: []string{"npx", "react-native"},
		EntryFile:   "index.js",
		runner:      runner,
		uploader:    uploader,
		prompter:    prompter,
	}
}

// Run releases every platform in order, each with its own completed copy of base.
// It stops at the first failure.
func (b *Bundler) Run(ctx context.Context, platforms []string, base Settings) error {
	for _, platform := range platforms {
		settings := base
		if err := b.prompter.Complete(platform, &settings); err != nil {
			return err
		}
		buildNumber, err := settings.Validate()
		if err != nil {
			return err
		}

		archive, err := b.Build(ctx, platform)
		if err != nil {
			return err
		}

		resp, err := b.uploader.UploadBundle(ctx, SharedModels.UploadRequest{
			FilePath:    archive,
			ProjectID:   strings.TrimSpace(settings.ProjectID),
			Environment: settings.Environment,
			Platform:    platform,
			Version:     strings.TrimSpace(settings.Version),
			BuildNumber: buildNumber,
			ForceUpdate: settings.ForceUpdate,
			APIToken:    strings.TrimSpace(settings.APIToken),
		})
		if err != nil {
			return err
		}
		pretty, _ := json.MarshalIndent(resp, "", "  ")
		log.Infof("%s bundle uploaded successfully! Response: %s", platform, pretty)
	}
	log.Info("All tasks completed successfully!")
	return nil
}

// Build runs the react-native bundler for platform and returns the path of the zipped output.
// A sourcemap.zip is written next to it.
func (b *Bundler) Build(ctx context.Context, platform string) (string, error) {
	layout, ok := layouts[platform]
	if !ok {
		return "", cstmerr.NewBuildError(platform, fmt.Errorf("unknown platform"))
	}
	log.Infof("Building %s bundle...", platform)

	platformDir := filepath.Join(b.ProjectDir, layout.dir)
	outputDir := filepath.Join(platformDir, "output")
	sourcemap := filepath.Join(platformDir, "sourcemap.js")
	archive := filepath.Join(platformDir, layout.archive)
	defer func() {
		os.RemoveAll(outputDir)
		os.Remove(sourcemap)
	}()

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", cstmerr.NewBuildError(platform, cstmerr.NewFileSystemError(err.Error()))
	}

	if len(b.ReactNative) == 0 {
		return "", cstmerr.NewBuildError(platform, cstmerr.NewConfigError("no react-native command configured", nil))
	}
	args := append(append([]string{}, b.ReactNative[1:]...),
		"bundle",
		"--platform", platform,
		"--dev", "false",
		"--entry-file", b.EntryFile,
		"--bundle-output", filepath.Join(layout.dir, "output", layout.bundleName),
		"--assets-dest", filepath.Join(layout.dir, "output"),
		"--sourcemap-output", filepath.Join(layout.dir, "sourcemap.js"),
	)
	if err := b.runner.Run(ctx, b.ProjectDir, b.ReactNative[0], args...); err != nil {
		return "", cstmerr.NewBuildError(platform, err)
	}

	if err := SharedModels.ZipDir(archive, platformDir, outputDir); err != nil {
		return "", cstmerr.NewBuildError(platform, err)
	}
	if err := SharedModels.ZipFile(filepath.Join(platformDir, "sourcemap.zip"), sourcemap); err != nil {
		return "", cstmerr.NewBuildError(platform, err)
	}

	log.Infof("%s bundle created at %s", platform, archive)
	return archive, nil
}
