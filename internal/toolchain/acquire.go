package toolchain

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/liballeg/allegro-android/internal/config"
	"github.com/liballeg/allegro-android/internal/env"
	"github.com/liballeg/allegro-android/internal/fetch"
	"github.com/liballeg/allegro-android/internal/msg"
	"github.com/liballeg/allegro-android/internal/recipe"
	"github.com/liballeg/allegro-android/internal/runner"
	"golang.org/x/mod/semver"
)

// sdkSub is where the command-line tools must live inside the SDK for
// sdkmanager to find its root.
var sdkSub = filepath.Join("cmdline-tools", "latest")

// Locate returns the toolchain that Acquire would unpack below f.Dir,
// without downloading anything.
func Locate(f *fetch.Fetcher, s *config.Settings, base env.Env) *Toolchain {
	folder := func(url string) string {
		return filepath.Join(f.Dir, fetch.FolderName(recipe.ArchiveName(url)))
	}
	return New(folder(s.JDKURL), folder(s.SDKURL), folder(s.NDKURL), base)
}

// Acquire downloads and unpacks the JDK, SDK command-line tools and NDK.
// Archives and folders that already exist are reused.
func Acquire(ctx context.Context, f *fetch.Fetcher, s *config.Settings, base env.Env) (*Toolchain, error) {
	msg.Step("toolchain")
	jdk, err := f.Unpack(ctx, s.JDKURL, "", "")
	if err != nil {
		return nil, err
	}
	sdk, err := f.Unpack(ctx, s.SDKURL, "", sdkSub)
	if err != nil {
		return nil, err
	}
	ndk, err := f.Unpack(ctx, s.NDKURL, "", "")
	if err != nil {
		return nil, err
	}
	return New(jdk, sdk, ndk, base), nil
}

// licenseAnswers accepts every license sdkmanager asks about.
var licenseAnswers = []byte(strings.Repeat("y\n", 32))

// InstallComponents accepts the SDK licenses and installs components with
// sdkmanager.
func (t *Toolchain) InstallComponents(ctx context.Context, r runner.Runner, components []string) error {
	root := "--sdk_root=" + t.SDK
	e := t.HostEnv()
	err := r.Run(ctx, runner.Cmd{
		Name:  t.SDKManager(),
		Args:  []string{root, "--licenses"},
		Env:   e,
		Stdin: licenseAnswers,
	})
	if err != nil {
		return fmt.Errorf("failed to accept SDK licenses: %w", err)
	}
	if len(components) == 0 {
		return nil
	}
	err = r.Run(ctx, runner.Cmd{
		Name:  t.SDKManager(),
		Args:  append([]string{root}, components...),
		Env:   e,
		Stdin: licenseAnswers,
	})
	if err != nil {
		return fmt.Errorf("failed to install SDK components: %w", err)
	}
	return nil
}

// LatestBuildTools returns the newest build-tools version installed in sdk.
func LatestBuildTools(sdk string) (string, error) {
	entries, err := os.ReadDir(filepath.Join(sdk, "build-tools"))
	if err != nil {
		return "", err
	}
	best := ""
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		v := "v" + e.Name()
		if !semver.IsValid(v) {
			continue
		}
		if best == "" || semver.Compare(v, best) > 0 {
			best = v
		}
	}
	if best == "" {
		return "", fmt.Errorf("no build-tools found in %q", sdk)
	}
	return strings.TrimPrefix(best, "v"), nil
}
