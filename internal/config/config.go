// Package config holds the build settings: toolchain URLs, SDK components,
// architectures and dependency recipes.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"

	"github.com/liballeg/allegro-android/internal/recipe"
	"github.com/liballeg/allegro-android/internal/runner"
	"github.com/pelletier/go-toml/v2"
)

// FileName is the settings file looked up in the destination path.
const FileName = "allegro-android.toml"

// Settings are fixed once loaded.
type Settings struct {
	JDKURL string `toml:"jdk_url"`
	SDKURL string `toml:"sdk_url"`
	NDKURL string `toml:"ndk_url"`

	// SDKComponents are passed to sdkmanager.
	SDKComponents []string `toml:"sdk_components"`
	// BuildTools is the build-tools version written to build.gradle. Empty
	// selects the newest one installed in the SDK.
	BuildTools string `toml:"build_tools"`
	// TargetAPI is the compile and target SDK of the generated project and
	// the ANDROID_TARGET of the Allegro build.
	TargetAPI    int    `toml:"target_api"`
	GradlePlugin string `toml:"gradle_plugin"`

	Architectures []string       `toml:"architectures"`
	MinAPI        map[string]int `toml:"min_api"`

	Jobs      int    `toml:"jobs"`
	OnFailure string `toml:"on_failure"`

	Recipes []recipe.Recipe `toml:"recipe"`
}

// Default returns the compiled in settings.
func Default() *Settings {
	return &Settings{
		JDKURL: "https://download.java.net/java/GA/jdk17.0.2/dfd4a8d0985749f896bed50d7138ee7f/8/GPL/openjdk-17.0.2_linux-x64_bin.tar.gz",
		SDKURL: "https://dl.google.com/android/repository/commandlinetools-linux-9477386_latest.zip",
		NDKURL: "https://dl.google.com/android/repository/android-ndk-r25c-linux.zip",
		SDKComponents: []string{
			"platform-tools",
			"build-tools;33.0.2",
			"platforms;android-33",
			"cmake;3.22.1",
		},
		BuildTools:    "33.0.2",
		TargetAPI:     33,
		GradlePlugin:  "7.4.2",
		Architectures: []string{"armeabi-v7a", "arm64-v8a", "x86", "x86_64"},
		MinAPI: map[string]int{
			"armeabi-v7a": 19,
			"arm64-v8a":   21,
			"x86":         19,
			"x86_64":      21,
		},
		Jobs:      runtime.NumCPU(),
		OnFailure: "continue",
		Recipes:   recipe.Defaults(),
	}
}

// Load returns the default settings overridden by path, when given, or by
// FileName in dir when that exists.
func Load(path, dir string) (*Settings, error) {
	s := Default()
	explicit := path != ""
	if !explicit {
		path = filepath.Join(dir, FileName)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}
	if err := s.Decode(data); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return s, nil
}

// Decode applies a TOML document on top of s. Scalars and lists replace
// their defaults. Recipes are merged by name and min_api by architecture.
func (s *Settings) Decode(data []byte) error {
	minAPI, recipes := s.MinAPI, s.Recipes
	s.MinAPI, s.Recipes = nil, nil

	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	err := dec.Decode(s)

	for arch, api := range s.MinAPI {
		minAPI[arch] = api
	}
	s.MinAPI = minAPI
	s.Recipes = recipe.Merge(recipes, s.Recipes)
	if err != nil {
		return err
	}
	return s.Validate()
}

// Validate checks the settings for values that cannot work.
func (s *Settings) Validate() error {
	if s.JDKURL == "" || s.SDKURL == "" || s.NDKURL == "" {
		return errors.New("jdk_url, sdk_url and ndk_url must be set")
	}
	if s.Jobs <= 0 {
		return fmt.Errorf("jobs must be positive, got %d", s.Jobs)
	}
	if _, err := runner.ParsePolicy(s.OnFailure); err != nil {
		return err
	}
	for _, name := range s.Architectures {
		if _, ok := knownArchs[name]; !ok {
			return fmt.Errorf("unknown architecture %q", name)
		}
	}
	for i := range s.Recipes {
		if err := s.Recipes[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Policy returns the configured failure policy.
func (s *Settings) Policy() runner.Policy {
	p, _ := runner.ParsePolicy(s.OnFailure)
	return p
}
