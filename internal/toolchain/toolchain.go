// Package toolchain provisions the JDK, Android SDK and NDK and composes the
// cross-compilation environment of each ABI.
package toolchain

import (
	"fmt"
	"maps"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"strings"

	"github.com/liballeg/allegro-android/internal/config"
	"github.com/liballeg/allegro-android/internal/env"
)

// Toolchain locates the unpacked JDK, SDK and NDK.
type Toolchain struct {
	JDK string
	SDK string
	NDK string

	// Base is the environment every ABI environment starts from.
	Base env.Env
}

// New returns a toolchain for the given install locations. base is copied.
func New(jdk, sdk, ndk string, base env.Env) *Toolchain {
	return &Toolchain{JDK: jdk, SDK: sdk, NDK: ndk, Base: base.Clone()}
}

// hostTag names the NDK prebuilt directory. The NDK only ships x86_64 host
// binaries; Apple silicon runs them translated.
func hostTag() string {
	return runtime.GOOS + "-x86_64"
}

// Root returns the LLVM prebuilt toolchain directory of the NDK.
func (t *Toolchain) Root() string {
	return filepath.Join(t.NDK, "toolchains", "llvm", "prebuilt", hostTag())
}

// Sysroot returns the NDK sysroot.
func (t *Toolchain) Sysroot() string {
	return filepath.Join(t.Root(), "sysroot")
}

// CMakeFile returns the Android toolchain file shipped with the NDK.
func (t *Toolchain) CMakeFile() string {
	return filepath.Join(t.NDK, "build", "cmake", "android.toolchain.cmake")
}

// SDKManager returns the sdkmanager script of the command-line tools.
func (t *Toolchain) SDKManager() string {
	return filepath.Join(t.SDK, "cmdline-tools", "latest", "bin", "sdkmanager")
}

// toolPath returns the directories Env puts in front of PATH.
func (t *Toolchain) toolPath() []string {
	return []string{
		filepath.Join(t.Root(), "bin"),
		t.NDK,
		filepath.Join(t.SDK, "cmdline-tools", "latest", "bin"),
		filepath.Join(t.SDK, "platform-tools"),
		filepath.Join(t.JDK, "bin"),
	}
}

// HostEnv returns the environment for SDK and Gradle commands, which need
// the JDK and SDK but no cross compiler.
func (t *Toolchain) HostEnv() env.Env {
	e := t.Base.Clone()
	t.setHome(e)
	e.Prepend("PATH", t.toolPath()...)
	return e
}

func (t *Toolchain) setHome(e env.Env) {
	e.Set("ANDROID_NDK_ROOT", t.NDK)
	e.Set("ANDROID_NDK_HOME", t.NDK)
	e.Set("ANDROID_HOME", t.SDK)
	e.Set("ANDROID_SDK_ROOT", t.SDK)
	e.Set("JAVA_HOME", t.JDK)
}

// Env returns the complete build environment for a. It always starts over
// from Base, so the result never carries settings of another ABI.
func (t *Toolchain) Env(a config.Arch) env.Env {
	bin := filepath.Join(t.Root(), "bin")
	cc := t.Compiler(a)
	pc := strings.Join([]string{
		filepath.Join(a.Prefix, "lib", "pkgconfig"),
		filepath.Join(a.Prefix, "share", "pkgconfig"),
	}, string(filepath.ListSeparator))

	e := t.Base.Merge(env.Env{
		"CC":      cc,
		"CXX":     cc + "++",
		"AS":      cc,
		"AR":      filepath.Join(bin, "llvm-ar"),
		"LD":      filepath.Join(bin, "ld.lld"),
		"NM":      filepath.Join(bin, "llvm-nm"),
		"RANLIB":  filepath.Join(bin, "llvm-ranlib"),
		"STRIP":   filepath.Join(bin, "llvm-strip"),
		"OBJDUMP": filepath.Join(bin, "llvm-objdump"),
		"SYSROOT": t.Sysroot(),

		"CFLAGS":   "-fPIC",
		"CXXFLAGS": "-fPIC",
		"CPPFLAGS": "-I" + filepath.Join(a.Prefix, "include"),
		"LDFLAGS":  "-L" + filepath.Join(a.Prefix, "lib"),

		"PKG_CONFIG_LIBDIR": pc,
		"PKG_CONFIG_PATH":   pc,
	})
	t.setHome(e)
	e.Prepend("PATH", t.toolPath()...)
	return e
}

// Compiler returns the clang driver for a, see LatestCompiler. When the NDK
// has no matching driver the name for a.MinAPI is returned, so the failure
// shows up in the build log rather than here.
func (t *Toolchain) Compiler(a config.Arch) string {
	if cc, err := LatestCompiler(t.Root(), a); err == nil {
		return cc
	}
	return filepath.Join(t.Root(), "bin", a.Compiler(a.MinAPI))
}

// LatestCompiler returns the clang driver in root/bin for the highest API
// level not above a.MinAPI. When every driver targets a newer API the
// lowest one is used.
func LatestCompiler(root string, a config.Arch) (string, error) {
	bin := filepath.Join(root, "bin")
	drivers, err := filepath.Glob(filepath.Join(bin, a.Clang+"*-clang"))
	if err != nil {
		return "", err
	}
	byAPI := make(map[int]string, len(drivers))
	for _, d := range drivers {
		level := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(d), a.Clang), "-clang")
		if api, err := strconv.Atoi(level); err == nil {
			byAPI[api] = d
		}
	}
	if len(byAPI) == 0 {
		return "", fmt.Errorf("no NDK compiler for %s in %s", a.Name, bin)
	}
	apis := slices.Sorted(maps.Keys(byAPI))
	i, found := slices.BinarySearch(apis, a.MinAPI)
	switch {
	case found:
		return byAPI[a.MinAPI], nil
	case i == 0:
		return byAPI[apis[0]], nil
	}
	return byAPI[apis[i-1]], nil
}
