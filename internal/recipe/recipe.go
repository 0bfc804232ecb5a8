// Package recipe describes how each native dependency is fetched and built.
//
// Recipes are data. The default set lives in Defaults; the settings file can
// replace any of them by name or add new ones.
package recipe

import (
	"errors"
	"fmt"
	"os"
	"path"
	"strconv"
	"strings"

	"github.com/expr-lang/expr"
)

// Kind selects the build system driving a recipe.
type Kind string

const (
	Autotools Kind = "autotools"
	CMake     Kind = "cmake"
	Headers   Kind = "headers"
)

// Patch is a literal replacement applied to File before configuring.
type Patch struct {
	File string `toml:"file"`
	Old  string `toml:"old"`
	New  string `toml:"new"`
}

// Extra adds Args when the When expression holds.
type Extra struct {
	When string   `toml:"when"`
	Args []string `toml:"args"`
}

// Recipe is one native dependency.
type Recipe struct {
	Name string `toml:"name"`
	URL  string `toml:"url"`

	// Archive overrides the file name derived from URL.
	Archive string `toml:"archive,omitempty"`

	Kind    Kind     `toml:"kind"`
	Args    []string `toml:"args,omitempty"`
	Patches []Patch  `toml:"patch,omitempty"`
	Extras  []Extra  `toml:"extra,omitempty"`

	// Headers lists the files a Headers recipe copies to <prefix>/include.
	Headers []string `toml:"headers,omitempty"`

	// Vars maps CMake cache variables of the Allegro build to paths
	// relative to the prefix. Several paths are separated by ';'.
	Vars map[string]string `toml:"vars,omitempty"`
}

// Cond is the environment of Extra.When expressions.
type Cond struct {
	Arch  string `expr:"arch"`
	API   int    `expr:"api"`
	Debug bool   `expr:"debug"`
}

var (
	ErrNoName = errors.New("recipe: missing name")
	ErrNoURL  = errors.New("recipe: missing url")
)

// ArchiveName returns the downloaded file name.
func (r *Recipe) ArchiveName() string {
	if r.Archive != "" {
		return r.Archive
	}
	return ArchiveName(r.URL)
}

// ArchiveName returns the last path element of url, without query.
func ArchiveName(url string) string {
	if i := strings.IndexAny(url, "?#"); i >= 0 {
		url = url[:i]
	}
	return path.Base(url)
}

// Validate checks that r can be built.
func (r *Recipe) Validate() error {
	if r.Name == "" {
		return ErrNoName
	}
	if r.URL == "" {
		return fmt.Errorf("%w: %s", ErrNoURL, r.Name)
	}
	switch r.Kind {
	case Autotools, CMake:
	case Headers:
		if len(r.Headers) == 0 {
			return fmt.Errorf("recipe %s: header-only recipe lists no headers", r.Name)
		}
	default:
		return fmt.Errorf("recipe %s: unknown kind %q", r.Name, r.Kind)
	}
	for _, p := range r.Patches {
		if p.File == "" || p.Old == "" {
			return fmt.Errorf("recipe %s: patch needs file and old text", r.Name)
		}
	}
	for _, x := range r.Extras {
		if _, err := expr.Compile(x.When, expr.Env(Cond{}), expr.AsBool()); err != nil {
			return fmt.Errorf("recipe %s: bad condition %q: %w", r.Name, x.When, err)
		}
	}
	return nil
}

// ArgsFor returns the configure arguments for one architecture: Args followed
// by every matching Extra, with $prefix, $host, $api and $arch expanded.
func (r *Recipe) ArgsFor(c Cond, prefix, host string) ([]string, error) {
	args := append([]string(nil), r.Args...)
	for _, x := range r.Extras {
		ok, err := evalCond(x.When, c)
		if err != nil {
			return nil, fmt.Errorf("recipe %s: %w", r.Name, err)
		}
		if ok {
			args = append(args, x.Args...)
		}
	}
	vars := map[string]string{
		"prefix": prefix,
		"host":   host,
		"api":    strconv.Itoa(c.API),
		"arch":   c.Arch,
	}
	for i, a := range args {
		args[i] = os.Expand(a, func(k string) string {
			if v, ok := vars[k]; ok {
				return v
			}
			return "$" + k
		})
	}
	return args, nil
}

func evalCond(when string, c Cond) (bool, error) {
	program, err := expr.Compile(when, expr.Env(Cond{}), expr.AsBool())
	if err != nil {
		return false, fmt.Errorf("failed to compile expression %q: %w", when, err)
	}
	result, err := expr.Run(program, c)
	if err != nil {
		return false, fmt.Errorf("failed to run expression %q: %w", when, err)
	}
	matched, _ := result.(bool)
	return matched, nil
}

// Merge returns base with every recipe of override replacing the base recipe
// of the same name. Recipes with new names are appended.
func Merge(base, override []Recipe) []Recipe {
	out := append([]Recipe(nil), base...)
	index := make(map[string]int, len(out))
	for i, r := range out {
		index[r.Name] = i
	}
	for _, r := range override {
		if i, ok := index[r.Name]; ok {
			out[i] = r
			continue
		}
		index[r.Name] = len(out)
		out = append(out, r)
	}
	return out
}
