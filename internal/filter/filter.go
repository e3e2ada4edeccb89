// Package filter decides which repository files are worth embedding.
package filter

import (
	"errors"
	"fmt"
	"os"
	"path"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ispasdani/k2ide/internal/core/domain"
)

// DefaultIncludeDirs are the source directories whose files are eligible.
var DefaultIncludeDirs = []string{
	"components", "src", "app", "hooks", "convex", "lib", "utils", "pages", "_app", "_document",
}

// DefaultExclude are glob patterns for files that are never eligible.
var DefaultExclude = []string{
	"package.json",
	"package-lock.json",
	"node_modules/**",
	"postcss.config.mjs",
	"tailwind.config.ts",
	"*.md",
	"*.lock",
	"*.config.js",
	"*.config.ts",
}

// binaryExtensions are excluded regardless of configuration.
var binaryExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true, ".ico": true, ".bmp": true,
	".pdf": true, ".zip": true, ".gz": true, ".tar": true, ".tgz": true, ".7z": true, ".rar": true,
	".woff": true, ".woff2": true, ".ttf": true, ".otf": true, ".eot": true,
	".mp3": true, ".mp4": true, ".mov": true, ".wav": true, ".avi": true, ".webm": true,
	".exe": true, ".dll": true, ".so": true, ".dylib": true, ".bin": true, ".class": true, ".jar": true,
	".wasm": true, ".pyc": true, ".o": true, ".a": true,
}

// Rules is the serialized form of a filter, as read from a rules file.
type Rules struct {
	IncludeDirs []string `yaml:"include_dirs"`
	Exclude     []string `yaml:"exclude"`
}

// DefaultRules returns the built-in rules.
func DefaultRules() Rules {
	return Rules{
		IncludeDirs: append([]string(nil), DefaultIncludeDirs...),
		Exclude:     append([]string(nil), DefaultExclude...),
	}
}

// LoadRules reads rules from a YAML file. A missing file yields the defaults.
// Lists present in the file replace the corresponding default list.
func LoadRules(filePath string) (Rules, error) {
	rules := DefaultRules()
	if filePath == "" {
		return rules, nil
	}

	data, err := os.ReadFile(filePath)
	if errors.Is(err, os.ErrNotExist) {
		return rules, nil
	}
	if err != nil {
		return Rules{}, fmt.Errorf("read filter rules: %w", err)
	}

	var fromFile Rules
	if err := yaml.Unmarshal(data, &fromFile); err != nil {
		return Rules{}, fmt.Errorf("parse filter rules %s: %w", filePath, err)
	}
	if fromFile.IncludeDirs != nil {
		rules.IncludeDirs = fromFile.IncludeDirs
	}
	if fromFile.Exclude != nil {
		rules.Exclude = fromFile.Exclude
	}
	return rules, nil
}

// Filter matches repository paths against compiled rules. Safe for concurrent use.
type Filter struct {
	includeDirs  map[string]bool
	includeGlobs []*regexp.Regexp
	exclude      []*regexp.Regexp
}

// New compiles rules into a Filter.
// Include entries without glob metacharacters or slashes name directories;
// anything else is compiled as a glob.
func New(rules Rules) *Filter {
	f := &Filter{includeDirs: make(map[string]bool)}
	for _, inc := range rules.IncludeDirs {
		f.addInclude(inc)
	}
	for _, ex := range rules.Exclude {
		if re := compile(ex); re != nil {
			f.exclude = append(f.exclude, re)
		}
	}
	return f
}

// Merge returns a new Filter with the request's patterns added to f's.
func (f *Filter) Merge(spec domain.FilterSpec) *Filter {
	merged := &Filter{
		includeDirs:  make(map[string]bool, len(f.includeDirs)+len(spec.Include)),
		includeGlobs: append([]*regexp.Regexp(nil), f.includeGlobs...),
		exclude:      append([]*regexp.Regexp(nil), f.exclude...),
	}
	for dir := range f.includeDirs {
		merged.includeDirs[dir] = true
	}
	for _, inc := range spec.Include {
		merged.addInclude(inc)
	}
	for _, ex := range spec.Exclude {
		if re := compile(ex); re != nil {
			merged.exclude = append(merged.exclude, re)
		}
	}
	return merged
}

func (f *Filter) addInclude(pattern string) {
	pattern = strings.Trim(strings.TrimSpace(pattern), "/")
	if pattern == "" {
		return
	}
	if strings.ContainsAny(pattern, "*?[/") {
		if re := compile(pattern); re != nil {
			f.includeGlobs = append(f.includeGlobs, re)
		}
		return
	}
	f.includeDirs[strings.ToLower(pattern)] = true
}

// Match reports whether the file at p is eligible for ingestion.
func (f *Filter) Match(p string) bool {
	p = strings.TrimPrefix(path.Clean("/"+p), "/")
	if p == "" || p == "." {
		return false
	}
	if binaryExtensions[strings.ToLower(path.Ext(p))] {
		return false
	}
	for _, re := range f.exclude {
		if re.MatchString(p) {
			return false
		}
	}
	return f.included(p)
}

// Eligible returns the paths that match, preserving input order.
func (f *Filter) Eligible(paths []string) []string {
	var out []string
	for _, p := range paths {
		if f.Match(p) {
			out = append(out, p)
		}
	}
	return out
}

func (f *Filter) included(p string) bool {
	segments := strings.Split(p, "/")
	// The last segment is the file itself, so it never counts as a directory.
	for _, seg := range segments[:len(segments)-1] {
		if f.includeDirs[strings.ToLower(seg)] {
			return true
		}
	}
	for _, re := range f.includeGlobs {
		if re.MatchString(p) {
			return true
		}
	}
	return false
}

// compile converts a gitignore-style glob to an anchored regexp.
// A pattern without a slash matches the basename in any directory;
// a pattern ending in /** matches everything beneath that directory.
func compile(glob string) *regexp.Regexp {
	glob = strings.TrimSpace(glob)
	if glob == "" {
		return nil
	}

	anchored := strings.HasPrefix(glob, "/")
	glob = strings.TrimPrefix(glob, "/")

	var prefix string
	if !anchored && !strings.Contains(strings.TrimSuffix(glob, "/**"), "/") {
		// Basename patterns and dir/** may sit at any depth.
		prefix = "(?:.*/)?"
	}

	expr := "(?i)^" + prefix + globToRegex(glob) + "$"
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil
	}
	return re
}

// globToRegex translates glob syntax into regexp syntax.
func globToRegex(glob string) string {
	var b strings.Builder

	i := 0
	for i < len(glob) {
		c := glob[i]

		switch c {
		case '*':
			if i+1 < len(glob) && glob[i+1] == '*' {
				if i+2 < len(glob) && glob[i+2] == '/' {
					// **/ spans zero or more directories
					b.WriteString("(?:.*/)?")
					i += 3
					continue
				}
				if i == 0 || glob[i-1] == '/' {
					b.WriteString(".*")
					i += 2
					continue
				}
			}
			b.WriteString("[^/]*")
			i++

		case '?':
			b.WriteString("[^/]")
			i++

		case '[':
			j := i + 1
			for j < len(glob) && glob[j] != ']' {
				j++
			}
			if j < len(glob) {
				b.WriteString(glob[i : j+1])
				i = j + 1
			} else {
				b.WriteString(regexp.QuoteMeta("["))
				i++
			}

		case '\\':
			if i+1 < len(glob) {
				b.WriteString(regexp.QuoteMeta(string(glob[i+1])))
				i += 2
			} else {
				b.WriteString(regexp.QuoteMeta(`\`))
				i++
			}

		case '.', '+', '^', '$', '(', ')', '{', '}', '|':
			b.WriteString(regexp.QuoteMeta(string(c)))
			i++

		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String()
}
