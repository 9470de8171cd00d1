package source

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/dustin/go-humanize"
	"github.com/src-d/enry/v2"
	"golang.org/x/sync/errgroup"

	"github.com/Oeditus/propwise/pkg/textutil"
)

// Sentinel errors for source loading.
var (
	ErrNoParser     = errors.New("source loader: parser not set")
	ErrBadPattern   = errors.New("source loader: invalid glob pattern")
	ErrFileTooLarge = errors.New("file exceeds size limit")
	ErrBinaryFile   = errors.New("binary file")
	ErrParse        = errors.New("parse failed")
)

// Parser turns the content of one source file into function records.
type Parser interface {
	// Language returns the language name as reported by enry (e.g. "Elixir").
	Language() string

	// Parse returns the function definitions found in content, in source order.
	Parse(path string, content []byte) ([]Function, error)
}

// Options controls file discovery.
type Options struct {
	// Include restricts discovery to paths matching any of these globs
	// (relative to the root, slash separated). Empty means everything.
	Include []string

	// Exclude drops paths matching any of these globs.
	Exclude []string

	// SkipVendor skips vendored paths as classified by enry.
	SkipVendor bool

	// MaxFileSize skips files larger than this many bytes. Zero disables the limit.
	MaxFileSize uint64

	// Workers bounds concurrent file parsing. Zero uses GOMAXPROCS.
	Workers int
}

// Loader discovers source files under a set of roots and parses them into
// function records.
type Loader struct {
	parser Parser
	opts   Options
	logger *slog.Logger
}

// NewLoader creates a loader. Glob patterns are validated up front.
func NewLoader(parser Parser, opts Options, logger *slog.Logger) (*Loader, error) {
	if parser == nil {
		return nil, ErrNoParser
	}

	for _, pattern := range slices.Concat(opts.Include, opts.Exclude) {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("%w: %q", ErrBadPattern, pattern)
		}
	}

	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Loader{parser: parser, opts: opts, logger: logger}, nil
}

type fileResult struct {
	functions []Function
	err       error
}

// Load walks every root and returns the functions found, sorted by file and
// line, together with per-file warnings. Files that fail to parse contribute
// no functions. A cancelled context yields no functions and the context error.
func (loader *Loader) Load(ctx context.Context, roots []string) ([]Function, []error) {
	paths, warnings := loader.discover(roots)

	results := make([]fileResult, len(paths))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(loader.opts.Workers)

	for idx, path := range paths {
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}

			fns, err := loader.loadFile(path)
			results[idx] = fileResult{functions: fns, err: err}

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, []error{fmt.Errorf("load sources: %w", err)}
	}

	var functions []Function

	for _, result := range results {
		if result.err != nil {
			warnings = append(warnings, result.err)

			continue
		}

		functions = append(functions, result.functions...)
	}

	slices.SortStableFunc(functions, func(left, right Function) int {
		return cmp.Or(cmp.Compare(left.File, right.File), cmp.Compare(left.Line, right.Line))
	})

	loader.logger.Debug("sources loaded",
		"files", len(paths),
		"functions", len(functions),
		"warnings", len(warnings),
	)

	return functions, warnings
}

func (loader *Loader) discover(roots []string) ([]string, []error) {
	var (
		paths    []string
		warnings []error
	)

	for _, root := range roots {
		info, err := os.Stat(root)
		if err != nil {
			warnings = append(warnings, fmt.Errorf("stat %s: %w", root, err))

			continue
		}

		if !info.IsDir() {
			if loader.accepts(filepath.Base(root), root) {
				paths = append(paths, root)
			}

			continue
		}

		walkErr := filepath.WalkDir(root, func(path string, entry fs.DirEntry, walkErr error) error {
			skip, err := loader.shouldSkip(root, path, entry, walkErr)
			if skip || err != nil {
				return err
			}

			paths = append(paths, path)

			return nil
		})
		if walkErr != nil {
			warnings = append(warnings, fmt.Errorf("walk %s: %w", root, walkErr))
		}
	}

	slices.Sort(paths)

	return slices.Compact(paths), warnings
}

// shouldSkip decides whether a walk entry is skipped. Unreadable entries are
// skipped silently, hidden and vendored directories are pruned.
func (loader *Loader) shouldSkip(root, path string, entry fs.DirEntry, walkErr error) (bool, error) {
	if walkErr != nil {
		if errors.Is(walkErr, fs.ErrPermission) || errors.Is(walkErr, fs.ErrNotExist) {
			if entry != nil && entry.IsDir() {
				return true, filepath.SkipDir
			}

			return true, nil
		}

		return false, walkErr
	}

	if entry == nil {
		return true, nil
	}

	rel := relativePath(root, path)

	if entry.IsDir() {
		if path != root && (strings.HasPrefix(entry.Name(), ".") ||
			(loader.opts.SkipVendor && enry.IsVendor(rel+"/"))) {
			return true, filepath.SkipDir
		}

		return true, nil
	}

	if !entry.Type().IsRegular() {
		return true, nil
	}

	return !loader.accepts(rel, path), nil
}

// accepts applies language, vendor and glob filters to a file.
func (loader *Loader) accepts(rel, path string) bool {
	language, _ := enry.GetLanguageByExtension(path)
	if language != loader.parser.Language() {
		return false
	}

	if loader.opts.SkipVendor && enry.IsVendor(rel) {
		return false
	}

	if len(loader.opts.Include) > 0 && !matchAny(loader.opts.Include, rel) {
		return false
	}

	return !matchAny(loader.opts.Exclude, rel)
}

func (loader *Loader) loadFile(path string) ([]Function, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	size := uint64(info.Size()) //nolint:gosec // Sizes of regular files are non-negative.
	if loader.opts.MaxFileSize > 0 && size > loader.opts.MaxFileSize {
		return nil, fmt.Errorf("%s: %w (%s > %s)",
			path, ErrFileTooLarge, humanize.IBytes(size), humanize.IBytes(loader.opts.MaxFileSize))
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	if textutil.IsBinary(content) {
		return nil, fmt.Errorf("%s: %w", path, ErrBinaryFile)
	}

	functions, err := loader.parser.Parse(path, content)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", path, ErrParse, err)
	}

	loader.logger.Debug("parsed source file",
		"path", path,
		"size", humanize.IBytes(size),
		"lines", textutil.CountLines(content),
		"functions", len(functions),
	)

	return functions, nil
}

func matchAny(patterns []string, rel string) bool {
	for _, pattern := range patterns {
		matched, err := doublestar.Match(pattern, rel)
		if err == nil && matched {
			return true
		}
	}

	return false
}

func relativePath(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}

	return filepath.ToSlash(rel)
}
