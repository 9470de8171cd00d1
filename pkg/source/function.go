// Package source defines the function records consumed by the analysis
// engine and the loader that discovers and parses source files into them.
package source

import (
	"fmt"
	"strconv"

	"github.com/cespare/xxhash/v2"

	"github.com/Oeditus/propwise/pkg/syntax"
)

// Visibility of a function definition.
type Visibility string

// Visibility values.
const (
	Public  Visibility = "public"
	Private Visibility = "private"
)

// Function is one static function definition clause.
type Function struct {
	Module     string       `json:"module"     yaml:"module"`
	Name       string       `json:"name"       yaml:"name"`
	Arity      int          `json:"arity"      yaml:"arity"`
	Params     []string     `json:"params"     yaml:"params"`
	Body       *syntax.Node `json:"-"          yaml:"-"`
	File       string       `json:"file"       yaml:"file"`
	Line       uint         `json:"line"       yaml:"line"`
	Visibility Visibility   `json:"visibility" yaml:"visibility"`
}

// idSeparator keeps identity fields from running into each other when hashed.
const idSeparator = 0

// ID returns a stable fingerprint of the function identity
// (module, name, arity, file, line) as 16 hex digits.
func (fn Function) ID() string {
	digest := xxhash.New()

	for _, part := range []string{
		fn.Module,
		fn.Name,
		strconv.Itoa(fn.Arity),
		fn.File,
		strconv.FormatUint(uint64(fn.Line), 10),
	} {
		_, _ = digest.WriteString(part) //nolint:errcheck // xxhash writes never fail.
		_, _ = digest.Write([]byte{idSeparator})
	}

	return fmt.Sprintf("%016x", digest.Sum64())
}

// QualifiedName returns Module.name/arity.
func (fn Function) QualifiedName() string {
	return fmt.Sprintf("%s.%s/%d", fn.Module, fn.Name, fn.Arity)
}

// Reference returns Module.name, the form used in generated property tests.
func (fn Function) Reference() string {
	if fn.Module == "" {
		return fn.Name
	}

	return fn.Module + "." + fn.Name
}

// IsPublic reports whether the function is exported from its module.
func (fn Function) IsPublic() bool {
	return fn.Visibility == Public
}

// Location returns file:line.
func (fn Function) Location() string {
	return fn.File + ":" + strconv.FormatUint(uint64(fn.Line), 10)
}
