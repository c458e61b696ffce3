package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/peterjc/kana-chording-ke/internal/compiler"
	"github.com/peterjc/kana-chording-ke/internal/ir"
	"github.com/peterjc/kana-chording-ke/internal/layouts"
)

// LoadResult contains a compiled and validated layout.
type LoadResult struct {
	Layout *ir.Layout
	// Source is the layout directory, or "builtin:<name>".
	Source    string
	FileCount int // Number of CUE files read
}

// LoadError represents an error that occurred during layout loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadLayout compiles and validates the layout named by ref: a directory of
// CUE files, or the name of a built-in layout. An empty ref selects the
// default built-in layout. A directory wins over a built-in of the same
// name.
//
// Errors are *LoadError for anything that stops compilation and
// compiler.ValidationError values, all of them, for a layout that compiled
// but is inconsistent.
func LoadLayout(ref string) (*LoadResult, []error) {
	if ref == "" {
		ref = layouts.Default
	}

	info, err := os.Stat(ref)
	switch {
	case err == nil && info.IsDir():
		return loadDir(ref)
	case err == nil:
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", ref)}}
	case layouts.Has(ref):
		return loadBuiltin(ref)
	case os.IsNotExist(err):
		return nil, []error{&LoadError{
			Code:    ErrCodeNotFound,
			Message: fmt.Sprintf("layout not found: %s is neither a directory nor a built-in layout (%s)", ref, strings.Join(layouts.Names(), ", ")),
		}}
	default:
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing layout directory: %v", err)}}
	}
}

func loadBuiltin(name string) (*LoadResult, []error) {
	data, file, err := layouts.Source(name)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: err.Error()}}
	}
	l, err := compiler.CompileSource(data, file)
	if err != nil {
		return nil, []error{convertCompileError(err, name)}
	}
	return validated(&LoadResult{Layout: l, Source: "builtin:" + name, FileCount: 1})
}

func loadDir(dir string) (*LoadResult, []error) {
	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(cueFiles) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, []error{&LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}}
	}

	l, err := compiler.CompileLayout(value.LookupPath(cue.ParsePath("layout")))
	if err != nil {
		return nil, []error{convertCompileError(err, dir)}
	}
	return validated(&LoadResult{Layout: l, Source: dir, FileCount: len(cueFiles)})
}

func validated(result *LoadResult) (*LoadResult, []error) {
	verrs := compiler.Validate(result.Layout)
	if len(verrs) == 0 {
		return result, nil
	}
	errs := make([]error, len(verrs))
	for i, v := range verrs {
		errs[i] = v
	}
	return result, errs
}

// FindCUEFiles returns the .cue files directly in dir. Subdirectories are
// separate CUE packages and are not part of the layout.
func FindCUEFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".cue" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	return files, nil
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error, context string) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: fmt.Sprintf("%s: %s", compileErr.Field, compileErr.Message),
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{
		Code:    ErrCodeGeneric,
		Message: fmt.Sprintf("%s: %v", context, err),
	}
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Layout not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeWriteFailed = "E007" // File write error
	ErrCodeStateFailed = "E008" // Build history error
	ErrCodeConfig      = "E009" // Invalid configuration

	// Layout structure errors. Consistency errors use the compiler's
	// E101-E112 codes.
	ErrCodeLayoutField = "E100" // Malformed layout field

	// Rule generation errors
	ErrCodeDuplicateRule      = "E201" // Two sources, one trigger, different output
	ErrCodeUnresolvedModifier = "E202" // Cell variant names an unknown modifier
	ErrCodeInvalidVariant     = "E203" // Rule guarded by an undeclared keyboard variant
	ErrCodeAmbiguousChord     = "E204" // Two explicit chords over one key set
	ErrCodeUnmappableOutput   = "E205" // Output has no key strokes in a mode
)

// MapFieldToErrorCode maps a compiler error field to an error code.
func MapFieldToErrorCode(field string) string {
	switch field {
	case "name":
		return compiler.ErrLayoutNameEmpty
	case "modes":
		return compiler.ErrNoModes
	case "layout":
		return ErrCodeBuildFailed
	case "":
		return ErrCodeGeneric
	default:
		return ErrCodeLayoutField
	}
}
