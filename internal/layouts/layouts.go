// Package layouts embeds the built-in layouts, selectable by name.
package layouts

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"
)

//go:embed *.cue
var files embed.FS

// Default is the layout compiled when none is named.
const Default = "flick"

// Names returns the built-in layout names, sorted.
func Names() []string {
	entries, err := fs.ReadDir(files, ".")
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if name, ok := strings.CutSuffix(e.Name(), ".cue"); ok {
			out = append(out, name)
		}
	}
	slices.Sort(out)
	return out
}

// Has reports whether name is a built-in layout.
func Has(name string) bool {
	return slices.Contains(Names(), name)
}

// Source returns the CUE source of a built-in layout and its file name.
func Source(name string) ([]byte, string, error) {
	file := path.Clean(name) + ".cue"
	data, err := files.ReadFile(file)
	if err != nil {
		return nil, "", fmt.Errorf("unknown built-in layout %q (have %s)", name, strings.Join(Names(), ", "))
	}
	return data, file, nil
}
