// Package stacktrace trims goroutine dumps down to this module's frames.
package stacktrace

import "strings"

const marker = "/internal/"

// InternalPaths returns "internal/<pkg>/<file>.go:<line>" for every frame that
// belongs to this module, innermost first. Frames from the runtime and third
// party packages are dropped.
func InternalPaths(stack []byte) []string {
	var paths []string

	for line := range strings.Lines(string(stack)) {
		// file lines look like "\t/app/internal/x/y.go:12 +0x1d"
		file, _, _ := strings.Cut(strings.TrimSpace(line), " +0x")
		idx := strings.Index(file, marker)
		if idx == -1 || !strings.Contains(file, ".go:") {
			continue
		}

		paths = append(paths, file[idx+1:])
	}

	return paths
}
