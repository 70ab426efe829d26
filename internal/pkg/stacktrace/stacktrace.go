// Package stacktrace condenses raw goroutine stacks down to the frames that
// belong to this module, which is what a log reader actually wants after a
// recovered panic.
package stacktrace

import "strings"

// InternalPaths extracts "internal/...go:line" entries from a debug.Stack()
// dump, skipping runtime and third-party frames.
func InternalPaths(stack []byte) []string {
	lines := strings.Split(string(stack), "\n")
	paths := make([]string, 0, len(lines))

	// File locations sit on the line after each function name.
	for i := 1; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if !strings.Contains(line, "/internal/") {
			continue
		}

		idx := strings.Index(line, ".go:")
		if idx == -1 {
			continue
		}

		end := strings.Index(line[idx:], " ")
		if end == -1 {
			end = len(line)
		} else {
			end += idx
		}

		short := line[:end]
		if cut := strings.Index(short, "/internal/"); cut != -1 {
			paths = append(paths, short[cut+1:])
		}
	}
	return paths
}
