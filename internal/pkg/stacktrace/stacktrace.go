// Package stacktrace shortens runtime stacks for panic logs.
package stacktrace

import "strings"

const marker = "/internal/"

// Trim reduces a debug.Stack dump to "func @ internal/pkg/file.go:42" entries
// for frames inside this module. When no frame matches, every non-empty line
// of the dump is returned so nothing is lost.
func Trim(stack []byte) []string {
	lines := strings.Split(strings.TrimSpace(string(stack)), "\n")

	frames := make([]string, 0, len(lines)/2)
	for i := 1; i+1 < len(lines); i++ {
		loc := strings.TrimSpace(lines[i+1])
		at := strings.Index(loc, marker)
		if at < 0 || !strings.HasPrefix(lines[i+1], "\t") {
			continue
		}

		loc = loc[at+1:]
		if sp := strings.IndexByte(loc, ' '); sp >= 0 {
			loc = loc[:sp]
		}
		fn := strings.TrimSpace(lines[i])
		if paren := strings.LastIndexByte(fn, '('); paren > 0 {
			fn = fn[:paren]
		}
		if slash := strings.LastIndexByte(fn, '/'); slash >= 0 {
			fn = fn[slash+1:]
		}

		frames = append(frames, fn+" @ "+loc)
		i++
	}

	if len(frames) > 0 {
		return frames
	}

	all := make([]string, 0, len(lines))
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			all = append(all, l)
		}
	}
	return all
}
