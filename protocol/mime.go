package protocol

import "strings"

// contentTypes maps a file extension to its Content-Type value
var contentTypes = map[string]string{
	"gif":  "image/gif",
	"jpg":  "image/jpg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"htm":  "text/htm",
	"html": "text/html",
	"css":  "text/css",
	"js":   "text/js",
}

// Extension returns the part of name after its final dot, lower-cased.
// Names without a dot in their last path element have no extension.
func Extension(name string) string {
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return ""
	}
	return strings.ToLower(name[i+1:])
}

// ContentType looks up the Content-Type for a file name.
// ok is false for extensions outside the table.
func ContentType(name string) (string, bool) {
	ct, ok := contentTypes[Extension(name)]
	return ct, ok
}
