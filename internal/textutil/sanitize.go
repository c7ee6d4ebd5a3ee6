package textutil

import "strings"

// fileNameReplacer replaces filesystem-unsafe characters with safe alternatives.
var fileNameReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
)

// SanitizeFileName turns a label into a file name stem. Slashes, backslashes,
// colons, and asterisks become dashes; other unsafe characters are removed
// and whitespace runs collapse to one underscore. Leading dots are dropped so
// the result is never hidden or a parent reference.
func SanitizeFileName(name string) string {
	name = fileNameReplacer.Replace(strings.TrimSpace(name))
	name = strings.Join(strings.Fields(name), "_")
	return strings.TrimLeft(name, ".")
}
