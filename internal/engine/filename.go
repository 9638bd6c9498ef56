package engine

import "strings"

const maxFilenameLen = 100

var unsafeFilenameChars = strings.NewReplacer(
	"<", "_", ">", "_", ":", "_", `"`, "_",
	"/", "_", `\`, "_", "|", "_", "?", "_", "*", "_",
)

// SanitizeFilename makes a name safe to hand to the storage layer: unsafe
// characters and whitespace runs become underscores and the result is capped
// at 100 characters.
func SanitizeFilename(name string) string {
	s := unsafeFilenameChars.Replace(name)
	s = strings.Join(strings.Fields(s), "_")
	if len(s) > maxFilenameLen {
		s = s[:maxFilenameLen]
	}
	return s
}
