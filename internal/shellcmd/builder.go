// Package shellcmd builds the shell command lines run on the remote machine.
// Nothing here performs I/O.
package shellcmd

import (
	"fmt"
	"strings"
)

// Escape makes text safe to place between single quotes: every ' becomes '\''.
// Apply it exactly once per embedding.
func Escape(text string) string {
	return strings.ReplaceAll(text, "'", `'\''`)
}

// Privileged pipes the secret into sudo -S, which runs inner in a bash -c sub-shell.
func Privileged(secret, inner string) string {
	return fmt.Sprintf("echo '%s' | sudo -S bash -c '%s'", Escape(secret), Escape(inner))
}

// FileReplace copies target to backup and then overwrites target with content.
// The overwrite is not atomic: an interrupted write can leave target truncated,
// the backup still holds the previous version.
func FileReplace(targetPath, backupPath, content string) string {
	return fmt.Sprintf("cp %s %s && printf '%%s\\n' '%s' > %s",
		targetPath, backupPath, Escape(content), targetPath)
}

// Kill matches all names as one space-joined pkill pattern. The trailing
// "|| true" means the command itself always exits 0.
func Kill(processNames []string) string {
	return fmt.Sprintf("pkill -f '%s' || true", Escape(strings.Join(processNames, " ")))
}
