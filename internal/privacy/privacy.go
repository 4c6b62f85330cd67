// Package privacy implements the deterministic path redaction policy from
// spec section 4.E: home and root paths are rewritten to remove the
// identifying user segment, everything else under a small system allow-list
// passes through unchanged, and the policy can be switched off wholesale.
package privacy

import "strings"

// allowPrefixes are paths that are public on any shared or customer machine
// and so pass through redaction unchanged (rule 3).
var allowPrefixes = []string{
	"/etc/", "/usr/", "/lib/", "/lib64/", "/var/lib/", "/sys/", "/proc/",
	"/dev/", "/tmp/", "/opt/", "/bin/", "/sbin/",
}

const (
	homePrefix = "/home/"
	rootPath   = "/root"
)

// Filter applies the redaction policy. The zero value has redaction enabled;
// set NoRedact to disable it wholesale.
type Filter struct {
	NoRedact bool
}

// New constructs a Filter. noRedact mirrors the command's --no-redact flag.
func New(noRedact bool) *Filter {
	return &Filter{NoRedact: noRedact}
}

// Redact rewrites p per the first-match-wins rules in spec section 4.E. When
// redaction is disabled, Redact is the identity function.
func (f *Filter) Redact(p string) string {
	if f == nil || f.NoRedact || p == "" {
		return p
	}

	// Rule 1: /home/<user>[/...] -> /home/USER[/...]
	if strings.HasPrefix(p, homePrefix) {
		rest := p[len(homePrefix):]
		if slash := strings.IndexByte(rest, '/'); slash >= 0 {
			return "/home/USER" + rest[slash:]
		}
		return "/home/USER"
	}

	// Rule 2: /root[/...] -> /home/ROOT[/...]
	if p == rootPath || strings.HasPrefix(p, rootPath+"/") {
		return "/home/ROOT" + p[len(rootPath):]
	}

	// Rule 3: system allow-list prefixes pass through unchanged.
	for _, prefix := range allowPrefixes {
		if strings.HasPrefix(p, prefix) {
			return p
		}
	}

	// Rule 4: default, pass through unchanged.
	return p
}

// RedactRecordPaths applies Redact to the three path-shaped fields the
// policy covers (file_path, library_path, executable_path). Command line is
// intentionally left untouched here; callers pass it through a separate
// identity hook (spec section 4.E) so a future content-aware redaction can
// be slotted in without touching path redaction.
func (f *Filter) RedactRecordPaths(filePath, libraryPath, executablePath string) (string, string, string) {
	return f.Redact(filePath), f.Redact(libraryPath), f.Redact(executablePath)
}

// RedactCommandLine is the defined extension point for command-line
// redaction (spec section 4.E). This version is identity.
func (f *Filter) RedactCommandLine(cmdline string) string {
	return cmdline
}
