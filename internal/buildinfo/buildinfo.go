// Package buildinfo holds version metadata stamped in at link time via
// -ldflags, the way the teacher's pkg/version package is populated by the
// release build.
package buildinfo

// Version, Commit and Date are overridden at build time:
//
//	go build -ldflags "-X github.com/marcoeg/crypto-tracer/internal/buildinfo.Version=1.2.3"
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// CryptoLibraries is the default recognised-library allow-list from spec
// section 9 (library-is-cryptographic list). internal/classify and
// internal/snapshot (through classify) read it from here; String does not
// include it.
var CryptoLibraries = []string{
	"libssl",
	"libcrypto",
	"libgnutls",
	"libsodium",
	"libnss3",
	"libmbedtls",
}

// String renders a one-line banner similar to the original tool's startup
// banner (original_source/src/main.c).
func String() string {
	return "crypto-tracer " + Version + " (" + Commit + ", built " + Date + ")"
}
