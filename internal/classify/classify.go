// Package classify implements the deterministic, allocation-light
// classification rules from spec section 4.C: file type by suffix, library
// short name extraction, the cryptographic-library allow-list test, and
// open(2) flag decoding (supplemented feature C.4 of SPEC_FULL.md).
package classify

import (
	"strings"

	"github.com/marcoeg/crypto-tracer/internal/buildinfo"
)

// FileType is one of the four cryptographic material classifications from
// spec section 3.
type FileType int

const (
	FileTypeUnknown FileType = iota
	FileTypeCertificate
	FileTypePrivateKey
	FileTypeKeystore
)

// String renders the FileType the way it appears in structured output.
func (t FileType) String() string {
	switch t {
	case FileTypeCertificate:
		return "certificate"
	case FileTypePrivateKey:
		return "private_key"
	case FileTypeKeystore:
		return "keystore"
	default:
		return "unknown"
	}
}

// ClassifyFile returns the FileType for path by lowercase suffix. A nil or
// empty path classifies as unknown. The .pem union-ambiguity with private
// keys is deliberately collapsed to certificate (spec section 9, open
// question 1): a later version may sniff file content instead.
func ClassifyFile(path string) FileType {
	if path == "" {
		return FileTypeUnknown
	}
	lower := strings.ToLower(path)
	switch {
	case hasAnySuffix(lower, ".pem", ".crt", ".cer"):
		return FileTypeCertificate
	case strings.HasSuffix(lower, ".key"):
		return FileTypePrivateKey
	case hasAnySuffix(lower, ".p12", ".pfx", ".jks", ".keystore"):
		return FileTypeKeystore
	default:
		return FileTypeUnknown
	}
}

func hasAnySuffix(s string, suffixes ...string) bool {
	for _, suf := range suffixes {
		if strings.HasSuffix(s, suf) {
			return true
		}
	}
	return false
}

// LibraryShortName returns the portion of path's basename up to (not
// including) the first '.', e.g. "/usr/lib/libssl.so.1.1" -> "libssl"; a
// leading '.' does not end the name. It is never empty if the basename is
// non-empty, and never allocates beyond the returned string.
func LibraryShortName(path string) string {
	base := path
	if idx := strings.LastIndexByte(path, '/'); idx >= 0 {
		base = path[idx+1:]
	}
	if base == "" {
		return ""
	}
	if dot := strings.IndexByte(base[1:], '.'); dot >= 0 {
		return base[:dot+1]
	}
	return base
}

// IsCryptographic reports whether libPath or libShortName matches one of the
// recognised cryptographic library substrings (spec section 9). Matching is
// a plain substring test against either representation, the way the
// original's is_crypto_library() behaves.
func IsCryptographic(libPath, libShortName string) bool {
	for _, name := range buildinfo.CryptoLibraries {
		if strings.Contains(libPath, name) || strings.Contains(libShortName, name) {
			return true
		}
	}
	return false
}

// Open(2) flag bits as carried by the kernel producer header (spec
// section 6.1, original_source/src/include/crypto_tracer.h).
const (
	OFlagWrOnly  uint32 = 0x0001
	OFlagRdWr    uint32 = 0x0002
	OFlagCreate  uint32 = 0x0040
	OFlagAccmode uint32 = 0x0003
)

// OpenMode renders the open(2) flags carried on a FileOpen event as a short
// access-mode string used both by the writer's flags field and the profile
// aggregator's per-file mode (supplemented feature C.4).
func OpenMode(flags uint32) string {
	var mode string
	switch flags & OFlagAccmode {
	case OFlagWrOnly:
		mode = "write"
	case OFlagRdWr:
		mode = "readwrite"
	default:
		mode = "read"
	}
	if flags&OFlagCreate != 0 {
		mode += "+create"
	}
	return mode
}
