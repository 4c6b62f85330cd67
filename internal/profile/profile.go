// Package profile implements the Profile Aggregator from spec section 4.H:
// per-process accumulation of loaded libraries, accessed files (with access
// counts) and API call counts over a bounded interval, finalized into the
// Profile document described in spec section 3.
package profile

import (
	"github.com/marcoeg/crypto-tracer/internal/classify"
	"github.com/marcoeg/crypto-tracer/internal/event"
)

// Library is one distinct loaded library entry, deduplicated by path
// (first occurrence wins).
type Library struct {
	ShortName string `json:"short_name"`
	Path      string `json:"path"`
	FirstSeen int64  `json:"first_seen"`
}

// FileAccess is the per-file access summary keyed by file path.
type FileAccess struct {
	Path        string           `json:"path"`
	Type        classify.FileType `json:"-"`
	AccessCount int              `json:"access_count"`
	FirstAccess int64            `json:"first_access"`
	LastAccess  int64            `json:"last_access"`
	Mode        string           `json:"mode"`
}

// APICall is the per-function call count.
type APICall struct {
	FunctionName string `json:"function_name"`
	Count        int    `json:"count"`
}

// TargetIdentity describes the process the profile was collected for.
type TargetIdentity struct {
	PID            uint32
	Name           string
	ExecutablePath string
	CommandLine    string
	UID            uint32
	GID            uint32
	StartTime      int64
}

// Profile is the aggregated result for one target process (spec section 3).
// It is constructed incrementally by Aggregator and emitted exactly once.
type Profile struct {
	Target             TargetIdentity
	Libraries          []Library
	Files              []FileAccess
	APICalls           []APICall
	TotalEvents        int
	LibrariesLoaded    int
	FilesAccessed      int
	APICallsMade       int
	ObservedDurationNs int64
	GeneratedAt        int64
	VersionTag         string
	Partial            bool // true if collection ended before the duration elapsed
}

// fileState tracks the order-of-first-access plus the mutable counters for
// one file path. Aggregator keeps this map alongside an insertion-ordered
// key slice so Finalize can emit files in first-access order.
type fileState struct {
	typ         classify.FileType
	count       int
	firstAccess int64
	lastAccess  int64
	mode        string
}

// Aggregator accumulates events for a single target pid.
type Aggregator struct {
	target      uint32
	totalEvents int

	libOrder []string
	libs     map[string]Library

	fileOrder []string
	files     map[string]*fileState

	apiOrder []string
	apiCalls map[string]int

	exited bool
}

// New constructs an Aggregator for the given target pid.
func New(targetPID uint32) *Aggregator {
	return &Aggregator{
		target:   targetPID,
		libs:     make(map[string]Library),
		files:    make(map[string]*fileState),
		apiCalls: make(map[string]int),
	}
}

// Exited reports whether a ProcessExit event for the target has been seen.
func (a *Aggregator) Exited() bool { return a.exited }

// AddEvent folds rec into the aggregator's running state, per spec
// section 4.H. Events for a pid other than the target are ignored; this
// lets the driver hand every accepted event to AddEvent without
// pre-filtering by pid itself.
func (a *Aggregator) AddEvent(rec *event.Record) {
	if rec.PID != a.target {
		return
	}
	a.totalEvents++

	switch rec.Kind {
	case event.KindLibLoad:
		if _, ok := a.libs[rec.LibraryPath]; !ok {
			a.libs[rec.LibraryPath] = Library{
				ShortName: rec.LibraryShortName,
				Path:      rec.LibraryPath,
				FirstSeen: rec.Timestamp,
			}
			a.libOrder = append(a.libOrder, rec.LibraryPath)
		}

	case event.KindFileOpen:
		if rec.FileType == classify.FileTypeUnknown {
			return
		}
		if fs, ok := a.files[rec.FilePath]; ok {
			fs.count++
			fs.lastAccess = rec.Timestamp
		} else {
			a.files[rec.FilePath] = &fileState{
				typ:         rec.FileType,
				count:       1,
				firstAccess: rec.Timestamp,
				lastAccess:  rec.Timestamp,
				mode:        classify.OpenMode(rec.OpenFlags),
			}
			a.fileOrder = append(a.fileOrder, rec.FilePath)
		}

	case event.KindAPICall:
		if _, ok := a.apiCalls[rec.FunctionName]; !ok {
			a.apiOrder = append(a.apiOrder, rec.FunctionName)
		}
		a.apiCalls[rec.FunctionName]++

	case event.KindProcessExit:
		a.exited = true
	}
}

// Finalize produces the Profile document. observedDurationNs is the
// wall-clock span the driver actually polled for; summary counters are
// computed from the maps, never tracked separately, so they can never drift
// from the invariants in spec section 4.H.
func (a *Aggregator) Finalize(target TargetIdentity, observedDurationNs int64, generatedAtNs int64, partial bool) Profile {
	libs := make([]Library, 0, len(a.libOrder))
	for _, path := range a.libOrder {
		libs = append(libs, a.libs[path])
	}

	files := make([]FileAccess, 0, len(a.fileOrder))
	for _, path := range a.fileOrder {
		fs := a.files[path]
		files = append(files, FileAccess{
			Path:        path,
			Type:        fs.typ,
			AccessCount: fs.count,
			FirstAccess: fs.firstAccess,
			LastAccess:  fs.lastAccess,
			Mode:        fs.mode,
		})
	}

	apiTotal := 0
	apiCalls := make([]APICall, 0, len(a.apiOrder))
	for _, name := range a.apiOrder {
		count := a.apiCalls[name]
		apiTotal += count
		apiCalls = append(apiCalls, APICall{FunctionName: name, Count: count})
	}

	return Profile{
		Target:             target,
		Libraries:          libs,
		Files:              files,
		APICalls:           apiCalls,
		TotalEvents:        a.totalEvents,
		LibrariesLoaded:    len(libs),
		FilesAccessed:      len(files),
		APICallsMade:       apiTotal,
		ObservedDurationNs: observedDurationNs,
		GeneratedAt:        generatedAtNs,
		VersionTag:         "1",
		Partial:            partial,
	}
}
