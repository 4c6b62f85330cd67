// Package procfsadapter implements the process-filesystem adapter that spec
// section 6.3 treats as an external collaborator: the boundary between
// crypto-tracer and the host's /proc. The teacher's go.mod already carries
// github.com/prometheus/procfs for this exact purpose; this package is a
// thin, error-tolerant wrapper around it.
package procfsadapter

import (
	"fmt"
	"os/user"
	"strings"

	"github.com/prometheus/procfs"
)

// NotFoundError and PermissionDeniedError are the two failure modes spec
// section 6.3 allows every operation to return; both are non-fatal to every
// caller (enricher, snapshot builder).
type NotFoundError struct{ PID int }

func (e *NotFoundError) Error() string { return fmt.Sprintf("pid %d: not found", e.PID) }

type PermissionDeniedError struct{ PID int }

func (e *PermissionDeniedError) Error() string { return fmt.Sprintf("pid %d: permission denied", e.PID) }

// Reader is the process-filesystem adapter interface. internal/enrich uses
// the first three operations; internal/snapshot uses every operation except
// ReadArgVector.
type Reader interface {
	ReadShortName(pid int) (string, error)
	ReadExeLink(pid int) (string, error)
	ReadArgVector(pid int) (string, error)
	ReadRunningAs(pid int) (string, error)

	ListProcesses() ([]int, error)
	ListMappedLibraryPaths(pid int) ([]string, error)
	ListOpenFilePaths(pid int) ([]string, error)
}

// FS is the default Reader, backed by github.com/prometheus/procfs against
// the real /proc mount.
type FS struct {
	fs procfs.FS
}

// Open mounts the process-filesystem adapter at mountPoint (normally
// "/proc").
func Open(mountPoint string) (*FS, error) {
	if mountPoint == "" {
		mountPoint = procfs.DefaultMountPoint
	}
	fs, err := procfs.NewFS(mountPoint)
	if err != nil {
		return nil, fmt.Errorf("open procfs at %s: %w", mountPoint, err)
	}
	return &FS{fs: fs}, nil
}

func wrapErr(pid int, err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "no such file or directory") || strings.Contains(msg, "not found"):
		return &NotFoundError{PID: pid}
	case strings.Contains(msg, "permission denied"):
		return &PermissionDeniedError{PID: pid}
	default:
		return err
	}
}

// ReadShortName reads /proc/<pid>/comm, stripping the single trailing
// newline the kernel writes.
func (f *FS) ReadShortName(pid int) (string, error) {
	p, err := f.fs.NewProc(pid)
	if err != nil {
		return "", wrapErr(pid, err)
	}
	name, err := p.Comm()
	if err != nil {
		return "", wrapErr(pid, err)
	}
	return strings.TrimRight(name, "\n"), nil
}

// ReadExeLink reads the /proc/<pid>/exe symlink target.
func (f *FS) ReadExeLink(pid int) (string, error) {
	p, err := f.fs.NewProc(pid)
	if err != nil {
		return "", wrapErr(pid, err)
	}
	exe, err := p.Executable()
	if err != nil {
		return "", wrapErr(pid, err)
	}
	return exe, nil
}

// ReadArgVector reads /proc/<pid>/cmdline, translating the NUL separators
// the kernel uses between arguments into spaces for display.
func (f *FS) ReadArgVector(pid int) (string, error) {
	p, err := f.fs.NewProc(pid)
	if err != nil {
		return "", wrapErr(pid, err)
	}
	args, err := p.CmdLine()
	if err != nil {
		return "", wrapErr(pid, err)
	}
	return strings.Join(args, " "), nil
}

// ReadRunningAs resolves the username a process is running as, from
// /proc/<pid>/status's real uid (spec section 3's "running-as descriptor").
// When the uid has no resolvable passwd entry (container images commonly
// strip /etc/passwd down to a few names), it falls back to the bare numeric
// uid, the way `ps`/`ls -l` do.
func (f *FS) ReadRunningAs(pid int) (string, error) {
	p, err := f.fs.NewProc(pid)
	if err != nil {
		return "", wrapErr(pid, err)
	}
	status, err := p.NewStatus()
	if err != nil {
		return "", wrapErr(pid, err)
	}
	uid := status.UIDs[0]
	if u, err := user.LookupId(uid); err == nil && u.Username != "" {
		return u.Username, nil
	}
	return uid, nil
}

// ListProcesses enumerates every process currently visible under /proc.
func (f *FS) ListProcesses() ([]int, error) {
	procs, err := f.fs.AllProcs()
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}
	pids := make([]int, 0, len(procs))
	for _, p := range procs {
		pids = append(pids, p.PID)
	}
	return pids, nil
}

// ListMappedLibraryPaths returns the distinct file-backed mapping paths in
// /proc/<pid>/maps, the source the snapshot builder consults for currently
// loaded libraries.
func (f *FS) ListMappedLibraryPaths(pid int) ([]string, error) {
	p, err := f.fs.NewProc(pid)
	if err != nil {
		return nil, wrapErr(pid, err)
	}
	maps, err := p.ProcMaps()
	if err != nil {
		return nil, wrapErr(pid, err)
	}
	seen := make(map[string]bool, len(maps))
	var paths []string
	for _, m := range maps {
		if m.Pathname == "" || seen[m.Pathname] {
			continue
		}
		seen[m.Pathname] = true
		paths = append(paths, m.Pathname)
	}
	return paths, nil
}

// ListOpenFilePaths returns the symlink targets of every open file
// descriptor in /proc/<pid>/fd.
func (f *FS) ListOpenFilePaths(pid int) ([]string, error) {
	p, err := f.fs.NewProc(pid)
	if err != nil {
		return nil, wrapErr(pid, err)
	}
	targets, err := p.FileDescriptorTargets()
	if err != nil {
		return nil, wrapErr(pid, err)
	}
	return targets, nil
}
