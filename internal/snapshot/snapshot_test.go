package snapshot

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/marcoeg/crypto-tracer/internal/privacy"
)

type fakeReader struct {
	pids      []int
	libs      map[int][]string
	files     map[int][]string
	names     map[int]string
	runningAs map[int]string
}

func (f *fakeReader) ReadShortName(pid int) (string, error) {
	if v, ok := f.names[pid]; ok {
		return v, nil
	}
	return "", errors.New("not found")
}
func (f *fakeReader) ReadExeLink(pid int) (string, error)    { return "", errors.New("not found") }
func (f *fakeReader) ReadArgVector(pid int) (string, error)  { return "", errors.New("not found") }
func (f *fakeReader) ReadRunningAs(pid int) (string, error) {
	if v, ok := f.runningAs[pid]; ok {
		return v, nil
	}
	return "", errors.New("not found")
}
func (f *fakeReader) ListProcesses() ([]int, error)          { return f.pids, nil }
func (f *fakeReader) ListMappedLibraryPaths(pid int) ([]string, error) {
	return f.libs[pid], nil
}
func (f *fakeReader) ListOpenFilePaths(pid int) ([]string, error) {
	return f.files[pid], nil
}

func TestBuildRetainsOnlyCryptographicProcesses(t *testing.T) {
	r := &fakeReader{
		pids: []int{1, 2, 3},
		libs: map[int][]string{
			1: {"/usr/lib/libssl.so.1.1"},
			2: {"/usr/lib/libfoo.so"},
		},
		files: map[int][]string{
			3: {"/etc/ssl/certs/x.crt"},
		},
		names:     map[int]string{1: "nginx", 3: "vault"},
		runningAs: map[int]string{1: "www-data", 3: "vault"},
	}
	b := New(r, privacy.New(false), nil)

	snap := b.Build(context.Background(), HostInfo{Hostname: "host1", Kernel: "Linux 6.1"}, 42)

	require.Len(t, snap.Processes, 2)
	require.Equal(t, 1, snap.Processes[0].PID)
	require.Equal(t, "www-data", snap.Processes[0].RunningAs)
	require.Equal(t, 3, snap.Processes[1].PID)
	require.Equal(t, "vault", snap.Processes[1].RunningAs)
	require.Equal(t, 2, snap.Summary.ProcessCount)
	require.Equal(t, 1, snap.Summary.LibraryCount)
	require.Equal(t, 1, snap.Summary.FileCount)
	require.False(t, snap.Partial)
}

func TestBuildAppliesRedaction(t *testing.T) {
	r := &fakeReader{
		pids: []int{1},
		libs: map[int][]string{1: {"/home/alice/.local/lib/libssl.so"}},
	}
	b := New(r, privacy.New(false), nil)
	snap := b.Build(context.Background(), HostInfo{}, 0)
	require.Len(t, snap.Processes, 1)
	require.Equal(t, "/home/USER/.local/lib/libssl.so", snap.Processes[0].LibraryPaths[0])
}
