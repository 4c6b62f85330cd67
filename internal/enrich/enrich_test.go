package enrich

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/marcoeg/crypto-tracer/internal/event"
)

type fakeReader struct {
	names map[int]string
	exes  map[int]string
	args  map[int]string
}

func (f *fakeReader) ReadShortName(pid int) (string, error) {
	if v, ok := f.names[pid]; ok {
		return v, nil
	}
	return "", errors.New("not found")
}

func (f *fakeReader) ReadExeLink(pid int) (string, error) {
	if v, ok := f.exes[pid]; ok {
		return v, nil
	}
	return "", errors.New("not found")
}

func (f *fakeReader) ReadArgVector(pid int) (string, error) {
	if v, ok := f.args[pid]; ok {
		return v, nil
	}
	return "", errors.New("not found")
}

func (f *fakeReader) ReadRunningAs(pid int) (string, error)             { return "", errors.New("not found") }
func (f *fakeReader) ListProcesses() ([]int, error)                     { return nil, nil }
func (f *fakeReader) ListMappedLibraryPaths(pid int) ([]string, error)  { return nil, nil }
func (f *fakeReader) ListOpenFilePaths(pid int) ([]string, error)       { return nil, nil }

func TestEnrichPopulatesMissingFields(t *testing.T) {
	r := &fakeReader{
		names: map[int]string{1234: "nginx"},
		exes:  map[int]string{1234: "/usr/sbin/nginx"},
		args:  map[int]string{1234: "nginx -g daemon off;"},
	}
	e := New(r, nil)

	rec := &event.Record{Kind: event.KindProcessExec, PID: 1234}
	e.Enrich(rec)

	require.Equal(t, "nginx", rec.ProcessName)
	require.Equal(t, "/usr/sbin/nginx", rec.ExecutablePath)
	require.Equal(t, "nginx -g daemon off;", rec.CommandLine)
}

func TestEnrichNeverOverwritesPopulatedFields(t *testing.T) {
	r := &fakeReader{names: map[int]string{1234: "nginx"}}
	e := New(r, nil)

	rec := &event.Record{Kind: event.KindFileOpen, PID: 1234, ProcessName: "producer-hint"}
	e.Enrich(rec)

	require.Equal(t, "producer-hint", rec.ProcessName)
}

func TestEnrichMissingProcessIsNonFatal(t *testing.T) {
	r := &fakeReader{}
	e := New(r, nil)

	rec := &event.Record{Kind: event.KindFileOpen, PID: 9999}
	e.Enrich(rec)

	require.Equal(t, "", rec.ProcessName)
	require.Equal(t, "", rec.ExecutablePath)
}

func TestEnrichCommandLineOnlyForProcessExec(t *testing.T) {
	r := &fakeReader{args: map[int]string{1234: "something"}}
	e := New(r, nil)

	rec := &event.Record{Kind: event.KindFileOpen, PID: 1234}
	e.Enrich(rec)

	require.Equal(t, "", rec.CommandLine)
}
