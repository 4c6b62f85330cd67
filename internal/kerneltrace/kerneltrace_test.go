package kerneltrace

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func putCString(buf []byte, s string) {
	copy(buf, s)
}

func buildHeader(ts int64, pid, uid uint32, comm string, et EventType) []byte {
	buf := make([]byte, headerWidth)
	le := binary.LittleEndian
	le.PutUint64(buf[0:8], uint64(ts))
	le.PutUint32(buf[8:12], pid)
	le.PutUint32(buf[12:16], uid)
	putCString(buf[16:16+commWidth], comm)
	le.PutUint32(buf[16+commWidth:headerWidth], uint32(et))
	return buf
}

func TestDecodeFileOpen(t *testing.T) {
	buf := buildHeader(1609459200000000000, 1234, 1000, "openssl", EventTypeFileOpen)
	payload := make([]byte, fileOpenPathWidth+8)
	putCString(payload[:fileOpenPathWidth], "/etc/ssl/certs/server.crt")
	binary.LittleEndian.PutUint32(payload[fileOpenPathWidth:fileOpenPathWidth+4], 0)
	binary.LittleEndian.PutUint32(payload[fileOpenPathWidth+4:fileOpenPathWidth+8], 3)
	buf = append(buf, payload...)

	ev, err := decodeRawEvent(buf)
	require.NoError(t, err)
	require.Equal(t, EventTypeFileOpen, ev.EventType)
	require.Equal(t, uint32(1234), ev.PID)
	require.Equal(t, uint32(1000), ev.UID)
	require.Equal(t, "openssl", ev.Comm)
	require.Equal(t, "/etc/ssl/certs/server.crt", ev.FileName)
	require.Equal(t, int32(3), ev.SyscallResult)
}

func TestDecodeLibLoad(t *testing.T) {
	buf := buildHeader(1, 2, 3, "nginx", EventTypeLibLoad)
	payload := make([]byte, libPathWidth)
	putCString(payload, "/usr/lib/libssl.so.1.1")
	buf = append(buf, payload...)

	ev, err := decodeRawEvent(buf)
	require.NoError(t, err)
	require.Equal(t, "/usr/lib/libssl.so.1.1", ev.LibPath)
}

func TestDecodeProcessExec(t *testing.T) {
	buf := buildHeader(1, 2, 3, "bash", EventTypeProcessExec)
	payload := make([]byte, 4+execCmdlineWidth)
	binary.LittleEndian.PutUint32(payload[0:4], 99)
	putCString(payload[4:], "ls -la")
	buf = append(buf, payload...)

	ev, err := decodeRawEvent(buf)
	require.NoError(t, err)
	require.Equal(t, uint32(99), ev.ParentPID)
	require.Equal(t, "ls -la", ev.Cmdline)
}

func TestDecodeProcessExit(t *testing.T) {
	buf := buildHeader(1, 2, 3, "sh", EventTypeProcessExit)
	payload := make([]byte, 4)
	binary.LittleEndian.PutUint32(payload, uint32(int32(-1)))
	buf = append(buf, payload...)

	ev, err := decodeRawEvent(buf)
	require.NoError(t, err)
	require.Equal(t, int32(-1), ev.ExitCode)
}

func TestDecodeAPICall(t *testing.T) {
	buf := buildHeader(1, 2, 3, "curl", EventTypeAPICall)
	payload := make([]byte, apiFuncWidth+apiLibWidth)
	putCString(payload[:apiFuncWidth], "SSL_read")
	putCString(payload[apiFuncWidth:], "libssl.so.1.1")
	buf = append(buf, payload...)

	ev, err := decodeRawEvent(buf)
	require.NoError(t, err)
	require.Equal(t, "SSL_read", ev.FunctionName)
	require.Equal(t, "libssl.so.1.1", ev.APILibrary)
}

func TestDecodeShortRecordErrors(t *testing.T) {
	_, err := decodeRawEvent(make([]byte, 4))
	require.Error(t, err)
}

func TestDecodeTruncatedPayloadToleratesMissingFields(t *testing.T) {
	buf := buildHeader(1, 2, 3, "x", EventTypeFileOpen)
	ev, err := decodeRawEvent(buf) // no payload appended at all
	require.NoError(t, err)
	require.Equal(t, "", ev.FileName)
}
