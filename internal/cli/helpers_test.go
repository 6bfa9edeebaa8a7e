package cli

import (
	"bytes"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/noiseablate/internal/testutil"
)

// execute runs the root command with args and returns stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCommand()
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

// decodeData unmarshals the data of a JSON CLIResponse into v.
func decodeData(t *testing.T, stdout string, v any) CLIResponse {
	t.Helper()
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp), "stdout: %s", stdout)
	if v != nil && resp.Data != nil {
		raw, err := json.Marshal(resp.Data)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, v))
	}
	return resp
}

// writeFixture writes recordings X and Y (16 spectra x 8 channels) and a
// manifest listing them. X carries a passband response. A non-empty
// missing names an entry whose data file is never written.
func writeFixture(t *testing.T, missing string) (dir, manifestPath string) {
	t.Helper()
	dir = t.TempDir()
	entries := make([]testutil.ManifestEntry, 0, 2)
	for _, name := range []string{"X", "Y"} {
		path := name + ".fil"
		if name != missing {
			testutil.WriteScan(t, dir, path, testutil.ScanSpec{Spectra: 16, Channels: 8})
		}
		e := testutil.ManifestEntry{Key: name, Path: path, NFPC: 8, Lower: 2, Upper: 6}
		if name == "X" {
			e.Passband = []float64{0.5, 1, 1, 0.5}
		}
		entries = append(entries, e)
	}
	return dir, testutil.WriteManifest(t, dir, entries...)
}

// syncBuffer is a bytes.Buffer safe for a writer and a reader goroutine.
type syncBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}
