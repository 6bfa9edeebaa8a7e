package remote

import (
	"context"
	"io/fs"
	"net"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"

	"github.com/roach88/noiseablate/internal/channel"
	"github.com/roach88/noiseablate/internal/harness"
	"github.com/roach88/noiseablate/internal/library"
	"github.com/roach88/noiseablate/internal/manifest"
	"github.com/roach88/noiseablate/internal/noise"
	"github.com/roach88/noiseablate/internal/testutil"
	"github.com/roach88/noiseablate/internal/variant"
)

// startServer serves a native library over an in-memory listener.
func startServer(t *testing.T) (*Server, *Client) {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := NewServer(library.NewNative(), nil)
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	client, err := Dial("passthrough:///bufnet", WithDialOptions(
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
	))
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return srv, client
}

func scanFile(t *testing.T) string {
	t.Helper()
	return testutil.WriteScan(t, t.TempDir(), "remote.fil", testutil.ScanSpec{Spectra: 16, Channels: 16})
}

func TestClient_ReadChannelMatchesNative(t *testing.T) {
	ctx := context.Background()
	srv, client := startServer(t)
	path := scanFile(t)

	rscan, err := client.OpenScan(ctx, path, 8)
	require.NoError(t, err)
	assert.Equal(t, 1, srv.OpenScans())
	assert.Equal(t, 2, rscan.CoarseChannels())

	nscan, err := library.NewNative().OpenScan(ctx, path, 8)
	require.NoError(t, err)
	defer nscan.Close()

	got, err := rscan.ReadChannel(ctx, 1)
	require.NoError(t, err)
	want, err := nscan.ReadChannel(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	require.NoError(t, rscan.Close())
	assert.Equal(t, 0, srv.OpenScans())
}

func TestClient_StepsMatchNative(t *testing.T) {
	ctx := context.Background()
	_, client := startServer(t)
	native := library.NewNative()

	nscan, err := native.OpenScan(ctx, scanFile(t), 16)
	require.NoError(t, err)
	defer nscan.Close()
	base, err := nscan.ReadChannel(ctx, 0)
	require.NoError(t, err)

	steps := map[string]func(library.Library) (*channel.View, error){
		"bind": func(l library.Library) (*channel.View, error) {
			return l.BindDevice(ctx, base, channel.Device{Kind: "cpu", Index: 1})
		},
		"rolloff": func(l library.Library) (*channel.View, error) {
			return l.FlagRolloff(ctx, base, 0.25)
		},
		"sk": func(l library.Library) (*channel.View, error) {
			return l.FlagSpectralKurtosis(ctx, base, 0.05, 25)
		},
		"sigmaclip": func(l library.Library) (*channel.View, error) {
			return l.FlagSigmaClip(ctx, base, 3, 4, 5)
		},
		"passband": func(l library.Library) (*channel.View, error) {
			return l.CorrectPassband(ctx, base, []float64{0.5, 0.75, 1, 1, 1, 1, 0.75, 0.5})
		},
	}
	for name, step := range steps {
		t.Run(name, func(t *testing.T) {
			want, err := step(native)
			require.NoError(t, err)
			got, err := step(client)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}

	flagged, err := native.FlagRolloff(ctx, base, 0.25)
	require.NoError(t, err)
	opts := noise.Options{UseMask: true, Method: noise.MethodMAD}
	want, err := native.EstimateNoise(ctx, flagged, opts)
	require.NoError(t, err)
	got, err := client.EstimateNoise(ctx, flagged, opts)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestClient_ErrorsKeepTheirIdentity(t *testing.T) {
	ctx := context.Background()
	_, client := startServer(t)

	_, err := client.OpenScan(ctx, filepath.Join(t.TempDir(), "missing.fil"), 8)
	assert.ErrorIs(t, err, fs.ErrNotExist)

	scan, err := client.OpenScan(ctx, scanFile(t), 8)
	require.NoError(t, err)
	defer scan.Close()

	_, err = scan.ReadChannel(ctx, 5)
	assert.ErrorIs(t, err, library.ErrChannelOutOfRange)

	v, err := scan.ReadChannel(ctx, 0)
	require.NoError(t, err)
	_, err = client.BindDevice(ctx, v, channel.Device{Kind: "cuda"})
	assert.ErrorIs(t, err, library.ErrDeviceUnavailable)

	for i := range v.Mask {
		v.Mask[i] = true
	}
	_, err = client.EstimateNoise(ctx, v, noise.Options{UseMask: true})
	assert.ErrorIs(t, err, noise.ErrNoSamples)
}

func TestClient_CancelledContext(t *testing.T) {
	_, client := startServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.OpenScan(ctx, scanFile(t), 8)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClient_DrivesHarness(t *testing.T) {
	ctx := context.Background()
	_, client := startServer(t)

	reg, err := variant.Default(variant.DefaultParams())
	require.NoError(t, err)
	entries := []manifest.Entry{{
		Key:                   "remote",
		Name:                  "remote",
		Path:                  scanFile(t),
		FineChannelsPerCoarse: 8,
		CoarseChannel:         1,
		SignalFree:            manifest.Range{Lower: 2, Upper: 6},
		Passband:              []float64{0.5, 1, 1, 1, 1, 1, 1, 0.5},
	}}

	want, err := harness.New(library.NewNative(), reg).Run(ctx, entries)
	require.NoError(t, err)
	got, err := harness.New(client, reg, harness.WithWorkers(3)).Run(ctx, entries)
	require.NoError(t, err)

	assert.Empty(t, got.Failures())
	for _, name := range reg.Names() {
		w, _ := want.Matrix.Row(name)
		g, _ := got.Matrix.Row(name)
		if diff := cmp.Diff(w, g, cmpopts.EquateNaNs()); diff != "" {
			t.Errorf("%s mismatch (-native +remote):\n%s", name, diff)
		}
	}
}
