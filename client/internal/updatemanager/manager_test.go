package updatemanager

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genup/genup/client/internal/updatemanager/installer"
	"github.com/genup/genup/client/internal/updatemanager/manifest"
	"github.com/genup/genup/client/internal/updatemanager/publisher"
	"github.com/genup/genup/client/internal/updatemanager/status"
	"github.com/genup/genup/version"
)

const testProduct = "MyApp"

type updateServer struct {
	*httptest.Server
	manifestVersion string
	manifestStatus  atomic.Int32
	payloadStatus   atomic.Int32
	payloadHits     atomic.Int32
	manifestHits    atomic.Int32
}

func newUpdateServer(t *testing.T, manifestVersion string) *updateServer {
	t.Helper()

	s := &updateServer{manifestVersion: manifestVersion}
	s.manifestStatus.Store(http.StatusOK)
	s.payloadStatus.Store(http.StatusOK)

	mux := http.NewServeMux()
	mux.HandleFunc("/genup.xml", func(w http.ResponseWriter, r *http.Request) {
		s.manifestHits.Add(1)
		if code := int(s.manifestStatus.Load()); code != http.StatusOK {
			w.WriteHeader(code)
			return
		}
		_, _ = fmt.Fprintf(w, `<manifest><product name=%q><version>%s</version><download>%s/setup.msi</download></product></manifest>`,
			testProduct, s.manifestVersion, s.URL)
	})
	mux.HandleFunc("/setup.msi", func(w http.ResponseWriter, r *http.Request) {
		s.payloadHits.Add(1)
		if code := int(s.payloadStatus.Load()); code != http.StatusOK {
			w.WriteHeader(code)
			return
		}
		_, _ = w.Write([]byte("installer"))
	})

	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func fixedVersion(name, v string) VersionReader {
	return func(string) (version.Info, error) {
		return version.Info{ProductName: name, ProductVersion: v}, nil
	}
}

type recordingLauncher struct {
	launched []string
	err      error
}

func (l *recordingLauncher) Launch(path string) error {
	l.launched = append(l.launched, path)
	return l.err
}

func newTestManager(t *testing.T, srv *updateServer, installed string, launcher installer.Launcher) *Manager {
	t.Helper()
	return NewManager(Config{
		ManifestURL: srv.URL + "/genup.xml",
		TempDir:     t.TempDir(),
	}).WithVersionReader(fixedVersion(testProduct, installed)).WithLauncher(launcher)
}

func TestCheck_UpdateDownloadedAndLaunched(t *testing.T) {
	srv := newUpdateServer(t, "2.0.0.1")
	launcher := &recordingLauncher{}
	rec := &status.Recorder{}

	m := newTestManager(t, srv, "2.0.0.0", launcher)
	res, err := m.Check(context.Background(), "/opt/myapp", rec)
	require.NoError(t, err)

	assert.True(t, res.UpdateAvailable)
	assert.True(t, res.Launched)
	assert.Equal(t, "2.0.0.1", res.LatestVersion)
	assert.Equal(t, srv.URL+"/setup.msi", res.DownloadURL)
	assert.Equal(t, []string{res.PayloadPath}, launcher.launched)
	assert.Equal(t, ".msi", filepath.Ext(res.PayloadPath))

	assert.Equal(t, 0, rec.Count(status.Error))
	assert.Equal(t, []string{status.MsgConnecting, status.MsgDownloading, status.MsgLaunched}, rec.Messages(status.InProgress))
	assert.Equal(t, StateDone, m.State())
}

func TestCheck_EqualVersionsNoDownload(t *testing.T) {
	srv := newUpdateServer(t, "3.1.4.1")
	launcher := &recordingLauncher{}
	rec := &status.Recorder{}

	m := newTestManager(t, srv, "3.1.4.1", launcher)
	res, err := m.Check(context.Background(), "/opt/myapp", rec)
	require.NoError(t, err)

	assert.False(t, res.UpdateAvailable)
	assert.Equal(t, "3.1.4.1", res.LatestVersion)
	assert.Equal(t, int32(0), srv.payloadHits.Load())
	assert.Empty(t, launcher.launched)
	assert.Equal(t, 0, rec.Count(status.Error))
	assert.Equal(t, []string{status.MsgConnecting}, rec.Messages(status.InProgress))
	assert.Equal(t, StateNoUpdate, m.State())
}

func TestCheck_OlderManifestVersionIsAnUpdate(t *testing.T) {
	srv := newUpdateServer(t, "1.9.9.9")
	launcher := &recordingLauncher{}

	res, err := newTestManager(t, srv, "2.0.0.0", launcher).Check(context.Background(), "/opt/myapp", nil)
	require.NoError(t, err)

	assert.True(t, res.UpdateAvailable)
	assert.Equal(t, int32(1), srv.payloadHits.Load())
}

func TestCheck_NewerPolicySkipsOlderManifest(t *testing.T) {
	srv := newUpdateServer(t, "1.9.9.9")

	m := NewManager(Config{
		ManifestURL: srv.URL + "/genup.xml",
		TempDir:     t.TempDir(),
		Policy:      PolicyNewer,
	}).WithVersionReader(fixedVersion(testProduct, "2.0.0.0")).WithLauncher(&recordingLauncher{})

	res, err := m.Check(context.Background(), "/opt/myapp", nil)
	require.NoError(t, err)
	assert.False(t, res.UpdateAvailable)
	assert.Equal(t, int32(0), srv.payloadHits.Load())
}

func TestCheck_LaunchFailureStillReportsUpdate(t *testing.T) {
	srv := newUpdateServer(t, "2.0.0.1")
	launcher := &recordingLauncher{err: errors.New("no application associated")}
	rec := &status.Recorder{}

	res, err := newTestManager(t, srv, "2.0.0.0", launcher).Check(context.Background(), "/opt/myapp", rec)
	require.NoError(t, err)

	assert.True(t, res.UpdateAvailable)
	assert.False(t, res.Launched)
	assert.Equal(t, 0, rec.Count(status.Error))
	assert.Equal(t, []string{status.MsgConnecting, status.MsgDownloading, status.MsgLaunchFailed}, rec.Messages(status.InProgress))
}

func TestCheck_ManifestFetchFailure(t *testing.T) {
	srv := newUpdateServer(t, "2.0.0.1")
	srv.manifestStatus.Store(http.StatusServiceUnavailable)
	launcher := &recordingLauncher{}
	rec := &status.Recorder{}

	m := newTestManager(t, srv, "2.0.0.0", launcher)
	res, err := m.Check(context.Background(), "/opt/myapp", rec)
	require.Error(t, err)

	e, ok := FromError(err)
	require.True(t, ok)
	assert.Equal(t, Network, e.Type())

	assert.False(t, res.UpdateAvailable)
	assert.Equal(t, 1, rec.Count(status.Error))
	assert.Equal(t, int32(0), srv.payloadHits.Load())
	assert.Empty(t, launcher.launched)
	assert.Equal(t, StateFailed, m.State())
}

func TestCheck_MissingEntryIsAFailure(t *testing.T) {
	srv := newUpdateServer(t, "2.0.0.1")
	rec := &status.Recorder{}

	m := NewManager(Config{ManifestURL: srv.URL + "/genup.xml", TempDir: t.TempDir()}).
		WithVersionReader(fixedVersion("OtherApp", "1.0")).
		WithLauncher(&recordingLauncher{})

	res, err := m.Check(context.Background(), "/opt/otherapp", rec)
	require.ErrorIs(t, err, manifest.ErrEntryNotFound)

	e, ok := FromError(err)
	require.True(t, ok)
	assert.Equal(t, Store, e.Type())
	assert.False(t, res.UpdateAvailable)
	assert.Equal(t, 1, rec.Count(status.Error))
	assert.Equal(t, int32(0), srv.payloadHits.Load())
}

func TestCheck_VersionReadFailure(t *testing.T) {
	srv := newUpdateServer(t, "2.0.0.1")
	rec := &status.Recorder{}

	m := NewManager(Config{ManifestURL: srv.URL + "/genup.xml", TempDir: t.TempDir()}).
		WithVersionReader(func(string) (version.Info, error) { return version.Info{}, version.ErrNoVersionInfo }).
		WithLauncher(&recordingLauncher{})

	_, err := m.Check(context.Background(), "/opt/myapp", rec)
	require.ErrorIs(t, err, version.ErrNoVersionInfo)

	e, ok := FromError(err)
	require.True(t, ok)
	assert.Equal(t, VersionRead, e.Type())
	assert.Equal(t, []status.Event{{Kind: status.Error, Message: err.Error()}}, rec.Events)
	assert.Equal(t, int32(0), srv.manifestHits.Load())
}

func TestCheck_PayloadDownloadFailure(t *testing.T) {
	srv := newUpdateServer(t, "2.0.0.1")
	srv.payloadStatus.Store(http.StatusNotFound)
	launcher := &recordingLauncher{}
	rec := &status.Recorder{}

	res, err := newTestManager(t, srv, "2.0.0.0", launcher).Check(context.Background(), "/opt/myapp", rec)
	require.Error(t, err)

	assert.False(t, res.UpdateAvailable)
	assert.Empty(t, launcher.launched)
	assert.Equal(t, 1, rec.Count(status.Error))
	assert.Equal(t, []string{status.MsgConnecting, status.MsgDownloading}, rec.Messages(status.InProgress))
}

func TestCheck_MalformedManifest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<manifest><product"))
	}))
	defer srv.Close()

	m := NewManager(Config{ManifestURL: srv.URL + "/genup.xml", TempDir: t.TempDir()}).
		WithVersionReader(fixedVersion(testProduct, "1.0")).
		WithLauncher(&recordingLauncher{})

	_, err := m.Check(context.Background(), "/opt/myapp", nil)
	require.ErrorIs(t, err, manifest.ErrMalformed)

	e, ok := FromError(err)
	require.True(t, ok)
	assert.Equal(t, Store, e.Type())
}

func TestPublish_WritesManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "MyApp.xml")
	rec := &status.Recorder{}

	m := NewManager(Config{}).WithVersionReader(fixedVersion(testProduct, "1.0.0.1"))
	got, err := m.Publish(context.Background(), PublishRequest{
		ExePath:      "/opt/myapp",
		DownloadURL:  "http://x/y.msi",
		ManifestPath: path,
	}, rec)
	require.NoError(t, err)
	assert.Equal(t, path, got)

	entry, err := manifest.Read(path, testProduct)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0.1", entry.LatestVersion)
	assert.Equal(t, "http://x/y.msi", entry.DownloadURL)

	assert.Equal(t, []string{status.MsgPublished}, rec.Messages(status.Success))
}

func TestPublish_OverridesSkipVersionRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "MyApp.json")

	m := NewManager(Config{}).WithVersionReader(func(string) (version.Info, error) {
		return version.Info{}, errors.New("must not be called")
	})
	_, err := m.Publish(context.Background(), PublishRequest{
		ProductName:  testProduct,
		Version:      "5.0",
		DownloadURL:  "http://x/y.msi",
		ManifestPath: path,
	}, nil)
	require.NoError(t, err)

	entry, err := manifest.Read(path, testProduct)
	require.NoError(t, err)
	assert.Equal(t, "5.0", entry.LatestVersion)
}

type memPutter struct {
	keys []string
}

func (p *memPutter) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	p.keys = append(p.keys, *params.Bucket+"/"+*params.Key)
	return &s3.PutObjectOutput{}, nil
}

func TestPublish_UploadsToBucket(t *testing.T) {
	path := filepath.Join(t.TempDir(), "MyApp.xml")
	putter := &memPutter{}
	rec := &status.Recorder{}

	m := NewManager(Config{}).
		WithVersionReader(fixedVersion(testProduct, "1.0")).
		WithUploader(publisher.NewUploader(putter))

	_, err := m.Publish(context.Background(), PublishRequest{
		ExePath:      "/opt/myapp",
		DownloadURL:  "http://x/y.msi",
		ManifestPath: path,
		Bucket:       "releases",
		Key:          "stable/MyApp.xml",
	}, rec)
	require.NoError(t, err)

	assert.Equal(t, []string{"releases/stable/MyApp.xml"}, putter.keys)
	assert.Equal(t, []string{status.MsgPublished, status.MsgUploadedRemote}, rec.Messages(status.Success))
}

func TestPublish_BucketWithoutUploader(t *testing.T) {
	rec := &status.Recorder{}
	m := NewManager(Config{}).WithVersionReader(fixedVersion(testProduct, "1.0"))

	_, err := m.Publish(context.Background(), PublishRequest{
		DownloadURL:  "http://x/y.msi",
		ManifestPath: filepath.Join(t.TempDir(), "MyApp.xml"),
		Bucket:       "releases",
	}, rec)
	require.Error(t, err)

	e, ok := FromError(err)
	require.True(t, ok)
	assert.Equal(t, Publish, e.Type())
	assert.Equal(t, 1, rec.Count(status.Error))
}

func TestCleanUp(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "GUP1.msi"), []byte("x"), 0o644))

	require.NoError(t, NewManager(Config{TempDir: dir}).CleanUp())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyExact, p)

	p, err = ParsePolicy("newer")
	require.NoError(t, err)
	assert.Equal(t, PolicyNewer, p)

	_, err = ParsePolicy("channel")
	assert.Error(t, err)
}

func TestPolicyNewer(t *testing.T) {
	testCases := []struct {
		installed, latest string
		expected          bool
	}{
		{"2.0.0.0", "2.0.0.1", true},
		{"2.0.0.1", "2.0.0.0", false},
		{"2.0.0.0", "2.0.0.0", false},
		{"2.0.0.0", "not-a-version", false},
		{"development", "1.0.0", true},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.expected, PolicyNewer.UpdateAvailable(tc.installed, tc.latest), "%s -> %s", tc.installed, tc.latest)
	}
}
