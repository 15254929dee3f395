package updatemanager

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/looplab/fsm"
	log "github.com/sirupsen/logrus"

	"github.com/genup/genup/client/internal/updatemanager/downloader"
	"github.com/genup/genup/client/internal/updatemanager/installer"
	"github.com/genup/genup/client/internal/updatemanager/manifest"
	"github.com/genup/genup/client/internal/updatemanager/publisher"
	"github.com/genup/genup/client/internal/updatemanager/status"
	"github.com/genup/genup/util"
	"github.com/genup/genup/version"
)

// States of a check operation
const (
	StateIdle             = "idle"
	StateStart            = "start"
	StateLoadLocalVersion = "load_local_version"
	StateFetchManifest    = "fetch_manifest"
	StateCompare          = "compare"
	StateNoUpdate         = "no_update"
	StateFetchPayload     = "fetch_payload"
	StateLaunch           = "launch"
	StateDone             = "done"
	StateFailed           = "failed"
)

const (
	eventReadVersion   = "read_version"
	eventFetchManifest = "fetch_manifest_document"
	eventCompare       = "compare_versions"
	eventSkip          = "skip"
	eventDownload      = "download_payload"
	eventLaunch        = "launch_payload"
	eventFinish        = "finish"
	eventFail          = "fail"
)

// VersionReader extracts the product identity of an executable
type VersionReader func(executablePath string) (version.Info, error)

// Result is the outcome of one check operation
type Result struct {
	// UpdateAvailable is true when a new payload has been downloaded, whether or not it could be launched
	UpdateAvailable bool
	LatestVersion   string
	DownloadURL     string
	// PayloadPath is the downloaded installer
	PayloadPath string
	Launched    bool
}

// Config of a Manager
type Config struct {
	ManifestURL string
	// TempDir receives manifest and payload downloads; os.TempDir when empty
	TempDir  string
	Policy   Policy
	Download downloader.Options
}

// Manager runs check and publish operations. A single Manager may serve many operations,
// but the caller keeps at most one check in flight (see Runner).
type Manager struct {
	manifestURL string
	policy      Policy

	fetcher     *manifest.Fetcher
	installer   *installer.Installer
	launcher    installer.Launcher
	readVersion VersionReader
	uploader    *publisher.Uploader

	current atomic.Pointer[fsm.FSM]
}

func NewManager(cfg Config) *Manager {
	d := downloader.New(cfg.Download)
	inst := installer.New(d, cfg.TempDir)

	policy := cfg.Policy
	if policy == "" {
		policy = PolicyExact
	}

	return &Manager{
		manifestURL: cfg.ManifestURL,
		policy:      policy,
		fetcher:     manifest.NewFetcher(d, inst.TempDir()),
		installer:   inst,
		launcher:    installer.SystemLauncher,
		readVersion: version.Read,
	}
}

// WithLauncher replaces the operating system launcher
func (m *Manager) WithLauncher(l installer.Launcher) *Manager {
	m.launcher = l
	return m
}

// WithVersionReader replaces the build info reader
func (m *Manager) WithVersionReader(r VersionReader) *Manager {
	m.readVersion = r
	return m
}

// WithUploader enables publishing to object storage
func (m *Manager) WithUploader(u *publisher.Uploader) *Manager {
	m.uploader = u
	return m
}

// State returns the state of the latest check operation
func (m *Manager) State() string {
	f := m.current.Load()
	if f == nil {
		return StateIdle
	}
	return f.Current()
}

func (m *Manager) TempDir() string {
	return m.installer.TempDir()
}

// CleanUp removes downloads left by previous operations
func (m *Manager) CleanUp() error {
	return m.installer.CleanUp()
}

// Check runs a single pass of the update decision for the executable at exePath:
// read the installed version, fetch the manifest, compare, then download and launch the payload.
// Fatal failures are reported once to observer as status.Error and returned as *Error.
func (m *Manager) Check(ctx context.Context, exePath string, observer status.Observer) (Result, error) {
	ctx = withOperationID(ctx)
	observer = status.OrDiscard(observer)
	logger := log.WithContext(ctx)

	f := newCheckFSM()
	m.current.Store(f)

	advance(ctx, f, eventReadVersion)
	info, err := m.readVersion(exePath)
	if err != nil {
		return Result{}, m.fail(ctx, f, observer, newError(VersionRead, "read version of "+exePath, err))
	}
	logger.Infof("installed %s %s", info.ProductName, info.ProductVersion)

	advance(ctx, f, eventFetchManifest)
	doc, err := m.fetcher.Fetch(ctx, m.manifestURL, observer)
	if err != nil {
		kind := Network
		if errors.Is(err, manifest.ErrMalformed) {
			kind = Store
		}
		return Result{}, m.fail(ctx, f, observer, newError(kind, "fetch manifest", err))
	}

	entry, ok := doc.Lookup(info.ProductName)
	if !ok {
		err := fmt.Errorf("%w: %q", manifest.ErrEntryNotFound, info.ProductName)
		return Result{}, m.fail(ctx, f, observer, newError(Store, "read manifest", err))
	}

	advance(ctx, f, eventCompare)
	result := Result{LatestVersion: entry.LatestVersion, DownloadURL: entry.DownloadURL}
	if !m.policy.UpdateAvailable(info.ProductVersion, entry.LatestVersion) {
		logger.Infof("%s is up to date (latest %q)", info.ProductName, entry.LatestVersion)
		advance(ctx, f, eventSkip)
		return result, nil
	}

	logger.Infof("update available for %s: %q -> %q", info.ProductName, info.ProductVersion, entry.LatestVersion)
	advance(ctx, f, eventDownload)
	status.Report(observer, status.InProgress, status.MsgDownloading)

	payload, err := m.installer.Download(ctx, entry.DownloadURL)
	if err != nil {
		return Result{}, m.fail(ctx, f, observer, newError(Network, "download payload", err))
	}
	result.UpdateAvailable = true
	result.PayloadPath = payload

	advance(ctx, f, eventLaunch)
	if err := m.launcher.Launch(payload); err != nil {
		logger.Warn(newError(Launch, "launch payload", err))
		status.Report(observer, status.InProgress, status.MsgLaunchFailed)
	} else {
		result.Launched = true
		status.Report(observer, status.InProgress, status.MsgLaunched)
	}

	advance(ctx, f, eventFinish)
	return result, nil
}

// PublishRequest describes a release to record in a manifest
type PublishRequest struct {
	// ExePath is the released executable; its product name and version are used unless overridden
	ExePath     string
	ProductName string
	Version     string
	DownloadURL string
	// ManifestPath defaults to the per-user location of the product manifest
	ManifestPath string
	// Bucket and Key upload the written manifest to object storage when Bucket is set
	Bucket string
	Key    string
}

// Publish upserts the release described by req in the manifest and returns the manifest path
func (m *Manager) Publish(ctx context.Context, req PublishRequest, observer status.Observer) (string, error) {
	ctx = withOperationID(ctx)
	observer = status.OrDiscard(observer)

	info := version.Info{ProductName: req.ProductName, ProductVersion: req.Version}
	if info.ProductName == "" || info.ProductVersion == "" {
		read, err := m.readVersion(req.ExePath)
		if err != nil {
			return "", m.report(ctx, observer, newError(VersionRead, "read version of "+req.ExePath, err))
		}
		if info.ProductName == "" {
			info.ProductName = read.ProductName
		}
		if info.ProductVersion == "" {
			info.ProductVersion = read.ProductVersion
		}
	}

	path := req.ManifestPath
	if path == "" {
		path = manifest.ResolvePath(req.ExePath, info.ProductName)
	}

	if err := manifest.Write(ctx, path, info.ProductName, info.ProductVersion, req.DownloadURL); err != nil {
		return "", m.report(ctx, observer, newError(Publish, "write manifest", err))
	}
	status.Report(observer, status.Success, status.MsgPublished)

	if req.Bucket == "" {
		return path, nil
	}

	if m.uploader == nil {
		return "", m.report(ctx, observer, newError(Publish, "upload manifest", errors.New("no object storage configured")))
	}
	if err := m.uploader.Upload(ctx, req.Bucket, req.Key, path); err != nil {
		return "", m.report(ctx, observer, newError(Publish, "upload manifest", err))
	}
	status.Report(observer, status.Success, status.MsgUploadedRemote)

	return path, nil
}

func (m *Manager) fail(ctx context.Context, f *fsm.FSM, observer status.Observer, err *Error) error {
	advance(ctx, f, eventFail)
	return m.report(ctx, observer, err)
}

func (m *Manager) report(ctx context.Context, observer status.Observer, err *Error) error {
	log.WithContext(ctx).Errorf("%s failed: %v", err.ErrorType, err)
	status.Report(observer, status.Error, err.Error())
	return err
}

func newCheckFSM() *fsm.FSM {
	running := []string{StateStart, StateLoadLocalVersion, StateFetchManifest, StateCompare, StateFetchPayload, StateLaunch}

	return fsm.NewFSM(
		StateStart,
		fsm.Events{
			{Name: eventReadVersion, Src: []string{StateStart}, Dst: StateLoadLocalVersion},
			{Name: eventFetchManifest, Src: []string{StateLoadLocalVersion}, Dst: StateFetchManifest},
			{Name: eventCompare, Src: []string{StateFetchManifest}, Dst: StateCompare},
			{Name: eventSkip, Src: []string{StateCompare}, Dst: StateNoUpdate},
			{Name: eventDownload, Src: []string{StateCompare}, Dst: StateFetchPayload},
			{Name: eventLaunch, Src: []string{StateFetchPayload}, Dst: StateLaunch},
			{Name: eventFinish, Src: []string{StateLaunch}, Dst: StateDone},
			{Name: eventFail, Src: running, Dst: StateFailed},
		},
		fsm.Callbacks{
			"enter_state": func(ctx context.Context, e *fsm.Event) {
				log.WithContext(ctx).Debugf("check %s -> %s", e.Src, e.Dst)
			},
		},
	)
}

func advance(ctx context.Context, f *fsm.FSM, event string) {
	if err := f.Event(ctx, event); err != nil {
		log.WithContext(ctx).Debugf("check state %s rejected %s: %v", f.Current(), event, err)
	}
}

func withOperationID(ctx context.Context) context.Context {
	if id, ok := ctx.Value(util.OperationIDKey).(string); ok && id != "" {
		return ctx
	}
	return context.WithValue(ctx, util.OperationIDKey, uuid.NewString())
}
