package updatemanager

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func genDottedVersion() gopter.Gen {
	return gen.SliceOfN(4, gen.IntRange(0, 12)).Map(func(parts []int) string {
		s := make([]string, len(parts))
		for i, p := range parts {
			s[i] = fmt.Sprint(p)
		}
		return strings.Join(s, ".")
	})
}

func TestProperty_ExactPolicyIsStringInequality(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("update available iff strings differ",
		prop.ForAll(
			func(installed, latest string) bool {
				return PolicyExact.UpdateAvailable(installed, latest) == (installed != latest)
			},
			gen.AnyString(),
			gen.AnyString(),
		))

	properties.Property("equal strings never update",
		prop.ForAll(
			func(v string) bool {
				return !PolicyExact.UpdateAvailable(v, v)
			},
			gen.AnyString(),
		))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestProperty_CheckDownloadsIffVersionsDiffer(t *testing.T) {
	var manifestVersion atomic.Pointer[string]
	var payloadHits atomic.Int32

	var srv *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/genup.xml", func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprintf(w, `<manifest><product name=%q><version>%s</version><download>%s/setup.msi</download></product></manifest>`,
			testProduct, *manifestVersion.Load(), srv.URL)
	})
	mux.HandleFunc("/setup.msi", func(w http.ResponseWriter, r *http.Request) {
		payloadHits.Add(1)
		_, _ = w.Write([]byte("installer"))
	})
	srv = httptest.NewServer(mux)
	defer srv.Close()

	tempDir := t.TempDir()
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 40
	properties := gopter.NewProperties(parameters)

	properties.Property("payload is fetched exactly when the versions differ",
		prop.ForAll(
			func(installed, latest string) bool {
				manifestVersion.Store(&latest)
				before := payloadHits.Load()

				launcher := &recordingLauncher{}
				m := NewManager(Config{ManifestURL: srv.URL + "/genup.xml", TempDir: tempDir}).
					WithVersionReader(fixedVersion(testProduct, installed)).
					WithLauncher(launcher)

				res, err := m.Check(context.Background(), "/opt/myapp", nil)
				if err != nil {
					return false
				}

				downloaded := payloadHits.Load() - before
				if installed == latest {
					return !res.UpdateAvailable && downloaded == 0 && len(launcher.launched) == 0
				}
				return res.UpdateAvailable && downloaded == 1 && len(launcher.launched) == 1
			},
			genDottedVersion(),
			gen.OneGenOf(genDottedVersion(), gen.Const("2.0.0.0"), gen.Const("0.0.0.1")),
		))

	properties.Property("identical versions never fetch the payload",
		prop.ForAll(
			func(v string) bool {
				manifestVersion.Store(&v)
				before := payloadHits.Load()

				m := NewManager(Config{ManifestURL: srv.URL + "/genup.xml", TempDir: tempDir}).
					WithVersionReader(fixedVersion(testProduct, v)).
					WithLauncher(&recordingLauncher{})

				res, err := m.Check(context.Background(), "/opt/myapp", nil)
				return err == nil && !res.UpdateAvailable && payloadHits.Load() == before
			},
			genDottedVersion(),
		))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
