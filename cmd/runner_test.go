package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/desertthunder/tunebox/internal/models"
	"github.com/desertthunder/tunebox/internal/repositories"
	"github.com/desertthunder/tunebox/internal/services"
	"github.com/desertthunder/tunebox/internal/shared"
	tu "github.com/desertthunder/tunebox/internal/testing"
)

// offline builds every remote provider as unavailable.
func offline(record *models.ProviderRecord) (services.Service, error) {
	return services.NewUnavailableService(record.Identifier(), record.Endpoint(), errors.New("offline")), nil
}

type testApp struct {
	dir        string
	configPath string
	output     *bytes.Buffer
}

// setupApp writes a config whose database and library live in a temp dir.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "music"), 0755); err != nil {
		t.Fatalf("failed to create library: %v", err)
	}

	configPath := filepath.Join(dir, "config.toml")
	config := fmt.Sprintf(`[database]
path = '%s'

[library]
paths = ['%s']

[log]
level = "error"
`, filepath.Join(dir, "data", "tunebox.db"), filepath.Join(dir, "music"))
	if err := os.WriteFile(configPath, []byte(config), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	return &testApp{dir: dir, configPath: configPath, output: &bytes.Buffer{}}
}

// run executes one command line on a fresh runner, like a separate process would.
func (a *testApp) run(t *testing.T, args ...string) error {
	t.Helper()
	a.output.Reset()
	runner := NewRunner(RunnerOpts{
		Logger:  shared.NewLogger(io.Discard),
		Output:  a.output,
		Factory: offline,
	})
	argv := append([]string{"tunebox", "--config", a.configPath}, args...)
	return runner.App().Run(context.Background(), argv)
}

func (a *testApp) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	if err := a.run(t, args...); err != nil {
		t.Fatalf("tunebox %s: %v", strings.Join(args, " "), err)
	}
	return a.output.String()
}

func (a *testApp) playlists(t *testing.T) []models.Playlist {
	t.Helper()
	var playlists []models.Playlist
	if err := json.Unmarshal([]byte(a.mustRun(t, "--format", "json", "playlists")), &playlists); err != nil {
		t.Fatalf("failed to decode playlists: %v", err)
	}
	return playlists
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			httpClient := &http.Client{}

			runner := NewRunner(RunnerOpts{
				Config:     config,
				ConfigPath: "other.toml",
				Logger:     logger,
				Output:     output,
				HTTPClient: httpClient,
				Factory:    offline,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.configPath != "other.toml" {
				t.Errorf("expected config path other.toml, got %s", runner.configPath)
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.httpClient != httpClient {
				t.Error("expected httpClient to be set")
			}
			if runner.factory == nil {
				t.Error("expected factory to be set")
			}
		})

		t.Run("with nil logger uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Logger: nil})

			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
		})

		t.Run("with nil output uses stdout", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: nil})

			if runner.output != os.Stdout {
				t.Error("expected output to default to stdout")
			}
		})

		t.Run("with nil http client uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{HTTPClient: nil})

			if runner.httpClient != http.DefaultClient {
				t.Error("expected default http client")
			}
		})

		t.Run("with empty config path uses config.toml", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.configPath != "config.toml" {
				t.Errorf("expected config.toml, got %s", runner.configPath)
			}
			if runner.config != nil {
				t.Error("expected config to be loaded on init")
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		commands := runner.register()

		names := make([]string, 0, len(commands))
		for _, c := range commands {
			names = append(names, c.Name)
		}
		for _, want := range []string{"setup", "providers", "albums", "search", "show", "playlist", "scan", "serve"} {
			if !slices.Contains(names, want) {
				t.Errorf("expected command %s in %v", want, names)
			}
		}
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("with failing writer returns error", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			if err := runner.writePlain("hello %s", "world"); err == nil {
				t.Error("expected write error")
			}
		})

		t.Run("with limited writer fails after limit", func(t *testing.T) {
			buf := &bytes.Buffer{}
			w := tu.NewLimitedWriter(1, 0, buf)
			runner := NewRunner(RunnerOpts{Output: &w})

			if err := runner.writePlainln("first"); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if err := runner.writePlainln("second"); err == nil {
				t.Error("expected write limit error")
			}
			if buf.String() != "first\n" {
				t.Errorf("expected only the first line, got %q", buf.String())
			}
		})
	})

	t.Run("deviceID", func(t *testing.T) {
		db, err := shared.OpenDatabase(shared.DatabaseConfig{Path: ":memory:"})
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		store := repositories.NewStore(db)
		t.Cleanup(func() { store.Close() })

		runner := NewRunner(RunnerOpts{Logger: shared.NewLogger(io.Discard)})
		first, err := runner.deviceID(store)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		second, err := runner.deviceID(store)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if first == "" || first != second {
			t.Errorf("expected a stable device id, got %q then %q", first, second)
		}
	})
}

func TestApp(t *testing.T) {
	t.Run("setup", func(t *testing.T) {
		t.Run("with existing config creates database", func(t *testing.T) {
			app := setupApp(t)

			out := app.mustRun(t, "setup")
			if !strings.Contains(out, "database ready") {
				t.Errorf("expected database ready message, got %q", out)
			}
			tu.AssertDirExists(t, filepath.Join(app.dir, "data"))
			tu.AssertFileExists(t, filepath.Join(app.dir, "data", "tunebox.db"))
		})

		t.Run("migrate rolls back and reapplies", func(t *testing.T) {
			app := setupApp(t)
			app.mustRun(t, "setup")

			if out := app.mustRun(t, "migrate", "--rollback"); !strings.Contains(out, "schema version -1") {
				t.Errorf("expected no applied migrations, got %q", out)
			}
			if out := app.mustRun(t, "migrate"); !strings.Contains(out, "schema version 0") {
				t.Errorf("expected the first migration applied, got %q", out)
			}
		})

		t.Run("without config creates one in the working directory", func(t *testing.T) {
			wd := tu.MustGetwd(t)
			dir := t.TempDir()
			tu.MustChdir(t, dir)
			t.Cleanup(func() { tu.MustChdir(t, wd) })

			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Logger: shared.NewLogger(io.Discard), Output: output})
			if err := runner.App().Run(context.Background(), []string{"tunebox", "setup"}); err != nil {
				t.Fatalf("setup failed: %v", err)
			}

			tu.AssertFileExists(t, filepath.Join(dir, "config.toml"))
			tu.AssertFileExists(t, filepath.Join(dir, "tunebox.db"))
			if content := tu.MustReadFile(t, filepath.Join(dir, "config.toml")); !strings.Contains(content, "[database]") {
				t.Errorf("expected the template config, got %q", content)
			}
			if !strings.Contains(output.String(), "created config file") {
				t.Errorf("expected config creation message, got %q", output.String())
			}
		})
	})

	t.Run("playlists", func(t *testing.T) {
		t.Run("create then list as json", func(t *testing.T) {
			app := setupApp(t)

			if out := app.mustRun(t, "playlist", "create", "Mix"); !strings.Contains(out, "created") {
				t.Errorf("expected creation message, got %q", out)
			}
			playlists := app.playlists(t)
			if len(playlists) != 1 || playlists[0].Name != "Mix" {
				t.Fatalf("expected playlist Mix, got %+v", playlists)
			}

			app.mustRun(t, "playlist", "rename", playlists[0].URI, "Evening")
			if got := app.playlists(t); len(got) != 1 || got[0].Name != "Evening" {
				t.Errorf("expected renamed playlist, got %+v", got)
			}

			app.mustRun(t, "playlist", "delete", playlists[0].URI)
			if got := app.playlists(t); len(got) != 0 {
				t.Errorf("expected no playlists, got %+v", got)
			}
		})

		t.Run("import and export round trip", func(t *testing.T) {
			app := setupApp(t)
			track := filepath.Join(app.dir, "music", "first light.mp3")
			if err := os.WriteFile(track, []byte("not really audio"), 0644); err != nil {
				t.Fatalf("failed to write track: %v", err)
			}
			if out := app.mustRun(t, "scan"); !strings.Contains(out, "Scan complete: 1 added") {
				t.Errorf("expected scan summary, got %q", out)
			}

			m3u := filepath.Join(app.dir, "in.m3u")
			content := "#EXTM3U\n#EXTINF:-1,first light\n/elsewhere/first light.mp3\n/elsewhere/missing.mp3\n"
			if err := os.WriteFile(m3u, []byte(content), 0644); err != nil {
				t.Fatalf("failed to write playlist: %v", err)
			}

			out := app.mustRun(t, "playlist", "import", "--name", "Imported", m3u)
			if !strings.Contains(out, "imported 1 entries into Imported") {
				t.Errorf("expected import summary, got %q", out)
			}
			if !strings.Contains(out, "no match for /elsewhere/missing.mp3") {
				t.Errorf("expected unresolved entry warning, got %q", out)
			}

			playlists := app.playlists(t)
			if len(playlists) != 1 {
				t.Fatalf("expected one playlist, got %+v", playlists)
			}

			exported := filepath.Join(app.dir, "out.m3u")
			app.mustRun(t, "playlist", "export", "--output", exported, playlists[0].URI)
			if got := tu.MustReadFile(t, exported); !strings.Contains(got, track) {
				t.Errorf("expected %s in exported playlist, got %q", track, got)
			}

			stdout := app.mustRun(t, "playlist", "export", playlists[0].URI)
			if !strings.HasPrefix(stdout, "#EXTM3U") {
				t.Errorf("expected M3U on stdout, got %q", stdout)
			}
		})

		t.Run("missing argument", func(t *testing.T) {
			app := setupApp(t)

			if err := app.run(t, "playlist", "create"); !errors.Is(err, shared.ErrMissingArgument) {
				t.Errorf("expected ErrMissingArgument, got %v", err)
			}
		})
	})

	t.Run("providers", func(t *testing.T) {
		t.Run("lists local library as active", func(t *testing.T) {
			app := setupApp(t)

			out := app.mustRun(t, "providers", "list")
			if !strings.Contains(out, "Local library") || !strings.Contains(out, "active: Local library (local/0)") {
				t.Errorf("expected local library, got %q", out)
			}
		})

		t.Run("active provider persists across runs", func(t *testing.T) {
			app := setupApp(t)

			out := app.mustRun(t, "providers", "add", "--username", "me", "jellyfin", "Home", "http://jellyfin.test")
			if !strings.Contains(out, "added Home as jellyfin/1") {
				t.Fatalf("unexpected add output %q", out)
			}
			app.mustRun(t, "providers", "use", "jellyfin/1")

			if out := app.mustRun(t, "providers", "list"); !strings.Contains(out, "active: Home (jellyfin/1)") {
				t.Errorf("expected Home to stay active, got %q", out)
			}
			if err := app.run(t, "albums"); !errors.Is(err, shared.ErrNotImplemented) {
				t.Errorf("expected the offline provider to answer listings, got %v", err)
			}

			app.mustRun(t, "providers", "edit", "--name", "Den", "jellyfin/1")
			if out := app.mustRun(t, "providers", "list"); !strings.Contains(out, "active: Den (jellyfin/1)") {
				t.Errorf("expected renamed provider, got %q", out)
			}

			app.mustRun(t, "providers", "remove", "jellyfin/1")
			if out := app.mustRun(t, "providers", "list"); !strings.Contains(out, "active: Local library (local/0)") {
				t.Errorf("expected fallback to the local library, got %q", out)
			}
		})

		t.Run("unknown provider", func(t *testing.T) {
			app := setupApp(t)

			if err := app.run(t, "providers", "use", "subsonic/9"); !errors.Is(err, shared.ErrNotFound) {
				t.Errorf("expected ErrNotFound, got %v", err)
			}
			if err := app.run(t, "providers", "use", "nonsense"); !errors.Is(err, shared.ErrInvalidArgument) {
				t.Errorf("expected ErrInvalidArgument, got %v", err)
			}
		})

		t.Run("edit without changes", func(t *testing.T) {
			app := setupApp(t)
			app.mustRun(t, "providers", "add", "subsonic", "Navi", "http://navidrome.test")

			if err := app.run(t, "providers", "edit", "subsonic/1"); !errors.Is(err, shared.ErrMissingArgument) {
				t.Errorf("expected ErrMissingArgument, got %v", err)
			}
		})
	})

	t.Run("listings", func(t *testing.T) {
		t.Run("invalid format", func(t *testing.T) {
			app := setupApp(t)

			if err := app.run(t, "--format", "xml", "albums"); err == nil {
				t.Error("expected an error for an unknown format")
			}
		})

		t.Run("invalid sort", func(t *testing.T) {
			app := setupApp(t)

			if err := app.run(t, "albums", "--sort", "loudness"); !errors.Is(err, shared.ErrInvalidArgument) {
				t.Errorf("expected ErrInvalidArgument, got %v", err)
			}
		})

		t.Run("search needs a query", func(t *testing.T) {
			app := setupApp(t)

			if err := app.run(t, "search"); !errors.Is(err, shared.ErrMissingArgument) {
				t.Errorf("expected ErrMissingArgument, got %v", err)
			}
		})

		t.Run("show unknown uri", func(t *testing.T) {
			app := setupApp(t)

			if err := app.run(t, "show", "spotify:track:1"); !errors.Is(err, shared.ErrNotFound) {
				t.Errorf("expected ErrNotFound, got %v", err)
			}
		})

		t.Run("status of the local library", func(t *testing.T) {
			app := setupApp(t)

			var info []models.DiagnosticInfo
			if err := json.Unmarshal([]byte(app.mustRun(t, "--format", "json", "status")), &info); err != nil {
				t.Fatalf("failed to decode status: %v", err)
			}
			if len(info) == 0 {
				t.Error("expected diagnostics for the local library")
			}
		})
	})

	t.Run("scan", func(t *testing.T) {
		t.Run("without library paths", func(t *testing.T) {
			app := setupApp(t)
			if err := os.WriteFile(app.configPath, []byte(fmt.Sprintf("[database]\npath = '%s'\n", filepath.Join(app.dir, "tunebox.db"))), 0644); err != nil {
				t.Fatalf("failed to rewrite config: %v", err)
			}

			if err := app.run(t, "scan"); !errors.Is(err, shared.ErrMissingArgument) {
				t.Errorf("expected ErrMissingArgument, got %v", err)
			}
		})

		t.Run("with explicit path", func(t *testing.T) {
			app := setupApp(t)
			other := filepath.Join(app.dir, "other")
			if err := os.MkdirAll(other, 0755); err != nil {
				t.Fatalf("failed to create folder: %v", err)
			}
			if err := os.WriteFile(filepath.Join(other, "song.ogg"), []byte("ogg"), 0644); err != nil {
				t.Fatalf("failed to write track: %v", err)
			}

			app.mustRun(t, "scan", "--path", other)
			out := app.mustRun(t, "--format", "json", "search", "song")
			if !strings.Contains(out, "song.ogg") {
				t.Errorf("expected the scanned track in search results, got %q", out)
			}
		})
	})
}
