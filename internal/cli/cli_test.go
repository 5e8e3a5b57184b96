package cli

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/randalmurphal/kbexport/internal/archive"
	kberrors "github.com/randalmurphal/kbexport/internal/errors"
)

const cliFixture = `
team_id: team-1
collections:
  - id: c1
    name: Engineering
    documents:
      - id: 11111111-1111-1111-1111-111111111111
        title: Onboarding
        text: "![diagram](/api/attachments.redirect?id=44444444-4444-4444-4444-444444444444)"
        children:
          - id: 22222222-2222-2222-2222-222222222222
            title: Laptop setup
            text: Install things
  - id: c2
    name: Sales
    documents:
      - id: 33333333-3333-3333-3333-333333333333
        title: Playbook
        text: Close deals
attachments:
  - id: 44444444-4444-4444-4444-444444444444
    name: diagram.png
    content_type: image/png
    content: png-bytes
`

// testEnv is an isolated working directory with a config file pointing at
// its own store and blob directory.
type testEnv struct {
	dir    string
	config string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("KBX_CONFIG", "")

	cfg := "environment: test\n" +
		"database:\n  path: " + filepath.Join(dir, "data") + "\n" +
		"blob:\n  dir: " + filepath.Join(dir, "blobs") + "\n" +
		"  cache:\n    enabled: true\n    in_memory: true\n" +
		"export:\n  temp_dir: " + dir + "\n"
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fixture.yaml"), []byte(cliFixture), 0644))
	return &testEnv{dir: dir, config: path}
}

func (e *testEnv) path(name string) string {
	return filepath.Join(e.dir, name)
}

// run executes the root command with --config set and returns stdout.
func (e *testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	viper.Reset()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", e.config}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func (e *testEnv) seed(t *testing.T) {
	t.Helper()
	out, err := e.run(t, "seed", e.path("fixture.yaml"))
	require.NoError(t, err)
	assert.Contains(t, out, "Seeded 2 collection(s), 3 document(s), 1 attachment(s); wrote 1 blob(s)")
}

func TestSeedAndExport(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)

	out, err := env.run(t, "export", "--json", "-o", env.path("backup.zip"))
	require.NoError(t, err)

	assert.Equal(t, env.path("backup.zip"), gjson.Get(out, "path").String())
	assert.Equal(t, "zip", gjson.Get(out, "archive").String())
	assert.EqualValues(t, 2, gjson.Get(out, "stats.collections").Int())
	assert.EqualValues(t, 3, gjson.Get(out, "stats.documents").Int())
	assert.EqualValues(t, 1, gjson.Get(out, "stats.attachments").Int())

	contents, err := archive.Open(env.path("backup.zip"))
	require.NoError(t, err)
	assert.True(t, contents.Has("Engineering.json"))
	assert.True(t, contents.Has("Sales.json"))
	blobData, ok := contents.File("uploads/team-1/44444444-4444-4444-4444-444444444444/diagram.png")
	require.True(t, ok)
	assert.Equal(t, "png-bytes", string(blobData))

	// Only the moved archive remains; the temp file is gone.
	matches, err := filepath.Glob(env.path("kbexport-*"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestExport_SelectsByGlobAndInfersArchive(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)

	_, err := env.run(t, "export", "--collection", "Sal*", "-o", env.path("sales.tar.zst"))
	require.NoError(t, err)

	contents, err := archive.Open(env.path("sales.tar.zst"))
	require.NoError(t, err)
	assert.Equal(t, archive.FormatTarZstd, contents.Format)
	assert.Equal(t, []string{"Sales.json", "metadata.json"}, contents.Files())
}

func TestExport_Markdown(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)

	_, err := env.run(t, "export", "--format", "markdown", "--collection", "c1", "-o", env.path("docs.zip"))
	require.NoError(t, err)

	contents, err := archive.Open(env.path("docs.zip"))
	require.NoError(t, err)
	assert.True(t, contents.Has("Engineering/Onboarding.md"))
	assert.True(t, contents.Has("Engineering/Onboarding/Laptop setup.md"))
}

func TestExport_UnknownCollection(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)

	_, err := env.run(t, "export", "--collection", "Marketing", "-o", env.path("x.zip"))
	require.Error(t, err)
	assert.True(t, kberrors.HasCode(err, kberrors.CodeCollectionNotFound))
	_, statErr := os.Stat(env.path("x.zip"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestExport_List(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)

	out, err := env.run(t, "export", "--list")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "c1"))
	assert.True(t, strings.HasSuffix(lines[0], "Engineering"))
	assert.True(t, strings.HasSuffix(lines[1], "Sales"))
}

func TestExport_InvalidConfig(t *testing.T) {
	env := newTestEnv(t)
	t.Setenv("KBX_EXPORT_FORMAT", "pdf")

	_, err := env.run(t, "export", "-o", env.path("x.zip"))
	require.Error(t, err)
	assert.True(t, kberrors.HasCode(err, kberrors.CodeConfigInvalid))
}

func TestVerify(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)

	_, err := env.run(t, "export", "-o", env.path("backup.zip"))
	require.NoError(t, err)

	out, err := env.run(t, "verify", "--json", env.path("backup.zip"))
	require.NoError(t, err)
	assert.EqualValues(t, 1, gjson.Get(out, "backup_version").Int())
	assert.EqualValues(t, 2, gjson.Get(out, "manifests.#").Int())
	assert.Equal(t, "Engineering", gjson.Get(out, "manifests.0.name").String())
	assert.EqualValues(t, 2, gjson.Get(out, "manifests.0.documents").Int())
	assert.EqualValues(t, 1, gjson.Get(out, "manifests.0.attachments").Int())
	assert.False(t, gjson.Get(out, "problems").Exists())
}

func TestVerify_ReportsProblems(t *testing.T) {
	env := newTestEnv(t)

	b := archive.New(archive.FormatZip, archive.WithTempDir(env.dir))
	b.AddEntry("metadata.json", []byte(`{"backupVersion":7}`), archive.EntryOptions{})
	b.AddEntry("Broken.json", []byte(`{"name":"Broken","documentStructure":[],"documents":{},`+
		`"attachments":{"a1":{"id":"a1","key":"uploads/missing.png"}}}`), archive.EntryOptions{})
	h, err := b.Finalize(t.Context())
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Cleanup() })

	out, err := env.run(t, "verify", h.Path)
	require.Error(t, err)
	assert.Contains(t, out, "unsupported backupVersion 7")
	assert.Contains(t, out, "attachment a1 missing from archive")
}

func TestConfigShow_Sources(t *testing.T) {
	env := newTestEnv(t)
	t.Setenv("KBX_PORT", "9999")

	out, err := env.run(t, "config", "show", "--source")
	require.NoError(t, err)
	assert.Contains(t, out, "server.port = 9999  (env)")
	assert.Contains(t, out, "environment = test  (project: "+env.config+")")
	assert.Contains(t, out, "export.format = json  (default)")
}

func TestConfigInit(t *testing.T) {
	env := newTestEnv(t)
	target := env.path("proj")

	out, err := env.run(t, "config", "init", target)
	require.NoError(t, err)
	assert.Contains(t, out, filepath.Join(target, ".kbexport", "config.yaml"))

	_, err = env.run(t, "config", "init", target)
	assert.Error(t, err, "existing config is kept without --force")

	_, err = env.run(t, "config", "init", "--force", target)
	assert.NoError(t, err)
}

func TestMissingConfigFile(t *testing.T) {
	env := newTestEnv(t)
	env.config = env.path("nope.yaml")

	_, err := env.run(t, "config", "show")
	assert.Error(t, err)
}

func TestVersion(t *testing.T) {
	env := newTestEnv(t)
	out, err := env.run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "kbexport version dev\n", out)
}

func TestPrintError(t *testing.T) {
	var buf bytes.Buffer
	printError(&buf, kberrors.ErrCollectionNotFound("Marketing"))
	assert.Contains(t, buf.String(), "Error: collection Marketing not found")
	assert.Contains(t, buf.String(), "Fix: Run 'kbexport export --list'")

	buf.Reset()
	printError(&buf, assert.AnError)
	assert.Equal(t, "Error: "+assert.AnError.Error()+"\n", buf.String())
}

func TestNewLogHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newLogHandler(&buf, false, slog.LevelWarn))
	logger.Info("dropped")
	assert.Empty(t, buf.String())

	logger.Warn("failed to add attachment to archive", "key", "uploads/a.png")
	assert.Equal(t, "uploads/a.png", gjson.Get(buf.String(), "key").String())

	buf.Reset()
	slog.New(newLogHandler(&buf, true, slog.LevelDebug)).Debug("walking", "collection_id", "c1")
	assert.Contains(t, buf.String(), "collection_id=c1")
}
