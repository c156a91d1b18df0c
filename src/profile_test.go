package dmrgps

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProfileStore(t *testing.T, jobs JobQueue) (*ProfileStore, string) {
	t.Helper()

	var path = filepath.Join(t.TempDir(), "user_settings.yaml")

	return NewProfileStore(ProfileStoreConfig{Path: path}, testLogger(), nil, jobs), path
}

// Holds jobs until told to run them.
type heldJobs struct {
	names []string
	jobs  []func() error
	full  bool
}

func (h *heldJobs) Submit(name string, job func() error) bool {
	if h.full {
		return false
	}
	h.names = append(h.names, name)
	h.jobs = append(h.jobs, job)
	return true
}

func (h *heldJobs) runAll() error {
	for _, job := range h.jobs {
		if err := job(); err != nil {
			return err
		}
	}
	h.names, h.jobs = nil, nil
	return nil
}

func Test_ProfileLoadCreatesDefault(t *testing.T) {
	var s, path = newTestProfileStore(t, nil)

	require.NoError(t, s.Load())

	assert.Equal(t, 1, s.Len())
	assert.Equal(t, UserProfile{Call: DEFAULT_PROFILE_CALL}, s.GetOrDefault(DEFAULT_PROFILE_ID))
	assert.FileExists(t, path)

	// And it's what gets read next time.
	var again = NewProfileStore(ProfileStoreConfig{Path: path}, testLogger(), nil, nil)
	require.NoError(t, again.Load())
	assert.Equal(t, UserProfile{Call: DEFAULT_PROFILE_CALL}, again.GetOrDefault(DEFAULT_PROFILE_ID))
}

func Test_ProfileCorruptFile(t *testing.T) {
	var s, path = newTestProfileStore(t, nil)
	require.NoError(t, os.WriteFile(path, []byte("profiles: [this is: not: a map"), 0o600))

	var err = s.Load()
	assert.ErrorIs(t, err, ErrProfileIO)

	assert.Equal(t, 0, s.Len())
	assert.Equal(t, UserProfile{}, s.GetOrDefault(123))
}

// The bad file survives the next save.
func Test_ProfileCorruptFileKept(t *testing.T) {
	var s, path = newTestProfileStore(t, nil)
	var corrupt = []byte("version: 1\nprofiles:\n  3112345: {ssid: \"9\"\n  42: [")
	require.NoError(t, os.WriteFile(path, corrupt, 0o600))

	assert.ErrorIs(t, s.Load(), ErrProfileIO)
	assert.NoFileExists(t, path)

	require.NoError(t, s.SetField(123, FieldSuffix, "7"))

	var kept, err = os.ReadFile(path + BAD_PROFILE_SUFFIX)
	require.NoError(t, err)
	assert.Equal(t, corrupt, kept)

	var reloaded = NewProfileStore(ProfileStoreConfig{Path: path}, testLogger(), nil, nil)
	require.NoError(t, reloaded.Load())
	assert.Equal(t, UserProfile{SSID: "7"}, reloaded.GetOrDefault(123))
}

func Test_ProfileSetFieldInline(t *testing.T) {
	var metrics = NewMetrics()
	var path = filepath.Join(t.TempDir(), "user_settings.yaml")
	var s = NewProfileStore(ProfileStoreConfig{Path: path}, testLogger(), metrics, nil)
	require.NoError(t, s.Load())

	require.NoError(t, s.SetField(123, FieldSuffix, "9"))

	assert.Equal(t, UserProfile{SSID: "9"}, s.GetOrDefault(123))

	var reloaded = NewProfileStore(ProfileStoreConfig{Path: path}, testLogger(), nil, nil)
	require.NoError(t, reloaded.Load())
	assert.Equal(t, UserProfile{SSID: "9"}, reloaded.GetOrDefault(123))
	assert.Equal(t, 2, reloaded.Len())

	// Once creating the file, once for the change.
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.profiles.WithLabelValues("ok")))
}

func Test_ProfileSetFieldQueued(t *testing.T) {
	var jobs = &heldJobs{}
	var s, path = newTestProfileStore(t, jobs)
	require.NoError(t, s.Load())

	require.NoError(t, s.SetField(42, FieldIcon, "/>"))

	// Visible straight away, on disk once the job runs.
	assert.Equal(t, "/>", s.GetOrDefault(42).Icon)
	assert.Equal(t, []string{"profile save"}, jobs.names)

	var before, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(before), "/>")

	require.NoError(t, jobs.runAll())

	var after []byte
	after, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(after), "/>")
}

func Test_ProfileSetFieldQueueFull(t *testing.T) {
	var s, _ = newTestProfileStore(t, &heldJobs{full: true})
	require.NoError(t, s.Load())

	var err = s.SetField(42, FieldComment, "hello")
	assert.ErrorIs(t, err, ErrProfileIO)
	assert.Equal(t, "hello", s.GetOrDefault(42).Comment)
}

func Test_ProfileCommentTruncated(t *testing.T) {
	var s, _ = newTestProfileStore(t, nil)
	require.NoError(t, s.Load())

	require.NoError(t, s.SetField(42, FieldComment, strings.Repeat("é", 50)))

	assert.Equal(t, strings.Repeat("é", MAX_COMMENT_LEN), s.GetOrDefault(42).Comment)
}

func Test_ProfileSetFieldKeepsOthers(t *testing.T) {
	var s, _ = newTestProfileStore(t, nil)
	require.NoError(t, s.Load())

	require.NoError(t, s.SetField(42, FieldIcon, "/>"))
	require.NoError(t, s.SetField(42, FieldComment, "mobile"))
	require.NoError(t, s.SetField(42, FieldSuffix, "7"))

	assert.Equal(t, UserProfile{SSID: "7", Icon: "/>", Comment: "mobile"}, s.GetOrDefault(42))
}

func Test_ProfileSaveFails(t *testing.T) {
	var path = filepath.Join(t.TempDir(), "missing", "user_settings.yaml")
	var s = NewProfileStore(ProfileStoreConfig{Path: path}, testLogger(), nil, nil)

	var err = s.Load()
	assert.ErrorIs(t, err, ErrProfileIO)

	// Still usable.
	assert.Equal(t, 1, s.Len())
}

func Test_GetOrDefaultNilStore(t *testing.T) {
	var s *ProfileStore
	assert.Equal(t, UserProfile{}, s.GetOrDefault(1))
}

const legacyProfiles = `{1: [{'call': 'N0CALL'}, {'ssid': ''}, {'icon': ''}, {'comment': ''}], 3112345: [{'call': 'KD9XYZ'}, {'ssid': '9'}, {'icon': '/>'}, {'comment': "Bob's car"}]}`

func Test_ImportLegacy(t *testing.T) {
	var path = filepath.Join(t.TempDir(), "user_settings.txt")
	require.NoError(t, os.WriteFile(path, []byte(legacyProfiles), 0o600))

	var profiles, err = ImportLegacy(path)
	require.NoError(t, err)

	assert.Equal(t, map[uint32]UserProfile{
		1:       {Call: "N0CALL"},
		3112345: {Call: "KD9XYZ", SSID: "9", Icon: "/>", Comment: "Bob's car"},
	}, profiles)
}

func Test_ImportLegacyErrors(t *testing.T) {
	var dir = t.TempDir()

	var _, err = ImportLegacy(filepath.Join(dir, "nothing.txt"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	var empty = filepath.Join(dir, "empty.txt")
	require.NoError(t, os.WriteFile(empty, []byte("{}"), 0o600))
	_, err = ImportLegacy(empty)
	assert.ErrorIs(t, err, ErrProfileIO)
}

func Test_ProfileLoadImportsLegacy(t *testing.T) {
	var dir = t.TempDir()
	var legacy = filepath.Join(dir, "user_settings.txt")
	require.NoError(t, os.WriteFile(legacy, []byte(legacyProfiles), 0o600))

	var s = NewProfileStore(ProfileStoreConfig{Path: filepath.Join(dir, "user_settings.yaml"), LegacyPath: legacy},
		testLogger(), nil, nil)
	require.NoError(t, s.Load())

	assert.Equal(t, 2, s.Len())
	assert.Equal(t, "/>", s.GetOrDefault(3112345).Icon)
}
