package dmrgps

/*------------------------------------------------------------------
 *
 * Purpose:   	Remember how each radio wants its reports to look.
 *
 * Description:	Users set these by text message, see command.go.
 *		Kept in a YAML file like
 *
 *			version: 1
 *			profiles:
 *			    3112345:
 *			        call: N0CALL
 *			        ssid: "9"
 *			        icon: />
 *			        comment: On the road
 *
 *		The whole file is rewritten every time, to a temporary
 *		file which is then renamed over the old one, so a crash
 *		leaves either the old or the new version.
 *
 *		A broken file is not fatal.  We complain and carry on
 *		with no profiles; everyone gets the defaults.
 *
 *------------------------------------------------------------------*/

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"
)

const PROFILE_VERSION = 1

const MAX_COMMENT_LEN = 35

// Appended to a profile file that could not be loaded.
const BAD_PROFILE_SUFFIX = ".bad"

// Written when there is no file at all, so there's something to copy.
const DEFAULT_PROFILE_ID = 1
const DEFAULT_PROFILE_CALL = "N0CALL"

type ProfileField int

const (
	FieldSuffix ProfileField = iota
	FieldIcon
	FieldComment
)

func (f ProfileField) String() string {
	switch f {
	case FieldSuffix:
		return "ssid"
	case FieldIcon:
		return "icon"
	case FieldComment:
		return "comment"
	default:
		return fmt.Sprintf("field(%d)", int(f))
	}
}

// UserProfile is one radio's settings.  Empty means use the default.
type UserProfile struct {
	Call    string `yaml:"call,omitempty"` // For whoever reads the file.  Reports use the subscriber directory.
	SSID    string `yaml:"ssid"`
	Icon    string `yaml:"icon"`
	Comment string `yaml:"comment"`
}

type profileFile struct {
	Version  int                    `yaml:"version"`
	Profiles map[uint32]UserProfile `yaml:"profiles"`
}

// JobQueue runs work in the background, in the order submitted.
type JobQueue interface {
	Submit(name string, job func() error) bool
}

type ProfileStoreConfig struct {
	Path       string // YAML file.
	LegacyPath string // Imported once if Path doesn't exist yet.  Optional.
}

type ProfileStore struct {
	config  ProfileStoreConfig
	logger  *log.Logger
	metrics *Metrics
	jobs    JobQueue // nil means save inline.

	mu       sync.Mutex
	profiles map[uint32]UserProfile

	writeMu sync.Mutex // Serializes file writes.
}

func NewProfileStore(config ProfileStoreConfig, logger *log.Logger, metrics *Metrics, jobs JobQueue) *ProfileStore {
	return &ProfileStore{
		config:   config,
		logger:   logger,
		metrics:  metrics,
		jobs:     jobs,
		profiles: make(map[uint32]UserProfile),
	}
}

/*------------------------------------------------------------------
 *
 * Name:        Load
 *
 * Purpose:     Read the profile file.
 *
 * Description:	If there is no file, import the legacy one if we have
 *		it, otherwise start with a single example entry, and
 *		write the new file.
 *
 * Returns:	Error, wrapping ErrProfileIO, if the file couldn't be
 *		used.  The store is still usable afterwards, with
 *		whatever could be recovered, possibly nothing.
 *
 *----------------------------------------------------------------*/

func (s *ProfileStore) Load() error {
	var data, err = os.ReadFile(s.config.Path)

	if errors.Is(err, fs.ErrNotExist) {
		return s.create()
	}

	if err != nil {
		s.replace(nil)
		s.logger.Error("Can't read profiles, using defaults for everyone", "file", s.config.Path, "err", err)
		s.setAside()
		return fmt.Errorf("%w: %w", ErrProfileIO, err)
	}

	var pf profileFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		s.replace(nil)
		s.logger.Error("Profile file is corrupt, using defaults for everyone", "file", s.config.Path, "err", err)
		s.setAside()
		return fmt.Errorf("%w: %s: %w", ErrProfileIO, s.config.Path, err)
	}

	if pf.Version != PROFILE_VERSION {
		s.logger.Warn("Unexpected profile file version", "file", s.config.Path, "version", pf.Version, "expected", PROFILE_VERSION)
	}

	s.replace(pf.Profiles)
	s.logger.Info("Loaded profiles", "file", s.config.Path, "count", len(pf.Profiles))

	return nil
}

// Move an unusable file out of the way so the next save doesn't
// overwrite whatever could still be recovered from it by hand.
func (s *ProfileStore) setAside() {
	var bad = s.config.Path + BAD_PROFILE_SUFFIX

	if err := os.Rename(s.config.Path, bad); err != nil {
		s.logger.Error("Can't move unusable profile file aside, the next change will replace it", "file", s.config.Path, "err", err)
		return
	}

	s.logger.Warn("Unusable profile file kept for recovery", "file", bad)
}

func (s *ProfileStore) create() error {
	var profiles = map[uint32]UserProfile{}

	if s.config.LegacyPath != "" {
		var legacy, err = ImportLegacy(s.config.LegacyPath)
		switch {
		case err == nil:
			profiles = legacy
			s.logger.Info("Imported legacy profiles", "file", s.config.LegacyPath, "count", len(legacy))
		case errors.Is(err, fs.ErrNotExist):
		default:
			s.logger.Error("Can't import legacy profiles", "file", s.config.LegacyPath, "err", err)
		}
	}

	if len(profiles) == 0 {
		profiles[DEFAULT_PROFILE_ID] = UserProfile{Call: DEFAULT_PROFILE_CALL}
	}

	s.replace(profiles)

	return s.Save()
}

func (s *ProfileStore) replace(profiles map[uint32]UserProfile) {
	if profiles == nil {
		profiles = make(map[uint32]UserProfile)
	}

	s.mu.Lock()
	s.profiles = profiles
	s.mu.Unlock()
}

// Save writes all profiles to the file.
func (s *ProfileStore) Save() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	var pf = profileFile{Version: PROFILE_VERSION, Profiles: make(map[uint32]UserProfile, len(s.profiles))}
	for id, p := range s.profiles {
		pf.Profiles[id] = p
	}
	s.mu.Unlock()

	var err = writeYAMLAtomic(s.config.Path, pf)
	if err != nil {
		s.metrics.profileWrite("error")
		s.logger.Error("Can't save profiles", "file", s.config.Path, "err", err)
		return fmt.Errorf("%w: %w", ErrProfileIO, err)
	}

	s.metrics.profileWrite("ok")

	return nil
}

func writeYAMLAtomic(path string, v any) (err error) {
	var data, merr = yaml.Marshal(v)
	if merr != nil {
		return merr
	}

	var tmp, terr = os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*.tmp")
	if terr != nil {
		return terr
	}

	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return err
	}

	if err = tmp.Sync(); err != nil {
		return err
	}

	if err = tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), path)
}

// GetOrDefault returns the profile for a radio, or an empty one.
func (s *ProfileStore) GetOrDefault(id uint32) UserProfile {
	if s == nil {
		return UserProfile{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.profiles[id]
}

// Len is the number of radios with a profile.
func (s *ProfileStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.profiles)
}

/*------------------------------------------------------------------
 *
 * Name:        SetField
 *
 * Purpose:     Change one setting for a radio, creating its profile
 *		if needed, and get it written out.
 *
 * Description:	The change is visible immediately.  Writing the file
 *		goes through the job queue when there is one.
 *
 *----------------------------------------------------------------*/

func (s *ProfileStore) SetField(id uint32, field ProfileField, value string) error {
	s.mu.Lock()

	var p = s.profiles[id]
	switch field {
	case FieldSuffix:
		p.SSID = value
	case FieldIcon:
		p.Icon = value
	case FieldComment:
		p.Comment = truncateRunes(value, MAX_COMMENT_LEN)
	default:
		s.mu.Unlock()
		return fmt.Errorf("%w: unknown profile field %s", ErrCommand, field)
	}
	s.profiles[id] = p

	s.mu.Unlock()

	s.logger.Info("Profile changed", "id", id, "field", field, "value", value)

	if s.jobs == nil {
		return s.Save()
	}

	if !s.jobs.Submit("profile save", s.Save) {
		return fmt.Errorf("%w: queue full, profile for %d not saved yet", ErrProfileIO, id)
	}

	return nil
}

func truncateRunes(s string, n int) string {
	var r = []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

/*------------------------------------------------------------------
 *
 * Name:        ImportLegacy
 *
 * Purpose:     Read profiles in the old format.
 *
 * Description:	The old file was a printed dictionary literal:
 *
 *		{1: [{'call': 'N0CALL'}, {'ssid': ''}, {'icon': ''}, {'comment': ''}]}
 *
 *		Strings are quoted with ' unless they contain one, then ".
 *
 *----------------------------------------------------------------*/

var legacyTokenRE = regexp.MustCompile(`(\d+)\s*:\s*\[|\{\s*'(\w+)'\s*:\s*('(?:[^'\\]|\\.)*'|"(?:[^"\\]|\\.)*")\s*\}`)

func ImportLegacy(path string) (map[uint32]UserProfile, error) {
	var data, err = os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var profiles = make(map[uint32]UserProfile)
	var id uint32
	var haveID = false

	for _, m := range legacyTokenRE.FindAllStringSubmatch(string(data), -1) {
		if m[1] != "" {
			var n, perr = strconv.ParseUint(m[1], 10, 32)
			if perr != nil {
				return nil, fmt.Errorf("%w: %s: radio id %s: %w", ErrProfileIO, path, m[1], perr)
			}
			id = uint32(n)
			haveID = true
			profiles[id] = UserProfile{}
			continue
		}

		if !haveID {
			return nil, fmt.Errorf("%w: %s: field %q before any radio id", ErrProfileIO, path, m[2])
		}

		var p = profiles[id]
		var value = unquoteLegacy(m[3])
		switch m[2] {
		case "call":
			p.Call = value
		case "ssid":
			p.SSID = value
		case "icon":
			p.Icon = value
		case "comment":
			p.Comment = truncateRunes(value, MAX_COMMENT_LEN)
		}
		profiles[id] = p
	}

	if !haveID {
		return nil, fmt.Errorf("%w: %s: no profiles found", ErrProfileIO, path)
	}

	return profiles, nil
}

func unquoteLegacy(q string) string {
	var body = q[1 : len(q)-1]

	var sb strings.Builder
	for i := 0; i < len(body); i++ {
		if body[i] == '\\' && i+1 < len(body) {
			i++
		}
		sb.WriteByte(body[i])
	}

	return sb.String()
}
