package registry

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/log"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/ethereum-optimism/infra/op-testengine/selector"
	"github.com/ethereum-optimism/infra/op-testengine/types"
)

// Settings is the serialized form of a partial element configuration
type Settings struct {
	Enabled         *bool          `yaml:"enabled,omitempty" toml:"enabled,omitempty"`
	Timeout         *time.Duration `yaml:"timeout,omitempty" toml:"timeout,omitempty"`
	Compartment     string         `yaml:"compartment,omitempty" toml:"compartment,omitempty"`
	Parallelism     int            `yaml:"parallelism,omitempty" toml:"parallelism,omitempty"`
	InvocationCount *int           `yaml:"invocationCount,omitempty" toml:"invocationCount,omitempty"`
}

// Override applies settings to every element whose path the pattern matches
// exactly.
type Override struct {
	Path     string `yaml:"path" toml:"path"`
	Settings `yaml:",inline"`
}

// Profile is a named set of session defaults, per-path overrides and
// selection patterns
type Profile struct {
	Name      string     `yaml:"name" toml:"name"`
	Inherits  []string   `yaml:"inherits,omitempty" toml:"inherits,omitempty"`
	Defaults  Settings   `yaml:"defaults,omitempty" toml:"defaults,omitempty"`
	Overrides []Override `yaml:"overrides,omitempty" toml:"overrides,omitempty"`
	Include   []string   `yaml:"include,omitempty" toml:"include,omitempty"`
	Exclude   []string   `yaml:"exclude,omitempty" toml:"exclude,omitempty"`
}

// ProfileFile is the on-disk layout of a profile file
type ProfileFile struct {
	Profiles []Profile `yaml:"profiles" toml:"profiles"`
}

// Configuration converts the settings into a partial configuration.
func (s Settings) Configuration() (types.Configuration, error) {
	if s.Timeout != nil && *s.Timeout < 0 {
		return types.Configuration{}, fmt.Errorf("timeout must not be negative, got %s", *s.Timeout)
	}
	if s.InvocationCount != nil && *s.InvocationCount < 1 {
		return types.Configuration{}, fmt.Errorf("invocationCount must be at least 1, got %d", *s.InvocationCount)
	}
	cfg := types.Configuration{
		Enabled:         s.Enabled,
		Timeout:         s.Timeout,
		InvocationCount: s.InvocationCount,
	}
	switch {
	case s.Compartment != "":
		c, err := types.ParseCompartment(s.Compartment, s.Parallelism)
		if err != nil {
			return types.Configuration{}, err
		}
		cfg.Compartment = &c
	case s.Parallelism > 0:
		c := types.Parallel(s.Parallelism)
		cfg.Compartment = &c
	case s.Parallelism < 0:
		return types.Configuration{}, fmt.Errorf("parallelism must not be negative, got %d", s.Parallelism)
	}
	return cfg, nil
}

// merge returns s with every field set in over replacing s's
func (s Settings) merge(over Settings) Settings {
	out := s
	if over.Enabled != nil {
		out.Enabled = over.Enabled
	}
	if over.Timeout != nil {
		out.Timeout = over.Timeout
	}
	if over.Compartment != "" {
		out.Compartment = over.Compartment
		out.Parallelism = over.Parallelism
	} else if over.Parallelism != 0 {
		out.Parallelism = over.Parallelism
	}
	if over.InvocationCount != nil {
		out.InvocationCount = over.InvocationCount
	}
	return out
}

// LoadProfile reads a profile file and resolves the named profile. The
// format follows the extension: .yaml/.yml or .toml. An empty name selects
// the only profile of the file.
func LoadProfile(path, name string) (*Profile, error) {
	log.Debug("Reading profile file", "path", path, "profile", name)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading profile file")
	}
	file, err := decodeProfileFile(path, data)
	if err != nil {
		return nil, types.NewConfigurationError(errors.Wrapf(err, "parsing profile file %s", path))
	}
	return file.Resolve(name)
}

func decodeProfileFile(path string, data []byte) (*ProfileFile, error) {
	var file ProfileFile
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&file); err != nil {
			return nil, err
		}
	case ".toml":
		md, err := toml.Decode(string(data), &file)
		if err != nil {
			return nil, err
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("unknown keys %v", undecoded)
		}
	default:
		return nil, fmt.Errorf("unsupported profile format %q, expected .yaml, .yml or .toml", ext)
	}
	return &file, nil
}

// Resolve returns the named profile with its inherited profiles merged in.
func (f *ProfileFile) Resolve(name string) (*Profile, error) {
	byName := make(map[string]Profile, len(f.Profiles))
	var names []string
	for _, p := range f.Profiles {
		if p.Name == "" {
			return nil, types.NewConfigurationError(errors.New("profile without a name"))
		}
		if _, dup := byName[p.Name]; dup {
			return nil, types.NewConfigurationError(fmt.Errorf("duplicate profile %q", p.Name))
		}
		byName[p.Name] = p
		names = append(names, p.Name)
	}

	if name == "" {
		if len(names) != 1 {
			return nil, types.NewConfigurationError(fmt.Errorf("profile name required, file defines %v", names))
		}
		name = names[0]
	}
	if _, ok := byName[name]; !ok {
		return nil, types.NewConfigurationError(fmt.Errorf("unknown profile %q, file defines %v", name, names))
	}

	resolved, err := resolveInherited(name, byName, make(map[string]bool))
	if err != nil {
		return nil, types.NewConfigurationError(err)
	}
	if err := resolved.Validate(); err != nil {
		return nil, err
	}
	return resolved, nil
}

// resolveInherited merges parents depth-first so that more distant
// ancestors are overlaid first and the profile itself wins.
func resolveInherited(name string, profiles map[string]Profile, visiting map[string]bool) (*Profile, error) {
	if visiting[name] {
		return nil, fmt.Errorf("circular inheritance detected at profile %q", name)
	}
	visiting[name] = true
	defer delete(visiting, name)

	self := profiles[name]
	merged := &Profile{Name: name}
	for _, parentName := range self.Inherits {
		if _, ok := profiles[parentName]; !ok {
			return nil, fmt.Errorf("profile %q inherits from non-existent profile %q", name, parentName)
		}
		parent, err := resolveInherited(parentName, profiles, visiting)
		if err != nil {
			return nil, err
		}
		merged.mergeFrom(parent)
	}
	merged.mergeFrom(&self)
	merged.Inherits = self.Inherits
	return merged, nil
}

func (p *Profile) mergeFrom(other *Profile) {
	p.Defaults = p.Defaults.merge(other.Defaults)
	p.Overrides = append(p.Overrides, other.Overrides...)
	for _, inc := range other.Include {
		if !slices.Contains(p.Include, inc) {
			p.Include = append(p.Include, inc)
		}
	}
	for _, exc := range other.Exclude {
		if !slices.Contains(p.Exclude, exc) {
			p.Exclude = append(p.Exclude, exc)
		}
	}
}

// Validate reports every problem of the profile as one ConfigurationError.
func (p *Profile) Validate() error {
	var problems []error
	if _, err := p.Defaults.Configuration(); err != nil {
		problems = append(problems, errors.Wrap(err, "defaults"))
	}
	for i, o := range p.Overrides {
		if strings.TrimSpace(o.Path) == "" {
			problems = append(problems, fmt.Errorf("override %d: empty path", i))
			continue
		}
		if err := selector.ValidatePattern(o.Path); err != nil {
			problems = append(problems, fmt.Errorf("override %d: %w", i, err))
		}
		if _, err := o.Configuration(); err != nil {
			problems = append(problems, fmt.Errorf("override %d (%s): %w", i, o.Path, err))
		}
	}
	if _, err := p.Selection(); err != nil {
		var cfgErr *types.ConfigurationError
		if errors.As(err, &cfgErr) {
			problems = append(problems, cfgErr.Problems...)
		} else {
			problems = append(problems, err)
		}
	}
	if len(problems) > 0 {
		return types.NewConfigurationError(problems...)
	}
	return nil
}

// Selection returns the profile's include and exclude patterns.
func (p *Profile) Selection() (selector.Selection, error) {
	return selector.New(p.Include, p.Exclude)
}

// Apply overlays the profile defaults and overrides on the declared
// configuration of session. It must run before the session is frozen.
func (p *Profile) Apply(session *types.Session, logger log.Logger) error {
	defaults, err := p.Defaults.Configuration()
	if err != nil {
		return types.NewConfigurationError(errors.Wrap(err, "defaults"))
	}
	if err := session.OverrideDefaults(defaults); err != nil {
		return err
	}

	for _, o := range p.Overrides {
		cfg, err := o.Configuration()
		if err != nil {
			return types.NewConfigurationError(fmt.Errorf("override %s: %w", o.Path, err))
		}
		pattern := o.Path
		changed, err := session.Override(func(path string) bool {
			ok, _ := selector.MatchPattern(pattern, path)
			return ok
		}, cfg)
		if err != nil {
			return err
		}
		if changed == 0 {
			logger.Warn("Profile override matched no element", "profile", p.Name, "path", pattern)
			continue
		}
		logger.Debug("Applied profile override", "profile", p.Name, "path", pattern, "elements", changed)
	}
	return nil
}
