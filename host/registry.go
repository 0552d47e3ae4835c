package host

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/BurntSushi/toml"
	"go.uber.org/multierr"
)

// Registry maps host names to capabilities.
type Registry struct {
	langs map[string]Capability
}

// NewRegistry returns a registry holding the builtin hosts.
func NewRegistry() *Registry {
	r := &Registry{
		langs: map[string]Capability{},
	}
	for _, l := range Builtins() {
		r.langs[l.Name()] = l
	}
	return r
}

func (r *Registry) Lookup(name string) (Capability, error) {
	l, ok := r.langs[name]
	if !ok {
		return nil, fmt.Errorf("unknown host: %v", name)
	}
	return l, nil
}

// Names returns the registered host names in lexical order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.langs))
	for name := range r.langs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var defaultRegistry = NewRegistry()

// Lookup finds a builtin host.
func Lookup(name string) (Capability, error) {
	return defaultRegistry.Lookup(name)
}

type typeEntry struct {
	Name string `toml:"name"`
	Min  int64  `toml:"min"`
	Max  int64  `toml:"max"`
	Size int    `toml:"size"`
}

type langEntry struct {
	Name      string      `toml:"name"`
	Feature   string      `toml:"feature"`
	Emission  string      `toml:"emission"`
	Extension string      `toml:"extension"`
	Dialect   string      `toml:"dialect"`
	Types     []typeEntry `toml:"type"`
}

type hostFile struct {
	Hosts []langEntry `toml:"host"`
}

// Load reads host definitions in toml and registers them. A definition may
// replace a builtin host. Nothing is registered when any definition is
// invalid.
func (r *Registry) Load(src io.Reader) error {
	var f hostFile
	_, err := toml.NewDecoder(src).Decode(&f)
	if err != nil {
		return fmt.Errorf("cannot decode host definitions: %w", err)
	}

	var langs []*Lang
	seen := map[string]bool{}
	for i, e := range f.Hosts {
		l, lerr := e.lang()
		if lerr != nil {
			err = multierr.Append(err, fmt.Errorf("host #%v: %w", i, lerr))
			continue
		}
		if seen[l.Name()] {
			err = multierr.Append(err, fmt.Errorf("host #%v: duplicate host name: %v", i, l.Name()))
			continue
		}
		seen[l.Name()] = true
		langs = append(langs, l)
	}
	if err != nil {
		return err
	}
	for _, l := range langs {
		r.langs[l.Name()] = l
	}
	return nil
}

func (r *Registry) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("cannot open the host file %s: %w", path, err)
	}
	defer f.Close()
	return r.Load(f)
}

func (e langEntry) lang() (*Lang, error) {
	var err error
	if e.Name == "" {
		err = multierr.Append(err, fmt.Errorf("name must not be empty"))
	}
	feature, ferr := ParseFeature(e.Feature)
	err = multierr.Append(err, ferr)
	emission, eerr := ParseEmission(e.Emission)
	err = multierr.Append(err, eerr)

	dname := e.Dialect
	if dname == "" && emission == Native {
		err = multierr.Append(err, fmt.Errorf("a native host must name its dialect"))
	}
	d, derr := DialectByName(dname)
	err = multierr.Append(err, derr)
	if derr == nil && emission == Native && d == TranslatedDialect {
		err = multierr.Append(err, fmt.Errorf("a native host cannot use the translated dialect"))
	}

	if len(e.Types) == 0 {
		err = multierr.Append(err, fmt.Errorf("a host must have at least one type"))
	}
	var types []Type
	for i, t := range e.Types {
		if t.Name == "" {
			err = multierr.Append(err, fmt.Errorf("type #%v: name must not be empty", i))
		}
		if t.Min > t.Max {
			err = multierr.Append(err, fmt.Errorf("type #%v: min (%v) must be less than or equal to max (%v)", i, t.Min, t.Max))
		}
		if t.Size <= 0 {
			err = multierr.Append(err, fmt.Errorf("type #%v: size must be positive", i))
		}
		types = append(types, Type{
			Name:   t.Name,
			Signed: t.Min < 0,
			Min:    t.Min,
			Max:    uint64(t.Max),
			Size:   t.Size,
		})
	}
	if err != nil {
		return nil, err
	}
	return NewLang(e.Name, feature, emission, e.Extension, d, types), nil
}
