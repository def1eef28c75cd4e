package depcache

import "sync"

// The process-wide manager registry. A name maps to at most one live
// Cache; the first construction wins and later GetOrCreateManager calls
// for the same name return it unchanged, whatever options they carry.
var (
	registryMu sync.RWMutex
	registry   = make(map[string]*Cache)

	defaultLogMu sync.RWMutex
	defaultLog   Logger = NopLogger{}

	disabledWarned bool
)

// SetDefaultLogger installs the logger used by the registry and the
// config factories when no per-cache logger applies.
func SetDefaultLogger(l Logger) {
	defaultLogMu.Lock()
	defaultLog = coalesce[Logger](l, NopLogger{})
	defaultLogMu.Unlock()
}

func pkgLog() Logger {
	defaultLogMu.RLock()
	defer defaultLogMu.RUnlock()
	return defaultLog
}

// GetOrCreateManager returns the manager registered under name,
// constructing it on first use. With nil opts the manager is built from
// the environment configuration and a Redis store; name "" resolves to
// opts.Name, then opts.Prefix, then the configured prefix.
//
// When configuration disables caching (and opts is nil), it returns
// (nil, nil) with a warning: callers treat a nil manager as
// "run uncached".
func GetOrCreateManager(name string, opts *Options) (*Cache, error) {
	if name == "" && opts != nil {
		name = coalesce(opts.Name, opts.Prefix)
	}
	if name != "" {
		registryMu.RLock()
		m, ok := registry[name]
		registryMu.RUnlock()
		if ok {
			return m, nil
		}
	}

	var cfg *Config
	if opts == nil || name == "" {
		cfg = LoadConfig()
	}
	if name == "" {
		name = cfg.Prefix
	}

	registryMu.RLock()
	m, ok := registry[name]
	registryMu.RUnlock()
	if ok {
		return m, nil
	}

	registryMu.Lock()
	defer registryMu.Unlock()
	if m, ok := registry[name]; ok {
		return m, nil
	}

	if opts == nil {
		if !cfg.Enabled {
			if !disabledWarned {
				disabledWarned = true
				pkgLog().Warn("caching is disabled; wrapped functions run uncached", Fields{
					"manager": name,
				})
			}
			return nil, nil
		}
		m, err := NewManagerFromConfig(name, cfg)
		if err != nil {
			return nil, err
		}
		registry[name] = m
		return m, nil
	}

	o := *opts
	o.Name = name
	m, err := New(o)
	if err != nil {
		return nil, err
	}
	registry[name] = m
	return m, nil
}

// DefaultManager returns the manager for the configured default name.
func DefaultManager() (*Cache, error) {
	return GetOrCreateManager("", nil)
}

// ManagerByName looks up a registered manager without constructing one.
func ManagerByName(name string) (*Cache, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	m, ok := registry[name]
	return m, ok
}

// Register adds a pre-built cache under its own name. It reports false
// when the name is already taken (the existing manager stays).
func Register(c *Cache) bool {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, ok := registry[c.Name()]; ok {
		return false
	}
	registry[c.Name()] = c
	return true
}

// ResetManagers clears the registry. Registered caches are not closed;
// intended for tests and full reconfiguration.
func ResetManagers() {
	registryMu.Lock()
	registry = make(map[string]*Cache)
	disabledWarned = false
	registryMu.Unlock()
}
