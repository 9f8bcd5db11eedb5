package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

var (
	ErrPresetNotFound = errors.New("preset not found")
	ErrInvalidPreset  = errors.New("invalid preset")
)

// Manager loads, caches and watches tuning presets
type Manager struct {
	presetDir     string
	defaultPreset *Preset
	presets       map[string]*Preset
	mu            sync.RWMutex
}

// NewManager creates a preset manager. An empty presetDir serves the built-in
// classic preset only.
func NewManager(presetDir string) (*Manager, error) {
	if presetDir != "" {
		info, err := os.Stat(presetDir)
		if err != nil {
			return nil, fmt.Errorf("preset directory %s: %w", presetDir, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("preset directory %s is not a directory", presetDir)
		}
	}

	m := &Manager{
		presetDir: presetDir,
		presets:   make(map[string]*Preset),
	}
	m.defaultPreset = m.resolveDefault()

	return m, nil
}

// Dir returns the watched directory, empty for built-ins only
func (m *Manager) Dir() string {
	return m.presetDir
}

// Load returns the preset with the given id. An empty id yields the default.
func (m *Manager) Load(name string) (*Preset, error) {
	name = presetID(name)
	if name == "" {
		return m.Default(), nil
	}

	m.mu.RLock()
	if p, ok := m.presets[name]; ok {
		m.mu.RUnlock()
		return p, nil
	}
	m.mu.RUnlock()

	p, err := m.readPreset(name)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.presets[name] = p
	m.mu.Unlock()

	return p, nil
}

// readPreset loads a preset from disk without touching the cache
func (m *Manager) readPreset(name string) (*Preset, error) {
	if !validID(name) {
		return nil, fmt.Errorf("%w: %s", ErrPresetNotFound, name)
	}
	if m.presetDir == "" {
		if name == DefaultPresetName {
			return ClassicPreset(), nil
		}
		return nil, fmt.Errorf("%w: %s", ErrPresetNotFound, name)
	}

	data, err := os.ReadFile(filepath.Join(m.presetDir, name+".json"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if name == DefaultPresetName {
				return ClassicPreset(), nil
			}
			return nil, fmt.Errorf("%w: %s", ErrPresetNotFound, name)
		}
		return nil, fmt.Errorf("failed to read preset %s: %w", name, err)
	}

	p, err := ParsePreset(data)
	if err != nil {
		return nil, fmt.Errorf("preset %s: %w", name, err)
	}
	return p, nil
}

// ParsePreset decodes and validates preset JSON
func ParsePreset(data []byte) (*Preset, error) {
	var p Preset
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPreset, err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// List returns every loadable preset, sorted by id. Invalid files are skipped.
func (m *Manager) List() ([]*PresetInfo, error) {
	seen := map[string]bool{}
	var infos []*PresetInfo

	if m.presetDir != "" {
		entries, err := os.ReadDir(m.presetDir)
		if err != nil {
			return nil, fmt.Errorf("failed to read preset directory: %w", err)
		}

		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
				continue
			}
			id := strings.TrimSuffix(entry.Name(), ".json")
			p, err := m.Load(id)
			if err != nil {
				log.Warn().Err(err).Str("preset", id).Msg("skipping preset")
				continue
			}
			infos = append(infos, p.info(id, false))
			seen[id] = true
		}
	}

	if !seen[DefaultPresetName] {
		infos = append(infos, ClassicPreset().info(DefaultPresetName, true))
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos, nil
}

// Default returns the default preset
func (m *Manager) Default() *Preset {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.defaultPreset
}

// Save writes a preset to disk and caches it
func (m *Manager) Save(name string, p *Preset) error {
	name = presetID(name)
	if name == "" {
		return fmt.Errorf("%w: empty preset id", ErrInvalidPreset)
	}
	if !validID(name) {
		return fmt.Errorf("%w: preset id %q must be a plain file name", ErrInvalidPreset, name)
	}
	if m.presetDir == "" {
		return fmt.Errorf("no preset directory configured")
	}
	if err := p.Validate(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal preset: %w", err)
	}
	if err := os.WriteFile(filepath.Join(m.presetDir, name+".json"), data, 0644); err != nil {
		return fmt.Errorf("failed to write preset file: %w", err)
	}

	m.mu.Lock()
	m.presets[name] = p
	if name == DefaultPresetName {
		m.defaultPreset = p
	}
	m.mu.Unlock()

	return nil
}

// Refresh drops the cache and re-resolves the default preset
func (m *Manager) Refresh() {
	m.mu.Lock()
	m.presets = make(map[string]*Preset)
	m.mu.Unlock()

	def := m.resolveDefault()

	m.mu.Lock()
	m.defaultPreset = def
	m.mu.Unlock()
}

// invalidate forgets one cached preset
func (m *Manager) invalidate(name string) {
	m.mu.Lock()
	delete(m.presets, name)
	m.mu.Unlock()

	if name == DefaultPresetName {
		def := m.resolveDefault()
		m.mu.Lock()
		m.defaultPreset = def
		m.mu.Unlock()
	}
}

// resolveDefault picks classic from disk, else the built-in
func (m *Manager) resolveDefault() *Preset {
	p, err := m.readPreset(DefaultPresetName)
	if err != nil {
		log.Warn().Err(err).Msg("falling back to built-in classic preset")
		return ClassicPreset()
	}
	return p
}

// Watch invalidates cached presets when their files change until ctx is done.
// onChange, when not nil, receives the id of every changed preset.
func (m *Manager) Watch(ctx context.Context, onChange func(id string)) error {
	if m.presetDir == "" {
		<-ctx.Done()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(m.presetDir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", m.presetDir, err)
	}
	log.Info().Str("dir", m.presetDir).Msg("watching presets")

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !strings.HasSuffix(ev.Name, ".json") {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) &&
				!ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
				continue
			}

			id := strings.TrimSuffix(filepath.Base(ev.Name), ".json")
			m.invalidate(id)
			log.Info().Str("preset", id).Str("op", ev.Op.String()).Msg("preset changed")
			if onChange != nil {
				onChange(id)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Error().Err(err).Msg("preset watcher")
		}
	}
}

// validID reports whether id names a file directly inside the preset directory
func validID(id string) bool {
	if id == "" || id == "." || id == ".." || strings.Contains(id, "..") {
		return false
	}
	return filepath.Base(id) == id && !strings.ContainsAny(id, `/\`)
}

// presetID normalises a preset name or file name to an id
func presetID(name string) string {
	return strings.TrimSuffix(strings.TrimSpace(name), ".json")
}
