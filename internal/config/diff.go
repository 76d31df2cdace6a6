package config

// ConfigDiff describes what changed between two configs. Only fields that
// are safe to hot-reload without restarting the store/engine are tracked —
// a store.backend or store.postgres_dsn change always requires a restart
// and is deliberately not represented here.
type ConfigDiff struct {
	LogLevelChanged    bool
	NewLogLevel        LogLevel
	MaxRoundsChanged   bool
	NewMaxRounds       int
	ContextsChanged    bool
	ContextChanges     []ContextSeedDiff
}

// ContextSeedDiff describes what changed for a single seeded context
// between two configs, keyed by name.
type ContextSeedDiff struct {
	Name        string
	TagsChanged bool
	Added       bool
	Removed     bool
}

// Diff compares old and new configs and returns what changed. Only tracks
// changes that are safe to apply without restarting the daemon.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Enrichment.MaxRounds != new.Enrichment.MaxRounds {
		d.MaxRoundsChanged = true
		d.NewMaxRounds = new.Enrichment.MaxRounds
	}

	oldSeeds := make(map[string]*ContextSeed, len(old.Contexts))
	for i := range old.Contexts {
		oldSeeds[old.Contexts[i].Name] = &old.Contexts[i]
	}
	newSeeds := make(map[string]*ContextSeed, len(new.Contexts))
	for i := range new.Contexts {
		newSeeds[new.Contexts[i].Name] = &new.Contexts[i]
	}

	for name, oldSeed := range oldSeeds {
		newSeed, exists := newSeeds[name]
		if !exists {
			d.ContextChanges = append(d.ContextChanges, ContextSeedDiff{Name: name, Removed: true})
			d.ContextsChanged = true
			continue
		}
		if !stringSlicesEqual(oldSeed.Tags, newSeed.Tags) {
			d.ContextChanges = append(d.ContextChanges, ContextSeedDiff{Name: name, TagsChanged: true})
			d.ContextsChanged = true
		}
	}
	for name := range newSeeds {
		if _, exists := oldSeeds[name]; !exists {
			d.ContextChanges = append(d.ContextChanges, ContextSeedDiff{Name: name, Added: true})
			d.ContextsChanged = true
		}
	}

	return d
}

func stringSlicesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
