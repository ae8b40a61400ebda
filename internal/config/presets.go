package config

import "sort"

var Presets = map[string]*Config{
	"random": {
		Generator: "random", Bodies: 10000, DomainSize: 700, Steps: 500,
	},
	"accretion": {
		Generator: "accretion", Bodies: 5000, DomainSize: 700, Steps: 1000,
	},
	"circulation": {
		Generator: "circulation", Bodies: 5000, DomainSize: 700, Steps: 1000,
	},
	"column": {
		Generator: "column", Bodies: 3, DomainSize: 100, Steps: 200, SampleEvery: 1,
	},
	"binary": {
		Generator: "binary", Bodies: 2, DomainSize: 400, Steps: 2000, SampleEvery: 5,
	},
}

// GetPreset returns the defaults overlaid with the named preset, or nil.
func GetPreset(name string) *Config {
	p, ok := Presets[name]
	if !ok {
		return nil
	}
	cfg := DefaultConfig()
	cfg.Generator = p.Generator
	cfg.Bodies = p.Bodies
	cfg.DomainSize = p.DomainSize
	cfg.Steps = p.Steps
	if p.SampleEvery > 0 {
		cfg.SampleEvery = p.SampleEvery
	}
	return cfg
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
