package config

import (
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/crewplan/core/store"
)

// LoadSeed reads a YAML or JSON entity snapshot. Enumerations such as
// statuses and priorities are spelled by name.
func LoadSeed(path string) (store.Seed, error) {
	parser, err := parserFor(path)
	if err != nil {
		return store.Seed{}, err
	}
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), parser); err != nil {
		return store.Seed{}, err
	}
	var sd store.Seed
	if err := k.UnmarshalWithConf("", &sd, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return store.Seed{}, err
	}
	return sd, nil
}
