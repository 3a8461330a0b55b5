package conformance

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LoadedScenario is a Scenario with the file it came from attached, for
// readable test names.
type LoadedScenario struct {
	File     string
	Suite    string
	Scenario Scenario
}

// LoadDir walks dir for *.yaml files and loads every scenario they
// declare.
func LoadDir(dir string) ([]LoadedScenario, error) {
	var loaded []LoadedScenario

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || filepath.Ext(path) != ".yaml" {
			return nil
		}
		scenarios, suiteName, err := loadFile(path)
		if err != nil {
			return fmt.Errorf("conformance: %s: %w", path, err)
		}
		rel, _ := filepath.Rel(dir, path)
		for _, s := range scenarios {
			loaded = append(loaded, LoadedScenario{File: rel, Suite: suiteName, Scenario: s})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return loaded, nil
}

func loadFile(path string) ([]Scenario, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", err
	}
	var suite Suite
	if err := yaml.Unmarshal(data, &suite); err != nil {
		return nil, "", err
	}
	return suite.Scenarios, suite.Name, nil
}
