// Package config loads the inputs of a run: the environment, the financial
// record and the scenario.
package config

import (
	"fmt"
	"os"

	"finagle/pkg/core/ledger"
	"finagle/pkg/core/pipeline"
	"finagle/pkg/core/utils"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// LoadEnv reads .env files into the process environment. With no paths it
// reads ./.env. A missing file is not an error; variables already set win.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// LoadRecord reads a financial record from a JSON or Hjson file.
func LoadRecord(path string) (ledger.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ledger.Record{}, fmt.Errorf("failed to read record: %w", err)
	}
	return ParseRecord(data)
}

// ParseRecord decodes a record, tolerating Hjson and common JSON defects.
func ParseRecord(data []byte) (ledger.Record, error) {
	var rec ledger.Record
	if _, err := utils.DecodeLenient(string(data), &rec); err != nil {
		return ledger.Record{}, fmt.Errorf("failed to parse record: %w", err)
	}
	if rec.Date == "" {
		return ledger.Record{}, fmt.Errorf("record %q has no date", rec.Ticker)
	}
	return rec, nil
}

// LoadScenario reads a scenario from a YAML file.
func LoadScenario(path string) (pipeline.Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return pipeline.Scenario{}, fmt.Errorf("failed to read scenario: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates a YAML scenario.
func ParseScenario(data []byte) (pipeline.Scenario, error) {
	var sc pipeline.Scenario
	if err := yaml.UnmarshalStrict(data, &sc); err != nil {
		return pipeline.Scenario{}, fmt.Errorf("failed to parse scenario: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return pipeline.Scenario{}, fmt.Errorf("scenario %q: %w", sc.Name, err)
	}
	return sc, nil
}
