package compiler

import (
	"encoding/json"
	"fmt"

	"github.com/winterholm/staticpress/internal/site"
)

// ConfigSource produces the two bundler target configurations for a build.
// The production flag arrives as an explicit argument, never from ambient
// process state.
type ConfigSource func(opts *site.Options, production bool) (client, server TargetConfig, err error)

type targetPayload struct {
	Source     string `json:"source"`
	OutputDir  string `json:"outputDir"`
	Target     string `json:"target"`
	Production bool   `json:"production"`
}

// DefaultConfigSource builds payloads carrying the facts the harness needs
// to assemble its bundler configs: source directory, output directory,
// target name and production mode.
func DefaultConfigSource(sourceDir string) ConfigSource {
	return func(opts *site.Options, production bool) (TargetConfig, TargetConfig, error) {
		mk := func(name string) (TargetConfig, error) {
			payload, err := json.Marshal(targetPayload{
				Source:     sourceDir,
				OutputDir:  opts.OutputDir,
				Target:     name,
				Production: production,
			})
			if err != nil {
				return TargetConfig{}, fmt.Errorf("encode %s target config: %w", name, err)
			}
			return TargetConfig{Name: name, Payload: payload}, nil
		}

		client, err := mk(TargetClient)
		if err != nil {
			return TargetConfig{}, TargetConfig{}, err
		}
		server, err := mk(TargetServer)
		if err != nil {
			return TargetConfig{}, TargetConfig{}, err
		}
		return client, server, nil
	}
}
