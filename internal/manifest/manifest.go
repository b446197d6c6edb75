// Package manifest loads the two bundler manifests and removes them from
// the output tree. Manifests are a build-time artifact, not a shipped
// output; their schema belongs to the external renderer and is treated as
// opaque here.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Dir is the manifest directory name inside the output directory.
const Dir = "manifest"

// Kind names of the two manifests.
const (
	KindServer = "server"
	KindClient = "client"
)

// Blob is one opaque manifest, tagged with its kind.
type Blob struct {
	Kind string
	Data json.RawMessage
}

// MissingError reports a manifest file the compiler was expected to
// produce. It is fatal: the compiler/loader contract was violated.
type MissingError struct {
	Path string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("manifest missing: %s", e.Path)
}

// Load reads the server and client manifests from <outputDir>/manifest and
// removes the directory once both reads succeeded.
func Load(outputDir string) (server, client Blob, err error) {
	dir := filepath.Join(outputDir, Dir)

	server, err = read(dir, KindServer)
	if err != nil {
		return Blob{}, Blob{}, err
	}
	client, err = read(dir, KindClient)
	if err != nil {
		return Blob{}, Blob{}, err
	}

	if err := os.RemoveAll(dir); err != nil {
		return Blob{}, Blob{}, fmt.Errorf("remove manifest dir %s: %w", dir, err)
	}
	return server, client, nil
}

func read(dir, kind string) (Blob, error) {
	path := filepath.Join(dir, kind+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Blob{}, &MissingError{Path: path}
		}
		return Blob{}, fmt.Errorf("read manifest %s: %w", path, err)
	}
	// The blob is embedded into a JSON request later; reject garbage now.
	if !json.Valid(data) {
		return Blob{}, fmt.Errorf("manifest %s is not valid JSON", path)
	}
	return Blob{Kind: kind, Data: data}, nil
}
