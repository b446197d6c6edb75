package site

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ModelFile is the site model file name expected in the source directory.
const ModelFile = "site.yaml"

// Preparer produces the site model a build consumes. Implementations run
// exactly once per build, before any compilation.
type Preparer interface {
	Prepare(ctx context.Context) (*Options, error)
}

// FilePreparer loads the site model from <Dir>/site.yaml.
type FilePreparer struct {
	Dir       string // source directory containing the model file
	OutputDir string // destination directory; always wins over the model file
	Title     string // fallback title when the model file has none
	Lang      string // fallback language when the model file has none
}

type modelFile struct {
	Config `yaml:",inline"`
	Pages  []Page `yaml:"pages"`
}

// Prepare reads and validates the site model.
func (f *FilePreparer) Prepare(ctx context.Context) (*Options, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := filepath.Join(f.Dir, ModelFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read site model %s: %w", path, err)
	}
	var mf modelFile
	if err := yaml.Unmarshal(data, &mf); err != nil {
		return nil, fmt.Errorf("parse site model %s: %w", path, err)
	}
	if mf.Title == "" {
		mf.Title = f.Title
	}
	if mf.Lang == "" {
		mf.Lang = f.Lang
	}
	opts := &Options{
		OutputDir: f.OutputDir,
		Config:    mf.Config,
		Pages:     mf.Pages,
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return opts, nil
}
