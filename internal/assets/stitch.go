// Package assets post-processes compiler output. The upstream bundler's
// CSS extraction leaves the extracted styles in a separate near-empty JS
// chunk that the app chunk no longer loads; Stitch folds that chunk into
// the app chunk so the emitted site is self-sufficient.
package assets

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"

	"github.com/winterholm/staticpress/internal/compiler"
	"github.com/winterholm/staticpress/internal/logfields"
)

// End-anchored to tolerate chunk names nested under asset subdirectories.
var (
	stylesChunkPattern = regexp.MustCompile(`styles\.\w{8}\.js$`)
	appChunkPattern    = regexp.MustCompile(`app\.\w{8}\.js$`)
)

// ContractError reports an asset list that violates the expected chunk
// shape: exactly one style chunk and exactly one app chunk. Fatal.
type ContractError struct {
	Pattern string
	Matches int
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("asset contract violated: expected exactly one asset matching %s, found %d", e.Pattern, e.Matches)
}

// Stitch locates the style and app chunks in the server target's asset
// list and rewrites the app chunk to styleContent + appContent, deleting
// the style chunk file. The steps are observably sequential: style read,
// style delete, app read, app write.
func Stitch(report *compiler.Report, outputDir string) error {
	server := report.Target(compiler.TargetServer)
	if server == nil {
		return fmt.Errorf("assets: compile report has no %s target", compiler.TargetServer)
	}

	styleName, err := findOne(server.Assets, stylesChunkPattern)
	if err != nil {
		return err
	}
	appName, err := findOne(server.Assets, appChunkPattern)
	if err != nil {
		return err
	}

	stylePath := filepath.Join(outputDir, styleName)
	appPath := filepath.Join(outputDir, appName)

	styleContent, err := os.ReadFile(stylePath)
	if err != nil {
		return fmt.Errorf("read style chunk %s: %w", stylePath, err)
	}
	if err := os.Remove(stylePath); err != nil {
		return fmt.Errorf("remove style chunk %s: %w", stylePath, err)
	}
	appContent, err := os.ReadFile(appPath)
	if err != nil {
		return fmt.Errorf("read app chunk %s: %w", appPath, err)
	}
	if err := os.WriteFile(appPath, append(styleContent, appContent...), 0o644); err != nil {
		return fmt.Errorf("write app chunk %s: %w", appPath, err)
	}

	slog.Debug("Stitched style chunk into app chunk",
		logfields.Name(styleName), slog.String("app", appName))
	return nil
}

func findOne(assets []compiler.Asset, pattern *regexp.Regexp) (string, error) {
	var found string
	matches := 0
	for _, a := range assets {
		if pattern.MatchString(a.Name) {
			found = a.Name
			matches++
		}
	}
	if matches != 1 {
		return "", &ContractError{Pattern: pattern.String(), Matches: matches}
	}
	return found, nil
}
