package cmd

import (
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/prism/cli/render"
	"github.com/pithecene-io/prism/cli/view"
	"github.com/pithecene-io/prism/draft"
)

// InspectCommand returns the inspect command.
func InspectCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Show the state of a persisted transfer session",
		ArgsUsage: "[manifest]",
		Flags:     ReadOnlyFlags(),
		Action:    inspectAction,
	}
}

func inspectAction(c *cli.Context) error {
	manifestPath := draft.ManifestName
	if c.NArg() > 0 {
		manifestPath = c.Args().First()
	}

	session, err := buildSessionView(manifestPath)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	if c.Bool("tui") {
		return r.RenderTUI(session)
	}
	return r.Render(session)
}

// buildSessionView reads the manifest and sibling draft artifacts into the
// shared session payload. A missing draft yields zero draft bytes rather
// than an error; the manifest alone is enough to describe the session.
func buildSessionView(manifestPath string) (*view.SessionView, error) {
	m, err := draft.ReadManifest(manifestPath)
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(manifestPath)
	session := &view.SessionView{
		FileName:     m.FileName,
		TotalParts:   m.TotalParts,
		Received:     m.TotalParts - len(m.Missing),
		Missing:      m.Missing,
		ManifestPath: manifestPath,
	}
	if info, err := os.Stat(filepath.Join(dir, "DRAFT_"+m.FileName)); err == nil {
		session.DraftBytes = info.Size()
	}
	if _, err := os.Stat(filepath.Join(dir, "DRAFT_"+m.FileName+".idx")); err == nil {
		session.HasIndex = true
	}
	return session, nil
}
