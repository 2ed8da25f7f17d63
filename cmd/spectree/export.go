package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/spectree/spectree/internal/config"
	"github.com/spectree/spectree/internal/export"
	"github.com/spectree/spectree/internal/timeparsing"
	"github.com/spectree/spectree/internal/types"
	"github.com/spectree/spectree/internal/ui"
)

var exportCmd = &cobra.Command{
	Use:     "export",
	GroupID: "sync",
	Short:   "Export the tree as JSON, YAML, CSV or Markdown",
	Long: `Export the selected app's tree.

Without -o the document goes to stdout. With -o the file is written atomically
and a <name>.manifest.json with item counts is written next to it. The format
defaults to the output file's extension, else JSON.

--since keeps only items updated after a point in time (plus their parents).
It accepts compact durations (-7d, -2w), natural language (yesterday,
last monday) and dates (2025-06-01, RFC3339).

Examples:
  spectree export -o plan.md
  spectree export --format csv --since -7d`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		output, _ := cmd.Flags().GetString("output")
		formatFlag, _ := cmd.Flags().GetString("format")
		sinceFlag, _ := cmd.Flags().GetString("since")

		format, err := resolveFormat(formatFlag, output)
		if err != nil {
			FatalError("%v", err)
		}
		var since time.Time
		if sinceFlag != "" {
			since, err = timeparsing.ParseRelativeTime(sinceFlag, time.Now())
			if err != nil {
				FatalError("invalid --since %q: %v", sinceFlag, err)
			}
		}

		ctx := getRootContext()
		sess := mustOpenSession(ctx)
		defer sess.close(ctx)
		t := sess.snapshot()

		if output == "" {
			if !since.IsZero() {
				t = export.Since(t, since)
			}
			if err := export.Write(os.Stdout, t, format); err != nil {
				FatalError("%v", err)
			}
			return
		}

		manifest, err := export.WriteFile(output, t, format, since)
		if err != nil {
			FatalError("%v", err)
		}
		if jsonOutput {
			outputJSON(manifest)
			return
		}
		fmt.Printf("%s Exported %s to %s %s\n", ui.RenderPassIcon(), format, output, ui.RenderMuted(countsLine(manifest.Counts)))
	},
}

var importCmd = &cobra.Command{
	Use:     "import <file>",
	GroupID: "sync",
	Short:   "Load a JSON or YAML tree into the local cache",
	Long: `Read a tree written by 'spectree export' (JSON or YAML), check it for
consistency and store it as the cached tree of its app. Nothing is sent to
the CMS; use --offline to work on it.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		formatFlag, _ := cmd.Flags().GetString("format")
		format, err := resolveFormat(formatFlag, args[0])
		if err != nil {
			FatalError("%v", err)
		}

		f, err := os.Open(args[0])
		if err != nil {
			FatalError("%v", err)
		}
		defer func() { _ = f.Close() }()

		t, err := export.Read(f, format)
		if err != nil {
			FatalError("failed to import %s: %v", args[0], err)
		}

		ctx := getRootContext()
		c, err := openCache(ctx, config.Load())
		if err != nil {
			FatalError("failed to open cache: %v", err)
		}
		defer func() { _ = c.Close() }()
		if err := c.Save(ctx, t); err != nil {
			FatalError("%v", err)
		}

		manifest := export.NewManifest(t, format, time.Time{})
		if jsonOutput {
			outputJSON(manifest)
			return
		}
		fmt.Printf("%s Imported %q as app %s %s\n", ui.RenderPassIcon(), t.App.Title, manifest.App, ui.RenderMuted(countsLine(manifest.Counts)))
	},
}

var pullCmd = &cobra.Command{
	Use:     "pull",
	GroupID: "sync",
	Short:   "Refresh the local cache from the CMS",
	Args:    cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if offline {
			FatalError("pull needs the CMS; drop --offline")
		}
		ctx := getRootContext()
		sess := mustOpenSession(ctx)
		defer sess.close(ctx)
		if sess.source != sourceCMS {
			FatalError("CMS unavailable; cache left as it was")
		}

		t := sess.snapshot()
		manifest := export.NewManifest(t, export.FormatJSON, time.Time{})
		if jsonOutput {
			outputJSON(manifest)
			return
		}
		fmt.Printf("%s Pulled %q %s\n", ui.RenderPassIcon(), t.App.Title, ui.RenderMuted(countsLine(manifest.Counts)))
	},
}

func init() {
	exportCmd.Flags().StringP("output", "o", "", "Output file (default: stdout)")
	exportCmd.Flags().StringP("format", "f", "", "json, yaml, csv or markdown (default: from -o, else json)")
	exportCmd.Flags().String("since", "", "Only items updated after this time")
	importCmd.Flags().StringP("format", "f", "", "json or yaml (default: from the file extension)")
	rootCmd.AddCommand(exportCmd, importCmd, pullCmd)
}

// resolveFormat prefers an explicit format, then the path's extension, then
// JSON.
func resolveFormat(flag, path string) (export.Format, error) {
	if flag != "" {
		return export.ParseFormat(flag)
	}
	if ext := filepath.Ext(path); ext != "" {
		if f, err := export.ParseFormat(ext); err == nil {
			return f, nil
		}
	}
	return export.FormatJSON, nil
}

func countsLine(counts map[string]int) string {
	return fmt.Sprintf("(%d epics, %d features, %d stories, %d tasks)",
		counts[string(types.TypeEpic)], counts[string(types.TypeFeature)],
		counts[string(types.TypeUserStory)], counts[string(types.TypeTask)])
}
