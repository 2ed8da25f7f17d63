package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/spectree/spectree/internal/config"
	"github.com/spectree/spectree/internal/export"
	"github.com/spectree/spectree/internal/tree"
	"github.com/spectree/spectree/internal/types"
	"github.com/spectree/spectree/internal/ui"
)

var showCmd = &cobra.Command{
	Use:     "show",
	GroupID: "tree",
	Short:   "Show the specification tree of the selected app",
	Long: `Show the app's epics, features, user stories and tasks as a tree.

--markdown renders the same document 'spectree export --format markdown'
writes, styled for the terminal. --json prints the raw tree.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		markdown, _ := cmd.Flags().GetBool("markdown")
		ids, _ := cmd.Flags().GetBool("ids")
		depth, _ := cmd.Flags().GetInt("depth")

		ctx := getRootContext()
		sess := mustOpenSession(ctx)
		defer sess.close(ctx)
		t := sess.snapshot()

		switch {
		case jsonOutput:
			outputJSON(t)
		case markdown:
			fmt.Print(ui.RenderMarkdown(export.Markdown(t)))
		default:
			if err := ui.RenderTree(os.Stdout, t, ui.TreeOptions{ShowIDs: ids, MaxDepth: depth}); err != nil {
				FatalError("%v", err)
			}
			if sess.source == sourceCache && !offline {
				fmt.Fprintln(os.Stderr, ui.RenderMuted("(from cache)"))
			}
		}
	},
}

var parentsCmd = &cobra.Command{
	Use:     "parents <type> [current-parent-id]",
	GroupID: "tree",
	Short:   "List every possible parent for an item type",
	Long: `List the candidates one level above <type>, in tree order, with their
breadcrumb path. The current parent, when given, is marked.

Examples:
  spectree parents feature
  spectree parents task s4`,
	Args: cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		itemType, err := types.ParseItemType(args[0])
		if err != nil {
			FatalError("%v", err)
		}
		var current string
		if len(args) == 2 {
			current = args[1]
		}

		ctx := getRootContext()
		sess := mustOpenSession(ctx)
		defer sess.close(ctx)

		options := sess.coord.GetPotentialParents(itemType, current)
		if jsonOutput {
			if options == nil {
				options = []tree.ParentOption{}
			}
			outputJSON(options)
			return
		}
		if len(options) == 0 {
			fmt.Println(ui.RenderMuted(fmt.Sprintf("No potential parents for %s.", itemType.Label())))
			return
		}
		for _, o := range options {
			marker := "  "
			if o.IsCurrent {
				marker = ui.RenderAccent("* ")
			}
			fmt.Printf("%s%s %s\n", marker, o.Path, ui.RenderMuted("("+o.ID+")"))
		}
	},
}

var validateMoveCmd = &cobra.Command{
	Use:     "validate-move <type> <id> <parent-id>",
	GroupID: "tree",
	Short:   "Check whether an item can be moved under a parent",
	Args:    cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		itemType, err := types.ParseItemType(args[0])
		if err != nil {
			FatalError("%v", err)
		}

		ctx := getRootContext()
		sess := mustOpenSession(ctx)
		defer sess.close(ctx)

		check := sess.coord.ValidateMove(itemType, args[1], args[2])
		if jsonOutput {
			outputJSON(check)
			return
		}
		if check.Valid {
			fmt.Printf("%s %s %s can move to %s\n", ui.RenderPassIcon(), itemType.Label(), args[1], args[2])
			return
		}
		fmt.Printf("%s %s\n", ui.RenderFailIcon(), check.Reason)
		sess.close(ctx)
		os.Exit(1)
	},
}

var appsCmd = &cobra.Command{
	Use:     "apps",
	GroupID: "sync",
	Short:   "List the apps stored in the CMS",
	Args:    cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if offline {
			FatalError("apps needs the CMS; drop --offline")
		}
		client := newClient(config.Load())
		apps, err := client.ListApps(getRootContext())
		if err != nil {
			FatalError("%v", err)
		}
		if jsonOutput {
			outputJSON(apps)
			return
		}
		if len(apps) == 0 {
			fmt.Println(ui.RenderMuted("No apps found."))
			return
		}
		for _, a := range apps {
			fmt.Printf("%s  %s %s\n", a.DocumentID, a.Name, ui.RenderMuted(a.UpdatedAt.Format("2006-01-02")))
		}
	},
}

func init() {
	showCmd.Flags().Bool("markdown", false, "Render as markdown")
	showCmd.Flags().Bool("ids", false, "Show item ids")
	showCmd.Flags().Int("depth", 0, "Levels to show below the app (0 = all)")
	rootCmd.AddCommand(showCmd, parentsCmd, validateMoveCmd, appsCmd)
}
