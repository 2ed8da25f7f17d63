package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/spectree/spectree/internal/reorder"
	"github.com/spectree/spectree/internal/types"
	"github.com/spectree/spectree/internal/ui"
)

// reorderResult is the --json output of reorder and move.
type reorderResult struct {
	Payload   reorder.Payload `json:"payload"`
	Persisted bool            `json:"persisted"`
	Error     string          `json:"error,omitempty"`
}

var reorderCmd = &cobra.Command{
	Use:     "reorder <type> <id> <index>",
	GroupID: "tree",
	Short:   "Move an item to a new position under the same parent",
	Long: `Move an item to a new position among its siblings (0-based).

The local tree changes at once; the new position is then written to the CMS
unless --offline is set or persist-to-api is false.

Examples:
  spectree reorder epic k3x9 0
  spectree reorder task t7q2 2`,
	Args: cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		itemType, err := types.ParseItemType(args[0])
		if err != nil {
			FatalError("%v", err)
		}
		var to int
		if _, err := fmt.Sscanf(args[2], "%d", &to); err != nil {
			FatalError("invalid index %q", args[2])
		}

		ctx := getRootContext()
		sess := mustOpenSession(ctx)
		defer sess.close(ctx)

		p, err := reorderPayload(sess.snapshot(), itemType, args[1], to)
		if err != nil {
			FatalError("%v", err)
		}
		runReorder(sess, p)
	},
}

var moveCmd = &cobra.Command{
	Use:     "move <type> <id> [parent-id]",
	GroupID: "tree",
	Short:   "Move an item under a different parent",
	Long: `Move a feature, user story or task to another parent one level up.

Without a parent id, --pick opens an interactive picker listing every
possible destination. --index sets the position under the new parent
(default: last).

Examples:
  spectree move feature f1 e2
  spectree move task t7q2 --pick
  spectree move story s4 f9 --index 0`,
	Args: cobra.RangeArgs(2, 3),
	Run: func(cmd *cobra.Command, args []string) {
		itemType, err := types.ParseItemType(args[0])
		if err != nil {
			FatalError("%v", err)
		}
		pick, _ := cmd.Flags().GetBool("pick")
		index, _ := cmd.Flags().GetInt("index")
		if len(args) < 3 && !pick {
			FatalErrorWithHint("destination parent required", "pass a parent id or use --pick")
		}

		ctx := getRootContext()
		sess := mustOpenSession(ctx)
		defer sess.close(ctx)

		id := args[1]
		var dest string
		if len(args) == 3 {
			dest = args[2]
		} else {
			item, err := sess.snapshot().Lookup(itemType, id)
			if err != nil {
				FatalError("%v", err)
			}
			dest, err = ui.PickParent(ctx, itemType, sess.coord.GetPotentialParents(itemType, item.ParentID))
			if errors.Is(err, ui.ErrCancelled) {
				fmt.Fprintln(os.Stderr, "Move cancelled.")
				return
			}
			if err != nil {
				FatalError("%v", err)
			}
		}

		if check := sess.coord.ValidateMove(itemType, id, dest); !check.Valid {
			FatalError("cannot move: %s", check.Reason)
		}
		p, err := movePayload(sess.snapshot(), itemType, id, dest, index)
		if err != nil {
			FatalError("%v", err)
		}
		runReorder(sess, p)
	},
}

func init() {
	moveCmd.Flags().Bool("pick", false, "Choose the destination interactively")
	moveCmd.Flags().Int("index", appendIndex, "Position under the new parent (default: last)")
	rootCmd.AddCommand(reorderCmd, moveCmd)
}

// runReorder hands p to the coordinator and reports the outcome. A failed
// remote write keeps the local change; the toast has already been shown.
func runReorder(sess *session, p reorder.Payload) {
	result := reorderResult{Payload: p}
	sess.coord.HandleReorder(getRootContext(), p,
		reorder.OnSuccess(func() { result.Persisted = sess.online() }),
		reorder.OnError(func(err error) { result.Error = err.Error() }),
	)

	if jsonOutput {
		outputJSON(result)
		if result.Error != "" {
			sess.close(getRootContext())
			os.Exit(1)
		}
		return
	}
	if result.Error != "" {
		// The local tree already holds the change; say so and exit non-zero.
		fmt.Fprintf(os.Stderr, "%s %s\n", ui.RenderFailIcon(), result.Error)
		sess.close(getRootContext())
		os.Exit(1)
	}

	what := "Reordered"
	if p.IsMove() {
		what = "Moved"
	}
	suffix := ui.RenderMuted("(local only)")
	if result.Persisted {
		suffix = ui.RenderMuted("(saved)")
	}
	fmt.Printf("%s %s %s %s to position %d %s\n",
		ui.RenderPassIcon(), what, p.ItemType.Label(), p.ItemID, p.DestinationIndex, suffix)
}
