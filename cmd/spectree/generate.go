package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spectree/spectree/internal/config"
	"github.com/spectree/spectree/internal/generate"
	"github.com/spectree/spectree/internal/logging"
	"github.com/spectree/spectree/internal/types"
	"github.com/spectree/spectree/internal/ui"
)

var generateCmd = &cobra.Command{
	Use:     "generate <type> [parent-id]",
	GroupID: "tree",
	Short:   "Draft new items with an AI model",
	Long: `Ask the configured Anthropic model for new items one level below a parent:
epics for the app, features for an epic, user stories for a feature or tasks
for a user story.

Drafts are printed for review; --apply adds them to the tree (and the CMS when
online). Prompts can be overridden with a TOML file (config key ai.prompts).

Examples:
  spectree generate epic --count 3
  spectree generate story f9 --apply`,
	Args: cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		itemType, err := types.ParseItemType(args[0])
		if err != nil {
			FatalError("%v", err)
		}
		var parentID string
		if len(args) == 2 {
			parentID = args[1]
		}
		if _, nested := itemType.ParentType(); nested && parentID == "" {
			FatalErrorWithHint(itemType.Label()+" drafts need a parent id", "see 'spectree parents "+string(itemType)+"'")
		}
		apply, _ := cmd.Flags().GetBool("apply")
		count, _ := cmd.Flags().GetInt("count")
		if !cmd.Flags().Changed("count") {
			count = config.GetInt(config.KeyAICount)
		}

		ctx := getRootContext()
		sess := mustOpenSession(ctx)
		defer sess.close(ctx)

		gen, err := newGenerator(sess.settings)
		if errors.Is(err, generate.ErrAPIKeyRequired) {
			FatalErrorWithHint(err.Error(), "export ANTHROPIC_API_KEY or run 'spectree config set ai.api-key <key>'")
		}
		if err != nil {
			FatalError("%v", err)
		}

		drafts, err := gen.Generate(ctx, sess.snapshot(), itemType, parentID, count)
		if err != nil {
			FatalError("%v", err)
		}

		if !apply {
			printDrafts(itemType, drafts)
			return
		}
		actions, err := generate.Actions(itemType, parentID, drafts)
		if err != nil {
			FatalError("%v", err)
		}
		added, err := sess.addItems(ctx, actions)
		if err != nil {
			FatalError("%v", err)
		}
		printAdded(added)
	},
}

func init() {
	generateCmd.Flags().Int("count", generate.DefaultCount, "Number of drafts (default: config key ai.count)")
	generateCmd.Flags().Bool("apply", false, "Add the drafts to the tree")
	rootCmd.AddCommand(generateCmd)
}

func newGenerator(s config.Settings) (*generate.Generator, error) {
	completer, err := generate.NewAnthropicCompleter(s.AIAPIKey, s.AIModel)
	if err != nil {
		return nil, err
	}
	opts := []generate.Option{generate.WithLogger(logging.Component(logger, "generate"))}
	if s.AIPrompts != "" {
		prompts, err := generate.LoadPrompts(s.AIPrompts)
		if err != nil {
			return nil, err
		}
		opts = append(opts, generate.WithPrompts(prompts))
	}
	return generate.New(completer, opts...), nil
}

func printDrafts(itemType types.ItemType, drafts []generate.Draft) {
	if jsonOutput {
		outputJSON(drafts)
		return
	}
	fmt.Println(ui.RenderCategory(fmt.Sprintf("%d %s drafts", len(drafts), itemType.Label())))
	for i, d := range drafts {
		fmt.Printf("%2d. %s\n", i+1, d.Title)
		if d.Description != "" {
			fmt.Printf("    %s\n", ui.RenderMuted(d.Description))
		}
		if d.AcceptanceCriteria != "" {
			fmt.Printf("    %s %s\n", ui.RenderAccent("Acceptance:"), d.AcceptanceCriteria)
		}
	}
	fmt.Println(ui.RenderMuted("Re-run with --apply to add them."))
}
