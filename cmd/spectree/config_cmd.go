package main

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spectree/spectree/internal/config"
	"github.com/spectree/spectree/internal/ui"
)

var configCmd = &cobra.Command{
	Use:     "config",
	GroupID: "setup",
	Short:   "Read and write spectree settings",
	Long: `Read and write settings in the workspace config (.spectree/config.yaml).

Settings resolve in this order: command-line flags, SPECTREE_* environment
variables (cms.url -> SPECTREE_CMS_URL), the workspace config, the user
config, then built-in defaults.`,
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print the effective value of a setting",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		key := args[0]
		if _, ok := config.KnownKeys[key]; !ok {
			FatalErrorWithHint(fmt.Sprintf("unknown config key %q", key), "run 'spectree config list' to see all keys")
		}
		value := config.GetString(key)
		if jsonOutput {
			outputJSON(map[string]string{"key": key, "value": value})
			return
		}
		fmt.Println(value)
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Write a setting to the workspace config",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		path := configFlag
		if path == "" {
			p, err := config.WorkspaceConfigPath()
			if err != nil {
				FatalError("%v", err)
			}
			path = p
		}
		if err := config.SetYamlConfig(path, args[0], args[1]); err != nil {
			if errors.Is(err, config.ErrUnknownKey) {
				FatalErrorWithHint(err.Error(), "run 'spectree config list' to see all keys")
			}
			FatalError("%v", err)
		}
		if jsonOutput {
			outputJSON(map[string]string{"key": args[0], "value": args[1], "file": path})
			return
		}
		fmt.Printf("%s Set %s in %s\n", ui.RenderPassIcon(), args[0], path)
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every setting with its effective value",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		rows := config.List()
		if jsonOutput {
			outputJSON(rows)
			return
		}
		if used := config.ConfigFileUsed(); used != "" {
			fmt.Println(ui.RenderMuted("# " + used))
		}
		width := 0
		for _, r := range rows {
			width = max(width, len(r.Key))
		}
		sort.Slice(rows, func(i, j int) bool { return rows[i].Key < rows[j].Key })
		for _, r := range rows {
			value := r.Value
			if value == "" {
				value = ui.RenderMuted("(unset)")
			}
			fmt.Printf("%s%s = %s  %s\n", r.Key, strings.Repeat(" ", width-len(r.Key)), value, ui.RenderMuted("# "+r.Help))
		}
	},
}

func init() {
	configCmd.AddCommand(configGetCmd, configSetCmd, configListCmd)
	rootCmd.AddCommand(configCmd)
}
