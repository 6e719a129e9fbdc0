package cli

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// CommandInfo describes one leaf command for the commands listing.
type CommandInfo struct {
	Path  string     `json:"path"`
	Short string     `json:"short"`
	Args  string     `json:"args,omitempty"`
	Flags []FlagInfo `json:"flags,omitempty"`
}

// FlagInfo describes one command-local flag.
type FlagInfo struct {
	Name    string `json:"name"`
	Short   string `json:"shorthand,omitempty"`
	Type    string `json:"type"`
	Default string `json:"default,omitempty"`
	Usage   string `json:"usage,omitempty"`
}

func newCommandsCmd() *cobra.Command {
	var filter string
	cmd := &cobra.Command{
		Use:   "commands",
		Short: "List every command with its arguments and flags",
		Example: `  sonai commands
  sonai commands --filter runs -o json`,
		Args: cobra.NoArgs,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			entries := walkCommands(cmd.Root(), "")
			if filter != "" {
				needle := strings.ToLower(filter)
				kept := entries[:0]
				for _, e := range entries {
					if strings.Contains(strings.ToLower(e.Path+" "+e.Short), needle) {
						kept = append(kept, e)
					}
				}
				entries = kept
			}

			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), entries)
			}
			rows := make([][]string, len(entries))
			for i, e := range entries {
				rows[i] = []string{strings.TrimSpace(e.Path + " " + e.Args), e.Short}
			}
			return printTable(cmd.OutOrStdout(), []string{"COMMAND", "DESCRIPTION"}, rows)
		},
	}
	cmd.Flags().StringVar(&filter, "filter", "", "Substring matched against command paths and descriptions")
	return cmd
}

// walkCommands collects the leaf commands under cmd.
func walkCommands(cmd *cobra.Command, parent string) []CommandInfo {
	var out []CommandInfo
	for _, child := range cmd.Commands() {
		if child.Hidden || child.Name() == "help" || child.Name() == "completion" {
			continue
		}
		path := strings.TrimSpace(parent + " " + child.Name())
		if child.HasSubCommands() {
			out = append(out, walkCommands(child, path)...)
			continue
		}
		var args string
		if fields := strings.Fields(child.Use); len(fields) > 1 {
			args = strings.Join(fields[1:], " ")
		}
		out = append(out, CommandInfo{Path: path, Short: child.Short, Args: args, Flags: localFlags(child)})
	}
	return out
}

func localFlags(cmd *cobra.Command) []FlagInfo {
	var flags []FlagInfo
	cmd.LocalNonPersistentFlags().VisitAll(func(f *pflag.Flag) {
		if f.Hidden || f.Name == "help" {
			return
		}
		flags = append(flags, FlagInfo{
			Name:    f.Name,
			Short:   f.Shorthand,
			Type:    f.Value.Type(),
			Default: f.DefValue,
			Usage:   f.Usage,
		})
	})
	return flags
}
