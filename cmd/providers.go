package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "Inspect and manage LLM providers",
}

var providersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known providers and their status",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%-12s  %-10s  %-7s  %-32s  %s\n", "NAME", "STATUS", "CURRENT", "ACTIVE MODEL", "DESCRIPTION")
		fmt.Fprintln(out, strings.Repeat("─", 100))
		for _, info := range a.router.List() {
			status := "ready"
			switch {
			case info.LoadError != "":
				status = "error"
			case !info.Configured:
				status = "no key"
			}
			current := ""
			if info.Current {
				current = "*"
			}
			desc := info.Description
			if info.LoadError != "" {
				desc = info.LoadError
			}
			fmt.Fprintf(out, "%-12s  %-10s  %-7s  %-32s  %s\n", info.Name, status, current, info.ActiveModel, desc)
		}
		return nil
	},
}

var providersSwitchCmd = &cobra.Command{
	Use:   "switch <name>",
	Short: "Make a provider the default for new requests",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.router.Switch(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Current provider: %s\n", args[0])
		fmt.Fprintf(cmd.OutOrStdout(), "Set QUIZFORGE_DEFAULT_PROVIDER=%s to make this permanent.\n", args[0])
		return nil
	},
}

var providersTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Probe every provider with a minimal request",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		results := a.router.TestAll(cmd.Context())
		names := make([]string, 0, len(results))
		for name := range results {
			names = append(names, name)
		}
		sort.Strings(names)

		out := cmd.OutOrStdout()
		for _, name := range names {
			r := results[name]
			mark := "✓"
			if !r.Success {
				mark = "✗"
			}
			fmt.Fprintf(out, "%s %-12s %s\n", mark, name, r.Message)
		}
		return nil
	},
}

func init() {
	providersCmd.AddCommand(providersListCmd)
	providersCmd.AddCommand(providersSwitchCmd)
	providersCmd.AddCommand(providersTestCmd)
}
