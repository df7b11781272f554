package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and manage the question cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache size and hit statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		if a.cache == nil {
			return errors.New("cache is disabled (QUIZFORGE_CACHE_ENABLED=false)")
		}

		st, err := a.cache.Stats(cmd.Context())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Entries:        %d / %d\n", st.Entries, st.MaxEntries)
		fmt.Fprintf(out, "Expired:        %d (TTL %d days)\n", st.Expired, st.TTLDays)
		fmt.Fprintf(out, "Total accesses: %d\n", st.TotalAccess)
		if st.OldestUnix > 0 {
			fmt.Fprintf(out, "Oldest entry:   %s\n", time.Unix(st.OldestUnix, 0).Local().Format("2006-01-02 15:04:05"))
			fmt.Fprintf(out, "Newest entry:   %s\n", time.Unix(st.NewestUnix, 0).Local().Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every cached questionset",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		if a.cache == nil {
			return errors.New("cache is disabled (QUIZFORGE_CACHE_ENABLED=false)")
		}

		n, err := a.cache.Clear(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d cache entries.\n", n)
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}
