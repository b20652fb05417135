package cmd

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"si-monitor/pkg/config"
)

var chainsCmd = &cobra.Command{
	Use:   "chains",
	Short: "列出已配置的链及合约地址",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(path)
		if err != nil {
			return err
		}

		ids := make([]uint64, 0, len(cfg.Chains))
		for id := range cfg.Chains {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tBLOCK\tROUND\tCOMMIT\tREVEAL\tREDISTRIBUTION\tSTAKING\tPOSTAGE\tBZZ")
		for _, id := range ids {
			c := cfg.Chains[id]
			mark := ""
			if id == cfg.Chain.ChainID {
				mark = "*"
			}
			fmt.Fprintf(w, "%d%s\t%s\t%ds\t%d\t%d\t%d\t%s\t%s\t%s\t%s\n",
				id, mark, c.Name, c.SecondsPerBlock, c.BlocksPerRound, c.CommitPhaseBlocks, c.RevealPhaseBlocks,
				c.Contracts.Redistribution, c.Contracts.StakeRegistry, c.Contracts.PostageStamp, c.Contracts.BzzToken)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(chainsCmd)
}
