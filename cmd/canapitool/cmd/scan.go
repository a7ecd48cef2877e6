package cmd

import (
	"fmt"

	gocan "github.com/roffe/gocanapi"
	"github.com/spf13/cobra"
)

func init() {
	scanCmd.Flags().IntP("max", "m", gocan.DefaultScanLimit, "highest channel number to probe")
	rootCmd.AddCommand(scanCmd)
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "probe for free channels",
	RunE: func(cmd *cobra.Command, args []string) error {
		max, err := cmd.Flags().GetInt("max")
		if err != nil {
			return err
		}
		opts, err := getSessionOpts()
		if err != nil {
			return err
		}
		tr, err := newTransport(opts)
		if err != nil {
			return err
		}
		sess := gocan.NewSession(tr)
		channels := sess.Scan(max)
		if len(channels) == 0 {
			fmt.Println("no free channels found")
			return nil
		}
		for _, ch := range channels {
			fmt.Printf("channel %d available\n", ch)
		}
		return nil
	},
}
