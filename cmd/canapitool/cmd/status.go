package cmd

import (
	"fmt"

	gocan "github.com/roffe/gocanapi"
	"github.com/spf13/cobra"
)

func init() {
	statusCmd.Flags().Bool("start", false, "bring the controller online before querying")
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "show channel and controller status",
	RunE: func(cmd *cobra.Command, args []string) error {
		start, err := cmd.Flags().GetBool("start")
		if err != nil {
			return err
		}
		sess, opts, err := openSession()
		if err != nil {
			return err
		}
		defer sess.Close()
		if start {
			if err := sess.Start(opts.rate); err != nil {
				return err
			}
		}

		fmt.Printf("transport: %s\n", sess.Transport().Name())
		fmt.Printf("channel:   %d (%s)\n", sess.Channel(), sess.State())

		if hw, ok := sess.Transport().(gocan.HardwareInfo); ok {
			if name, err := hw.Hardware(); err == nil {
				fmt.Printf("hardware:  %s\n", name)
			}
			if version, err := hw.Firmware(); err == nil {
				fmt.Printf("firmware:  %s\n", version)
			}
		}

		status, err := sess.Status()
		if err != nil {
			return err
		}
		fmt.Printf("status:    %s\n", status)

		if rate, err := sess.Bitrate(); err == nil {
			fmt.Printf("bitrate:   %s\n", rate)
		}
		if load, _, err := sess.BusLoad(); err == nil {
			fmt.Printf("busload:   %.1f%%\n", load)
		}
		return nil
	},
}
