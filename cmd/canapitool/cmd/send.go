package cmd

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	gocan "github.com/roffe/gocanapi"
	"github.com/roffe/gocanapi/pkg/bar"
	"github.com/spf13/cobra"
)

func init() {
	sendCmd.Flags().IntP("count", "n", 1, "number of frames to send")
	sendCmd.Flags().DurationP("gap", "g", 0, "pause between frames")
	sendCmd.Flags().BoolP("extended", "x", false, "send with 29bit identifier")
	sendCmd.Flags().Bool("rtr", false, "send as remote transmission request")
	sendCmd.Flags().Duration("timeout", 0, "per frame write timeout, 0 sends best effort")
	rootCmd.AddCommand(sendCmd)
}

var sendCmd = &cobra.Command{
	Use:   "send <id> [data]",
	Short: "send a frame on the bus",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseUint(args[0], 16, 32)
		if err != nil {
			return fmt.Errorf("failed to decode identifier: %w", err)
		}
		var data []byte
		if len(args) == 2 {
			data, err = hex.DecodeString(args[1])
			if err != nil {
				return fmt.Errorf("failed to decode frame body: %w", err)
			}
		}
		count, err := cmd.Flags().GetInt("count")
		if err != nil {
			return err
		}
		gap, err := cmd.Flags().GetDuration("gap")
		if err != nil {
			return err
		}
		extended, err := cmd.Flags().GetBool("extended")
		if err != nil {
			return err
		}
		rtr, err := cmd.Flags().GetBool("rtr")
		if err != nil {
			return err
		}
		timeout, err := cmd.Flags().GetDuration("timeout")
		if err != nil {
			return err
		}

		var opts []gocan.FrameOpt
		if extended {
			opts = append(opts, gocan.OptExtended)
		}
		if rtr {
			opts = append(opts, gocan.OptRTR)
		}
		if timeout > 0 {
			opts = append(opts, gocan.OptTimeout(timeout))
		}
		frame := gocan.NewFrame(uint32(id), data, opts...)

		sess, _, err := startSession()
		if err != nil {
			return err
		}
		defer sess.Close()

		bar := bar.New(count, "sending frames")
		defer func() {
			if !bar.IsFinished() {
				bar.Finish()
				fmt.Println()
			}
		}()

		for i := 0; i < count; i++ {
			select {
			case <-cmd.Context().Done():
				return nil
			default:
			}
			if err := sess.Send(frame); err != nil {
				return err
			}
			bar.Add(1)
			if gap > 0 && i < count-1 {
				time.Sleep(gap)
			}
		}
		bar.Finish()
		fmt.Println()
		return nil
	},
}
