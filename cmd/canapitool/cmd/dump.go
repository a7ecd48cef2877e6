package cmd

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"time"

	gocan "github.com/roffe/gocanapi"
	"github.com/spf13/cobra"
)

func init() {
	dumpCmd.Flags().StringP("output", "o", "", "write frames to file instead of stdout")
	dumpCmd.Flags().DurationP("duration", "D", 0, "stop after this long, 0 = until interrupted")
	rootCmd.AddCommand(dumpCmd)
}

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "dump bus traffic to stdout or file",
	RunE: func(cmd *cobra.Command, args []string) error {
		output, err := cmd.Flags().GetString("output")
		if err != nil {
			return err
		}
		duration, err := cmd.Flags().GetDuration("duration")
		if err != nil {
			return err
		}

		sess, _, err := startSession()
		if err != nil {
			return err
		}
		defer sess.Close()

		emit := func(f *gocan.Frame) bool {
			fmt.Println(f.ColorString())
			return true
		}
		if output != "" {
			file, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("failed to create output file: %w", err)
			}
			defer file.Close()
			w := bufio.NewWriter(file)
			defer w.Flush()
			start := time.Now()
			emit = func(f *gocan.Frame) bool {
				fmt.Fprintf(w, "%12.4f %s\n", time.Since(start).Seconds(), f.String())
				return true
			}
		}

		count, err := sess.Monitor(cmd.Context(), duration, emit)
		if err != nil {
			return err
		}
		log.Printf("captured %d frames", count)
		return nil
	},
}
