package cmd

import (
	"fmt"
	"sort"
	"strings"

	gocan "github.com/roffe/gocanapi"
	"github.com/spf13/cobra"
	"go.bug.st/serial/enumerator"
)

func init() {
	listCmd.Flags().Bool("ports", false, "also list serial ports")
	rootCmd.AddCommand(listCmd)
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "list registered transports",
	RunE: func(cmd *cobra.Command, args []string) error {
		transports := gocan.ListTransports()
		sort.Slice(transports, func(i, j int) bool {
			return strings.ToLower(transports[i].Name) < strings.ToLower(transports[j].Name)
		})
		for _, tr := range transports {
			fmt.Println(tr.String())
		}
		showPorts, err := cmd.Flags().GetBool("ports")
		if err != nil {
			return err
		}
		if !showPorts {
			return nil
		}
		ports, err := enumerator.GetDetailedPortsList()
		if err != nil {
			return err
		}
		if len(ports) == 0 {
			fmt.Println("no serial ports found")
			return nil
		}
		for _, port := range ports {
			fmt.Printf("found port: %s\n", port.Name)
			if port.IsUSB {
				fmt.Printf("  USB ID     %s:%s\n", port.VID, port.PID)
				fmt.Printf("  USB serial %s\n", port.SerialNumber)
			}
		}
		return nil
	},
}
