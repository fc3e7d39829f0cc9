package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var pidCmd = &cobra.Command{
	Use:   "pid",
	Short: "Print the PID of the running daemon",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		pid, err := c.QueryPID()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), pid)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pidCmd)
}
