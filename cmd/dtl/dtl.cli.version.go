package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/itsatony/go-dtl"
)

func newVersionCmd(o *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   CmdNameVersion,
		Short: HelpVersionShort,
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(o.stdout, FmtVersion, dtl.Version)
		},
	}
}
