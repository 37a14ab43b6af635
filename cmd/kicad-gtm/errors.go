package main

import (
	"github.com/spf13/cobra"
)

var (
	errorsLimit int
	errorsClear bool
)

var errorsCmd = &cobra.Command{
	Use:   "errors",
	Short: "Show recent errors recorded by the daemon",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, closeDB, err := openRepository()
		if err != nil {
			return err
		}
		defer closeDB()

		if errorsClear {
			if err := repo.ClearErrors(); err != nil {
				return err
			}
			cmd.Println("Error log cleared")
			return nil
		}

		logs, err := repo.RecentErrors(errorsLimit)
		if err != nil {
			return err
		}
		if len(logs) == 0 {
			cmd.Println("No errors recorded")
			return nil
		}

		for _, l := range logs {
			line := dimStyle.Render(l.Timestamp.Local().Format("2006-01-02 15:04:05")) + " " + l.ErrorMsg
			if l.Fatal {
				line += " " + warnStyle.Render("(fatal)")
			}
			cmd.Println(line)
		}
		return nil
	},
}

func init() {
	errorsCmd.Flags().IntVarP(&errorsLimit, "limit", "n", 20, "number of errors to show")
	errorsCmd.Flags().BoolVar(&errorsClear, "clear", false, "delete all recorded errors")
	rootCmd.AddCommand(errorsCmd)
}
