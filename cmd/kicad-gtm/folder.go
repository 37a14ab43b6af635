package main

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var folderClear bool

var folderCmd = &cobra.Command{
	Use:   "folder [path]",
	Short: "Show or set the projects folder to track",
	Long: `Without arguments, print the projects folder. With a path, track every
KiCad project below it. A running daemon picks the change up within a few
seconds.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, closeDB, err := openRepository()
		if err != nil {
			return err
		}
		defer closeDB()

		if folderClear {
			if err := repo.SetProjectsFolder(""); err != nil {
				return err
			}
			cmd.Println("Projects folder cleared")
			return nil
		}

		if len(args) == 0 {
			folder, err := repo.ProjectsFolder()
			if err != nil {
				return err
			}
			if folder == "" {
				cmd.Println("need settings! run: kicad-gtm folder <path>")
				return nil
			}
			cmd.Println(folder)
			return nil
		}

		folder, err := filepath.Abs(args[0])
		if err != nil {
			return errors.Wrap(err, "failed to resolve path")
		}
		info, err := os.Stat(folder)
		if err != nil {
			return errors.Wrapf(err, "cannot use %s", folder)
		}
		if !info.IsDir() {
			return errors.Errorf("%s is not a directory", folder)
		}

		if err := repo.SetProjectsFolder(folder); err != nil {
			return err
		}
		cmd.Printf("Tracking all projects in %s\n", folder)
		return nil
	},
}

func init() {
	folderCmd.Flags().BoolVar(&folderClear, "clear", false, "stop tracking any folder")
	rootCmd.AddCommand(folderCmd)
}
