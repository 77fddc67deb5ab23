package main

import (
	"fmt"

	mcobra "github.com/muesli/mango-cobra"
	"github.com/muesli/roff"
	"github.com/spf13/cobra"
)

var manCmd = &cobra.Command{
	Use:                   "man",
	Short:                 "Generates manpages",
	SilenceUsage:          true,
	DisableFlagsInUseLine: true,
	Hidden:                true,
	Args:                  cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		page, err := manPage()
		if err != nil {
			return err
		}
		fmt.Println(page)
		return nil
	},
}

func manPage() (string, error) {
	manPage, err := mcobra.NewManPage(1, rootCmd)
	if err != nil {
		return "", err
	}

	manPage = manPage.WithSection("Files", "Configuration is read from voiceverse.yml in the user config directory.\nReading positions are kept in positions.json in the user data directory.")
	return manPage.Build(roff.NewDocument()), nil
}
