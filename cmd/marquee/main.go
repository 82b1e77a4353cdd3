package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const version = "0.1.0"

const defaultConfigPath = "configs/marquee.yaml"

var configPath string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, styleError.Render(err.Error()))
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "marquee",
		Short: "Browse upcoming movies from TMDb",
		Long: "Marquee is a movie browser backed by The Movie Database.\n" +
			"List upcoming releases, search titles, open details and trailers, and pick seats.",
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to configuration file")

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	rootCmd.AddCommand(
		newVersionCmd(),
		newUpcomingCmd(),
		newMovieCmd(),
		newImagesCmd(),
		newSearchCmd(),
		newBrowseCmd(),
		newSeatsCmd(),
		newMCPServeCmd(),
		newBotCmd(),
		newServeCmd(),
		newConfigCmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "Marquee v%s\n", version)
		},
	}
}
