package main

import (
	"fmt"
	"io"
	"runtime/debug"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the bibformat version",
	Long: `Version prints the release version set at build time. With --build it
also prints the Go toolchain and the VCS revision the binary was built from.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		build, _ := cmd.Flags().GetBool("build")
		var info *debug.BuildInfo
		if build {
			info, _ = debug.ReadBuildInfo()
		}
		writeVersion(cmd.OutOrStdout(), version, info)
		return nil
	},
}

// writeVersion prints the version line and, when info is set, the build
// details recorded by the Go toolchain.
func writeVersion(w io.Writer, release string, info *debug.BuildInfo) {
	fmt.Fprintf(w, "bibformat %s\n", release)
	if info == nil {
		return
	}

	fmt.Fprintf(w, "  go:        %s\n", info.GoVersion)
	settings := make(map[string]string, len(info.Settings))
	for _, s := range info.Settings {
		settings[s.Key] = s.Value
	}
	if rev := settings["vcs.revision"]; rev != "" {
		if settings["vcs.modified"] == "true" {
			rev += " (modified)"
		}
		fmt.Fprintf(w, "  revision:  %s\n", rev)
	}
	if at := settings["vcs.time"]; at != "" {
		fmt.Fprintf(w, "  committed: %s\n", at)
	}
}

func init() {
	versionCmd.Flags().Bool("build", false, "also print Go and VCS build details")

	rootCmd.AddCommand(versionCmd)
}
