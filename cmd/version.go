// =============================================================================
// govfin - Version Command
// =============================================================================
//
// COMMAND USAGE:
//   govfin version
//
// OUTPUT:
//   govfin 0.1.0
//   Commit:     3f2c1a9
//   Go Version: go1.25.0
//   Years:      2012-2017 (local 2014-2017)
//
// =============================================================================

package cmd

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/ginjaninja78/govfin/internal/profile"
	"github.com/spf13/cobra"
)

// Version is set at build time:
//
//	go build -ldflags "-X 'github.com/ginjaninja78/govfin/cmd.Version=0.2.0'"
var Version = "0.1.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Display the application version",

	// no config needed
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },

	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "govfin %s\n", Version)
		if rev := vcsRevision(); rev != "" {
			fmt.Fprintf(out, "Commit:     %s\n", rev)
		}
		fmt.Fprintf(out, "Go Version: %s\n", runtime.Version())

		reg := profile.Default()
		fmt.Fprintf(out, "Years:      %s (local %s)\n", yearRange(reg.Years()), yearRange(reg.LocalYears()))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func vcsRevision() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && len(s.Value) >= 7 {
			return s.Value[:7]
		}
	}
	return ""
}

func yearRange(years []int) string {
	switch len(years) {
	case 0:
		return "none"
	case 1:
		return fmt.Sprint(years[0])
	}
	return fmt.Sprintf("%d-%d", years[0], years[len(years)-1])
}
