package cmd

import (
	"fmt"
	"io"

	"hivekeeper/cmd/root"

	"github.com/spf13/cobra"
)

func PrintVersions(w io.Writer) {
	fmt.Fprintf(w, "Version %s\n", root.SoftwareVer)
	fmt.Fprintf(w, "Build Time: %s\n", root.BuildTime)
	fmt.Fprintf(w, "Build Tag: %s\n", root.BuildTag)
	fmt.Fprintf(w, "Build Commit ID: %s\n", root.BuildCommitId)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Display version information",
	Long:  `The 'version' command shows version details including git commit and build time`,

	Run: func(cmd *cobra.Command, args []string) {
		PrintVersions(cmd.OutOrStdout())
	},
}

func init() {
	root.RootCmd.AddCommand(versionCmd)

	versionCmd.Example = `  hivekeeper version`
}
