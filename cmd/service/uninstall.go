package service

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"hivekeeper/cmd/root"
	"hivekeeper/services"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var assumeYes bool

var uninstallCmd = &cobra.Command{
	Use:   "uninstall [-y] <name>",
	Short: "Remove an installed service",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := session(cmd)
		if err != nil {
			return err
		}
		name := services.NormalizeName(args[0])
		if _, err := sess.Manager.Store().Get(name); err != nil {
			return err
		}
		if !assumeYes {
			ok, err := confirm(cmd.InOrStdin(), cmd.OutOrStdout(), fmt.Sprintf("Uninstall %s?", name))
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "Aborted")
				return nil
			}
		}
		if err := sess.Manager.Uninstall(name); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Uninstalled %s\n", name)
		return nil
	},
}

/**
 * Ask for a yes/no confirmation
 * @param {io.Reader} in - Answer source
 * @param {io.Writer} out - Prompt destination
 * @param {string} question - Prompt text
 * @returns {(bool, error)} Whether the answer was yes
 * @description
 * - On a terminal the survey prompt is used
 * - Otherwise one line is read, "y" or "yes" confirms
 */
func confirm(in io.Reader, out io.Writer, question string) (bool, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		answer := false
		if err := survey.AskOne(&survey.Confirm{Message: question}, &answer); err != nil {
			return false, err
		}
		return answer, nil
	}
	fmt.Fprintf(out, "%s [y/N]: ", question)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

func init() {
	uninstallCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Don't ask for confirmation")
	root.RootCmd.AddCommand(uninstallCmd)
}
