package service

import (
	"fmt"
	"io"
	"strings"

	"hivekeeper/cmd/root"
	"hivekeeper/internal/models"

	"github.com/spf13/cobra"
)

const serviceExample = `  # install the bundled sample and run it in the foreground
  hivekeeper install sample_services/simple_http
  hivekeeper run simple_http port=8888

  # run it as a daemon with a JSON event log, then stop it
  hivekeeper run -d -j events.json simple_http port=8888
  hivekeeper stop simple_http`

func init() {
	root.RootCmd.Example = serviceExample
}

func session(cmd *cobra.Command) (*root.Session, error) {
	sess := root.SessionFrom(cmd)
	if sess == nil {
		return nil, fmt.Errorf("%s: no session", cmd.CommandPath())
	}
	return sess, nil
}

// summaryLine formats a service as "<name> (<port>/<PROTOCOL>) [Alerts: a, b]".
func summaryLine(d models.ServiceDetail) string {
	return fmt.Sprintf("%s (%d/%s) [Alerts: %s]", d.Name, d.Port, strings.ToUpper(d.Protocol), strings.Join(d.Alerts, ", "))
}

func pyBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

func printDetail(w io.Writer, d *models.ServiceDetail) {
	fmt.Fprintf(w, "Name: %s\n", d.Name)
	if d.Label != "" && d.Label != d.Name {
		fmt.Fprintf(w, "Label: %s\n", d.Label)
	}
	fmt.Fprintf(w, "Installed: %s\n", pyBool(d.Installed))
	fmt.Fprintf(w, "Port: %d/%s\n", d.Port, strings.ToUpper(d.Protocol))
	fmt.Fprintf(w, "Alerts: %s\n", strings.Join(d.Alerts, ", "))
	if len(d.Parameters) > 0 {
		fmt.Fprintln(w, "Parameters:")
		for _, p := range d.Parameters {
			switch {
			case p.Required:
				fmt.Fprintf(w, "  %s (%s, required)\n", p.Name, p.Type)
			case p.Default != nil:
				fmt.Fprintf(w, "  %s (%s, default: %v)\n", p.Name, p.Type, p.Default)
			default:
				fmt.Fprintf(w, "  %s (%s)\n", p.Name, p.Type)
			}
		}
	}
	if d.Installed {
		fmt.Fprintf(w, "Path: %s\n", d.Path)
		fmt.Fprintf(w, "Status: %s\n", d.Status)
	}
	if d.Process != nil {
		fmt.Fprintf(w, "Pid: %d (host %d, %s)\n", d.Process.Pid, d.Process.HostPid, d.Process.Mode)
		fmt.Fprintf(w, "Started: %s\n", d.Process.StartTime.Format("2006-01-02 15:04:05"))
	}
}
