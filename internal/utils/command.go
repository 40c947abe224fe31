package utils

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

/**
 * Expand the command and argument templates of an entrypoint
 * @param {string} command - Command template
 * @param {[]string} args - Argument templates
 * @param {interface{}} data - Template data
 * @returns {(string, []string, error)} Expanded command and arguments
 */
func GetCommandLine(command string, args []string, data interface{}) (string, []string, error) {
	cmd, err := expand("command", command, data)
	if err != nil {
		return "", nil, err
	}
	processedArgs := make([]string, 0, len(args))
	for _, arg := range args {
		a, err := expand("arg", arg, data)
		if err != nil {
			return "", nil, fmt.Errorf("arg '%s': %w", arg, err)
		}
		processedArgs = append(processedArgs, strings.TrimSpace(a))
	}
	return strings.TrimSpace(cmd), processedArgs, nil
}

func expand(name, text string, data interface{}) (string, error) {
	tmpl, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return "", fmt.Errorf("failed to parse %s template: %w", name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute %s template: %w", name, err)
	}
	return buf.String(), nil
}
