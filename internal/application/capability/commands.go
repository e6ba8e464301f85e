package capability

import "strings"

var commandPrefixes = []string{"az ", "$", "Get-", "Set-", "New-"}

// ExtractCommands pulls executable statements out of a script body.
// Blank lines and comments are dropped; remaining lines are kept when they
// start with a recognized Azure CLI or PowerShell prefix.
func ExtractCommands(script string) []string {
	commands := []string{}
	for _, line := range strings.Split(script, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		for _, prefix := range commandPrefixes {
			if strings.HasPrefix(line, prefix) {
				commands = append(commands, line)
				break
			}
		}
	}
	return commands
}
