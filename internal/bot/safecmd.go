package bot

import (
	"sort"
	"strings"

	"github.com/gregkorneev/alt-station/internal/domain"
)

// safeCommands is the /run allow-list. Each entry is a fixed argument
// vector executed directly - no shell, no interpolation. Immutable at
// runtime.
var safeCommands = map[string]domain.SafeCommand{
	"uptime": {Argv: []string{"uptime"}},
	"df":     {Argv: []string{"df", "-h"}},
	"free":   {Argv: []string{"free", "-h"}},
	"top1":   {Argv: []string{"ps", "-eo", "pid,comm,%cpu,%mem", "--sort=-%cpu"}, MaxLines: 12},
	"temp":   {Argv: []string{"sensors"}},
	"ip":     {Argv: []string{"ip", "-br", "a"}},
	"disk":   {Argv: []string{"lsblk", "-o", "NAME,SIZE,TYPE,MOUNTPOINT"}},
}

// safeAliases returns the allow-list aliases in stable order.
func safeAliases() []string {
	aliases := make([]string, 0, len(safeCommands))
	for alias := range safeCommands {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)
	return aliases
}

// headLines keeps at most n lines of s. Zero n means unlimited.
func headLines(s string, n int) string {
	if n <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	if len(lines) <= n {
		return s
	}
	return strings.Join(lines[:n], "\n") + "\n"
}
