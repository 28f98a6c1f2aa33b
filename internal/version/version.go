package version

import (
	"fmt"
	"log"
	"strings"

	"github.com/arcmirror/arcproxy/theme"
)

var (
	Name        = "arcproxy"
	Authors     = "ArcMirror contributors"
	Description = "Caching reverse proxy for package mirror networks"
	Version     = "v0.0.1"
	Commit      = "none"
	Date        = "nowish"
	User        = "local"
)

const (
	GithubHomeText  = "github.com/arcmirror/arcproxy"
	GithubHomeUri   = "https://github.com/arcmirror/arcproxy"
	GithubLatestUri = "https://github.com/arcmirror/arcproxy/releases/latest"
)

// PrintVersionInfo writes a splash banner to vlog; extendedInfo adds build
// provenance (commit, build date, builder) below the banner.
func PrintVersionInfo(extendedInfo bool, vlog *log.Logger) {
	githubUri := theme.Hyperlink(GithubHomeUri, GithubHomeText)
	latestUri := theme.Hyperlink(GithubLatestUri, Version)
	padLatest := fmt.Sprintf("%*s", 1-len(Version), "")
	padBuffer := fmt.Sprintf("%*s", 2, "")

	var b strings.Builder

	b.WriteString(theme.ColourSplash(`
╔──────────────────────────────────────────────────────╗
│     ▄▄▄   ▄▄▄   ▄▄▄                                   │
│    ██▄██ ██▀██ ██▀▀▀   arc mirror proxy                │
│    ██ ██ ██ ██ ██                                     │
╚──────────────────────────────────────────────────────╝` + "\n"))

	b.WriteString(theme.ColourSplash("  "))
	b.WriteString(theme.StyleUrl(githubUri))
	b.WriteString(padLatest)
	b.WriteString(theme.ColourVersion(latestUri))
	b.WriteString(padBuffer)
	b.WriteString("\n")

	if extendedInfo {
		b.WriteString(fmt.Sprintf(" Commit: %s\n", Commit))
		b.WriteString(fmt.Sprintf("  Built: %s\n", Date))
		b.WriteString(fmt.Sprintf("  Using: %s\n", User))
	}

	vlog.Println(b.String())
}
