package consent

import "strings"

var slashes = strings.NewReplacer(`\`, `\\`, `'`, `\'`, `"`, `\"`, "\x00", `\0`)

// ConsoleStatements mirrors diagnostics as browser console calls. Nothing is mirrored
// unless debug is on and the document is HTML.
func ConsoleStatements(diags []Diagnostic, debug bool, documentType string) []string {
	if !debug || documentType != DocumentHTML {
		return nil
	}
	out := make([]string, 0, len(diags))
	for _, d := range diags {
		out = append(out, "console."+d.Severity.ConsoleMethod()+"('"+slashes.Replace(d.String())+"');")
	}
	return out
}
