package webapi

import (
	"io"
	"strings"

	"github.com/tushrpal/instagram-follower-analyzer/store"
)

// writeCSV renders the categorized export in its fixed textual format:
// a `Username,Category,Profile URL` header, then one line per contact with
// every field double-quoted. The format is consumed verbatim by downstream
// tooling, so it is written by hand instead of encoding/csv (which only
// quotes when forced to).
func writeCSV(w io.Writer, rows []store.ExportRow) {
	io.WriteString(w, "Username,Category,Profile URL\n")
	for _, row := range rows {
		io.WriteString(w, quote(row.Handle)+","+quote(row.Label)+","+quote(row.ProfileURL)+"\n")
	}
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
