// Schema-drift detection.
//
// Deployments can briefly run application code that is one migration ahead
// of the database (or vice versa). Writes that reference a column the live
// schema does not have yet fail with a driver-specific message; the repo
// functions in this package sniff that message, drop the offending column
// from the write, and retry once. Keeping the heuristic string-based is a
// deliberate compatibility choice inherited from the deployment model;
// requiring migrations to precede deploys would let it be removed.
package repo

import "strings"

// MissingColumn reports the column name an error complains about, for the
// drivers this service runs on.
//
// Recognized shapes:
//   - sqlite: "no such column: paid_at"
//   - sqlite: "table sales has no column named paid_at"
//   - mysql:  "Error 1054 (42S22): Unknown column 'paid_at' in 'field list'"
func MissingColumn(err error) (string, bool) {
	if err == nil {
		return "", false
	}
	msg := err.Error()
	low := strings.ToLower(msg)

	for _, marker := range []string{"no such column: ", "no column named "} {
		if i := strings.Index(low, marker); i >= 0 {
			return trimColumn(msg[i+len(marker):])
		}
	}
	if i := strings.Index(low, "unknown column '"); i >= 0 {
		rest := msg[i+len("unknown column '"):]
		if j := strings.IndexByte(rest, '\''); j > 0 {
			return rest[:j], true
		}
	}
	return "", false
}

// trimColumn cuts a column token out of the remainder of an error message,
// dropping any table qualifier.
func trimColumn(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if j := strings.IndexAny(s, " )\"'`,;"); j >= 0 {
		s = s[:j]
	}
	if k := strings.LastIndexByte(s, '.'); k >= 0 {
		s = s[k+1:]
	}
	return s, s != ""
}

// withoutColumn returns cols minus the named column.
func withoutColumn(cols []string, drop string) []string {
	out := make([]string, 0, len(cols))
	for _, c := range cols {
		if c != drop {
			out = append(out, c)
		}
	}
	return out
}
