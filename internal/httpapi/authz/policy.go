// audiopolicyd - audio stream usage policy engine
// SPDX-License-Identifier: AGPL-3.0-or-later

package authz

import "strings"

// policyLines parses a Casbin policy CSV's "p" lines (the only kind this
// package's model uses), tolerating comments and blank lines the way the
// teacher's loadEmbeddedPolicy does.
func policyLines(csv string) [][3]string {
	var out [][3]string
	for _, line := range strings.Split(csv, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		if len(parts) != 4 || parts[0] != "p" {
			continue
		}
		out = append(out, [3]string{parts[1], parts[2], parts[3]})
	}
	return out
}
