package kryoflux

import "strings"

// findInfo searches infoText for a "name=value" pair and returns value, or
// "" if name is absent. A match at position 0 is valid — the reference
// decoder this is grounded on rejects it by testing position == 0 as its
// "not found" sentinel, which makes a leading key unrecoverable; here
// absence is instead signaled by strings.Index returning a negative
// position, so a leading key decodes correctly (see DESIGN.md).
func findInfo(infoText, name string) string {
	key := name + "="
	pos := strings.Index(infoText, key)
	if pos < 0 {
		return ""
	}

	rest := infoText[pos+len(key):]
	if end := strings.IndexByte(rest, ','); end >= 0 {
		return rest[:end]
	}
	return rest
}
