package github

import (
	"fmt"
	"strings"
)

// ParseRepo splits "owner/name" into its parts.
func ParseRepo(fullName string) (owner, name string, err error) {
	owner, name, ok := strings.Cut(strings.Trim(fullName, "/"), "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", "", fmt.Errorf("invalid repository %q: want owner/name", fullName)
	}
	return owner, name, nil
}
