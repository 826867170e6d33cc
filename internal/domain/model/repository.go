package model

import (
	"fmt"
	"strings"
	"time"
)

// Repository represents a repository listed from the remote host. It is
// immutable once fetched and identified by ID.
type Repository struct {
	ID          int64
	Name        string
	FullName    string // "owner/name"
	Owner       string
	Description string
	Language    string // Primary language reported by the host; may be empty.
	Visibility  string // "public", "private" or "internal".
	UpdatedAt   time.Time
}

// SplitFullName splits an "owner/name" string into its two components.
func SplitFullName(fullName string) (owner, name string, err error) {
	parts := strings.SplitN(fullName, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repository name %q: expected owner/name", fullName)
	}
	return parts[0], parts[1], nil
}
