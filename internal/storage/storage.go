// Package storage archives generated meal plans outside the database.
package storage

import (
	"context"
	"io"
	"path"
	"strings"
)

// PlanContentType is the content type of archived plan objects.
const PlanContentType = "application/json"

// Uploader stores one archived plan and returns where it ended up. The plan
// service treats archive failures as non-fatal.
type Uploader interface {
	Upload(ctx context.Context, objectName string, contentType string, r io.Reader) (storedPath string, err error)
}

// PlanObjectName is the object name for menu log id under a chat's prefix,
// e.g. plans/42/<id>.json. Slashes in ids are flattened so a chat id can never
// escape its prefix.
func PlanObjectName(chatID, id string) string {
	clean := strings.NewReplacer("/", "_", "\\", "_").Replace
	return path.Join("plans", clean(chatID), clean(id)+".json")
}
