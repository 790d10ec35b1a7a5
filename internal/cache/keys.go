package cache

import "fmt"

const (
	KeyCatalog = "catalog"
	KeyStyle   = "style"
)

// KeyLine addresses a parsed line document by the fingerprint of its source
// bytes, so replicas reading the same file share one entry.
func KeyLine(fingerprint string) string {
	return fmt.Sprintf("line:%s", fingerprint)
}
