// Package searchengine implements §4.7: composing the FTS index and
// structured filters into a single paged, snippeted query over the Store.
package searchengine

import "github.com/familyvault/familyvault-core/internal/indexmanager"

// OrderKey selects the sort dimension (§4.7).
type OrderKey string

const (
	OrderRelevance OrderKey = "relevance"
	OrderName      OrderKey = "name"
	OrderDate      OrderKey = "date"
	OrderSize      OrderKey = "size"
)

// Query carries every optional filter/ordering/pagination input named in
// §4.7. All fields are optional except Limit.
type Query struct {
	Text          string
	ContentType   string
	Extension     string
	FolderID      *int64
	ModifiedAfter *int64
	ModifiedBefore *int64
	SizeMin       *int64
	SizeMax       *int64
	RequireTags   []string
	ExcludeTags   []string
	Visibility    *indexmanager.Visibility
	IncludeRemote bool

	OrderBy   OrderKey
	Descending bool

	Limit  int
	Offset int
}

// Result is one matching file plus a rendered snippet when a text phrase
// was supplied.
type Result struct {
	File    indexmanager.FileRecord
	Snippet string
}
