package searchengine

import (
	"fmt"
	"strings"
)

// escapeFTS quotes a user phrase as a single FTS5 string token, doubling
// any embedded double quotes so the phrase can never break out of its
// quoting and be reinterpreted as FTS syntax (§4.7 "special FTS
// metacharacters are escaped").
func escapeFTS(text string) string {
	escaped := strings.ReplaceAll(strings.TrimSpace(text), `"`, `""`)
	return `"` + escaped + `"`
}

// filterSet accumulates SQL fragments and their bound parameters; nothing
// is ever string-interpolated from caller input (§4.1, §4.7).
type filterSet struct {
	joins   []string
	wheres  []string
	args    []any
	usesFTS bool
}

func buildFilters(q Query) filterSet {
	fs := filterSet{}

	if strings.TrimSpace(q.Text) != "" {
		fs.usesFTS = true
		fs.joins = append(fs.joins, `JOIN files_fts fts ON fts.rowid = f.id`)
		fs.wheres = append(fs.wheres, `files_fts MATCH ?`)
		fs.args = append(fs.args, escapeFTS(q.Text))
	}
	if q.ContentType != "" {
		fs.wheres = append(fs.wheres, `f.content_type = ?`)
		fs.args = append(fs.args, q.ContentType)
	}
	if q.Extension != "" {
		fs.wheres = append(fs.wheres, `f.extension = ?`)
		fs.args = append(fs.args, q.Extension)
	}
	if q.FolderID != nil {
		fs.wheres = append(fs.wheres, `f.folder_id = ?`)
		fs.args = append(fs.args, *q.FolderID)
	}
	if q.ModifiedAfter != nil {
		fs.wheres = append(fs.wheres, `f.modified_at >= ?`)
		fs.args = append(fs.args, *q.ModifiedAfter)
	}
	if q.ModifiedBefore != nil {
		fs.wheres = append(fs.wheres, `f.modified_at <= ?`)
		fs.args = append(fs.args, *q.ModifiedBefore)
	}
	if q.SizeMin != nil {
		fs.wheres = append(fs.wheres, `f.size >= ?`)
		fs.args = append(fs.args, *q.SizeMin)
	}
	if q.SizeMax != nil {
		fs.wheres = append(fs.wheres, `f.size <= ?`)
		fs.args = append(fs.args, *q.SizeMax)
	}
	if q.Visibility != nil {
		fs.wheres = append(fs.wheres, `COALESCE(f.visibility, fo.default_visibility) = ?`)
		fs.args = append(fs.args, string(*q.Visibility))
	}
	if !q.IncludeRemote {
		fs.wheres = append(fs.wheres, `f.is_remote = 0`)
	}
	for _, tag := range q.RequireTags {
		fs.wheres = append(fs.wheres, `EXISTS (SELECT 1 FROM file_tags ft JOIN tags t ON t.id = ft.tag_id WHERE ft.file_id = f.id AND t.name = ?)`)
		fs.args = append(fs.args, tag)
	}
	for _, tag := range q.ExcludeTags {
		fs.wheres = append(fs.wheres, `NOT EXISTS (SELECT 1 FROM file_tags ft JOIN tags t ON t.id = ft.tag_id WHERE ft.file_id = f.id AND t.name = ?)`)
		fs.args = append(fs.args, tag)
	}

	return fs
}

func (fs filterSet) whereClause() string {
	if len(fs.wheres) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(fs.wheres, " AND ")
}

func (fs filterSet) joinClause() string {
	return strings.Join(fs.joins, " ")
}

// orderClause resolves relevance ordering to the FTS rank when a text
// phrase was given, otherwise collapsing to the requested (or default)
// key (§4.7).
func orderClause(q Query, usesFTS bool) string {
	dir := "ASC"
	if q.Descending {
		dir = "DESC"
	}
	key := q.OrderBy
	if key == "" {
		key = OrderName
	}
	if key == OrderRelevance {
		if usesFTS {
			return fmt.Sprintf("ORDER BY fts.rank %s", dir)
		}
		key = OrderName
	}
	switch key {
	case OrderDate:
		return fmt.Sprintf("ORDER BY f.modified_at %s", dir)
	case OrderSize:
		return fmt.Sprintf("ORDER BY f.size %s", dir)
	default:
		return fmt.Sprintf("ORDER BY f.name %s", dir)
	}
}
