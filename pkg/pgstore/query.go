package pgstore

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/dmitrymomot/permalink"
)

const (
	documentsTable = "permalink_documents"
	slugsTable     = "permalink_slugs"

	// claimIndex is the partial unique index enforcing indexed slug claims.
	claimIndex = "permalink_slugs_claim_key"
)

const selectDocuments = `SELECT d.id, d.type, COALESCE(d.parent_id, ''), COALESCE(d.relation, ''), d.fields::text
FROM ` + documentsTable + ` d`

const upsertDocument = `INSERT INTO ` + documentsTable + ` (id, type, parent_id, relation, fields)
VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5::text::jsonb)
ON CONFLICT (id) DO UPDATE SET
	type = EXCLUDED.type,
	parent_id = EXCLUDED.parent_id,
	relation = EXCLUDED.relation,
	fields = EXCLUDED.fields,
	updated_at = now()`

const deleteClaims = `DELETE FROM ` + slugsTable + ` WHERE document_id = $1 AND field = $2`

const insertClaims = `INSERT INTO ` + slugsTable + ` (document_id, scope_key, field, slug, is_unique)
SELECT $1, $2, $3, s, $5 FROM unnest($4::text[]) AS s
ON CONFLICT (document_id, field, slug) DO NOTHING`

const deleteDocument = `DELETE FROM ` + documentsTable + ` WHERE id = $1`

// query accumulates AND-ed conditions with positional arguments.
type query struct {
	conds []string
	args  []any
}

func (q *query) arg(v any) string {
	q.args = append(q.args, v)
	return "$" + strconv.Itoa(len(q.args))
}

func (q *query) where(format string, args ...any) {
	placeholders := make([]any, len(args))
	for i, a := range args {
		placeholders[i] = q.arg(a)
	}
	q.conds = append(q.conds, fmt.Sprintf(format, placeholders...))
}

func (q *query) clause() string {
	if len(q.conds) == 0 {
		return ""
	}
	return "\nWHERE " + strings.Join(q.conds, "\n  AND ")
}

// scope restricts d to the documents under root.
func (q *query) scope(root permalink.ScopeRoot) error {
	if root.Embedded {
		q.where("d.parent_id = %s", root.ParentID)
		q.where("d.relation = %s", root.Relation)
		return nil
	}
	if len(root.Types) == 0 {
		return fmt.Errorf("%w: scope root without types", permalink.ErrConfiguration)
	}

	q.where("d.parent_id IS NULL")
	q.where("d.type = ANY(%s)", root.Types)
	if root.Scoped {
		ref, err := json.Marshal(root.ReferenceValue)
		if err != nil {
			return fmt.Errorf("encode scope value of %q: %w", root.ReferenceField, err)
		}
		// A missing key and a JSON null both match a nil reference.
		q.where("COALESCE(d.fields -> %s, 'null'::jsonb) = %s::text::jsonb", root.ReferenceField, string(ref))
	}
	return nil
}

// slugElements expands the slug field of d into rows of s.slug.
// A legacy string value counts as a one-element sequence.
func slugElements(q *query, field string) string {
	f := q.arg(field)
	return fmt.Sprintf(`CROSS JOIN LATERAL jsonb_array_elements_text(
	CASE jsonb_typeof(d.fields -> %[1]s)
		WHEN 'array' THEN d.fields -> %[1]s
		WHEN 'string' THEN jsonb_build_array(d.fields -> %[1]s)
		ELSE '[]'::jsonb
	END) AS s(slug)`, f)
}

func findSlugsQuery(root permalink.ScopeRoot, field, pattern, excludeID string) (string, []any, error) {
	q := &query{}
	from := "SELECT s.slug FROM " + documentsTable + " d\n" + slugElements(q, field)
	if err := q.scope(root); err != nil {
		return "", nil, err
	}
	if excludeID != "" {
		q.where("d.id <> %s", excludeID)
	}
	q.where("s.slug ~ %s", pattern)
	return from + q.clause(), q.args, nil
}

func findByIDQuery(root permalink.ScopeRoot, docID string) (string, []any, error) {
	q := &query{}
	if err := q.scope(root); err != nil {
		return "", nil, err
	}
	q.where("d.id = %s", docID)
	return selectDocuments + q.clause(), q.args, nil
}

// findBySlugQuery matches the current slug and historical ones. jsonb containment
// treats a string as contained in an array holding it and in itself.
func findBySlugQuery(root permalink.ScopeRoot, field, slug string) (string, []any, error) {
	q := &query{}
	if err := q.scope(root); err != nil {
		return "", nil, err
	}
	q.where("d.fields -> %s @> to_jsonb(%s::text)", field, slug)
	return selectDocuments + q.clause() + "\nORDER BY d.id\nLIMIT 1", q.args, nil
}

func unsluggedQuery(types []string, field, afterID string, limit int) (string, []any) {
	q := &query{}
	q.where("d.type = ANY(%s)", types)
	q.where("d.id > %s", afterID)
	f := q.arg(field)
	q.conds = append(q.conds, fmt.Sprintf(
		"CASE jsonb_typeof(d.fields -> %[1]s) WHEN 'array' THEN jsonb_array_length(d.fields -> %[1]s) = 0 ELSE true END", f))

	sql := selectDocuments + q.clause() + "\nORDER BY d.id"
	if limit > 0 {
		sql += "\nLIMIT " + q.arg(limit)
	}
	return sql, q.args
}
