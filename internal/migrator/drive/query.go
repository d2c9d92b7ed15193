package drive

import (
	"slices"
	"strings"
)

// Query describes a listing filter. Empty fields are ignored. MimeTypeIn and
// NameContainsAny form a single disjunction; every other field is a
// conjunction. Trashed items are always excluded.
type Query struct {
	Name            string
	Parent          string
	MimeType        string
	ExcludeMimeType string
	MimeTypeIn      []string
	NameContainsAny []string
	NameExcludes    string
}

var literalEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

func quote(s string) string {
	return "'" + literalEscaper.Replace(s) + "'"
}

// Expr renders the query in the Drive search syntax.
func (q Query) Expr() string {
	var parts []string
	if q.Name != "" {
		parts = append(parts, "name = "+quote(q.Name))
	}
	if q.Parent != "" {
		parts = append(parts, quote(q.Parent)+" in parents")
	}
	if q.MimeType != "" {
		parts = append(parts, "mimeType = "+quote(q.MimeType))
	}
	if q.ExcludeMimeType != "" {
		parts = append(parts, "mimeType != "+quote(q.ExcludeMimeType))
	}

	var alts []string
	for _, m := range q.MimeTypeIn {
		alts = append(alts, "mimeType = "+quote(m))
	}
	for _, s := range q.NameContainsAny {
		alts = append(alts, "name contains "+quote(s))
	}
	if len(alts) > 0 {
		parts = append(parts, "("+strings.Join(alts, " or ")+")")
	}

	if q.NameExcludes != "" {
		parts = append(parts, "not name contains "+quote(q.NameExcludes))
	}
	parts = append(parts, "trashed = false")
	return strings.Join(parts, " and ")
}

// Matches evaluates the query against a single item. Name containment is
// case-insensitive, as it is on the remote side.
func (q Query) Matches(f File) bool {
	if q.Name != "" && f.Name != q.Name {
		return false
	}
	if q.Parent != "" && !hasParent(f, q.Parent) {
		return false
	}
	if q.MimeType != "" && f.MimeType != q.MimeType {
		return false
	}
	if q.ExcludeMimeType != "" && f.MimeType == q.ExcludeMimeType {
		return false
	}
	if len(q.MimeTypeIn) > 0 || len(q.NameContainsAny) > 0 {
		ok := slices.Contains(q.MimeTypeIn, f.MimeType)
		for _, s := range q.NameContainsAny {
			if ok {
				break
			}
			ok = containsFold(f.Name, s)
		}
		if !ok {
			return false
		}
	}
	if q.NameExcludes != "" && containsFold(f.Name, q.NameExcludes) {
		return false
	}
	return true
}

func hasParent(f File, id string) bool {
	return slices.Contains(f.Parents, id)
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
