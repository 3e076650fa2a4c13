// Package search maintains an in-memory bleve index over the live instance
// tree, kept current by the ChangeProcessor as patches are applied, and
// answers the façade's optional /api/v1/search queries (spec §4.L).
package search

import (
	"fmt"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/Roblox/rojo/internal/rojoerr"
	"github.com/Roblox/rojo/internal/snapshot"
	"github.com/Roblox/rojo/internal/tree"
)

// instanceDoc is the bleve document shape for a single tree instance: name
// and source are analyzed for full text search, while className is indexed
// only verbatim, as a keyword field, so callers can filter by exact class.
type instanceDoc struct {
	Name      string `json:"name"`
	ClassName string `json:"className"`
	Source    string `json:"source"`
}

// Match is a single search hit.
type Match struct {
	ID        string  `json:"id"`
	ClassName string  `json:"className"`
	Name      string  `json:"name"`
	Score     float64 `json:"score"`
}

// Index wraps a memory-only bleve index keyed by instance ID. It is safe
// for concurrent use, though in this daemon only the ChangeProcessor ever
// writes to it.
type Index struct {
	mu    sync.RWMutex
	bleve bleve.Index
}

// New builds an empty index with a mapping tuned for instance names and
// classes: short analyzed text fields plus an unanalyzed class keyword.
func New() (*Index, error) {
	idx, err := bleve.NewMemOnly(buildMapping())
	if err != nil {
		return nil, rojoerr.InternalWrap("building search index", err)
	}
	return &Index{bleve: idx}, nil
}

func buildMapping() mapping.IndexMapping {
	doc := bleve.NewDocumentMapping()

	text := bleve.NewTextFieldMapping()
	doc.AddFieldMappingsAt("name", text)
	doc.AddFieldMappingsAt("source", text)

	class := bleve.NewTextFieldMapping()
	class.Analyzer = keyword.Name
	doc.AddFieldMappingsAt("className", class)

	m := bleve.NewIndexMapping()
	m.AddDocumentMapping("instance", doc)
	m.DefaultMapping = doc
	return m
}

// Upsert indexes or reindexes a single instance.
func (idx *Index) Upsert(id tree.ID, inst *tree.Instance) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	doc := instanceDoc{
		Name:      inst.Name,
		ClassName: inst.ClassName,
		Source:    sourceText(inst.Properties),
	}
	if err := idx.bleve.Index(id.String(), doc); err != nil {
		return rojoerr.InternalWrap(fmt.Sprintf("indexing instance %s", id), err)
	}
	return nil
}

// Delete removes an instance from the index. Deleting an ID that was never
// indexed is a no-op, matching bleve's own semantics.
func (idx *Index) Delete(id tree.ID) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if err := idx.bleve.Delete(id.String()); err != nil {
		return rojoerr.InternalWrap(fmt.Sprintf("deleting instance %s from search index", id), err)
	}
	return nil
}

// sourceText pulls the string-valued properties most worth searching
// (Source for scripts, Value for string-valued instances) into one field.
func sourceText(props map[string]snapshot.Value) string {
	for _, key := range []string{"Source", "Value"} {
		if v, ok := props[key]; ok && v.Kind == snapshot.KindString {
			return v.Str
		}
	}
	return ""
}

// Search runs a free-text query against name, className and source,
// returning at most limit matches ordered by score.
func (idx *Index) Search(query string, limit int) ([]Match, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	q := bleve.NewMatchQuery(query)
	req := bleve.NewSearchRequest(q)
	req.Size = limit
	req.Fields = []string{"name", "className"}

	result, err := idx.bleve.Search(req)
	if err != nil {
		return nil, rojoerr.InternalWrap("running search query", err)
	}

	matches := make([]Match, 0, len(result.Hits))
	for _, hit := range result.Hits {
		id, err := parseID(hit.ID)
		if err != nil {
			continue
		}
		name, _ := hit.Fields["name"].(string)
		className, _ := hit.Fields["className"].(string)
		matches = append(matches, Match{
			ID:        id,
			ClassName: className,
			Name:      name,
			Score:     hit.Score,
		})
	}
	return matches, nil
}

func parseID(s string) (string, error) {
	if s == "" {
		return "", fmt.Errorf("empty document id")
	}
	return s, nil
}

// Close releases the underlying bleve index's resources.
func (idx *Index) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.bleve.Close()
}
