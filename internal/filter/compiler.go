package filter

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rebeliceyang/lazygrid/internal/models"
)

// Compiled is a table's persisted filter in both evaluation forms
type Compiled struct {
	TableID string
	Filter  models.FilterGroup
	Active  bool
	Match   Predicate
	Query   Query

	// filtering text and column set the entry was compiled from
	key string
}

// Compiler compiles and caches the persisted filter of each table
type Compiler struct {
	builder *Builder
	matcher *Matcher
	cache   *expirable.LRU[string, *Compiled]
}

// NewCompiler creates a compiler with a bounded, expiring cache
func NewCompiler(dialect Dialect, logger *slog.Logger, cacheSize int, ttl time.Duration) *Compiler {
	return &Compiler{
		builder: NewBuilder(dialect),
		matcher: NewMatcher(logger),
		cache:   expirable.NewLRU[string, *Compiled](cacheSize, nil, ttl),
	}
}

// Compile returns the compiled form of table.Filtering against columns. A
// cached entry is reused only while both the filtering text and the column set
// are unchanged.
func (c *Compiler) Compile(table models.Table, columns []models.Column) (*Compiled, error) {
	key := cacheKey(table.Filtering, columns)
	if hit, ok := c.cache.Get(table.ID); ok && hit.key == key {
		return hit, nil
	}

	group, err := models.ParseFilter(table.Filtering)
	if err != nil {
		return nil, err
	}

	compiled, err := c.CompileGroup(table.ID, columns, group)
	if err != nil {
		return nil, err
	}
	compiled.key = key

	c.cache.Add(table.ID, compiled)
	return compiled, nil
}

// CompileGroup compiles a filter tree without consulting the cache
func (c *Compiler) CompileGroup(tableID string, columns []models.Column, group models.FilterGroup) (*Compiled, error) {
	schema := models.NewSchema(columns)

	compiled := &Compiled{
		TableID: tableID,
		Filter:  group,
		Active:  !group.IsEmpty(),
		Match:   MatchAll,
	}
	if !compiled.Active {
		if err := group.Validate(schema); err != nil {
			return nil, err
		}
		return compiled, nil
	}

	match, err := c.matcher.Compile(schema, group)
	if err != nil {
		return nil, err
	}
	query, err := c.builder.BuildRowSelect(tableID, schema, group)
	if err != nil {
		return nil, err
	}
	compiled.Match = match
	compiled.Query = query
	return compiled, nil
}

// Invalidate drops the cached entry of a table
func (c *Compiler) Invalidate(tableID string) {
	c.cache.Remove(tableID)
}

// Cached reports whether a table currently has a cache entry
func (c *Compiler) Cached(tableID string) bool {
	return c.cache.Contains(tableID)
}

func cacheKey(filtering string, columns []models.Column) string {
	var sb strings.Builder
	sb.WriteString(filtering)
	for _, col := range columns {
		fmt.Fprintf(&sb, "\x00%s\x01%s\x01%s", col.ID, col.Name, col.Type)
	}
	return sb.String()
}
