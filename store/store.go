// Package store provides the content.Store backends: SQLite for single-node
// deployments, Postgres for hosted databases and an in-memory store for
// fixtures and tests.
package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/eringen/leadpress/content"
)

var (
	_ content.Store = (*SQLite)(nil)
	_ content.Store = (*Postgres)(nil)
	_ content.Store = (*Memory)(nil)
)

// Open selects a backend from dsn:
//
//	memory:                      in-memory store
//	postgres://... postgresql:// Postgres via pgxpool
//	sqlite:path/to/file.db       SQLite (a bare path is treated the same)
func Open(ctx context.Context, dsn string) (content.Store, error) {
	switch {
	case dsn == "memory" || strings.HasPrefix(dsn, "memory:"):
		return NewMemory(), nil
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		pg, err := NewPostgres(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("store: open postgres: %w", err)
		}
		return pg, nil
	default:
		path := strings.TrimPrefix(dsn, "sqlite:")
		if path == "" {
			return nil, fmt.Errorf("store: empty sqlite path")
		}
		s, err := NewSQLite(path)
		if err != nil {
			return nil, fmt.Errorf("store: open sqlite: %w", err)
		}
		return s, nil
	}
}

// Backend names the implementation Open would pick for dsn.
func Backend(dsn string) string {
	switch {
	case dsn == "memory" || strings.HasPrefix(dsn, "memory:"):
		return "memory"
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return "postgres"
	default:
		return "sqlite"
	}
}

// tagString encodes tags in the ",a,b," form used for substring tag lookups.
func tagString(tags []string) string {
	normalized := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = content.NormalizeTag(t); t != "" {
			normalized = append(normalized, t)
		}
	}
	if len(normalized) == 0 {
		return ","
	}
	return "," + strings.Join(normalized, ",") + ","
}

// parseTags splits a comma-delimited tag string (e.g. ",go,web,") into a slice.
func parseTags(s string) []string {
	s = strings.Trim(s, ",")
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func prepareNewPost(p content.BlogPost) content.BlogPost {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Slug == "" {
		p.Slug = content.Slugify(p.Title)
	}
	// Titles with no ASCII letters or digits slugify to nothing.
	if p.Slug == "" {
		p.Slug = "post-" + content.Truncate(content.Slugify(strings.ReplaceAll(p.ID, "-", "")), 8)
	}
	if p.Status == "" {
		p.Status = content.StatusDraft
	}
	if p.Revision == 0 {
		p.Revision = 1
	}
	return p
}
