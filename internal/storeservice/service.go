// Package storeservice exposes named storages to the command line, the HTTP
// API and the MCP server using plain string arguments.
package storeservice

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/starford/arkvault/internal/apperr"
	"github.com/starford/arkvault/internal/encoding"
	"github.com/starford/arkvault/internal/resource"
	"github.com/starford/arkvault/internal/storage"
)

// ValueDetail is the full representation of a stored value.
type ValueDetail struct {
	Storage string            `json:"storage"`
	Kind    string            `json:"kind"`
	ID      string            `json:"id"`
	Format  string            `json:"format"`
	Content string            `json:"content,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// ListItem is one line of a storage listing.
type ListItem struct {
	ID      string `json:"id"`
	Version uint64 `json:"version,omitempty"`
	Token   string `json:"token,omitempty"`
	Summary string `json:"summary"`
}

// Service resolves storages by alias or path and runs operations on them.
type Service struct {
	resolver storage.Resolver
	opts     []storage.Option
	logger   *slog.Logger
}

// NewService creates a service. opts are applied to every opened storage.
func NewService(resolver storage.Resolver, logger *slog.Logger, opts ...storage.Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		resolver: resolver,
		opts:     append([]storage.Option{storage.WithLogger(logger)}, opts...),
		logger:   logger,
	}
}

// HasAlias reports whether name is a configured storage alias.
func (s *Service) HasAlias(name string) bool {
	_, ok := s.resolver.Aliases[strings.ToLower(name)]
	return ok
}

// Open resolves name to a storage. kind is "file", "folder" or empty to
// infer it from the alias or the path.
func (s *Service) Open(name, kind string) (*storage.Storage, error) {
	var k *storage.Kind
	if kind != "" {
		parsed, err := storage.ParseKind(kind)
		if err != nil {
			return nil, err
		}
		k = &parsed
	}
	return s.resolver.Open(name, k, s.opts...)
}

// Append merges content into the value of id.
func (s *Service) Append(ctx context.Context, name, kind, id, content, format string) error {
	return s.write(ctx, "append", name, kind, id, content, format)
}

// Insert replaces the value of id.
func (s *Service) Insert(ctx context.Context, name, kind, id, content, format string) error {
	return s.write(ctx, "insert", name, kind, id, content, format)
}

func (s *Service) write(ctx context.Context, op, name, kind, id, content, format string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rid, err := ParseID(id)
	if err != nil {
		return err
	}
	f, err := encoding.ParseFormat(format)
	if err != nil {
		return err
	}
	st, err := s.Open(name, kind)
	if err != nil {
		return err
	}
	switch op {
	case "append":
		err = st.Append(rid, []byte(content), f)
	default:
		err = st.Insert(rid, []byte(content), f)
	}
	if err != nil {
		return err
	}
	s.logger.Info("storeservice: "+op,
		slog.String("storage", st.Root()),
		slog.String("id", rid.String()),
		slog.String("format", f.String()))
	return nil
}

// Read returns the value of id.
func (s *Service) Read(ctx context.Context, name, kind, id string) (*ValueDetail, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rid, err := ParseID(id)
	if err != nil {
		return nil, err
	}
	st, err := s.Open(name, kind)
	if err != nil {
		return nil, err
	}
	v, err := st.Read(rid)
	if err != nil {
		return nil, err
	}
	d := &ValueDetail{
		Storage: name,
		Kind:    st.Kind().String(),
		ID:      rid.String(),
		Format:  v.Format.String(),
		Content: v.String(),
	}
	if v.Format == encoding.Structured {
		d.Fields = v.Fields
	}
	return d, nil
}

// List loads the storage and reports its contents.
func (s *Service) List(ctx context.Context, name, kind string, versions bool) (*storage.Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	st, err := s.Open(name, kind)
	if err != nil {
		return nil, err
	}
	if err := st.Load(); err != nil {
		return nil, err
	}
	return st.List(versions)
}

// Items flattens a report for JSON responses.
func Items(r *storage.Report) []ListItem {
	items := make([]ListItem, 0, len(r.Entries))
	for _, e := range r.Entries {
		items = append(items, ListItem{
			ID:      e.ID.String(),
			Version: e.Version,
			Token:   e.Token,
			Summary: e.Value.Summary(0),
		})
	}
	return items
}

// ParseID parses a resource identifier argument.
func ParseID(s string) (resource.ID, error) {
	id, err := resource.Parse(s)
	if err != nil {
		return resource.ID{}, &apperr.ParseError{Token: s, Reason: fmt.Sprintf("invalid resource id: %v", err)}
	}
	return id, nil
}
