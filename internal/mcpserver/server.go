// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes ark storage tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/arkvault/internal/storeservice"
)

// FormatsURI is the resource describing the storage encodings.
const FormatsURI = "ark://formats"

// Server wraps the MCP server with ark tools.
type Server struct {
	mcp *server.MCPServer
	svc *storeservice.Service
}

// New creates a new MCP server with all storage tools registered.
func New(svc *storeservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Ark",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	storageArg := mcp.WithString("storage", mcp.Required(),
		mcp.Description("Storage alias (tags, scores, stats, properties, metadata, previews, thumbnails) or path"))
	typeArg := mcp.WithString("type", mcp.Description("Storage type override: file or folder"), mcp.Enum("file", "folder"))
	idArg := mcp.WithString("id", mcp.Required(), mcp.Description("Resource id, <size>-<32 hex>"))
	contentArg := mcp.WithString("content", mcp.Required(),
		mcp.Description("Raw text, or comma-separated key=value pairs for the json format"))
	formatArg := mcp.WithString("format", mcp.Description("Encoding: raw (default) or json"), mcp.Enum("raw", "json"))

	s.mcp.AddTool(mcp.NewTool("storage_read",
		mcp.WithDescription("Read the value stored for a resource."),
		storageArg, typeArg, idArg,
	), s.storageRead)

	s.mcp.AddTool(mcp.NewTool("storage_list",
		mcp.WithDescription("List every value in a storage, one line per resource."),
		storageArg, typeArg,
		mcp.WithBoolean("versions", mcp.Description("One line per retained generation")),
	), s.storageList)

	s.mcp.AddTool(mcp.NewTool("storage_append",
		mcp.WithDescription("Append to the value stored for a resource. "+
			"Read the "+FormatsURI+" resource first for the encoding rules."),
		storageArg, typeArg, idArg, contentArg, formatArg,
	), s.storageAppend)

	s.mcp.AddTool(mcp.NewTool("storage_insert",
		mcp.WithDescription("Replace the value stored for a resource."),
		storageArg, typeArg, idArg, contentArg, formatArg,
	), s.storageInsert)

	s.mcp.AddResource(
		mcp.NewResource(FormatsURI, "Storage Formats",
			mcp.WithResourceDescription("Resource ids, storage kinds and value encodings."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readFormatsResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) storageRead(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("storage")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	d, err := s.svc.Read(ctx, name, req.GetString("type", ""), id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(d, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) storageList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("storage")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	report, err := s.svc.List(ctx, name, req.GetString("type", ""), req.GetBool("versions", false))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(report.Entries) == 0 {
		return mcp.NewToolResultText("storage is empty"), nil
	}
	return mcp.NewToolResultText(report.String()), nil
}

func (s *Server) storageAppend(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.write(ctx, req, "appended", s.svc.Append)
}

func (s *Server) storageInsert(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.write(ctx, req, "inserted", s.svc.Insert)
}

func (s *Server) write(ctx context.Context, req mcp.CallToolRequest, verb string,
	write func(ctx context.Context, name, kind, id, content, format string) error,
) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("storage")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := write(ctx, name, req.GetString("type", ""), id, content, req.GetString("format", "")); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(verb + ": " + id), nil
}

func (s *Server) readFormatsResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      FormatsURI,
			MIMEType: "text/markdown",
			Text:     FormatsContract,
		},
	}, nil
}
