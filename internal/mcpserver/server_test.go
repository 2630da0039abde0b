package mcpserver

import (
	"context"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/arkvault/internal/resource"
	"github.com/starford/arkvault/internal/storage"
	"github.com/starford/arkvault/internal/storeservice"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	svc := storeservice.NewService(storage.Resolver{Root: t.TempDir(), Aliases: storage.DefaultAliases()}, nil)
	return New(svc, "test")
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no in-process "call tool" helper, so handlers are called directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "storage_read":
		result, err = srv.storageRead(ctx, req)
	case "storage_list":
		result, err = srv.storageList(ctx, req)
	case "storage_append":
		result, err = srv.storageAppend(ctx, req)
	case "storage_insert":
		result, err = srv.storageInsert(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestAppendAndRead(t *testing.T) {
	srv := testServer(t)
	id := resource.Compute([]byte("song")).String()

	r := callTool(t, srv, "storage_append", map[string]any{
		"storage": "properties",
		"id":      id,
		"content": "genre=jazz",
		"format":  "json",
	})
	if text := resultText(r); text != "appended: "+id {
		t.Errorf("append result = %q", text)
	}

	r = callTool(t, srv, "storage_read", map[string]any{"storage": "properties", "id": id})
	if r.IsError {
		t.Fatalf("read failed: %s", resultText(r))
	}
	if text := resultText(r); !strings.Contains(text, `"genre": "jazz"`) {
		t.Errorf("read result = %q", text)
	}
}

func TestInsertAndList(t *testing.T) {
	srv := testServer(t)
	id := resource.Compute([]byte("img")).String()

	r := callTool(t, srv, "storage_list", map[string]any{"storage": "scores"})
	if text := resultText(r); text != "storage is empty" {
		t.Errorf("empty list = %q", text)
	}

	_ = callTool(t, srv, "storage_insert", map[string]any{"storage": "scores", "id": id, "content": "5"})
	_ = callTool(t, srv, "storage_insert", map[string]any{"storage": "scores", "id": id, "content": "7"})

	r = callTool(t, srv, "storage_list", map[string]any{"storage": "scores"})
	if text := resultText(r); text != id+": 7" {
		t.Errorf("list = %q", text)
	}

	r = callTool(t, srv, "storage_list", map[string]any{"storage": "scores", "versions": true})
	lines := strings.Split(resultText(r), "\n")
	if len(lines) != 2 || !strings.Contains(lines[0], "[v1 ") || !strings.HasSuffix(lines[1], ": 7") {
		t.Errorf("versioned list = %q", lines)
	}
}

func TestToolErrors(t *testing.T) {
	srv := testServer(t)

	r := callTool(t, srv, "storage_read", map[string]any{"storage": "tags", "id": "bogus"})
	if !r.IsError {
		t.Error("expected error for bad id")
	}
	r = callTool(t, srv, "storage_append", map[string]any{"storage": "tags"})
	if !r.IsError {
		t.Error("expected error for missing arguments")
	}
	r = callTool(t, srv, "storage_read", map[string]any{
		"storage": "stats",
		"id":      resource.Compute([]byte("none")).String(),
	})
	if !r.IsError {
		t.Error("expected error for missing value")
	}
}

func TestFormatsResource(t *testing.T) {
	srv := testServer(t)
	contents, err := srv.readFormatsResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil {
		t.Fatal(err)
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok || tc.URI != FormatsURI || !strings.Contains(tc.Text, "key=value") {
		t.Errorf("resource = %+v", contents)
	}
}
