package kit

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func TestChain_Order(t *testing.T) {
	var order []string

	mw := func(name string) Middleware {
		return func(next Endpoint) Endpoint {
			return func(ctx context.Context, req any) (any, error) {
				order = append(order, name+"_before")
				resp, err := next(ctx, req)
				order = append(order, name+"_after")
				return resp, err
			}
		}
	}

	base := func(_ context.Context, _ any) (any, error) {
		order = append(order, "endpoint")
		return "ok", nil
	}

	resp, err := Chain(mw("a"), mw("b"))(base)(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if resp != "ok" {
		t.Fatalf("response: got %v", resp)
	}

	expected := []string{"a_before", "b_before", "endpoint", "b_after", "a_after"}
	if len(order) != len(expected) {
		t.Fatalf("order length: got %d, want %d", len(order), len(expected))
	}
	for i, v := range expected {
		if order[i] != v {
			t.Fatalf("order[%d]: got %q, want %q", i, order[i], v)
		}
	}
}

func TestChain_ErrorPropagation(t *testing.T) {
	errFail := errors.New("fail")
	base := func(_ context.Context, _ any) (any, error) { return nil, errFail }

	_, err := Chain()(base)(context.Background(), nil)
	if !errors.Is(err, errFail) {
		t.Fatalf("error: got %v, want %v", err, errFail)
	}
}

func TestContext_Values(t *testing.T) {
	ctx := context.Background()
	if GetUserID(ctx) != "" || GetProjectID(ctx) != "" || GetRequestID(ctx) != "" {
		t.Fatal("empty context should yield empty values")
	}
	if v := GetTransport(ctx); v != "http" {
		t.Fatalf("default transport: got %q", v)
	}

	ctx = WithUserID(ctx, "usr_1")
	ctx = WithProjectID(ctx, "prj_1")
	ctx = WithRequestID(ctx, "req_1")
	ctx = WithTransport(ctx, "mcp")
	if GetUserID(ctx) != "usr_1" || GetProjectID(ctx) != "prj_1" || GetRequestID(ctx) != "req_1" || GetTransport(ctx) != "mcp" {
		t.Fatal("context values not round-tripped")
	}
}

type echoReq struct {
	Name string `json:"name"`
}

func TestRegisterMCPTool(t *testing.T) {
	srv := mcp.NewServer(&mcp.Implementation{Name: "test", Version: "v0"}, nil)

	var transport string
	RegisterMCPTool(srv, &mcp.Tool{
		Name:        "echo",
		Description: "echo",
		InputSchema: map[string]any{"type": "object"},
	}, func(ctx context.Context, req any) (any, error) {
		transport = GetTransport(ctx)
		r := req.(*echoReq)
		if r.Name == "" {
			return nil, errors.New("name required")
		}
		return map[string]string{"hello": r.Name}, nil
	}, DecodeArgs[echoReq]())

	ctx := context.Background()
	st, ct := mcp.NewInMemoryTransports()
	go func() { _ = srv.Run(ctx, st) }()
	client := mcp.NewClient(&mcp.Implementation{Name: "c", Version: "v0"}, nil)
	session, err := client.Connect(ctx, ct, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer session.Close()

	res, err := session.CallTool(ctx, &mcp.CallToolParams{Name: "echo", Arguments: map[string]any{"name": "ada"}})
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError {
		t.Fatalf("unexpected tool error: %+v", res.Content)
	}
	var out map[string]string
	if err := json.Unmarshal([]byte(res.Content[0].(*mcp.TextContent).Text), &out); err != nil {
		t.Fatal(err)
	}
	if out["hello"] != "ada" {
		t.Fatalf("got %v", out)
	}
	if transport != "mcp" {
		t.Fatalf("transport: got %q", transport)
	}

	res, err = session.CallTool(ctx, &mcp.CallToolParams{Name: "echo", Arguments: map[string]any{}})
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsError {
		t.Fatal("expected tool error for empty name")
	}
}
