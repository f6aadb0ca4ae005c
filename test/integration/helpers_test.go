// Package integration exercises the REST API, the gRPC service and the web
// UI together against one shared history, the way `calculator serve` wires
// them.
package integration

import (
	"bytes"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"testing"

	"github.com/lemonberrylabs/calculator/pkg/api"
	grpcapi "github.com/lemonberrylabs/calculator/pkg/api/grpc"
	"github.com/lemonberrylabs/calculator/pkg/compiler"
	"github.com/lemonberrylabs/calculator/pkg/runtime"
	"github.com/lemonberrylabs/calculator/pkg/store"
	"github.com/lemonberrylabs/calculator/web"
)

// env points at a running calculator, either in-process or external.
type env struct {
	baseURL  string
	grpcAddr string
}

// startCalculator returns the calculator under test. CALCULATOR_URL and
// CALCULATOR_GRPC_ENDPOINT select an already running instance; otherwise
// REST, gRPC and the UI are started in-process on free ports.
func startCalculator(t *testing.T) *env {
	t.Helper()

	if u := os.Getenv("CALCULATOR_URL"); u != "" {
		if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			u = "http://" + u
		}
		return &env{
			baseURL:  strings.TrimRight(u, "/"),
			grpcAddr: os.Getenv("CALCULATOR_GRPC_ENDPOINT"),
		}
	}

	opts := api.Options{Level: compiler.OptDefault, MaxExpressionLength: 4096}
	s := store.New(1000)
	engine := runtime.NewEngine()

	server := api.New(s, engine, opts)
	web.New(s, engine, opts).Register(server.App())

	httpLis, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	go server.App().Listener(httpLis)

	grpcLis, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	grpcServer := grpcapi.New(s, engine, opts)
	go grpcServer.ServeListener(grpcLis)

	t.Cleanup(func() {
		grpcServer.GracefulStop()
		_ = server.Shutdown()
	})

	return &env{
		baseURL:  "http://" + httpLis.Addr().String(),
		grpcAddr: grpcLis.Addr().String(),
	}
}

// postJSON sends body to path and decodes the JSON response.
func (e *env) postJSON(t *testing.T, path string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	data, _ := json.Marshal(body)
	resp, err := http.Post(e.baseURL+path, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("HTTP error: %v", err)
	}
	defer resp.Body.Close()
	return resp.StatusCode, decode(t, resp.Body)
}

// getJSON fetches path and decodes the JSON response.
func (e *env) getJSON(t *testing.T, path string) (int, map[string]interface{}) {
	t.Helper()
	resp, err := http.Get(e.baseURL + path)
	if err != nil {
		t.Fatalf("HTTP error: %v", err)
	}
	defer resp.Body.Close()
	return resp.StatusCode, decode(t, resp.Body)
}

// getText fetches path and returns the raw body.
func (e *env) getText(t *testing.T, path string) (int, string) {
	t.Helper()
	resp, err := http.Get(e.baseURL + path)
	if err != nil {
		t.Fatalf("HTTP error: %v", err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(data)
}

// grpcClient dials the gRPC endpoint, skipping the test when none is known.
func (e *env) grpcClient(t *testing.T) *grpcapi.Client {
	t.Helper()
	if e.grpcAddr == "" {
		t.Skip("no gRPC endpoint configured (set CALCULATOR_GRPC_ENDPOINT)")
	}
	client, err := grpcapi.Dial(e.grpcAddr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

// evaluate posts expression to /v1/evaluate.
func (e *env) evaluate(t *testing.T, expression string) (int, map[string]interface{}) {
	t.Helper()
	return e.postJSON(t, "/v1/evaluate", map[string]string{"expression": expression})
}

func decode(t *testing.T, r io.Reader) map[string]interface{} {
	t.Helper()
	data, _ := io.ReadAll(r)
	var out map[string]interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("invalid JSON %q: %v", data, err)
	}
	return out
}

func errorKind(body map[string]interface{}) string {
	e, _ := body["error"].(map[string]interface{})
	kind, _ := e["kind"].(string)
	return kind
}
