package graph

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type testState struct {
	visited []string
	flag    bool
}

func record(name string) NodeFunc[*testState] {
	return func(ctx context.Context, st *testState) (*testState, error) {
		st.visited = append(st.visited, name)
		return st, nil
	}
}

func TestLinearRun(t *testing.T) {
	g := New[*testState]()
	g.AddNode("a", record("a")).
		AddNode("b", record("b")).
		AddNode("finish", record("finish")).
		AddEdge("a", "b").
		AddEdge("b", "finish").
		SetEntryPoint("a").
		SetFinishPoint("finish")

	r, err := g.Compile()
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	st, err := r.Invoke(context.Background(), &testState{})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	got := strings.Join(st.visited, ",")
	if got != "a,b,finish" {
		t.Errorf("visited = %q, want a,b,finish", got)
	}
}

func TestConditionalRouting(t *testing.T) {
	tests := []struct {
		name string
		flag bool
		want string
	}{
		{"flag routes left", true, "start,left,finish"},
		{"no flag routes right", false, "start,right,finish"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New[*testState]()
			g.AddNode("start", record("start")).
				AddNode("left", record("left")).
				AddNode("right", record("right")).
				AddNode("finish", record("finish")).
				AddConditionalEdges("start", func(st *testState) RouteKey {
					if st.flag {
						return "left"
					}
					return "right"
				}, map[RouteKey]string{"left": "left", "right": "right"}).
				AddEdge("left", "finish").
				AddEdge("right", "finish").
				SetEntryPoint("start").
				SetFinishPoint("finish")

			r, err := g.Compile()
			if err != nil {
				t.Fatalf("compile: %v", err)
			}
			st, err := r.Invoke(context.Background(), &testState{flag: tt.flag})
			if err != nil {
				t.Fatalf("invoke: %v", err)
			}
			if got := strings.Join(st.visited, ","); got != tt.want {
				t.Errorf("visited = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCompileRejectsUnmappedTarget(t *testing.T) {
	g := New[*testState]()
	g.AddNode("start", record("start")).
		AddNode("finish", record("finish")).
		AddConditionalEdges("start", func(st *testState) RouteKey { return "go" },
			map[RouteKey]string{"go": "nowhere"}).
		SetEntryPoint("start").
		SetFinishPoint("finish")

	if _, err := g.Compile(); err == nil {
		t.Fatal("expected compile error for mapping to unregistered node")
	}
}

func TestCompileRejectsUnreachableNode(t *testing.T) {
	g := New[*testState]()
	g.AddNode("start", record("start")).
		AddNode("island", record("island")).
		AddNode("finish", record("finish")).
		AddEdge("start", "finish").
		AddEdge("island", "finish").
		SetEntryPoint("start").
		SetFinishPoint("finish")

	_, err := g.Compile()
	if err == nil || !strings.Contains(err.Error(), "unreachable") {
		t.Fatalf("expected unreachable-node error, got %v", err)
	}
}

func TestCompileRejectsDuplicateNode(t *testing.T) {
	g := New[*testState]()
	g.AddNode("a", record("a")).
		AddNode("a", record("a")).
		AddNode("finish", record("finish")).
		AddEdge("a", "finish").
		SetEntryPoint("a").
		SetFinishPoint("finish")

	if _, err := g.Compile(); err == nil {
		t.Fatal("expected compile error for duplicate node name")
	}
}

func TestCompileRequiresEntryAndFinish(t *testing.T) {
	g := New[*testState]()
	g.AddNode("a", record("a"))

	if _, err := g.Compile(); !errors.Is(err, ErrNoEntryPoint) {
		t.Fatalf("expected ErrNoEntryPoint, got %v", err)
	}

	g.SetEntryPoint("a")
	if _, err := g.Compile(); !errors.Is(err, ErrNoFinishPoint) {
		t.Fatalf("expected ErrNoFinishPoint, got %v", err)
	}
}

func TestRecursionLimit(t *testing.T) {
	g := New[*testState]()
	g.AddNode("ping", record("ping")).
		AddNode("pong", record("pong")).
		AddNode("finish", record("finish")).
		AddEdge("ping", "pong").
		AddConditionalEdges("pong", func(st *testState) RouteKey { return "again" },
			map[RouteKey]string{"again": "ping", "done": "finish"}).
		SetEntryPoint("ping").
		SetFinishPoint("finish")

	r, err := g.Compile()
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	_, err = r.Invoke(context.Background(), &testState{}, WithMaxSteps(10))
	if !errors.Is(err, ErrRecursionLimit) {
		t.Fatalf("expected ErrRecursionLimit, got %v", err)
	}
}

func TestInvokeRespectsContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	g := New[*testState]()
	g.AddNode("a", record("a")).
		AddNode("finish", record("finish")).
		AddEdge("a", "finish").
		SetEntryPoint("a").
		SetFinishPoint("finish")

	r, err := g.Compile()
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if _, err := r.Invoke(ctx, &testState{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
