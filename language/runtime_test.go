package language

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/sansecio/hexpat/evaluator"
	"github.com/sansecio/hexpat/parser"
	"github.com/sansecio/hexpat/pattern"
	"github.com/sansecio/hexpat/provider"
)

func TestExecutePublishesTree(t *testing.T) {
	r := New()
	if r.Tree() != nil {
		t.Fatal("new runtime has a tree")
	}
	tree, err := r.Execute(context.Background(), provider.NewMemory([]byte{1, 2, 3, 4}), `
struct Pair { u8 a; u8 b; };
Pair p[2] @ 0;
std::print("done");
`, nil)
	if err != nil {
		t.Fatal(err)
	}
	if r.Tree() != tree {
		t.Error("returned tree is not the published one")
	}
	if len(tree.Roots()) != 1 || tree.Roots()[0].Common().Size != 4 {
		t.Errorf("unexpected roots: %v", tree.Roots())
	}
	if diff := cmp.Diff([]string{"done"}, r.Console()); diff != "" {
		t.Errorf("console (-want +got):\n%s", diff)
	}
	if r.Running() {
		t.Error("runtime still running")
	}
}

func TestFailedExecuteKeepsTree(t *testing.T) {
	r := New(WithSourceName("pat"))
	src := provider.NewMemory([]byte{1, 2})
	first, err := r.Execute(context.Background(), src, "u16 x @ 0;", nil)
	if err != nil {
		t.Fatal(err)
	}

	_, err = r.Execute(context.Background(), src, "u8 x @ ;", nil)
	var perr *parser.Error
	if !errors.As(err, &perr) {
		t.Fatalf("expected parse error, got %v", err)
	}
	if perr.Loc.Source != "pat" {
		t.Errorf("error location source = %q", perr.Loc.Source)
	}

	_, err = r.Execute(context.Background(), src, `std::print("before"); u8 x @ 1 / 0;`, nil)
	if !evaluator.IsKind(err, evaluator.DivByZero) {
		t.Fatalf("expected DivByZero, got %v", err)
	}
	if r.Tree() != first {
		t.Error("failed execution replaced the tree")
	}
	if diff := cmp.Diff([]string{"before"}, r.Console()); diff != "" {
		t.Errorf("console (-want +got):\n%s", diff)
	}
}

func TestInAndOutVariables(t *testing.T) {
	r := New()
	_, err := r.Execute(context.Background(), provider.NewMemory(nil), `
u32 factor in;
u32 result out;
result = factor * 3;
`, map[string]any{"factor": 14})
	if err != nil {
		t.Fatal(err)
	}
	out := r.OutVariables()
	if got := fmt.Sprint(out["result"]); got != "42" {
		t.Errorf("result = %v, want 42", got)
	}
}

const spin = `
fn spin() {
    u32 i = 0;
    while (true) {
        i = i + 1;
    }
};
spin();
`

func TestAbort(t *testing.T) {
	r := New(WithConfig(evaluator.Config{
		PatternLimit:   1 << 20,
		ArrayLimit:     1 << 62,
		RecursionDepth: 32,
	}))
	errc := make(chan error, 1)
	go func() {
		_, err := r.Execute(context.Background(), provider.NewMemory(nil), spin, nil)
		errc <- err
	}()

	deadline := time.Now().Add(5 * time.Second)
	for !r.Running() {
		if time.Now().After(deadline) {
			t.Fatal("execution did not start")
		}
		time.Sleep(time.Millisecond)
	}
	r.Abort()

	select {
	case err := <-errc:
		if !evaluator.IsKind(err, evaluator.Interrupted) {
			t.Fatalf("expected Interrupted, got %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("abort did not stop the execution")
	}
	if r.Running() {
		t.Error("runtime still running after abort")
	}
}

func TestTryExecuteWhileBusy(t *testing.T) {
	r := New(WithConfig(evaluator.Config{
		PatternLimit:   1 << 20,
		ArrayLimit:     1 << 62,
		RecursionDepth: 32,
	}))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Execute(ctx, provider.NewMemory(nil), spin, nil)
	}()
	for !r.Running() {
		time.Sleep(time.Millisecond)
	}
	if _, err := r.TryExecute(context.Background(), provider.NewMemory(nil), "", nil); !errors.Is(err, ErrBusy) {
		t.Errorf("expected ErrBusy, got %v", err)
	}
	cancel()
	<-done
	if _, err := r.TryExecute(context.Background(), provider.NewMemory(nil), "", nil); err != nil {
		t.Errorf("idle runtime: %v", err)
	}
}

// TestConcurrentReaders reads published trees while executions replace them.
// Run with -race.
func TestConcurrentReaders(t *testing.T) {
	data := make([]byte, 256)
	for i := range data {
		data[i] = byte(i)
	}
	src := provider.NewMemory(data)
	r := New()
	if _, err := r.Execute(context.Background(), src, "u8 bytes[16] @ 0;", nil); err != nil {
		t.Fatal(err)
	}

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				tree := r.Tree()
				tree.Walk(func(p pattern.Pattern, _ int) bool {
					_ = tree.Format(p)
					return true
				})
				_, _ = tree.HighlightAt(3)
			}
		}()
	}
	for i := range 20 {
		code := "u8 bytes[16] @ 0;"
		if i%2 == 1 {
			code = "struct S { u32 a; u32 b; }; S s[4] @ 0x10;"
		}
		if _, err := r.Execute(context.Background(), src, code, nil); err != nil {
			t.Error(err)
		}
	}
	close(stop)
	wg.Wait()
}
