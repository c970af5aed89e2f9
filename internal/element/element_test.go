package element

import (
	"context"
	"testing"

	"github.com/haasonsaas/deskmcp/internal/deskerr"
)

// fakeNode is a minimal NativeNode used to exercise the arena and the
// capability dispatch without depending on any real platform engine.
type fakeNode struct {
	attrs     Attributes
	alive     bool
	released  bool
	value     string
	invoked   int
}

func (f *fakeNode) Attributes() (Attributes, error) { return f.attrs, nil }
func (f *fakeNode) Release()                         { f.released = true }
func (f *fakeNode) Alive() bool                      { return f.alive }

func (f *fakeNode) Invoke(ctx context.Context) error {
	f.invoked++
	return nil
}

func (f *fakeNode) Click(ctx context.Context, pct *Point, clickType ClickType) (ClickResult, error) {
	return ClickResult{Method: "synthetic_click"}, nil
}

func (f *fakeNode) Value(ctx context.Context) (string, error) { return f.value, nil }
func (f *fakeNode) SetValue(ctx context.Context, v string) error {
	f.value = v
	return nil
}

func TestArenaBindAndRelease(t *testing.T) {
	a := NewArena()
	node := &fakeNode{alive: true}
	el := a.Bind(node)

	if a.Len() != 1 {
		t.Fatalf("expected 1 live slot, got %d", a.Len())
	}
	attrs, err := el.Attributes()
	if err != nil {
		t.Fatalf("Attributes: %v", err)
	}
	if attrs != node.attrs {
		t.Fatalf("unexpected attrs: %+v", attrs)
	}

	el.Release()
	if !node.released {
		t.Fatal("expected native node to be released")
	}
	if a.Len() != 0 {
		t.Fatalf("expected 0 live slots after release, got %d", a.Len())
	}

	if _, err := el.Attributes(); err == nil {
		t.Fatal("expected error reading attributes from a released handle")
	}
}

func TestArenaRefcounting(t *testing.T) {
	a := NewArena()
	node := &fakeNode{alive: true}
	el := a.Bind(node)
	dup := el.Retain()

	el.Release()
	if node.released {
		t.Fatal("node released while a retained handle is still live")
	}
	if _, err := dup.Attributes(); err != nil {
		t.Fatalf("retained handle should still resolve: %v", err)
	}

	dup.Release()
	if !node.released {
		t.Fatal("expected node released once all handles are released")
	}
}

func TestArenaGenerationPreventsStaleReuse(t *testing.T) {
	a := NewArena()
	first := a.Bind(&fakeNode{alive: true})
	first.Release()

	second := a.Bind(&fakeNode{alive: true})

	if _, err := first.Attributes(); err == nil {
		t.Fatal("expected stale handle from a freed-and-reused slot to fail")
	}
	if _, err := second.Attributes(); err != nil {
		t.Fatalf("fresh handle into the reused slot should resolve: %v", err)
	}
}

func TestCapabilityDispatchInvoke(t *testing.T) {
	a := NewArena()
	node := &fakeNode{alive: true}
	el := a.Bind(node)

	if err := el.Invoke(context.Background()); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if node.invoked != 1 {
		t.Fatalf("expected Invoke to reach the native node once, got %d", node.invoked)
	}

	if err := el.SetValue(context.Background(), "hello"); err != nil {
		t.Fatalf("SetValue: %v", err)
	}
	got, err := el.GetValue(context.Background())
	if err != nil {
		t.Fatalf("GetValue: %v", err)
	}
	if got != "hello" {
		t.Fatalf("expected value %q, got %q", "hello", got)
	}
}

func TestCapabilityDispatchUnsupported(t *testing.T) {
	a := NewArena()
	el := a.Bind(&fakeNode{alive: true})

	err := el.Scroll(context.Background(), ScrollDown, 0.5)
	if err == nil {
		t.Fatal("expected unsupported capability error")
	}
	de, ok := deskerr.As(err)
	if !ok || de.Kind != deskerr.KindUnsupported {
		t.Fatalf("expected KindUnsupported, got %v", err)
	}
}

func TestZeroElement(t *testing.T) {
	var el Element
	if !el.IsZero() {
		t.Fatal("expected zero-value Element to report IsZero")
	}
	if el.Alive() {
		t.Fatal("zero-value Element should not be alive")
	}
	if _, err := el.Attributes(); err == nil {
		t.Fatal("expected error reading attributes from a zero-value Element")
	}
}
