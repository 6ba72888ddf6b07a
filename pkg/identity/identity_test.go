package identity

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestDeriveIsDeterministic(t *testing.T) {
	paths := []string{"", "/VStack[0]", `/VStack[0]/Row#"a"`, strings.Repeat("/x[1]", 500)}
	for _, p := range paths {
		if Derive(p) != Derive(p) {
			t.Errorf("Derive(%q) not deterministic", p)
		}
	}
}

func TestDeriveEmptyPathIsValid(t *testing.T) {
	id := Derive("")
	if id.IsRoot() {
		t.Fatal("Derive(\"\") must not be the zero Root ID")
	}
	if len(id.String()) != 36 {
		t.Errorf("String() = %q, want canonical UUID form", id.String())
	}
}

func TestDeriveDistinctPathsCorpus(t *testing.T) {
	seen := make(map[NodeID]string)
	add := func(p string) {
		id := Derive(p)
		if prev, ok := seen[id]; ok && prev != p {
			t.Fatalf("collision between %q and %q", prev, p)
		}
		seen[id] = p
	}

	root := RootPath()
	for i := 0; i < 100; i++ {
		a := root.Child("VStack", i)
		add(a.String())
		for j := 0; j < 50; j++ {
			add(a.Child("Text", j).String())
			add(a.Keyed("Row", fmt.Sprintf("k%d", j)).String())
		}
	}
	if len(seen) != 100+100*50*2 {
		t.Errorf("expected %d distinct IDs, got %d", 100+100*50*2, len(seen))
	}
}

func TestDeriveLongPathsDifferingAtEnd(t *testing.T) {
	prefix := strings.Repeat("/Group[0]", 10000)
	a := Derive(prefix + "/Text[0]")
	b := Derive(prefix + "/Text[1]")
	if a == b {
		t.Fatal("deep paths differing only in the last segment must not collide")
	}
}

func TestPathCanonicalForm(t *testing.T) {
	tests := []struct {
		name string
		path Path
		want string
	}{
		{"root", RootPath(), ""},
		{"positional", RootPath().Child("VStack", 0).Child("Text", 2), "/VStack[0]/Text[2]"},
		{"keyed", RootPath().Child("List", 0).Keyed("Row", "a/b"), `/List[0]/Row#"a/b"`},
		{"quoted name", RootPath().Child("view.Func[int]", 1), `/"view.Func[int]"[1]`},
		{"empty name", RootPath().Child("", 0), `/""[0]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.path.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
			if tt.path.ID() != Derive(tt.want) {
				t.Error("ID() must equal Derive(String())")
			}
		})
	}
}

func TestPathSegmentsDoNotAlias(t *testing.T) {
	// A name that looks like an indexed segment must not collide with the real one.
	a := RootPath().Child("Text[0]/Text", 0)
	b := RootPath().Child("Text", 0).Child("Text", 0)
	if a.String() == b.String() {
		t.Fatalf("paths alias: %q", a.String())
	}
	// Key vs. positional segment.
	c := RootPath().Keyed("Row", "0")
	d := RootPath().Child("Row", 0)
	if c.ID() == d.ID() {
		t.Fatal("keyed and positional segments must differ")
	}
}

func TestPathDepthAndImmutability(t *testing.T) {
	parent := RootPath().Child("A", 0)
	left := parent.Child("B", 0)
	right := parent.Child("C", 1)
	if parent.String() != "/A[0]" {
		t.Errorf("parent mutated: %q", parent.String())
	}
	if left.Depth() != 2 || right.Depth() != 2 {
		t.Errorf("depths = %d, %d; want 2, 2", left.Depth(), right.Depth())
	}
}

func TestHandlerIDs(t *testing.T) {
	p := RootPath().Child("Button", 0)
	if p.Handler("click") != p.Handler("click") {
		t.Error("handler ids must be deterministic")
	}
	if p.Handler("click") == p.Handler("hover") {
		t.Error("different events must yield different handler ids")
	}
	if NodeID(p.Handler("click")) == p.ID() {
		t.Error("handler ids live in a separate namespace from node ids")
	}
}

func TestNodeIDTextRoundTrip(t *testing.T) {
	id := RootPath().Child("Text", 3).ID()
	text, err := id.MarshalText()
	if err != nil {
		t.Fatal(err)
	}
	var back NodeID
	if err := back.UnmarshalText(text); err != nil {
		t.Fatal(err)
	}
	if back != id {
		t.Errorf("round trip = %s, want %s", back, id)
	}
	parsed, err := ParseNodeID(id.String())
	if err != nil || parsed != id {
		t.Errorf("ParseNodeID = %s, %v", parsed, err)
	}
	if _, err := ParseNodeID("not-a-uuid"); err == nil {
		t.Error("expected parse error")
	}
}

func TestAuditor(t *testing.T) {
	a := NewAuditor()
	id := Derive("/A[0]")
	if err := a.Observe(id, "/A[0]"); err != nil {
		t.Fatal(err)
	}
	if err := a.Observe(id, "/A[0]"); err != nil {
		t.Fatalf("re-observing the same path must not fail: %v", err)
	}

	// Simulate a hash collision by reusing the ID with another path.
	err := a.Observe(id, "/B[0]")
	var coll *CollisionError
	if !errors.As(err, &coll) {
		t.Fatalf("expected CollisionError, got %v", err)
	}
	if coll.Existing != "/A[0]" || coll.Incoming != "/B[0]" {
		t.Errorf("collision = %+v", coll)
	}
	if !errors.Is(err, ErrCollision) {
		t.Error("CollisionError must unwrap to ErrCollision")
	}
	if a.Len() != 1 {
		t.Errorf("Len() = %d, want 1", a.Len())
	}
	a.Reset()
	if a.Len() != 0 {
		t.Errorf("Len() after Reset = %d", a.Len())
	}
}

func TestAuditorObserveAllIsAtomic(t *testing.T) {
	a := NewAuditor()
	known := Derive("/A[0]")
	if err := a.Observe(known, "/A[0]"); err != nil {
		t.Fatal(err)
	}

	pass := map[NodeID]string{
		Derive("/A[0]/text[0]"): "/A[0]/text[0]",
		Derive("/A[0]/text[1]"): "/A[0]/text[1]",
		known:                   "/B[0]",
	}
	var coll *CollisionError
	if err := a.ObserveAll(pass); !errors.As(err, &coll) {
		t.Fatalf("ObserveAll = %v, want CollisionError", err)
	}
	if a.Len() != 1 {
		t.Errorf("Len() = %d after rejected pass, want 1", a.Len())
	}

	delete(pass, known)
	if err := a.ObserveAll(pass); err != nil {
		t.Fatal(err)
	}
	if a.Len() != 3 {
		t.Errorf("Len() = %d, want 3", a.Len())
	}
}
