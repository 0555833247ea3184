package extract

import "testing"

func TestExtractReferencesSuppressesSameLineDefinition(t *testing.T) {
	src := []byte("int x; int f(){return x;}\n")
	known := map[string]bool{"x": true, "f": true}
	defLines := map[string][]int{"x": {1}, "f": {1}}

	refs, err := ExtractReferences("a.c", src, known, defLines)
	if err != nil {
		t.Fatalf("ExtractReferences: %v", err)
	}
	for _, r := range refs {
		if r.Ident == "x" && r.Line == 1 {
			// The fixture puts both the declaration and the use of x on
			// line 1; same-line suppression means no reference should be
			// recorded for x at all.
			t.Errorf("expected self-reference on definition line to be suppressed, got %v", r)
		}
	}
}

func TestExtractReferencesDiscardsUnknownIdentifiers(t *testing.T) {
	src := []byte("int x;\nint f(){return x+y;}\n")
	known := map[string]bool{"x": true, "f": true} // "y" is not known
	defLines := map[string][]int{"x": {1}, "f": {2}}

	refs, err := ExtractReferences("a.c", src, known, defLines)
	if err != nil {
		t.Fatalf("ExtractReferences: %v", err)
	}
	for _, r := range refs {
		if r.Ident == "y" {
			t.Errorf("unknown identifier %q should have been discarded", r.Ident)
		}
	}

	found := false
	for _, r := range refs {
		if r.Ident == "x" && r.Line == 2 {
			found = true
		}
	}
	if !found {
		t.Errorf("expected reference to x on line 2, got %v", refs)
	}
}

func TestExtractReferencesEmptyBlob(t *testing.T) {
	refs, err := ExtractReferences("empty.c", nil, map[string]bool{}, nil)
	if err != nil {
		t.Fatalf("ExtractReferences: %v", err)
	}
	if len(refs) != 0 {
		t.Errorf("expected no references for empty blob, got %v", refs)
	}
}
