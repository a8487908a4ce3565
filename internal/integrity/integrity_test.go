package integrity

import "testing"

func TestBuildMerkleRoot_Empty(t *testing.T) {
	root := BuildMerkleRoot(nil)
	if root != "" {
		t.Fatalf("empty input should produce empty root, got %q", root)
	}
}

func TestBuildMerkleRoot_SingleLeaf(t *testing.T) {
	leaf := "abc123"
	root := BuildMerkleRoot([]string{leaf})
	if root != leaf {
		t.Fatalf("single leaf should be the root: got %q, want %q", root, leaf)
	}
}

func TestBuildMerkleRoot_Deterministic(t *testing.T) {
	leaves := []string{"hash_a", "hash_b", "hash_c", "hash_d"}

	r1 := BuildMerkleRoot(leaves)
	r2 := BuildMerkleRoot(leaves)

	if r1 != r2 {
		t.Fatalf("Merkle root not deterministic: %q != %q", r1, r2)
	}
	if len(r1) != 64 {
		t.Fatalf("expected 64-char hex SHA-256 root, got %d chars", len(r1))
	}
}

func TestBuildMerkleRoot_OrderMatters(t *testing.T) {
	r1 := BuildMerkleRoot([]string{"a", "b", "c"})
	r2 := BuildMerkleRoot([]string{"b", "a", "c"})

	if r1 == r2 {
		t.Fatal("different leaf ordering should produce different roots")
	}
}

func TestBuildMerkleRoot_OddLeafCount(t *testing.T) {
	// With 3 leaves: pair (0,1), pair (2,2) with itself. Then pair (hash01, hash22) -> root.
	root := BuildMerkleRoot([]string{"x", "y", "z"})
	if root == "" {
		t.Fatal("odd leaf count should still produce a root")
	}
	if len(root) != 64 {
		t.Fatalf("expected 64-char hex SHA-256 root, got %d chars", len(root))
	}
}

func TestHashLeaf_Deterministic(t *testing.T) {
	h1 := HashLeaf([]byte(`{"name":"Excel"}`))
	h2 := HashLeaf([]byte(`{"name":"Excel"}`))
	if h1 != h2 {
		t.Fatalf("HashLeaf not deterministic: %q != %q", h1, h2)
	}
	if len(h1) != 64 {
		t.Fatalf("expected 64-char hex SHA-256 digest, got %d chars", len(h1))
	}
}

func TestHashLeaf_DifferentInputsDifferentHashes(t *testing.T) {
	h1 := HashLeaf([]byte(`{"name":"Excel"}`))
	h2 := HashLeaf([]byte(`{"name":"SAP"}`))
	if h1 == h2 {
		t.Fatal("different snapshot bytes should produce different leaf hashes")
	}
}
