package sources

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestValidAddress(t *testing.T) {
	tests := []struct {
		name string
		addr string
		want bool
	}{
		{"canonical mint", "GemMint111111111111111111111111111111111pump", true},
		{"too short", "GemMint", false},
		{"empty", "", false},
		{"contains zero", "0emMint111111111111111111111111111111111pump", false},
		{"contains uppercase O", "OemMint111111111111111111111111111111111pump", false},
		{"contains lowercase l", "lemMint111111111111111111111111111111111pump", false},
		{"45 chars", "GemMint1111111111111111111111111111111111pump", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidAddress(tt.addr); got != tt.want {
				t.Errorf("ValidAddress(%q) = %v, want %v", tt.addr, got, tt.want)
			}
		})
	}
}

func TestCleanSymbol(t *testing.T) {
	tests := []struct {
		sym  string
		want bool
	}{
		{"BONK", true},
		{"$WIF", true},
		{"a.b-c_1", true},
		{"", false},
		{"HAS SPACE", false},
		{"<script>", false},
		{"WAYTOOLONGSYMBOL", false},
	}
	for _, tt := range tests {
		if got := CleanSymbol(tt.sym); got != tt.want {
			t.Errorf("CleanSymbol(%q) = %v, want %v", tt.sym, got, tt.want)
		}
	}
}

func TestCurveCache_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "curves.json")

	c := NewCurveCache(path)
	c.Put(CachedCurve{Mint: "mint1", Symbol: "A", ProgressPct: 88, MarketCapUSD: 61_000})
	c.Put(CachedCurve{Mint: "mint2", Symbol: "B", ProgressPct: 92, SolRaised: 70})
	c.Flush()

	reloaded := NewCurveCache(path)
	fresh := reloaded.Fresh()
	if len(fresh) != 2 {
		t.Fatalf("reloaded %d entries, want 2", len(fresh))
	}
}

func TestCurveCache_ExpiryPrunes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "curves.json")

	c := NewCurveCache(path)
	c.Put(CachedCurve{Mint: "fresh", ProgressPct: 90})
	c.mu.Lock()
	c.entries["stale"] = CachedCurve{Mint: "stale", ProgressPct: 95, UpdatedAt: time.Now().Add(-48 * time.Hour)}
	c.mu.Unlock()

	fresh := c.Fresh()
	if len(fresh) != 1 || fresh[0].Mint != "fresh" {
		t.Fatalf("expected only the fresh entry, got %d", len(fresh))
	}
}

func TestCurveCache_MissingFileIsEmpty(t *testing.T) {
	c := NewCurveCache(filepath.Join(t.TempDir(), "missing.json"))
	if len(c.Fresh()) != 0 {
		t.Error("missing file must load as an empty cache")
	}
}

func TestCurveCache_CorruptFileIgnored(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	c := NewCurveCache(path)
	if len(c.Fresh()) != 0 {
		t.Error("corrupt file must load as an empty cache")
	}
}
