package content

import "testing"

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Hello World", "hello-world"},
		{"  AI Agents: What's Next?  ", "ai-agents-what-s-next"},
		{"RAG vs. Fine-Tuning (2025)", "rag-vs-fine-tuning-2025"},
		{"---", ""},
	}
	for _, tt := range tests {
		if got := Slugify(tt.in); got != tt.want {
			t.Errorf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTruncateIsRuneSafe(t *testing.T) {
	if got := Truncate("héllo", 2); got != "hé" {
		t.Errorf("Truncate = %q, want %q", got, "hé")
	}
	if got := Truncate("abc", 10); got != "abc" {
		t.Errorf("Truncate = %q, want %q", got, "abc")
	}
	if got := Truncate("abc", 0); got != "" {
		t.Errorf("Truncate = %q, want empty", got)
	}
}

func TestKeywords(t *testing.T) {
	got := Keywords("How AI Agents Transform Customer Support: agents at scale")
	want := []string{"agents", "transform", "customer", "support", "scale"}
	if len(got) != len(want) {
		t.Fatalf("Keywords = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Keywords[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestHasTag(t *testing.T) {
	if !HasTag([]string{"AI", " Automation "}, "automation") {
		t.Error("expected case-insensitive tag match")
	}
	if HasTag(nil, "ai") {
		t.Error("expected no match on empty tags")
	}
}

func TestPostStatusValid(t *testing.T) {
	for _, s := range []PostStatus{StatusDraft, StatusReview, StatusPublished} {
		if !s.Valid() {
			t.Errorf("%q should be valid", s)
		}
	}
	if PostStatus("archived").Valid() {
		t.Error("unknown status should be invalid")
	}
}
