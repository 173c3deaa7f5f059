package resource

import "testing"

func TestKindStatusVariants(t *testing.T) {
	if KindBot.ActiveStatus() != StatusRunning || KindBot.StoppedStatus() != StatusStopped {
		t.Fatalf("bot statuses wrong: %s/%s", KindBot.ActiveStatus(), KindBot.StoppedStatus())
	}
	if KindWebsite.ActiveStatus() != StatusActive || KindWebsite.StoppedStatus() != StatusInactive {
		t.Fatalf("website statuses wrong: %s/%s", KindWebsite.ActiveStatus(), KindWebsite.StoppedStatus())
	}
}

func TestKindValid(t *testing.T) {
	if !KindBot.Valid() || !KindWebsite.Valid() {
		t.Fatalf("expected built-in kinds to be valid")
	}
	if Kind("vm").Valid() {
		t.Fatalf("unknown kind must be invalid")
	}
}

func TestSpecValidate(t *testing.T) {
	cases := []struct {
		name    string
		spec    Spec
		wantErr bool
	}{
		{"ok bot", Spec{ID: "my-bot_1.2", Kind: KindBot}, false},
		{"ok website", Spec{ID: "landing", Kind: KindWebsite, FilePath: "./sites/landing"}, false},
		{"missing id", Spec{Kind: KindBot}, true},
		{"path traversal", Spec{ID: "../etc/passwd", Kind: KindBot}, true},
		{"slash", Spec{ID: "a/b", Kind: KindBot}, true},
		{"space", Spec{ID: "a b", Kind: KindBot}, true},
		{"unknown kind", Spec{ID: "x", Kind: "vm"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.spec.Validate()
			if tc.wantErr && err == nil {
				t.Fatalf("expected error for %+v", tc.spec)
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestSafeID(t *testing.T) {
	for _, id := range []string{"bot1", "my-bot", "a.b_c", "X9"} {
		if !SafeID(id) {
			t.Fatalf("%q should be safe", id)
		}
	}
	for _, id := range []string{"", "a/b", `a\b`, "a b", "..", "a..b", "héllo"} {
		if SafeID(id) {
			t.Fatalf("%q should be rejected", id)
		}
	}
}

func TestSpecOf(t *testing.T) {
	rec := Record{
		ID: "b1", Kind: KindBot, DesiredStatus: StatusRunning,
		FilePath: "/srv/bots/b1.js", Config: `{"token":"x"}`,
	}
	spec := SpecOf(rec)
	if spec.ID != rec.ID || spec.Kind != rec.Kind || spec.FilePath != rec.FilePath || spec.Config != rec.Config {
		t.Fatalf("spec mismatch: %+v", spec)
	}
}
