package domain

import "testing"

func TestParseIntent(t *testing.T) {
	cases := map[string]Intent{
		"Create_distribuitor":  IntentCreateDistributor,
		" Create_product ":     IntentCreateProduct,
		"Other":                IntentOther,
		"":                     IntentOther,
		"create_product":       IntentOther,
		"Something_unexpected": IntentOther,
	}
	for in, want := range cases {
		if got := ParseIntent(in); got != want {
			t.Fatalf("ParseIntent(%q) = %q; want %q", in, got, want)
		}
	}
	if len(Intents()) != 3 {
		t.Fatalf("expected 3 labels, got %v", Intents())
	}
}

func TestRoleLabel(t *testing.T) {
	if l, ok := RoleHuman.Label(); !ok || l != "Usuario" {
		t.Fatalf("human label = %q, %v", l, ok)
	}
	if l, ok := RoleAI.Label(); !ok || l != "Asistente" {
		t.Fatalf("ai label = %q, %v", l, ok)
	}
	if _, ok := Role("system").Label(); ok {
		t.Fatalf("unknown roles must not be labeled")
	}
}
