package textnorm

import "testing"

func TestFold(t *testing.T) {
	cases := map[string]string{
		"Saúde Estética":        "saude_estetica",
		"  À VISTA ":             "a_vista",
		"tem_negocio_escalando": "tem_negocio_escalando",
		"Imediato!":             "imediato",
		"":                      "",
	}
	for in, want := range cases {
		if got := Fold(in); got != want {
			t.Errorf("Fold(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestEqualIgnoresCaseAndAccents(t *testing.T) {
	if !Equal("Indicação", "indicacao") {
		t.Fatal("expected accent-insensitive match")
	}
	if Equal("quente", "morno") {
		t.Fatal("expected different values to differ")
	}
}
