package domain

import (
	"errors"
	"testing"
)

func TestValidValue(t *testing.T) {
	valid := []any{"CC", " x ", 0, 12.5, false, "nullable"}
	invalid := []any{nil, "", "   ", "null", "NULL", " Null "}
	for _, v := range valid {
		if !ValidValue(v) {
			t.Fatalf("ValidValue(%#v) = false; want true", v)
		}
	}
	for _, v := range invalid {
		if ValidValue(v) {
			t.Fatalf("ValidValue(%#v) = true; want false", v)
		}
	}
}

func TestSanitize_DropsPlaceholders_AndKeepsInput(t *testing.T) {
	in := Extraction{
		"tipo_documento":   "CC",
		"numero_documento": "123",
		"razon_social":     "Tienda X",
		"email":            "null",
		"direccion":        "",
		"telefono_fijo":    nil,
	}
	out := Sanitize(in)
	if len(out) != 3 {
		t.Fatalf("expected 3 fields, got %v", out)
	}
	for k, v := range out {
		if !ValidValue(v) {
			t.Fatalf("sanitized record kept %q=%#v", k, v)
		}
	}
	if len(in) != 6 {
		t.Fatalf("input extraction was mutated: %v", in)
	}
}

func TestCoerceInts(t *testing.T) {
	rec := map[string]any{"cantidad": 10.0, "proveedor_id": "007", "nombre": "Arroz"}
	if err := CoerceInts(rec, "cantidad", "proveedor_id", "absent"); err != nil {
		t.Fatalf("coerce: %v", err)
	}
	if rec["cantidad"] != 10 || rec["proveedor_id"] != 7 {
		t.Fatalf("unexpected coercion: %#v", rec)
	}
	if _, ok := rec["absent"]; ok {
		t.Fatalf("absent key must not be created")
	}

	bad := map[string]any{"cantidad": "diez"}
	if err := CoerceInts(bad, "cantidad"); !errors.Is(err, ErrInvalidRecord) {
		t.Fatalf("expected ErrInvalidRecord, got %v", err)
	}
}
