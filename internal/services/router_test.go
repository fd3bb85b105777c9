package services

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/tbourn/don-confiado-backend/internal/domain"
	"github.com/tbourn/don-confiado-backend/internal/llm"
	"github.com/tbourn/don-confiado-backend/internal/repo"
)

const (
	distributorMsg = "Quiero crear un proveedor: NIT 900123, razón social Acme SAS"
	productMsg     = "Registra el producto A1, Café, precio 12500, 10 unidades, proveedor 7"
)

// ---------- Handle: distributor ----------

func TestRouter_Handle_DistributorCreated(t *testing.T) {
	f := newFixture(t,
		`{"intent":"Create_distribuitor"}`,
		`{"is_complete":true,"missing_fields":[]}`,
		`{"tipo_documento":"NIT","numero_documento":"900123","razon_social":"Acme SAS","email":"null","telefono_fijo":"  "}`,
		"¡Listo! El distribuidor quedó registrado.",
	)

	env, err := f.router.Handle(context.Background(), "u1", distributorMsg)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if env.UserIntention != domain.IntentCreateDistributor || env.Status != domain.StatusCreated {
		t.Fatalf("envelope = %+v", env)
	}
	if env.Reply != "¡Listo! El distribuidor quedó registrado." || len(env.Data) != 1 {
		t.Fatalf("envelope = %+v", env)
	}
	if env.Error != "" || env.Extracted != nil || env.MissingFields != nil {
		t.Fatalf("created envelope carries error fields: %+v", env)
	}

	if len(f.persister.calls) != 1 {
		t.Fatalf("insert calls = %d", len(f.persister.calls))
	}
	call := f.persister.calls[0]
	want := map[string]any{
		"tipo_documento":   "NIT",
		"numero_documento": "900123",
		"razon_social":     "Acme SAS",
		"tipo_tercero":     "proveedor",
	}
	if call.Table != repo.TableTerceros || !reflect.DeepEqual(call.Record, want) {
		t.Fatalf("insert = %s %v", call.Table, call.Record)
	}
	if n := f.turns("u1"); n != 2 {
		t.Fatalf("turns = %d; want human + ai", n)
	}
}

func TestRouter_Handle_DistributorNeedMoreData(t *testing.T) {
	f := newFixture(t,
		`{"intent":"Create_distribuitor"}`,
		`{"is_complete":false,"missing_fields":["razon_social","apellidos"]}`,
		"¿Me indicas la razón social o los apellidos?",
	)

	env, err := f.router.Handle(context.Background(), "u1", "Crear proveedor CC 123 Ana")
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if env.Status != domain.StatusNeedMoreData || !reflect.DeepEqual(env.MissingFields, []string{"razon_social", "apellidos"}) {
		t.Fatalf("envelope = %+v", env)
	}
	if len(f.persister.calls) != 0 {
		t.Fatalf("no insert expected")
	}
	calls := f.model.Calls
	if len(calls) != 3 {
		t.Fatalf("model calls = %d; want classify, check, reply", len(calls))
	}
	if !strings.Contains(calls[1].Prompt, "Mensaje del usuario: Crear proveedor CC 123 Ana") || strings.Contains(calls[1].Prompt, "Historial") {
		t.Fatalf("completeness prompt must carry only the raw message: %q", calls[1].Prompt)
	}
	reply := calls[2].Prompt
	if !strings.Contains(reply, "los datos faltantes: razon_social, apellidos.") ||
		!strings.Contains(reply, "Historial:\nUsuario: Crear proveedor CC 123 Ana") {
		t.Fatalf("reply prompt = %q", reply)
	}
}

// ---------- Handle: product ----------

func TestRouter_Handle_ProductCreated_DataVerbatim(t *testing.T) {
	f := newFixture(t,
		`{"intent":"Create_product"}`,
		`{"is_complete":true,"missing_fields":[]}`,
		`{"sku":"A1","nombre":"Café","precio_venta":12500,"cantidad":10,"proveedor_id":"007"}`,
		"Producto creado.",
	)
	row := map[string]any{"id": float64(42), "sku": "A1", "nombre": "Café", "created_at": "2025-01-01T00:00:00Z"}
	f.persister.rows = []map[string]any{row}

	env, err := f.router.Handle(context.Background(), "u2", productMsg)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if env.Status != domain.StatusCreated || env.UserIntention != domain.IntentCreateProduct {
		t.Fatalf("envelope = %+v", env)
	}
	if !reflect.DeepEqual(env.Data, []map[string]any{row}) {
		t.Fatalf("data = %v; want the inserted row verbatim", env.Data)
	}
	rec := f.persister.calls[0].Record
	if rec["cantidad"] != 10 || rec["proveedor_id"] != 7 {
		t.Fatalf("ints not coerced: %#v", rec)
	}
	if f.persister.calls[0].Table != repo.TableProductos {
		t.Fatalf("table = %s", f.persister.calls[0].Table)
	}
}

func TestRouter_Handle_PersistenceErrorIsGeneric(t *testing.T) {
	extraction := `{"sku":"A1","nombre":"Café","precio_venta":12500,"cantidad":10,"proveedor_id":7,"descripcion":"x"}`
	f := newFixture(t,
		`{"intent":"Create_product"}`,
		`{"is_complete":true,"missing_fields":[]}`,
		extraction,
		"Hubo un problema, intenta de nuevo.",
	)
	f.persister.err = &repo.PersistenceError{Status: 409, Code: "23505", Message: "duplicate key value violates unique constraint \"productos_sku_key\""}

	env, err := f.router.Handle(context.Background(), "u3", productMsg)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if env.Status != domain.StatusError || env.Error == "" {
		t.Fatalf("envelope = %+v", env)
	}
	if strings.Contains(env.Error, "23505") || strings.Contains(env.Error, "productos_sku_key") {
		t.Fatalf("raw backend error leaked: %q", env.Error)
	}
	wantExtracted := domain.Extraction{"sku": "A1", "nombre": "Café", "precio_venta": float64(12500), "cantidad": float64(10), "proveedor_id": float64(7)}
	if !reflect.DeepEqual(env.Extracted, wantExtracted) {
		t.Fatalf("extracted = %#v; want %#v", env.Extracted, wantExtracted)
	}
	if env.Reply != "Hubo un problema, intenta de nuevo." {
		t.Fatalf("reply = %q", env.Reply)
	}
}

func TestRouter_Handle_ExtractedKeepsValuesDroppedBySanitation(t *testing.T) {
	f := newFixture(t,
		`{"intent":"Create_distribuitor"}`,
		`{"is_complete":true,"missing_fields":[]}`,
		`{"tipo_documento":"CC","numero_documento":"1","nombres":"Ana","apellidos":"Paz","email":null}`,
		"Error.",
	)
	f.persister.err = errors.New("connection reset")

	env, err := f.router.Handle(context.Background(), "u3", distributorMsg)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if v, ok := env.Extracted["email"]; !ok || v != nil {
		t.Fatalf("extracted must be the pre-sanitation extraction: %#v", env.Extracted)
	}
	if _, ok := f.persister.calls[0].Record["email"]; ok {
		t.Fatalf("sanitized record must not carry null values")
	}
}

func TestRouter_Handle_MissingCredentials_NoInsert(t *testing.T) {
	f := newFixture(t,
		`{"intent":"Create_product"}`,
		`{"is_complete":true,"missing_fields":[]}`,
		`{"sku":"A1","nombre":"Café","precio_venta":12500,"cantidad":10,"proveedor_id":7}`,
		"Faltan las credenciales de Supabase.",
	)
	f.persister.readyErr = repo.ErrMissingCredentials

	env, err := f.router.Handle(context.Background(), "u4", productMsg)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(f.persister.calls) != 0 {
		t.Fatalf("persistence must not be called without credentials")
	}
	if env.Status != domain.StatusError || env.Error != MissingCredentialsText || env.Extracted["sku"] != "A1" {
		t.Fatalf("envelope = %+v", env)
	}
	last := f.model.Calls[len(f.model.Calls)-1].Prompt
	if !strings.Contains(last, "SUPABASE_URL") {
		t.Fatalf("reply prompt = %q", last)
	}
}

func TestRouter_Handle_MissingCredentials_PartialExtraction(t *testing.T) {
	f := newFixture(t,
		`{"intent":"Create_distribuitor"}`,
		`{"is_complete":true}`,
		`{"tipo_documento":"CC","numero_documento":"123"}`,
		"Faltan las credenciales de Supabase.",
	)
	f.persister.readyErr = repo.ErrMissingCredentials

	env, err := f.router.Handle(context.Background(), "u4b", "soy CC 123")
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if env.Status != domain.StatusError || env.Error != MissingCredentialsText {
		t.Fatalf("envelope = %+v", env)
	}
	if len(env.MissingFields) != 0 {
		t.Fatalf("missing fields must not be reported: %v", env.MissingFields)
	}
	if env.Extracted["numero_documento"] != "123" {
		t.Fatalf("extracted = %v", env.Extracted)
	}
	if len(f.persister.calls) != 0 {
		t.Fatalf("persistence must not be called without credentials")
	}
}

func TestRouter_Handle_ExtractionMissingRequiredField_Downgrades(t *testing.T) {
	f := newFixture(t,
		`{"intent":"Create_product"}`,
		`{"is_complete":true,"missing_fields":[]}`,
		`{"nombre":"Café","precio_venta":12500,"cantidad":10,"proveedor_id":7,"sku":""}`,
		"¿Cuál es el SKU?",
	)

	env, err := f.router.Handle(context.Background(), "u5", productMsg)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if env.Status != domain.StatusNeedMoreData || !reflect.DeepEqual(env.MissingFields, []string{"sku"}) {
		t.Fatalf("envelope = %+v", env)
	}
	if len(f.persister.calls) != 0 {
		t.Fatalf("partial record must not be inserted")
	}
}

func TestRouter_Handle_UncoercibleIntIsPersistenceError(t *testing.T) {
	f := newFixture(t,
		`{"intent":"Create_product"}`,
		`{"is_complete":true,"missing_fields":[]}`,
		`{"sku":"A1","nombre":"Café","precio_venta":12500,"cantidad":10,"proveedor_id":"Distribuidora Sol"}`,
		"No pude registrarlo.",
	)

	env, err := f.router.Handle(context.Background(), "u6", productMsg)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if env.Status != domain.StatusError || len(f.persister.calls) != 0 {
		t.Fatalf("envelope = %+v calls=%d", env, len(f.persister.calls))
	}
}

func TestRouter_Handle_UnknownExtractedKeysDropped(t *testing.T) {
	f := newFixture(t,
		`{"intent":"Create_distribuitor"}`,
		`{"is_complete":true,"missing_fields":[]}`,
		`{"tipo_documento":"NIT","numero_documento":"9","razon_social":"Acme","pais":"CO"}`,
		"Listo.",
	)
	if _, err := f.router.Handle(context.Background(), "u7", distributorMsg); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if _, ok := f.persister.calls[0].Record["pais"]; ok {
		t.Fatalf("unknown key reached the persister")
	}
}

// ---------- Handle: general chat ----------

func TestRouter_Handle_OtherDoesNotReappendHumanTurn(t *testing.T) {
	f := newFixture(t, `{"intent":"Other"}`, "¡Hola! Soy Don Confiado. ¿Cómo te llamas?")

	env, err := f.router.Handle(context.Background(), "u8", "hola")
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if env.UserIntention != domain.IntentOther || env.Status != "" || env.Reply == "" {
		t.Fatalf("envelope = %+v", env)
	}
	if n := f.turns("u8"); n != 2 {
		t.Fatalf("turns = %d; want 2", n)
	}
	p := f.model.Calls[1].Prompt
	if !strings.HasSuffix(p, "Historial:\nUsuario: hola\n\nUsuario: hola\nAsistente:") {
		t.Fatalf("general prompt tail = %q", p[len(p)-60:])
	}
}

func TestRouter_Handle_UnknownLabelRoutesToGeneralChat(t *testing.T) {
	f := newFixture(t, `{"intent":"Create_client"}`, "Claro.")

	env, err := f.router.Handle(context.Background(), "u9", "crea un cliente")
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if env.UserIntention != domain.IntentOther {
		t.Fatalf("envelope = %+v", env)
	}
}

func TestRouter_Handle_ClassifierSeesWholeTranscript(t *testing.T) {
	f := newFixture(t, `{"intent":"Other"}`, "primera", `{"intent":"Other"}`, "segunda")
	ctx := context.Background()

	if _, err := f.router.Handle(ctx, "u10", "hola"); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if _, err := f.router.Handle(ctx, "u10", "quiero crear un producto"); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	p := f.model.Calls[2].Prompt
	if !strings.Contains(p, "Historial:\nUsuario: hola\nAsistente: primera\nUsuario: quiero crear un producto\n\nÚltimo mensaje del usuario: quiero crear un producto") {
		t.Fatalf("classifier prompt = %q", p)
	}
}

// ---------- Chat (no classification) ----------

func TestRouter_Chat_RendersHistoryBeforeAppending(t *testing.T) {
	f := newFixture(t, "¡Hola!", "Con gusto.")
	ctx := context.Background()

	env, err := f.router.Chat(ctx, "u11", "  hola  ")
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if env.UserIntention != "" || env.Reply != "¡Hola!" {
		t.Fatalf("envelope = %+v", env)
	}
	if p := f.model.Calls[0].Prompt; !strings.HasSuffix(p, "Historial:\n\n\nUsuario: hola\nAsistente:") {
		t.Fatalf("first prompt tail = %q", p[len(p)-40:])
	}

	if _, err := f.router.Chat(ctx, "u11", "¿qué haces?"); err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if p := f.model.Calls[1].Prompt; !strings.HasSuffix(p, "Historial:\nUsuario: hola\nAsistente: ¡Hola!\n\nUsuario: ¿qué haces?\nAsistente:") {
		t.Fatalf("second prompt tail = %q", p[len(p)-80:])
	}
	if n := f.turns("u11"); n != 4 {
		t.Fatalf("turns = %d", n)
	}
}

// ---------- failures & validation ----------

func TestRouter_ModelFailures(t *testing.T) {
	t.Run("classifier transport", func(t *testing.T) {
		f := newFixture(t, fmt.Errorf("%w: timeout", llm.ErrModelInvoke))
		_, err := f.router.Handle(context.Background(), "u", "hola")
		if !errors.Is(err, llm.ErrModelInvoke) || !IsModelFailure(err) {
			t.Fatalf("err = %v", err)
		}
	})
	t.Run("completeness schema violation", func(t *testing.T) {
		f := newFixture(t, `{"intent":"Create_product"}`, `{"is_complete":"yes"}`)
		_, err := f.router.Handle(context.Background(), "u", productMsg)
		if !errors.Is(err, llm.ErrSchemaViolation) || !IsModelFailure(err) {
			t.Fatalf("err = %v", err)
		}
	})
	t.Run("extraction not an object", func(t *testing.T) {
		f := newFixture(t, `{"intent":"Create_product"}`, `{"is_complete":true,"missing_fields":[]}`, `["A1"]`)
		_, err := f.router.Handle(context.Background(), "u", productMsg)
		if !errors.Is(err, llm.ErrSchemaViolation) {
			t.Fatalf("err = %v", err)
		}
		if len(f.persister.calls) != 0 {
			t.Fatalf("no insert expected")
		}
	})
	t.Run("general reply", func(t *testing.T) {
		f := newFixture(t, fmt.Errorf("%w: gemini", llm.ErrModelInvoke))
		_, err := f.router.Chat(context.Background(), "u", "hola")
		if !IsModelFailure(err) {
			t.Fatalf("err = %v", err)
		}
	})
}

func TestRouter_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.router.Chat(ctx, " ", "hola"); !errors.Is(err, ErrEmptyUserID) {
		t.Fatalf("err = %v; want ErrEmptyUserID", err)
	}
	if _, err := f.router.Handle(ctx, "u", " \n "); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("err = %v; want ErrEmptyMessage", err)
	}
	if _, err := f.router.Handle(ctx, "u", strings.Repeat("ñ", 201)); !errors.Is(err, ErrMessageTooLong) {
		t.Fatalf("err = %v; want ErrMessageTooLong", err)
	}
	if len(f.model.Calls) != 0 || f.mem.Users() != 0 {
		t.Fatalf("invalid requests must not reach the model or memory")
	}
}

func TestRouter_UsersAreIsolated(t *testing.T) {
	f := newFixture(t, "a", "b")
	ctx := context.Background()
	if _, err := f.router.Chat(ctx, "ana", "secreto de ana"); err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if _, err := f.router.Chat(ctx, "luis", "hola"); err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if strings.Contains(f.model.Calls[1].Prompt, "secreto de ana") {
		t.Fatalf("another user's history leaked into the prompt")
	}
}
