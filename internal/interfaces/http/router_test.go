package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/Stoq-api/internal/application/auth"
	"github.com/jhoicas/Stoq-api/internal/application/membership"
	"github.com/jhoicas/Stoq-api/internal/application/usecase"
	"github.com/jhoicas/Stoq-api/internal/application/verification"
	"github.com/jhoicas/Stoq-api/internal/domain/entity"
	"github.com/jhoicas/Stoq-api/internal/infrastructure/memory"
	"github.com/jhoicas/Stoq-api/internal/infrastructure/metrics"
	apphttp "github.com/jhoicas/Stoq-api/internal/interfaces/http"
)

const fixedCode = "123456"

// ──────────────────────────────────────────────────────────────────────────────
// Helpers de test
// ──────────────────────────────────────────────────────────────────────────────

type downStore struct{}

func (downStore) Save(context.Context, *entity.VerificationCode) error {
	return errors.New("connection refused")
}

func (downStore) Consume(context.Context, string, entity.Scenario, string, time.Time) error {
	return errors.New("connection refused")
}

func (downStore) Delete(context.Context, string, entity.Scenario) error {
	return errors.New("connection refused")
}

// buildAPI arma la API completa sobre el driver en memoria con un código fijo.
func buildAPI(t *testing.T, primary, fallback verification.CodeStore) *fiber.App {
	t.Helper()
	store := memory.NewStore()
	tokens := newTokens(t)
	broker := verification.NewBroker(primary, fallback, nil, nil,
		verification.WithCodeGenerator(func() (string, error) { return fixedCode, nil }))
	t.Cleanup(broker.Wait)

	app := fiber.New()
	apphttp.Router(app, apphttp.RouterDeps{
		AuthUC:     auth.NewAuthUseCase(store.Users(), broker, tokens, nil),
		UnitUC:     usecase.NewUnitUseCase(store, nil),
		Authorizer: membership.NewAuthorizer(store.Memberships(), store, store.Users(), nil),
		Tokens:     tokens,
		Metrics:    metrics.New(),
	})
	return app
}

func newAPI(t *testing.T) *fiber.App {
	return buildAPI(t, memory.NewCodeStore(), memory.NewCodeStore())
}

func doJSON(t *testing.T, app *fiber.App, method, path, token string, body interface{}) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func errorCode(t *testing.T, resp *http.Response) string {
	t.Helper()
	var body map[string]string
	decode(t, resp, &body)
	return body["code"]
}

// signup registra la cuenta y devuelve un token de sesión.
func signup(t *testing.T, app *fiber.App, email string) string {
	t.Helper()
	resp := doJSON(t, app, http.MethodPost, "/api/auth/verification-code", "", fiber.Map{"email": email, "scenario": "register"})
	require.Equal(t, fiber.StatusAccepted, resp.StatusCode)

	resp = doJSON(t, app, http.MethodPost, "/api/auth/register", "", fiber.Map{
		"email": email, "password": "secreto123", "code": fixedCode,
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp = doJSON(t, app, http.MethodPost, "/api/auth/login", "", fiber.Map{"email": email, "password": "secreto123"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var login struct {
		Token string `json:"token"`
	}
	decode(t, resp, &login)
	require.NotEmpty(t, login.Token)
	return login.Token
}

type member struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func listMembers(t *testing.T, app *fiber.App, unitID, token string) []member {
	t.Helper()
	resp := doJSON(t, app, http.MethodGet, "/api/units/"+unitID+"/members", token, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var list []member
	decode(t, resp, &list)
	return list
}

func memberID(t *testing.T, list []member, email string) string {
	t.Helper()
	for _, m := range list {
		if m.Email == email {
			return m.ID
		}
	}
	t.Fatalf("%s no es miembro", email)
	return ""
}

// ──────────────────────────────────────────────────────────────────────────────
// Cuenta
// ──────────────────────────────────────────────────────────────────────────────

func TestAPI_RegistroLoginYMe(t *testing.T) {
	app := newAPI(t)
	token := signup(t, app, "Ana@x.com")

	resp := doJSON(t, app, http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var me map[string]interface{}
	decode(t, resp, &me)
	assert.Equal(t, "ana@x.com", me["email"])
	assert.NotContains(t, me, "password_hash")

	resp = doJSON(t, app, http.MethodGet, "/api/auth/me", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestAPI_RegistroCodigoErroneo(t *testing.T) {
	app := newAPI(t)
	resp := doJSON(t, app, http.MethodPost, "/api/auth/verification-code", "", fiber.Map{"email": "ana@x.com", "scenario": "REGISTER"})
	require.Equal(t, fiber.StatusAccepted, resp.StatusCode)

	resp = doJSON(t, app, http.MethodPost, "/api/auth/register", "", fiber.Map{
		"email": "ana@x.com", "password": "secreto123", "code": "654321",
	})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "INVALID_CODE", errorCode(t, resp))
}

func TestAPI_PasswordDemasiadoLargoNoGastaElCodigo(t *testing.T) {
	app := newAPI(t)
	resp := doJSON(t, app, http.MethodPost, "/api/auth/verification-code", "", fiber.Map{"email": "ana@x.com", "scenario": "REGISTER"})
	require.Equal(t, fiber.StatusAccepted, resp.StatusCode)

	resp = doJSON(t, app, http.MethodPost, "/api/auth/register", "", fiber.Map{
		"email": "ana@x.com", "password": strings.Repeat("x", 80), "code": fixedCode,
	})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION", errorCode(t, resp))

	resp = doJSON(t, app, http.MethodPost, "/api/auth/register", "", fiber.Map{
		"email": "ana@x.com", "password": "secreto123", "code": fixedCode,
	})
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp = doJSON(t, app, http.MethodPost, "/api/auth/verification-code", "", fiber.Map{"email": "ana@x.com", "scenario": "RESET_PASSWORD"})
	require.Equal(t, fiber.StatusAccepted, resp.StatusCode)
	long := strings.Repeat("x", 80)
	resp = doJSON(t, app, http.MethodPost, "/api/auth/reset-password", "", fiber.Map{
		"email": "ana@x.com", "code": fixedCode, "password": long, "confirm_password": long,
	})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION", errorCode(t, resp))

	resp = doJSON(t, app, http.MethodPost, "/api/auth/reset-password", "", fiber.Map{
		"email": "ana@x.com", "code": fixedCode, "password": "nuevo12345", "confirm_password": "nuevo12345",
	})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestAPI_ValidacionDeEntrada(t *testing.T) {
	app := newAPI(t)

	resp := doJSON(t, app, http.MethodPost, "/api/auth/verification-code", "", fiber.Map{"email": "no-es-email", "scenario": "REGISTER"})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION", errorCode(t, resp))

	resp = doJSON(t, app, http.MethodPost, "/api/auth/verification-code", "", fiber.Map{"email": "ana@x.com", "scenario": "LOGIN"})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION", errorCode(t, resp))

	resp = doJSON(t, app, http.MethodPost, "/api/auth/register", "", fiber.Map{"email": "ana@x.com", "password": "corta", "code": fixedCode})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION", errorCode(t, resp))
}

func TestAPI_EmailYaRegistrado(t *testing.T) {
	app := newAPI(t)
	signup(t, app, "ana@x.com")

	resp := doJSON(t, app, http.MethodPost, "/api/auth/verification-code", "", fiber.Map{"email": "ana@x.com", "scenario": "REGISTER"})
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)
	assert.Equal(t, "EMAIL_EXISTS", errorCode(t, resp))
}

func TestAPI_AlmacenamientoCaido(t *testing.T) {
	app := buildAPI(t, downStore{}, downStore{})

	resp := doJSON(t, app, http.MethodPost, "/api/auth/verification-code", "", fiber.Map{"email": "ana@x.com", "scenario": "REGISTER"})
	require.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "STORAGE_UNAVAILABLE", errorCode(t, resp))
}

func TestAPI_ResetPassword(t *testing.T) {
	app := newAPI(t)
	signup(t, app, "ana@x.com")

	resp := doJSON(t, app, http.MethodPost, "/api/auth/verification-code", "", fiber.Map{"email": "ana@x.com", "scenario": "reset_password"})
	require.Equal(t, fiber.StatusAccepted, resp.StatusCode)

	resp = doJSON(t, app, http.MethodPost, "/api/auth/reset-password", "", fiber.Map{
		"email": "ana@x.com", "code": fixedCode, "password": "nuevo12345", "confirm_password": "nuevo12345",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = doJSON(t, app, http.MethodPost, "/api/auth/login", "", fiber.Map{"email": "ana@x.com", "password": "secreto123"})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	resp = doJSON(t, app, http.MethodPost, "/api/auth/login", "", fiber.Map{"email": "ana@x.com", "password": "nuevo12345"})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestAPI_Refresh(t *testing.T) {
	app := newAPI(t)
	token := signup(t, app, "ana@x.com")

	resp := doJSON(t, app, http.MethodPost, "/api/auth/refresh", "", fiber.Map{"token": token})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = doJSON(t, app, http.MethodPost, "/api/auth/refresh", token, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, "también acepta el header Authorization")

	resp = doJSON(t, app, http.MethodPost, "/api/auth/refresh", "", fiber.Map{"token": "basura"})
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "INVALID_TOKEN", errorCode(t, resp))
}

// ──────────────────────────────────────────────────────────────────────────────
// Unidades y membresías
// ──────────────────────────────────────────────────────────────────────────────

func TestAPI_UnidadesYMembresias(t *testing.T) {
	app := newAPI(t)
	ana := signup(t, app, "ana@x.com")
	bob := signup(t, app, "bob@x.com")

	resp := doJSON(t, app, http.MethodPost, "/api/units", "", fiber.Map{"name": "Acme"})
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp = doJSON(t, app, http.MethodPost, "/api/units", ana, fiber.Map{"name": "Acme", "kind": "team"})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	var unit struct {
		ID   string `json:"id"`
		Kind string `json:"kind"`
	}
	decode(t, resp, &unit)
	assert.Equal(t, "TEAM", unit.Kind)

	// bob todavía no es miembro
	resp = doJSON(t, app, http.MethodGet, "/api/units/"+unit.ID+"/members", bob, nil)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp = doJSON(t, app, http.MethodPost, "/api/units/"+unit.ID+"/members", ana, fiber.Map{"email": "bob@x.com", "role": "member"})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp = doJSON(t, app, http.MethodPost, "/api/units/"+unit.ID+"/members", ana, fiber.Map{"email": "bob@x.com", "role": "MEMBER"})
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)
	assert.Equal(t, "ALREADY_MEMBER", errorCode(t, resp))

	list := listMembers(t, app, unit.ID, bob)
	require.Len(t, list, 2)
	anaID := memberID(t, list, "ana@x.com")
	bobID := memberID(t, list, "bob@x.com")

	// un MEMBER no administra
	resp = doJSON(t, app, http.MethodDelete, "/api/units/"+unit.ID, bob, nil)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "FORBIDDEN", errorCode(t, resp))

	// el único ADMIN no puede degradarse ni salir
	resp = doJSON(t, app, http.MethodPut, "/api/units/"+unit.ID+"/members/"+anaID, ana, fiber.Map{"role": "MEMBER"})
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)
	assert.Equal(t, "LAST_ADMIN", errorCode(t, resp))
	resp = doJSON(t, app, http.MethodDelete, "/api/units/"+unit.ID+"/members/"+anaID, ana, nil)
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)

	// con un segundo ADMIN sí
	resp = doJSON(t, app, http.MethodPut, "/api/units/"+unit.ID+"/members/"+bobID, ana, fiber.Map{"role": "admin"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp = doJSON(t, app, http.MethodPut, "/api/units/"+unit.ID+"/members/"+anaID, bob, fiber.Map{"role": "MANAGER"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = doJSON(t, app, http.MethodPut, "/api/units/"+unit.ID+"/members/"+anaID, bob, fiber.Map{"role": "OWNER"})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION", errorCode(t, resp))

	resp = doJSON(t, app, http.MethodDelete, "/api/units/"+unit.ID+"/members/"+anaID, bob, nil)
	require.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, app, http.MethodDelete, "/api/units/"+unit.ID, bob, nil)
	require.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	resp = doJSON(t, app, http.MethodDelete, "/api/units/"+unit.ID, bob, nil)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestAPI_AgregarUsuarioNoRegistrado(t *testing.T) {
	app := newAPI(t)
	ana := signup(t, app, "ana@x.com")

	resp := doJSON(t, app, http.MethodPost, "/api/units", ana, fiber.Map{"name": "Acme"})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	var unit struct {
		ID string `json:"id"`
	}
	decode(t, resp, &unit)

	resp = doJSON(t, app, http.MethodPost, "/api/units/"+unit.ID+"/members", ana, fiber.Map{"email": "fantasma@x.com", "role": "MEMBER"})
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

// ──────────────────────────────────────────────────────────────────────────────
// Health y métricas
// ──────────────────────────────────────────────────────────────────────────────

func TestAPI_HealthYMetricas(t *testing.T) {
	app := newAPI(t)
	signup(t, app, "ana@x.com")

	resp := doJSON(t, app, http.MethodGet, "/health", "", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = doJSON(t, app, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "auth_gate_results_total")
	assert.Contains(t, string(body), "http_requests_total")
}
