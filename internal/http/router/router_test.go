package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/realmport/internal/authz"
	"github.com/dropDatabas3/realmport/internal/domain/repository"
	"github.com/dropDatabas3/realmport/internal/domain/types"
	"github.com/dropDatabas3/realmport/internal/http/controllers"
	jwtx "github.com/dropDatabas3/realmport/internal/jwt"
	"github.com/dropDatabas3/realmport/internal/rate"
	"github.com/dropDatabas3/realmport/internal/realm/bundle"
	"github.com/dropDatabas3/realmport/internal/realm/exporter"
	"github.com/dropDatabas3/realmport/internal/realm/importer"
	"github.com/dropDatabas3/realmport/internal/security/password"
	"github.com/dropDatabas3/realmport/internal/store/memory"
)

type fixture struct {
	srv    *httptest.Server
	issuer *jwtx.Issuer
	dir    *memory.Store
}

func newFixture(t *testing.T, allowedDir string) *fixture {
	t.Helper()
	return newLimitedFixture(t, allowedDir, nil)
}

func newLimitedFixture(t *testing.T, allowedDir string, limiter rate.Limiter) *fixture {
	t.Helper()
	dir := memory.New(memory.Options{AdminRealm: "master", Passwords: password.NewEnforcer(nil, password.Fast)})
	imp := importer.New(dir, importer.Options{AdminRealm: "master"})
	_, err := imp.ImportAll(context.Background(), []types.RealmBundle{
		// "sub-master" es el sub de f.token(t, "master", ...)
		{Realm: "master",
			Clients: []types.ClientRegistration{{ClientID: "admin-cli", PublicClient: true}},
			Users:   []types.UserRecord{{ID: "sub-master", Username: "ops", Enabled: true}}},
		{Realm: "acme", Users: []types.UserRecord{{ID: "u1", Username: "alice",
			Credentials: []types.CredentialRecord{{Type: "password", Value: "Secret-123"}}}}},
	}, types.StrategyFail)
	require.NoError(t, err)

	issuer, err := jwtx.NewIssuer("https://id.test", []byte("router-test-key"))
	require.NoError(t, err)
	gate := authz.New("master")

	h := New(Deps{
		Dir:    dir,
		Issuer: issuer,
		Realms: controllers.NewRealmController(controllers.RealmDeps{
			Dir: dir, Gate: gate, Exporter: exporter.New(dir), Importer: imp,
		}),
		AdminImport: &controllers.AdminImportController{
			Gate: gate, Importer: imp, Cache: bundle.NewCache(0), AllowedDir: allowedDir,
		},
		Health:        &controllers.HealthController{Dir: dir, Driver: "memory"},
		Gatherer:      prometheus.NewRegistry(),
		ImportLimiter: limiter,
	})
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return &fixture{srv: srv, issuer: issuer, dir: dir}
}

func (f *fixture) token(t *testing.T, realm string, roles ...string) string {
	t.Helper()
	tok, _, err := f.issuer.IssueAccess(realm, "sub-"+realm, roles, nil)
	require.NoError(t, err)
	return tok
}

// clientRoles retorna los roles de client de un usuario, por clientId.
func (f *fixture) clientRoles(t *testing.T, realmName, userID string) map[string][]string {
	t.Helper()
	ctx := context.Background()
	var out map[string][]string
	require.NoError(t, f.dir.Tx(ctx, func(tx repository.DirectoryTx) error {
		r, err := tx.FindRealmByName(ctx, realmName)
		if err != nil {
			return err
		}
		b, err := tx.ExportRealm(ctx, r.ID, repository.ExportOptions{IncludeUsers: true})
		if err != nil {
			return err
		}
		for _, u := range b.Users {
			if u.ID == userID {
				out = u.ClientRoles
			}
		}
		return nil
	}))
	return out
}

func (f *fixture) do(t *testing.T, method, path, token string, body []byte) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, f.srv.URL+path, bytes.NewReader(body))
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestReadyz(t *testing.T) {
	f := newFixture(t, "")
	resp := f.do(t, http.MethodGet, "/readyz", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body controllers.HealthResponse
	decode(t, resp, &body)
	require.Equal(t, "ready", body.Status)
	require.Equal(t, 2, body.Realms)
}

func TestExport(t *testing.T) {
	f := newFixture(t, "")

	resp := f.do(t, http.MethodGet, "/realms/acme/export/realm", "", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/realms/acme/export/realm", f.token(t, "ghost", "admin"), nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/realms/acme/export/realm", f.token(t, "acme", "admin"), nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/realms/nope/export/realm", f.token(t, "master", "admin"), nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/realms/acme/export/realm", f.token(t, "master", "admin"), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var b types.RealmBundle
	decode(t, resp, &b)
	require.Equal(t, "acme", b.Realm)
	require.Len(t, b.Users, 1)
	require.Len(t, b.Users[0].Credentials, 1)
	require.NotEmpty(t, b.Users[0].Credentials[0].ID)
}

func TestImport_NewRealm(t *testing.T) {
	f := newFixture(t, "")
	body := []byte(`{"realm":"newco","users":[{"id":"n1","username":"nina"}]}`)

	resp := f.do(t, http.MethodPost, "/realms/master/export/realm", f.token(t, "master"), body)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/realms/master/export/realm", f.token(t, "master", "create-realm"), body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Equal(t, "/admin/realms/newco", resp.Header.Get("Location"))

	// segundo intento sin estrategia: conflicto
	resp = f.do(t, http.MethodPost, "/realms/newco/export/realm", f.token(t, "master", "admin"), body)
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/realms/newco/export/realm?strategy=IGNORE_EXISTING", f.token(t, "master", "admin"), body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var report importer.Report
	decode(t, resp, &report)
	require.Equal(t, importer.OutcomeSkipped, report.Results[0].Outcome)
}

func TestImport_NewRealmGrantsCreator(t *testing.T) {
	f := newFixture(t, "")
	body := []byte(`[{"realm":"newco"},{"realm":"acme"}]`)

	resp := f.do(t, http.MethodPost, "/realms/master/export/realm", f.token(t, "master", "create-realm"), []byte(`{"realm":"newco"}`))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	roles := f.clientRoles(t, "master", "sub-master")
	require.ElementsMatch(t, repository.ManagementRoles, roles["newco-realm"])
	require.NotContains(t, roles, "acme-realm")

	// un admin no recibe roles extra
	resp = f.do(t, http.MethodPost, "/realms/master/export/realm?strategy=IGNORE_EXISTING", f.token(t, "master", "admin"),
		[]byte(`{"realm":"other"}`))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.NotContains(t, f.clientRoles(t, "master", "sub-master"), "other-realm")

	// sin admin los realms existentes no se tocan y el lote entero se rechaza
	resp = f.do(t, http.MethodPost, "/realms/master/export/realm", f.token(t, "master", "create-realm"), body)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestAuth_UnknownClientInToken(t *testing.T) {
	f := newFixture(t, "")

	tok, _, err := f.issuer.IssueAccess("master", "sub-master", []string{"admin"}, map[string]any{"azp": "admin-cli"})
	require.NoError(t, err)
	resp := f.do(t, http.MethodGet, "/realms/acme/export/realm", tok, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	tok, _, err = f.issuer.IssueAccess("master", "sub-master", []string{"admin"}, map[string]any{"azp": "ghost-cli"})
	require.NoError(t, err)
	resp = f.do(t, http.MethodGet, "/realms/acme/export/realm", tok, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestImport_ExistingRealmRequiresMatchingURL(t *testing.T) {
	f := newFixture(t, "")
	body := []byte(`{"realm":"acme"}`)
	resp := f.do(t, http.MethodPost, "/realms/master/export/realm?strategy=OVERWRITE_EXISTING", f.token(t, "master", "admin"), body)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/realms/acme/export/realm?strategy=bogus", f.token(t, "master", "admin"), body)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/realms/acme/export/realm?strategy=OVERWRITE_EXISTING", f.token(t, "master", "admin"), body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestImport_MalformedAndPolicy(t *testing.T) {
	f := newFixture(t, "")
	tok := f.token(t, "master", "admin")

	resp := f.do(t, http.MethodPost, "/realms/master/export/realm", tok, []byte(`[{"realm":"x"},{"realm":`))
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var e map[string]string
	decode(t, resp, &e)
	require.Equal(t, "MALFORMED_BUNDLE", e["code"])

	body := []byte(`{"realm":"strict","passwordPolicy":"length(12)","users":[{"id":"s1","username":"sam","credentials":[{"type":"password","value":"short"}]}]}`)
	resp = f.do(t, http.MethodPost, "/realms/master/export/realm", tok, body)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	decode(t, resp, &e)
	require.Equal(t, "PASSWORD_POLICY", e["code"])
	require.Contains(t, e["detail"], "sam")
}

func TestAdminImport_PlanAndApply(t *testing.T) {
	dir := t.TempDir()
	f := newFixture(t, dir)
	path := filepath.Join(dir, "realms.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"realm":"acme"},{"realm":"gamma"}]`), 0o600))
	tok := f.token(t, "master", "admin")

	req := []byte(`{"path":"` + filepath.ToSlash(path) + `","strategy":"IGNORE_EXISTING"}`)
	resp := f.do(t, http.MethodPost, "/admin/import/plan", tok, req)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var plan controllers.PlanResponse
	decode(t, resp, &plan)
	require.Len(t, plan.Items, 2)
	require.Equal(t, "skip", plan.Items[0].Action)
	require.Equal(t, "create", plan.Items[1].Action)

	resp = f.do(t, http.MethodPost, "/admin/import/apply", tok, req)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var report importer.Report
	decode(t, resp, &report)
	require.Equal(t, 1, report.Count(importer.OutcomeCreated))

	outside := []byte(`{"path":"` + strings.ReplaceAll(filepath.Join(os.TempDir(), "elsewhere.json"), `\`, `/`) + `"}`)
	resp = f.do(t, http.MethodPost, "/admin/import/plan", tok, outside)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/admin/import/plan", f.token(t, "master", "create-realm"), req)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestNotFoundRoute(t *testing.T) {
	f := newFixture(t, "")
	resp := f.do(t, http.MethodGet, "/nowhere", "", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestImport_RateLimited(t *testing.T) {
	f := newLimitedFixture(t, "", rate.NewMemory(1, time.Hour))
	tok := f.token(t, "master", "admin")
	body := []byte(`{"realm":"limited"}`)

	resp := f.do(t, http.MethodPost, "/realms/master/export/realm?strategy=IGNORE_EXISTING", tok, body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Equal(t, "0", resp.Header.Get("X-RateLimit-Remaining"))

	resp = f.do(t, http.MethodPost, "/realms/master/export/realm?strategy=IGNORE_EXISTING", tok, body)
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	require.NotEmpty(t, resp.Header.Get("Retry-After"))

	// export no está limitado
	resp = f.do(t, http.MethodGet, "/realms/limited/export/realm", tok, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
