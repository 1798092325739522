package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/realmport/internal/realm"
)

func TestFromRealmError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"conflict", &realm.RealmNameConflictError{Realm: "acme"}, http.StatusConflict, "REALM_CONFLICT"},
		{"policy", fmt.Errorf("bundle: %w", &realm.PasswordPolicyViolationError{Username: "bob"}), http.StatusBadRequest, "PASSWORD_POLICY"},
		{"malformed", &realm.MalformedBundleError{Offset: 3, Err: stderrors.New("eof")}, http.StatusBadRequest, "MALFORMED_BUNDLE"},
		{"unauthorized", realm.ErrUnauthorized, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"forbidden export", realm.ErrUnauthorizedExport, http.StatusForbidden, "FORBIDDEN"},
		{"not found", realm.ErrRealmNotFound, http.StatusNotFound, "REALM_NOT_FOUND"},
		{"other", stderrors.New("boom"), http.StatusInternalServerError, "INTERNAL_SERVER_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromRealmError(tt.err)
			require.Equal(t, tt.status, got.HTTPStatus)
			require.Equal(t, tt.code, got.Code)
			require.ErrorIs(t, got, tt.err)
		})
	}
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	rec.Header().Set("X-Request-ID", "rid-1")
	WriteError(rec, ErrForbidden.WithDetail("nope"))

	require.Equal(t, http.StatusForbidden, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "FORBIDDEN", body["code"])
	require.Equal(t, "nope", body["detail"])
	require.Equal(t, "rid-1", body["request_id"])
	require.Equal(t, "No tiene permisos para realizar esta acción.", ErrForbidden.Message)
}
