package errors

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/dropDatabas3/realmport/internal/realm"
)

// errorResponse controla exactamente qué campos se envían al cliente.
type errorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Detail    string `json:"detail,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// FromError convierte err en AppError. Los errores del motor de realms se
// traducen con FromRealmError; el resto es 500 conservando la causa.
func FromError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return FromRealmError(err)
}

// FromRealmError mapea la taxonomía de errores del motor a status HTTP.
func FromRealmError(err error) *AppError {
	var (
		conflict  *realm.RealmNameConflictError
		policy    *realm.PasswordPolicyViolationError
		malformed *realm.MalformedBundleError
	)
	switch {
	case err == nil:
		return nil
	case stderrors.As(err, &conflict):
		return ErrRealmConflict.WithDetail(conflict.Error()).WithCause(err)
	case stderrors.As(err, &policy):
		return ErrPasswordPolicy.WithDetail(policy.Error()).WithCause(err)
	case stderrors.As(err, &malformed):
		return ErrMalformedBundle.WithDetail(malformed.Error()).WithCause(err)
	case stderrors.Is(err, realm.ErrUnauthorized):
		return ErrUnauthorized.WithDetail(err.Error()).WithCause(err)
	case stderrors.Is(err, realm.ErrForbidden):
		return ErrForbidden.WithCause(err)
	case stderrors.Is(err, realm.ErrRealmNotFound):
		return ErrRealmNotFound.WithCause(err)
	}
	return ErrInternalServerError.WithCause(err)
}

// WriteError escribe la respuesta JSON del error.
func WriteError(w http.ResponseWriter, err error) {
	appErr := FromError(err)
	if appErr == nil {
		appErr = ErrInternalServerError
	}

	resp := errorResponse{
		Code:      appErr.Code,
		Message:   appErr.Message,
		Detail:    appErr.Detail,
		RequestID: w.Header().Get("X-Request-ID"),
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(appErr.HTTPStatus)
	_ = json.NewEncoder(w).Encode(resp)
}
