package logger

import (
	"time"

	"go.uber.org/zap"
)

// Field es zap.Field.
type Field = zap.Field

// ─── HTTP ───

func RequestID(v string) zap.Field       { return zap.String("request_id", v) }
func Method(v string) zap.Field          { return zap.String("method", v) }
func Path(v string) zap.Field            { return zap.String("path", v) }
func Status(v int) zap.Field             { return zap.Int("status", v) }
func Duration(v time.Duration) zap.Field { return zap.Duration("duration", v) }
func Bytes(v int) zap.Field              { return zap.Int("bytes", v) }
func ClientIP(v string) zap.Field        { return zap.String("client_ip", v) }

// ─── Realms ───

// Realm identifica un realm por nombre (el nombre es la clave de conflicto).
func Realm(v string) zap.Field { return zap.String("realm", v) }

// RealmID identifica un realm ya persistido.
func RealmID(v string) zap.Field { return zap.String("realm_id", v) }

func UserID(v string) zap.Field         { return zap.String("user_id", v) }
func Username(v string) zap.Field       { return zap.String("username", v) }
func Strategy(v string) zap.Field       { return zap.String("strategy", v) }
func CredentialType(v string) zap.Field { return zap.String("credential_type", v) }
func Subject(v string) zap.Field        { return zap.String("sub", v) }

// ─── Sistema ───

func Component(v string) zap.Field    { return zap.String("component", v) }
func Op(v string) zap.Field           { return zap.String("op", v) }
func Layer(v string) zap.Field        { return zap.String("layer", v) }
func Err(err error) zap.Field         { return zap.Error(err) }
func Count(v int) zap.Field           { return zap.Int("count", v) }
func String(k, v string) zap.Field    { return zap.String(k, v) }
func Int(k string, v int) zap.Field   { return zap.Int(k, v) }
func Bool(k string, v bool) zap.Field { return zap.Bool(k, v) }
