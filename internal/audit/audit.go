// Package audit registra quién importó o exportó qué realm. Los eventos salen
// por el logger "audit" para poder rutearlos aparte.
package audit

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/realmport/internal/authz"
	"github.com/dropDatabas3/realmport/internal/observability/logger"
	"github.com/dropDatabas3/realmport/internal/realm/importer"
)

const (
	EventRealmExported = "realm.exported"
	EventRealmImported = "realm.imported"
	EventAccessDenied  = "realm.access_denied"
	EventCreatorGrant  = "realm.creator_granted"
)

// Log escribe un evento de auditoría con el principal que lo originó.
func Log(ctx context.Context, event string, p authz.Principal, fields ...zap.Field) {
	base := []zap.Field{
		zap.String("event", event),
		zap.Time("ts", time.Now().UTC()),
		zap.String("actor_realm", p.Realm),
		zap.String("actor", p.Subject),
	}
	logger.From(ctx).Named("audit").Info(event, append(base, fields...)...)
}

// Imported emite un evento por cada bundle del reporte.
func Imported(ctx context.Context, p authz.Principal, strategy string, report *importer.Report) {
	for _, res := range report.Results {
		fields := []zap.Field{
			logger.Realm(res.Realm),
			logger.Strategy(strategy),
			zap.String("outcome", string(res.Outcome)),
		}
		if res.Err != nil {
			fields = append(fields, logger.Err(res.Err))
		}
		if len(res.Orphans) > 0 {
			fields = append(fields, zap.Strings("orphaned_users", res.Orphans))
		}
		Log(ctx, EventRealmImported, p, fields...)
	}
}
