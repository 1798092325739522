// Package logger expone un logger Zap singleton con scoping por contexto.
//
// Init se llama una sola vez desde cmd/realmport. Los controllers instalan un
// logger "scoped" (request_id, método, path) en el contexto y el resto del
// código lo recupera con From(ctx):
//
//	log := logger.From(ctx).With(logger.Layer("importer"), logger.Realm(name))
//	log.Info("realm imported", logger.RealmID(id))
//
// "dev" usa consola con colores; "prod" usa JSON con stacktrace desde error.
package logger
