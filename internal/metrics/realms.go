package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Métricas del motor de realms. Viven en un paquete aparte para que importer,
// exporter y HTTP las compartan sin ciclos.

var (
	RealmImports = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "realm_imports_total",
		Help: "Bundles procesados por el importer, por resultado",
	}, []string{"outcome"})

	RealmImportDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "realm_import_duration_ms",
		Help:    "Duración del commit de un bundle en milisegundos",
		Buckets: prometheus.ExponentialBuckets(1, 2, 14),
	})

	RealmExports = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "realm_exports_total",
		Help: "Exports de realms, por resultado",
	}, []string{"result"})

	CredentialsDecoded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "realm_credentials_decoded_total",
		Help: "Credenciales importadas, por camino (plaintext, blob, legacy)",
	}, []string{"path"})

	ManagementClientsRepaired = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "realm_management_clients_repaired_total",
		Help: "Management clients recreados tras importar el realm admin",
	})
)

// Register registra las métricas en reg (o el default si es nil). Es idempotente.
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{
		RealmImports, RealmImportDuration, RealmExports, CredentialsDecoded, ManagementClientsRepaired,
		HTTPRequests, HTTPRequestDuration, HTTPInflight,
	} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}
