// Package repository define el contrato del Directory Store: el almacenamiento
// de realms, usuarios, clients y credenciales sobre el que trabajan el
// importer y el exporter.
//
// Las implementaciones viven en internal/store/memory e internal/store/pg.
//
// Convenciones:
//   - Context siempre es el primer parámetro
//   - RealmID se pasa explícitamente; no hay realm "activo" implícito
//   - Toda escritura ocurre dentro de Directory.Tx
//   - Errores de dominio están en errors.go
package repository
