// Package realm agrupa el motor de reconciliación de realms: codec de
// credenciales, preservación de required actions, parser de bundles,
// importer y exporter (en subpaquetes), más la taxonomía de errores común.
package realm
