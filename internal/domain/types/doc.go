// Package types define el formato de intercambio de realms (bundles JSON)
// compartido por el parser, el importer, el exporter y los stores.
package types
