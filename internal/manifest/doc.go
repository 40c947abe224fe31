// Package manifest loads decoy service manifests and validates the typed
// startup parameters they declare.
//
// A manifest lives at the root of a service package as service.yaml,
// service.yml, service.json or service.toml. Every format is checked
// against the same embedded JSON schema before it is decoded.
package manifest
