// Package openapi embeds the OpenAPI description of the nestcore admin API
// for runtime distribution.
package openapi

import _ "embed"

// AdminAPISpec contains the OpenAPI description of the admin API.
//
//go:embed nestcore-api.yaml
var AdminAPISpec []byte

// Spec returns a copy of the embedded OpenAPI YAML.
func Spec() []byte {
	return append([]byte(nil), AdminAPISpec...)
}
