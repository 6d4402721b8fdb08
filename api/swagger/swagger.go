// Package swagger embeds the OpenAPI document for the REST gateway.
package swagger

import _ "embed"

// Path is where the gateway serves Document.
const Path = "/swagger/account.swagger.json"

// Document is the OpenAPI 2.0 description of the /v1 REST routes.
//
//go:embed account.swagger.json
var Document []byte
