// Package docs embeds the OpenAPI description of the REST API.
package docs

import _ "embed"

//go:embed booking.swagger.json
var Swagger []byte

const SwaggerPath = "/swagger/booking.swagger.json"
