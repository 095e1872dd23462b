//go:build tools

package tools

// This file tracks tool dependencies for reproducible builds.
// Run `go mod tidy` after adding/removing tools here.
//
// oapi-codegen generates clients from api/openapi.yaml; the server binds
// parameters with the matching oapi-codegen/runtime release.

import (
	_ "github.com/oapi-codegen/oapi-codegen/v2/cmd/oapi-codegen"
)
