package router

import (
	"fmt"
	"os"

	"paper-agent-chat/backend/pkg/validator"
)

// AddOpenAPIValidation wires schema validation in front of the API routes.
// Call before SetupRoutes so the middleware runs first. A missing schema
// file is an error; deployments that do not ship a schema should not call
// this at all.
func (r *Router) AddOpenAPIValidation(schemaPath string) error {
	if _, err := os.Stat(schemaPath); err != nil {
		return fmt.Errorf("openapi schema not found: %w", err)
	}

	v, err := validator.NewOpenAPIValidator(schemaPath, r.logger)
	if err != nil {
		return fmt.Errorf("failed to create openapi validator: %w", err)
	}

	r.engine.Use(v.Middleware())
	r.logger.Info("openapi request validation enabled", "schema", schemaPath)
	return nil
}
