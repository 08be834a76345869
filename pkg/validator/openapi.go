package validator

import (
	"fmt"
	"net/http"
	"os"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"
	"github.com/gin-gonic/gin"

	"paper-agent-chat/backend/pkg/logger"
)

// OpenAPIValidator validates incoming requests against an OpenAPI 3 schema.
// Routes not present in the schema pass through untouched.
type OpenAPIValidator struct {
	schemaPath string
	router     routers.Router
	doc        *openapi3.T
	log        *logger.Logger
}

func NewOpenAPIValidator(schemaPath string, log *logger.Logger) (*OpenAPIValidator, error) {
	v := &OpenAPIValidator{
		schemaPath: schemaPath,
		log:        log,
	}

	if err := v.loadSchema(); err != nil {
		return nil, err
	}
	return v, nil
}

func (v *OpenAPIValidator) loadSchema() error {
	if _, err := os.Stat(v.schemaPath); err != nil {
		return fmt.Errorf("openapi schema not found at %s: %w", v.schemaPath, err)
	}

	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromFile(v.schemaPath)
	if err != nil {
		return fmt.Errorf("failed to load openapi schema: %w", err)
	}
	if err := doc.Validate(loader.Context); err != nil {
		return fmt.Errorf("invalid openapi schema: %w", err)
	}

	router, err := gorillamux.NewRouter(doc)
	if err != nil {
		return fmt.Errorf("failed to build openapi router: %w", err)
	}

	v.doc = doc
	v.router = router
	return nil
}

// Middleware returns a gin middleware that validates request bodies and
// parameters for routes covered by the schema.
func (v *OpenAPIValidator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if v.router == nil {
			c.Next()
			return
		}

		route, pathParams, err := v.router.FindRoute(c.Request)
		if err != nil {
			// Unknown to the schema, let the gin router decide.
			c.Next()
			return
		}

		input := &openapi3filter.RequestValidationInput{
			Request:    c.Request,
			PathParams: pathParams,
			Route:      route,
			Options: &openapi3filter.Options{
				AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
			},
		}

		if err := openapi3filter.ValidateRequest(c.Request.Context(), input); err != nil {
			v.log.Warn("request failed schema validation",
				"path", c.Request.URL.Path,
				"method", c.Request.Method,
				"error", err.Error(),
			)
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error": gin.H{
					"code":    "INVALID_REQUEST",
					"message": err.Error(),
				},
			})
			return
		}

		c.Next()
	}
}
