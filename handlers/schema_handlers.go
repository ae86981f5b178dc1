package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"filmsociety/api/logger"
	"filmsociety/api/schema"
)

// SchemaHandlers publishes the content schema set and checks draft
// documents against it before they are written to the CMS.
type SchemaHandlers struct {
	set    *schema.Set
	logger *zap.Logger
}

func NewSchemaHandlers(set *schema.Set, l *zap.Logger) *SchemaHandlers {
	return &SchemaHandlers{set: set, logger: logger.OrNop(l)}
}

// GetSchema returns every document type, or one when ?type= is given.
func (h *SchemaHandlers) GetSchema(c *gin.Context) {
	if name := c.Query("type"); name != "" {
		t, ok := h.set.Get(name)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown document type"})
			return
		}
		c.JSON(http.StatusOK, t)
		return
	}

	body, err := h.set.JSON()
	if err != nil {
		logger.FromGin(c, h.logger).Error("Error encoding schema set", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to encode schema"})
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}

// ValidateDocument checks a JSON document whose "_type" names a schema type.
func (h *SchemaHandlers) ValidateDocument(c *gin.Context) {
	var doc map[string]any
	if err := c.ShouldBindJSON(&doc); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON document"})
		return
	}

	if err := h.set.Validate(doc); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"valid": false, "errors": problems(err)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true})
}

// problems flattens a joined error into one message per problem.
func problems(err error) []string {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []string
		for _, e := range joined.Unwrap() {
			out = append(out, e.Error())
		}
		return out
	}
	return []string{err.Error()}
}
