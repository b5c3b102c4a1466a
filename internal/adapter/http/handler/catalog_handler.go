package handler

import (
	"smartpay/internal/adapter/http/dto"
	"smartpay/internal/core/ports"
	"smartpay/pkg/response"

	"github.com/gin-gonic/gin"
)

// CatalogHandler serves the product list.
type CatalogHandler struct {
	catalog ports.CatalogService
}

func NewCatalogHandler(catalog ports.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

// ListProducts handles GET /api/v1/products.
func (h *CatalogHandler) ListProducts(c *gin.Context) {
	products, err := h.catalog.ListProducts(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	out := make([]dto.ProductResponse, 0, len(products))
	for _, p := range products {
		out = append(out, dto.ProductResponse{ID: p.ID.String(), Name: p.Name, Price: p.Price})
	}
	response.OK(c, out)
}
