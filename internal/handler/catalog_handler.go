package handler

import (
	"errors"
	"net/http"

	"paydash-go/internal/catalog"

	"github.com/gin-gonic/gin"
)

// CatalogHandler 暴露图表数据集目录。
type CatalogHandler struct{}

// NewCatalogHandler 创建一个新的 CatalogHandler。
func NewCatalogHandler() *CatalogHandler {
	return &CatalogHandler{}
}

type datasetSummary struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Rows        int    `json:"rows"`
}

// List 列出所有数据集。
func (h *CatalogHandler) List(c *gin.Context) {
	names := catalog.Names()
	out := make([]datasetSummary, 0, len(names))
	for _, name := range names {
		ds, _ := catalog.Lookup(name)
		out = append(out, datasetSummary{Name: ds.Name, Description: ds.Description, Rows: len(ds.Rows)})
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": out})
}

// Get 返回一个数据集。带 chart 参数时按图表类型校验后返回。
func (h *CatalogHandler) Get(c *gin.Context) {
	name := c.Param("name")
	if kind := c.Query("chart"); kind != "" {
		data, err := catalog.Materialize(catalog.ChartKind(kind), name)
		if err != nil {
			status := http.StatusUnprocessableEntity
			if errors.Is(err, catalog.ErrUnknownDataset) {
				status = http.StatusNotFound
			}
			c.JSON(status, gin.H{"code": status, "message": err.Error(), "data": nil})
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": data})
		return
	}

	ds, ok := catalog.Lookup(name)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"code": http.StatusNotFound, "message": "数据集不存在", "data": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": ds})
}
