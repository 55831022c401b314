package equipment

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"toolroom/pkg/metadata"
	"toolroom/pkg/models"
)

func setupRouter(service *EquipmentService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewEquipmentHandler(service).RegisterRoutes(router)
	return router
}

func postJSON(router *gin.Engine, path string, body interface{}) *httptest.ResponseRecorder {
	payload, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCreateEndpoint(t *testing.T) {
	router := setupRouter(newTestService(newFakeStore(), nil))

	w := postJSON(router, "/equipment", models.CreateEquipmentRequest{
		Name: "impact driver", Kind: "borrowable", Quantity: 4,
	})

	assert.Equal(t, http.StatusCreated, w.Code)

	var item models.EquipmentItem
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &item))
	assert.Equal(t, 4, item.AvailableQuantity)
	assert.Equal(t, metadata.StatusAvailable, item.Status)
}

func TestCreateEndpointAcceptsZeroQuantity(t *testing.T) {
	router := setupRouter(newTestService(newFakeStore(), nil))

	w := postJSON(router, "/equipment", models.CreateEquipmentRequest{
		Name: "spare blades", Kind: "consumable", Quantity: 0,
	})

	assert.Equal(t, http.StatusCreated, w.Code)

	var item models.EquipmentItem
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &item))
	assert.Equal(t, 0, item.Quantity)
	assert.Equal(t, metadata.StatusOutOfStock, item.Status)
}

func TestCreateEndpointRejectsNegativeQuantity(t *testing.T) {
	router := setupRouter(newTestService(newFakeStore(), nil))

	w := postJSON(router, "/equipment", models.CreateEquipmentRequest{
		Name: "spare blades", Kind: "consumable", Quantity: -1,
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
