package handlers

import (
	"net/http"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestRegisterRoutes(t *testing.T) {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	handler := NewHandler(&mockRiskService{}, logger)

	router := chi.NewRouter()

	// Should not panic
	assert.NotPanics(t, func() {
		handler.RegisterRoutes(router)
	}, "RegisterRoutes should not panic")

	var routes []string
	err := chi.Walk(router, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		routes = append(routes, method+" "+route)
		return nil
	})
	assert.NoError(t, err)

	all := strings.Join(routes, "\n")
	assert.Contains(t, all, "POST /risk/simulations")
	assert.Contains(t, all, "GET /risk/simulations/{id}")
	assert.Contains(t, all, "GET /risk/correlation")
	assert.Contains(t, all, "GET /risk/prices/{symbol}")
}
