package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/parking-system/internal/repository"
	"github.com/mmeshcher/parking-system/internal/service"
)

type apiFixture struct {
	t    *testing.T
	h    http.Handler
	repo *repository.MemoryRepository
}

func newAPI(t *testing.T) *apiFixture {
	t.Helper()

	repo := repository.NewMemoryRepository()
	return &apiFixture{
		t:    t,
		h:    newTestRouter(t, service.NewService(repo)),
		repo: repo,
	}
}

func (a *apiFixture) createClient(body map[string]any) int64 {
	a.t.Helper()

	res, got := doJSON(a.t, a.h, http.MethodPost, "/api/clients", body)
	require.Equal(a.t, http.StatusCreated, res.StatusCode)
	return int64(got["id"].(float64))
}

func (a *apiFixture) createParking(places int, opened bool) int64 {
	a.t.Helper()

	res, got := doJSON(a.t, a.h, http.MethodPost, "/api/parkings",
		map[string]any{"address": "Test", "count_places": places, "opened": opened})
	require.Equal(a.t, http.StatusCreated, res.StatusCode)
	return int64(got["id"].(float64))
}

func (a *apiFixture) enter(clientID, parkingID int64) (*http.Response, map[string]any) {
	a.t.Helper()
	return doJSON(a.t, a.h, http.MethodPost, "/api/client_parkings",
		map[string]int64{"client_id": clientID, "parking_id": parkingID})
}

func (a *apiFixture) exit(clientID, parkingID int64) (*http.Response, map[string]any) {
	a.t.Helper()
	return doJSON(a.t, a.h, http.MethodDelete, "/api/client_parkings",
		map[string]int64{"client_id": clientID, "parking_id": parkingID})
}

func (a *apiFixture) available(parkingID int64) int {
	a.t.Helper()

	p, err := a.repo.GetParking(context.Background(), parkingID)
	require.NoError(a.t, err)
	return p.AvailablePlaces
}

func TestAPI_CreateAndGetClient(t *testing.T) {
	api := newAPI(t)

	res, created := doJSON(t, api.h, http.MethodPost, "/api/clients", map[string]any{
		"name":        "Valeriia",
		"surname":     "Veziryan",
		"credit_card": "1234-5678-9012-3456",
		"car_number":  "C432DC26",
	})
	require.Equal(t, http.StatusCreated, res.StatusCode)
	assert.Equal(t, "Valeriia", created["name"])
	assert.Equal(t, "Veziryan", created["surname"])

	res, got := doJSON(t, api.h, http.MethodGet, "/api/clients/1", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, created, got)
}

func TestAPI_CreateClientWithoutCard(t *testing.T) {
	api := newAPI(t)

	res, created := doJSON(t, api.h, http.MethodPost, "/api/clients",
		map[string]any{"name": "Vova", "surname": "Vladimirov", "car_number": "A123VE26"})
	require.Equal(t, http.StatusCreated, res.StatusCode)

	v, ok := created["credit_card"]
	assert.True(t, ok)
	assert.Nil(t, v)
}

func TestAPI_CreateParking(t *testing.T) {
	api := newAPI(t)

	res, got := doJSON(t, api.h, http.MethodPost, "/api/parkings",
		map[string]any{"address": "str. Lenina, 3", "count_places": 20, "opened": true})
	require.Equal(t, http.StatusCreated, res.StatusCode)
	assert.Equal(t, "str. Lenina, 3", got["address"])
	assert.Equal(t, 20.0, got["count_places"])
	assert.Equal(t, 20.0, got["count_available_places"])
	assert.Equal(t, true, got["opened"])

	res, got = doJSON(t, api.h, http.MethodPost, "/api/parkings",
		map[string]any{"address": "str. Lenina, 5", "count_places": 3})
	require.Equal(t, http.StatusCreated, res.StatusCode)
	assert.Equal(t, false, got["opened"])
}

func TestAPI_EntryNoPlaces(t *testing.T) {
	api := newAPI(t)

	first := api.createClient(map[string]any{"name": "Test", "surname": "User"})
	second := api.createClient(map[string]any{"name": "Other", "surname": "User"})
	parkingID := api.createParking(1, true)

	res, body := api.enter(first, parkingID)
	require.Equal(t, http.StatusCreated, res.StatusCode)
	assert.Equal(t, "Client entered parking", body["message"])
	assert.Equal(t, 0, api.available(parkingID))

	res, body = api.enter(second, parkingID)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Equal(t, "No available places", body["error"])
}

func TestAPI_EntryClosedParking(t *testing.T) {
	api := newAPI(t)

	clientID := api.createClient(map[string]any{"name": "Test", "surname": "User"})
	parkingID := api.createParking(5, false)

	res, body := api.enter(clientID, parkingID)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Equal(t, "Parking is closed", body["error"])
}

func TestAPI_EntryAlreadyParked(t *testing.T) {
	api := newAPI(t)

	clientID := api.createClient(map[string]any{"name": "Test", "surname": "User"})
	parkingID := api.createParking(5, true)

	res, _ := api.enter(clientID, parkingID)
	require.Equal(t, http.StatusCreated, res.StatusCode)

	res, body := api.enter(clientID, parkingID)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Equal(t, "Client already parked", body["error"])
}

func TestAPI_EntryUnknownIDs(t *testing.T) {
	api := newAPI(t)

	clientID := api.createClient(map[string]any{"name": "Test", "surname": "User"})
	parkingID := api.createParking(5, true)

	res, _ := api.enter(clientID, parkingID+100)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)

	res, _ = api.enter(clientID+100, parkingID)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestAPI_EnterExit(t *testing.T) {
	api := newAPI(t)

	clientID := api.createClient(map[string]any{"name": "Test", "surname": "User", "credit_card": "1111"})
	parkingID := api.createParking(5, true)

	res, _ := api.enter(clientID, parkingID)
	require.Equal(t, http.StatusCreated, res.StatusCode)
	assert.Equal(t, 4, api.available(parkingID))

	res, body := api.exit(clientID, parkingID)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, body["message"], "payment processed")
	assert.GreaterOrEqual(t, body["duration_minutes"].(float64), 0.0)
	assert.Equal(t, 5, api.available(parkingID))

	res, body = api.exit(clientID, parkingID)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Equal(t, "Client already left parking", body["error"])
	assert.Equal(t, 5, api.available(parkingID))

	res, _ = api.enter(clientID, parkingID)
	assert.Equal(t, http.StatusCreated, res.StatusCode)
	assert.Equal(t, 4, api.available(parkingID))
}

func TestAPI_ExitNoCreditCard(t *testing.T) {
	api := newAPI(t)

	parkingID := api.createParking(5, true)
	clientID := api.createClient(map[string]any{"name": "Vova", "surname": "Vladimirov"})

	res, _ := api.enter(clientID, parkingID)
	require.Equal(t, http.StatusCreated, res.StatusCode)

	res, body := api.exit(clientID, parkingID)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Equal(t, "No credit card attached to client", body["error"])
	assert.Equal(t, 4, api.available(parkingID))
}

func TestAPI_ExitWithoutSession(t *testing.T) {
	api := newAPI(t)

	clientID := api.createClient(map[string]any{"name": "Test", "surname": "User", "credit_card": "1111"})
	parkingID := api.createParking(5, true)

	res, _ := api.exit(clientID, parkingID)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestAPI_ListClients(t *testing.T) {
	api := newAPI(t)

	api.createClient(map[string]any{"name": "A", "surname": "One"})
	api.createClient(map[string]any{"name": "B", "surname": "Two"})

	res, _ := doJSON(t, api.h, http.MethodGet, "/api/clients", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)

	clients, err := api.repo.ListClients(context.Background())
	require.NoError(t, err)
	assert.Len(t, clients, 2)
}
