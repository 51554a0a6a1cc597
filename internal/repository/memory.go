package repository

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/mmeshcher/parking-system/internal/model"
)

type sessionKey struct {
	clientID  int64
	parkingID int64
}

type memoryState struct {
	clients  map[int64]model.Client
	parkings map[int64]model.Parking
	sessions map[sessionKey]model.ParkingSession

	lastClientID  int64
	lastParkingID int64
	lastSessionID int64
}

func (s memoryState) clone() memoryState {
	c := s
	c.clients = maps.Clone(s.clients)
	c.parkings = maps.Clone(s.parkings)
	c.sessions = maps.Clone(s.sessions)
	return c
}

// MemoryRepository хранит данные в памяти процесса. Используется, когда адрес БД не задан, и в тестах.
// Транзакции выполняются строго последовательно.
type MemoryRepository struct {
	mu    sync.Mutex
	state memoryState
}

// NewMemoryRepository создаёт пустое хранилище в памяти.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		state: memoryState{
			clients:  make(map[int64]model.Client),
			parkings: make(map[int64]model.Parking),
			sessions: make(map[sessionKey]model.ParkingSession),
		},
	}
}

// Close ничего не делает.
func (r *MemoryRepository) Close() error {
	return nil
}

// InTx выполняет fn под общей блокировкой хранилища. При ошибке состояние откатывается к снимку,
// снятому перед началом транзакции.
func (r *MemoryRepository) InTx(ctx context.Context, fn TxFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	snapshot := r.state.clone()
	if err := fn(ctx, &memoryTx{state: &r.state}); err != nil {
		r.state = snapshot
		return err
	}
	return nil
}

// CreateClient сохраняет клиента и назначает ему очередной идентификатор.
func (r *MemoryRepository) CreateClient(_ context.Context, c *model.Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.state.lastClientID++
	c.ID = r.state.lastClientID
	r.state.clients[c.ID] = *c
	return nil
}

// GetClient возвращает копию клиента по идентификатору.
func (r *MemoryRepository) GetClient(_ context.Context, id int64) (*model.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.state.client(id)
}

// ListClients возвращает клиентов в порядке возрастания идентификатора.
func (r *MemoryRepository) ListClients(_ context.Context) ([]model.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := slices.Sorted(maps.Keys(r.state.clients))
	clients := make([]model.Client, 0, len(ids))
	for _, id := range ids {
		clients = append(clients, r.state.clients[id])
	}
	return clients, nil
}

// CreateParking сохраняет парковку, проверяя границы счётчика мест.
func (r *MemoryRepository) CreateParking(_ context.Context, p *model.Parking) error {
	if p.TotalPlaces < 0 || p.AvailablePlaces < 0 || p.AvailablePlaces > p.TotalPlaces {
		return ErrPlacesOutOfRange
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.state.lastParkingID++
	p.ID = r.state.lastParkingID
	r.state.parkings[p.ID] = *p
	return nil
}

// GetParking возвращает копию парковки по идентификатору.
func (r *MemoryRepository) GetParking(_ context.Context, id int64) (*model.Parking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.state.parking(id)
}

// ListParkings возвращает парковки в порядке возрастания идентификатора.
func (r *MemoryRepository) ListParkings(_ context.Context) ([]model.Parking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := slices.Sorted(maps.Keys(r.state.parkings))
	parkings := make([]model.Parking, 0, len(ids))
	for _, id := range ids {
		parkings = append(parkings, r.state.parkings[id])
	}
	return parkings, nil
}

func (s *memoryState) client(id int64) (*model.Client, error) {
	c, ok := s.clients[id]
	if !ok {
		return nil, ErrClientNotFound
	}
	return &c, nil
}

func (s *memoryState) parking(id int64) (*model.Parking, error) {
	p, ok := s.parkings[id]
	if !ok {
		return nil, ErrParkingNotFound
	}
	return &p, nil
}

// memoryTx работает с состоянием, пока MemoryRepository.mu захвачен в InTx.
type memoryTx struct {
	state *memoryState
}

func (t *memoryTx) GetClient(_ context.Context, id int64) (*model.Client, error) {
	return t.state.client(id)
}

func (t *memoryTx) LockParking(_ context.Context, id int64) (*model.Parking, error) {
	return t.state.parking(id)
}

func (t *memoryTx) LockSession(_ context.Context, clientID, parkingID int64) (*model.ParkingSession, error) {
	s, ok := t.state.sessions[sessionKey{clientID, parkingID}]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return &s, nil
}

func (t *memoryTx) CreateSession(_ context.Context, s *model.ParkingSession) error {
	if _, ok := t.state.clients[s.ClientID]; !ok {
		return ErrClientNotFound
	}
	if _, ok := t.state.parkings[s.ParkingID]; !ok {
		return ErrParkingNotFound
	}

	key := sessionKey{s.ClientID, s.ParkingID}
	if _, ok := t.state.sessions[key]; ok {
		return ErrSessionExists
	}

	t.state.lastSessionID++
	s.ID = t.state.lastSessionID
	t.state.sessions[key] = *s
	return nil
}

func (t *memoryTx) UpdateSession(_ context.Context, s *model.ParkingSession) error {
	key := sessionKey{s.ClientID, s.ParkingID}
	existing, ok := t.state.sessions[key]
	if !ok || existing.ID != s.ID {
		return ErrSessionNotFound
	}
	t.state.sessions[key] = *s
	return nil
}

func (t *memoryTx) SetAvailablePlaces(_ context.Context, parkingID int64, available int) error {
	p, ok := t.state.parkings[parkingID]
	if !ok {
		return ErrParkingNotFound
	}
	if available < 0 || available > p.TotalPlaces {
		return ErrPlacesOutOfRange
	}
	p.AvailablePlaces = available
	t.state.parkings[parkingID] = p
	return nil
}
