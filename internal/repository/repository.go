// Package repository содержит реализации хранилища клиентов, парковок и парковочных сессий.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/mmeshcher/parking-system/internal/model"
)

// ErrNotFound возвращается, если запрошенная запись отсутствует.
var ErrNotFound = errors.New("not found")

var (
	// ErrClientNotFound возвращается, если клиент не найден.
	ErrClientNotFound = fmt.Errorf("client %w", ErrNotFound)
	// ErrParkingNotFound возвращается, если парковка не найдена.
	ErrParkingNotFound = fmt.Errorf("parking %w", ErrNotFound)
	// ErrSessionNotFound возвращается, если для пары клиент-парковка нет сессии.
	ErrSessionNotFound = fmt.Errorf("parking session %w", ErrNotFound)
	// ErrSessionExists возвращается при попытке создать вторую сессию для той же пары.
	ErrSessionExists = errors.New("parking session already exists")
	// ErrPlacesOutOfRange возвращается, если счётчик свободных мест выходит за пределы [0, total].
	ErrPlacesOutOfRange = errors.New("available places out of range")
)

// Tx описывает операции, доступные внутри одной транзакции хранилища.
// Lock-методы блокируют запись до завершения транзакции; блокировки берутся
// в порядке парковка, затем сессия.
type Tx interface {
	GetClient(ctx context.Context, id int64) (*model.Client, error)
	LockParking(ctx context.Context, id int64) (*model.Parking, error)
	LockSession(ctx context.Context, clientID, parkingID int64) (*model.ParkingSession, error)
	CreateSession(ctx context.Context, s *model.ParkingSession) error
	UpdateSession(ctx context.Context, s *model.ParkingSession) error
	SetAvailablePlaces(ctx context.Context, parkingID int64, available int) error
}

// TxFunc выполняется внутри транзакции. Возврат ошибки откатывает все изменения.
type TxFunc func(ctx context.Context, tx Tx) error
