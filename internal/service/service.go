// Package service реализует бизнес-логику сервиса парковок: регистрацию клиентов и парковок,
// въезд и выезд автомобилей.
package service

import (
	"context"
	"errors"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/parking-system/internal/model"
	"github.com/mmeshcher/parking-system/internal/repository"
)

var (
	// ErrParkingClosed возвращается при попытке въезда на закрытую парковку.
	ErrParkingClosed = errors.New("parking is closed")
	// ErrNoAvailablePlaces возвращается, если на парковке не осталось свободных мест.
	ErrNoAvailablePlaces = errors.New("no available places")
	// ErrAlreadyParked возвращается при повторном въезде без выезда.
	ErrAlreadyParked = errors.New("client already parked")
	// ErrAlreadyExited возвращается при повторном выезде.
	ErrAlreadyExited = errors.New("client already left parking")
	// ErrNoCreditCard возвращается при выезде клиента без привязанной карты.
	ErrNoCreditCard = errors.New("no credit card attached to client")
	// ErrInvalidPlaces возвращается при создании парковки с отрицательным числом мест.
	ErrInvalidPlaces = errors.New("count of places must not be negative")
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	InTx(ctx context.Context, fn repository.TxFunc) error
	CreateClient(ctx context.Context, c *model.Client) error
	GetClient(ctx context.Context, id int64) (*model.Client, error)
	ListClients(ctx context.Context) ([]model.Client, error)
	CreateParking(ctx context.Context, p *model.Parking) error
	GetParking(ctx context.Context, id int64) (*model.Parking, error)
	ListParkings(ctx context.Context) ([]model.Parking, error)
}

// Service содержит бизнес-логику сервиса парковок.
type Service struct {
	repo   Repository
	logger *zap.Logger
	now    func() time.Time
}

// Option настраивает Service.
type Option func(*Service)

// WithLogger задаёт логгер для событий въезда и выезда.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// WithClock подменяет источник текущего времени.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService создаёт новый сервис с указанным репозиторием.
func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{
		repo:   repo,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// CreateClient регистрирует нового клиента.
func (s *Service) CreateClient(ctx context.Context, c *model.Client) error {
	return s.repo.CreateClient(ctx, c)
}

// GetClient возвращает клиента по идентификатору.
func (s *Service) GetClient(ctx context.Context, id int64) (*model.Client, error) {
	return s.repo.GetClient(ctx, id)
}

// ListClients возвращает всех клиентов.
func (s *Service) ListClients(ctx context.Context) ([]model.Client, error) {
	return s.repo.ListClients(ctx)
}

// CreateParking регистрирует парковку; все места изначально свободны.
func (s *Service) CreateParking(ctx context.Context, p *model.Parking) error {
	if p.TotalPlaces < 0 {
		return ErrInvalidPlaces
	}
	p.AvailablePlaces = p.TotalPlaces
	return s.repo.CreateParking(ctx, p)
}

// GetParking возвращает парковку по идентификатору.
func (s *Service) GetParking(ctx context.Context, id int64) (*model.Parking, error) {
	return s.repo.GetParking(ctx, id)
}

// ListParkings возвращает все парковки.
func (s *Service) ListParkings(ctx context.Context) ([]model.Parking, error) {
	return s.repo.ListParkings(ctx)
}

// Enter регистрирует въезд клиента на парковку и занимает одно место.
// Существующая закрытая сессия пары переиспользуется: время въезда перезаписывается.
func (s *Service) Enter(ctx context.Context, clientID, parkingID int64) error {
	err := s.repo.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if _, err := tx.GetClient(ctx, clientID); err != nil {
			return err
		}

		parking, err := tx.LockParking(ctx, parkingID)
		if err != nil {
			return err
		}

		if !parking.Opened {
			return ErrParkingClosed
		}
		if parking.AvailablePlaces <= 0 {
			return ErrNoAvailablePlaces
		}

		now := s.now()

		session, err := tx.LockSession(ctx, clientID, parkingID)
		switch {
		case errors.Is(err, repository.ErrSessionNotFound):
			session = &model.ParkingSession{
				ClientID:  clientID,
				ParkingID: parkingID,
				TimeIn:    now,
			}
			if err := tx.CreateSession(ctx, session); err != nil {
				return err
			}
		case err != nil:
			return err
		case session.IsOpen():
			return ErrAlreadyParked
		default:
			session.TimeIn = now
			session.TimeOut = nil
			if err := tx.UpdateSession(ctx, session); err != nil {
				return err
			}
		}

		return tx.SetAvailablePlaces(ctx, parkingID, parking.AvailablePlaces-1)
	})
	if err != nil {
		return err
	}

	s.logger.Info("client entered parking",
		zap.Int64("clientID", clientID),
		zap.Int64("parkingID", parkingID),
	)
	return nil
}

// Exit регистрирует выезд клиента, освобождает место и возвращает длительность стоянки в минутах,
// округлённую до сотых.
func (s *Service) Exit(ctx context.Context, clientID, parkingID int64) (float64, error) {
	var duration time.Duration

	err := s.repo.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		parking, err := tx.LockParking(ctx, parkingID)
		if err != nil {
			if errors.Is(err, repository.ErrParkingNotFound) {
				return repository.ErrSessionNotFound
			}
			return err
		}

		session, err := tx.LockSession(ctx, clientID, parkingID)
		if err != nil {
			return err
		}

		if !session.IsOpen() {
			return ErrAlreadyExited
		}

		client, err := tx.GetClient(ctx, session.ClientID)
		if err != nil {
			return err
		}
		if !client.HasCreditCard() {
			return ErrNoCreditCard
		}

		timeOut := s.now()
		session.TimeOut = &timeOut
		if err := tx.UpdateSession(ctx, session); err != nil {
			return err
		}

		available := parking.AvailablePlaces + 1
		if available > parking.TotalPlaces {
			available = parking.TotalPlaces
		}
		if err := tx.SetAvailablePlaces(ctx, parkingID, available); err != nil {
			return err
		}

		duration = timeOut.Sub(session.TimeIn)
		return nil
	})
	if err != nil {
		return 0, err
	}

	minutes := durationMinutes(duration)
	s.logger.Info("client left parking",
		zap.Int64("clientID", clientID),
		zap.Int64("parkingID", parkingID),
		zap.Float64("durationMinutes", minutes),
	)
	return minutes, nil
}

func durationMinutes(d time.Duration) float64 {
	if d < 0 {
		d = 0
	}
	return math.Round(d.Minutes()*100) / 100
}
