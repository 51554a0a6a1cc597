// Package model содержит доменные сущности сервиса парковок.
package model

import "time"

// Client представляет зарегистрированного клиента парковки.
type Client struct {
	ID         int64
	Name       string
	Surname    string
	CreditCard *string
	CarNumber  *string
}

// HasCreditCard сообщает, привязана ли к клиенту банковская карта.
func (c *Client) HasCreditCard() bool {
	return c.CreditCard != nil && *c.CreditCard != ""
}

// Parking описывает парковку и счётчик свободных мест.
type Parking struct {
	ID              int64
	Address         string
	Opened          bool
	TotalPlaces     int
	AvailablePlaces int
}

// ParkingSession описывает связь клиента с парковкой.
// Для пары (клиент, парковка) существует не более одной записи: повторный въезд
// переиспользует её и перезаписывает TimeIn.
type ParkingSession struct {
	ID        int64
	ClientID  int64
	ParkingID int64
	TimeIn    time.Time
	TimeOut   *time.Time
}

// IsOpen сообщает, находится ли клиент на парковке в данный момент.
func (s *ParkingSession) IsOpen() bool {
	return s.TimeOut == nil
}
