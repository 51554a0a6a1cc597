package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/mmeshcher/parking-system/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var retryDelays = []time.Duration{50 * time.Millisecond, 150 * time.Millisecond, 300 * time.Millisecond}

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// withRetry повторяет fn при конфликтах сериализации, дедлоках и обрывах соединения.
func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	var err error

	for i := 0; i <= len(retryDelays); i++ {
		err = fn()
		if err == nil {
			return nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		if !isRetryable(err) || i == len(retryDelays) {
			break
		}

		timer := time.NewTimer(retryDelays[i])
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected
	}
	return isConnectionError(err)
}

func isConnectionError(err error) bool {
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

func hasCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// InTx выполняет fn в транзакции READ COMMITTED. Конкурентные въезды и выезды
// сериализуются блокировкой строки парковки внутри fn.
func (r *PostgresRepository) InTx(ctx context.Context, fn TxFunc) error {
	return r.withRetry(ctx, func() error {
		tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		if err := fn(ctx, &pgTx{tx: tx}); err != nil {
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
}

// CreateClient сохраняет клиента и заполняет его идентификатор.
func (r *PostgresRepository) CreateClient(ctx context.Context, c *model.Client) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO client (name, surname, credit_card, car_number) VALUES ($1, $2, $3, $4) RETURNING id`,
		c.Name, c.Surname, c.CreditCard, c.CarNumber,
	).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}
	return nil
}

// GetClient возвращает клиента по идентификатору.
func (r *PostgresRepository) GetClient(ctx context.Context, id int64) (*model.Client, error) {
	return getClient(ctx, r.pool, id)
}

// ListClients возвращает всех клиентов в порядке регистрации.
func (r *PostgresRepository) ListClients(ctx context.Context) ([]model.Client, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, surname, credit_card, car_number FROM client ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("select clients: %w", err)
	}
	defer rows.Close()

	var clients []model.Client
	for rows.Next() {
		var c model.Client
		if err := rows.Scan(&c.ID, &c.Name, &c.Surname, &c.CreditCard, &c.CarNumber); err != nil {
			return nil, fmt.Errorf("scan client: %w", err)
		}
		clients = append(clients, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return clients, nil
}

// CreateParking сохраняет парковку и заполняет её идентификатор.
func (r *PostgresRepository) CreateParking(ctx context.Context, p *model.Parking) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO parking (address, opened, count_places, count_available_places)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		p.Address, p.Opened, p.TotalPlaces, p.AvailablePlaces,
	).Scan(&p.ID)
	if err != nil {
		if hasCode(err, pgerrcode.CheckViolation) {
			return ErrPlacesOutOfRange
		}
		return fmt.Errorf("create parking: %w", err)
	}
	return nil
}

// GetParking возвращает парковку по идентификатору без блокировки.
func (r *PostgresRepository) GetParking(ctx context.Context, id int64) (*model.Parking, error) {
	return getParking(ctx, r.pool, id, false)
}

// ListParkings возвращает все парковки.
func (r *PostgresRepository) ListParkings(ctx context.Context) ([]model.Parking, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, address, opened, count_places, count_available_places FROM parking ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("select parkings: %w", err)
	}
	defer rows.Close()

	var parkings []model.Parking
	for rows.Next() {
		var p model.Parking
		if err := rows.Scan(&p.ID, &p.Address, &p.Opened, &p.TotalPlaces, &p.AvailablePlaces); err != nil {
			return nil, fmt.Errorf("scan parking: %w", err)
		}
		parkings = append(parkings, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return parkings, nil
}

// querier покрывает общую часть *pgxpool.Pool и pgx.Tx.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func getClient(ctx context.Context, q querier, id int64) (*model.Client, error) {
	var c model.Client
	err := q.QueryRow(ctx,
		`SELECT id, name, surname, credit_card, car_number FROM client WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.Name, &c.Surname, &c.CreditCard, &c.CarNumber)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrClientNotFound
		}
		return nil, fmt.Errorf("get client: %w", err)
	}
	return &c, nil
}

func getParking(ctx context.Context, q querier, id int64, forUpdate bool) (*model.Parking, error) {
	query := `SELECT id, address, opened, count_places, count_available_places FROM parking WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var p model.Parking
	err := q.QueryRow(ctx, query, id).Scan(&p.ID, &p.Address, &p.Opened, &p.TotalPlaces, &p.AvailablePlaces)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrParkingNotFound
		}
		return nil, fmt.Errorf("get parking: %w", err)
	}
	return &p, nil
}

// pgTx реализует Tx поверх транзакции pgx.
type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) GetClient(ctx context.Context, id int64) (*model.Client, error) {
	return getClient(ctx, t.tx, id)
}

func (t *pgTx) LockParking(ctx context.Context, id int64) (*model.Parking, error) {
	return getParking(ctx, t.tx, id, true)
}

func (t *pgTx) LockSession(ctx context.Context, clientID, parkingID int64) (*model.ParkingSession, error) {
	var s model.ParkingSession
	err := t.tx.QueryRow(ctx,
		`SELECT id, client_id, parking_id, time_in, time_out
		 FROM client_parking
		 WHERE client_id = $1 AND parking_id = $2
		 FOR UPDATE`,
		clientID, parkingID,
	).Scan(&s.ID, &s.ClientID, &s.ParkingID, &s.TimeIn, &s.TimeOut)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("lock session: %w", err)
	}
	return &s, nil
}

func (t *pgTx) CreateSession(ctx context.Context, s *model.ParkingSession) error {
	err := t.tx.QueryRow(ctx,
		`INSERT INTO client_parking (client_id, parking_id, time_in, time_out) VALUES ($1, $2, $3, $4) RETURNING id`,
		s.ClientID, s.ParkingID, s.TimeIn, s.TimeOut,
	).Scan(&s.ID)
	if err != nil {
		if hasCode(err, pgerrcode.UniqueViolation) {
			return ErrSessionExists
		}
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (t *pgTx) UpdateSession(ctx context.Context, s *model.ParkingSession) error {
	cmdTag, err := t.tx.Exec(ctx,
		`UPDATE client_parking SET time_in = $2, time_out = $3 WHERE id = $1`,
		s.ID, s.TimeIn, s.TimeOut,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (t *pgTx) SetAvailablePlaces(ctx context.Context, parkingID int64, available int) error {
	cmdTag, err := t.tx.Exec(ctx,
		`UPDATE parking SET count_available_places = $2 WHERE id = $1`,
		parkingID, available,
	)
	if err != nil {
		if hasCode(err, pgerrcode.CheckViolation) {
			return ErrPlacesOutOfRange
		}
		return fmt.Errorf("update available places: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrParkingNotFound
	}
	return nil
}
