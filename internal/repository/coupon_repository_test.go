package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/event-coupon-ledger/internal/model"
	"github.com/fairyhunter13/event-coupon-ledger/internal/service"
)

// mockRow implements pgx.Row for testing.
type mockRow struct {
	scanFn func(dest ...any) error
}

func (m *mockRow) Scan(dest ...any) error {
	if m.scanFn != nil {
		return m.scanFn(dest...)
	}
	return nil
}

// mockPool implements PoolInterface for testing.
type mockPool struct {
	execFn     func(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	queryRowFn func(ctx context.Context, sql string, args ...any) pgx.Row
}

func (m *mockPool) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	if m.execFn != nil {
		return m.execFn(ctx, sql, arguments...)
	}
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

func (m *mockPool) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if m.queryRowFn != nil {
		return m.queryRowFn(ctx, sql, args...)
	}
	return &mockRow{}
}

// mockTxQuerier implements database.TxQuerier for testing transaction methods.
type mockTxQuerier struct {
	execFn     func(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	queryRowFn func(ctx context.Context, sql string, args ...any) pgx.Row
	queryFn    func(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (m *mockTxQuerier) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	if m.execFn != nil {
		return m.execFn(ctx, sql, arguments...)
	}
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

func (m *mockTxQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if m.queryRowFn != nil {
		return m.queryRowFn(ctx, sql, args...)
	}
	return &mockRow{}
}

func (m *mockTxQuerier) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if m.queryFn != nil {
		return m.queryFn(ctx, sql, args...)
	}
	return nil, nil
}

// fillCoupon writes c into the Scan destinations in column order.
func fillCoupon(c model.Coupon) func(dest ...any) error {
	return func(dest ...any) error {
		*(dest[0].(*uuid.UUID)) = c.ID
		*(dest[1].(*string)) = c.Code
		*(dest[2].(*int)) = c.Discount
		*(dest[3].(*time.Time)) = c.ExpiresAt
		*(dest[4].(*int)) = c.MaxRedemptions
		*(dest[5].(*int)) = c.TimesRedeemed
		*(dest[6].(*bool)) = c.Active
		*(dest[7].(*time.Time)) = c.CreatedAt
		return nil
	}
}

func sampleCoupon() model.Coupon {
	return model.Coupon{
		ID:             uuid.New(),
		Code:           "SAVE10",
		Discount:       10,
		ExpiresAt:      time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		MaxRedemptions: 1,
		TimesRedeemed:  0,
		Active:         true,
		CreatedAt:      time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestCouponRepository_Insert_Success(t *testing.T) {
	var capturedSQL string
	var capturedArgs []any
	createdAt := time.Now().UTC()

	mock := &mockPool{
		queryRowFn: func(ctx context.Context, sql string, args ...any) pgx.Row {
			capturedSQL = sql
			capturedArgs = args
			return &mockRow{scanFn: func(dest ...any) error {
				*(dest[0].(*time.Time)) = createdAt
				return nil
			}}
		},
	}

	repo := NewCouponRepository(mock)
	c := sampleCoupon()
	c.CreatedAt = time.Time{}

	err := repo.Insert(context.Background(), &c)

	require.NoError(t, err)
	assert.Contains(t, capturedSQL, "INSERT INTO coupons")
	assert.Contains(t, capturedSQL, "RETURNING created_at")
	require.Len(t, capturedArgs, 5)
	assert.Equal(t, c.ID, capturedArgs[0])
	assert.Equal(t, "SAVE10", capturedArgs[1])
	assert.Equal(t, 10, capturedArgs[2])
	assert.Equal(t, c.ExpiresAt, capturedArgs[3])
	assert.Equal(t, 1, capturedArgs[4])
	assert.Equal(t, createdAt, c.CreatedAt, "created_at should be read back from the database")
}

func TestCouponRepository_Insert_DuplicateCode(t *testing.T) {
	mock := &mockPool{
		queryRowFn: func(ctx context.Context, sql string, args ...any) pgx.Row {
			return &mockRow{scanFn: func(dest ...any) error {
				return &pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"}
			}}
		},
	}

	repo := NewCouponRepository(mock)
	c := sampleCoupon()

	err := repo.Insert(context.Background(), &c)

	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrDuplicateCode), "should return ErrDuplicateCode for duplicate")
}

func TestCouponRepository_Insert_OtherPgError(t *testing.T) {
	mock := &mockPool{
		queryRowFn: func(ctx context.Context, sql string, args ...any) pgx.Row {
			return &mockRow{scanFn: func(dest ...any) error {
				return &pgconn.PgError{Code: "23514", Message: "check constraint violated"}
			}}
		},
	}

	repo := NewCouponRepository(mock)
	c := sampleCoupon()

	err := repo.Insert(context.Background(), &c)

	require.Error(t, err)
	assert.False(t, errors.Is(err, service.ErrDuplicateCode))
	assert.Contains(t, err.Error(), "insert coupon")
}

func TestCouponRepository_GetByCode_Success(t *testing.T) {
	expected := sampleCoupon()
	var capturedArgs []any
	mock := &mockPool{
		queryRowFn: func(ctx context.Context, sql string, args ...any) pgx.Row {
			capturedArgs = args
			assert.NotContains(t, sql, "FOR UPDATE")
			return &mockRow{scanFn: fillCoupon(expected)}
		},
	}

	repo := NewCouponRepository(mock)
	coupon, err := repo.GetByCode(context.Background(), "SAVE10")

	require.NoError(t, err)
	require.NotNil(t, coupon)
	assert.Equal(t, expected, *coupon)
	assert.Equal(t, "SAVE10", capturedArgs[0])
}

func TestCouponRepository_GetByCode_NotFound(t *testing.T) {
	mock := &mockPool{
		queryRowFn: func(ctx context.Context, sql string, args ...any) pgx.Row {
			return &mockRow{scanFn: func(dest ...any) error { return pgx.ErrNoRows }}
		},
	}

	repo := NewCouponRepository(mock)
	coupon, err := repo.GetByCode(context.Background(), "NONEXISTENT")

	require.NoError(t, err)
	assert.Nil(t, coupon, "Should return nil for not found")
}

func TestCouponRepository_GetByCode_DatabaseError(t *testing.T) {
	dbErr := errors.New("database connection failed")
	mock := &mockPool{
		queryRowFn: func(ctx context.Context, sql string, args ...any) pgx.Row {
			return &mockRow{scanFn: func(dest ...any) error { return dbErr }}
		},
	}

	repo := NewCouponRepository(mock)
	coupon, err := repo.GetByCode(context.Background(), "SAVE10")

	require.Error(t, err)
	assert.Nil(t, coupon)
	assert.Contains(t, err.Error(), "get coupon by code")
	assert.True(t, errors.Is(err, dbErr), "should wrap original error")
}

func TestCouponRepository_GetByCode_VerifiesParameterizedQuery(t *testing.T) {
	var capturedSQL string
	var capturedArgs []any
	mock := &mockPool{
		queryRowFn: func(ctx context.Context, sql string, args ...any) pgx.Row {
			capturedSQL = sql
			capturedArgs = args
			return &mockRow{scanFn: func(dest ...any) error { return pgx.ErrNoRows }}
		},
	}

	repo := NewCouponRepository(mock)
	_, _ = repo.GetByCode(context.Background(), "'; DROP TABLE coupons;--")

	assert.Contains(t, capturedSQL, "$1")
	assert.NotContains(t, capturedSQL, "DROP TABLE", "SQL injection should not appear in query")
	assert.Equal(t, "'; DROP TABLE coupons;--", capturedArgs[0], "Code should be passed as parameter")
}

func TestCouponRepository_GetCouponForUpdate_Success(t *testing.T) {
	expected := sampleCoupon()
	mockTx := &mockTxQuerier{
		queryRowFn: func(ctx context.Context, sql string, args ...any) pgx.Row {
			assert.Contains(t, sql, "FOR UPDATE", "Query must use FOR UPDATE for row locking")
			return &mockRow{scanFn: fillCoupon(expected)}
		},
	}

	repo := NewCouponRepository(&mockPool{})
	coupon, err := repo.GetCouponForUpdate(context.Background(), mockTx, "SAVE10")

	require.NoError(t, err)
	require.NotNil(t, coupon)
	assert.Equal(t, expected.ID, coupon.ID)
	assert.Equal(t, 1, coupon.MaxRedemptions)
}

func TestCouponRepository_GetCouponForUpdate_NotFound(t *testing.T) {
	mockTx := &mockTxQuerier{
		queryRowFn: func(ctx context.Context, sql string, args ...any) pgx.Row {
			return &mockRow{scanFn: func(dest ...any) error { return pgx.ErrNoRows }}
		},
	}

	repo := NewCouponRepository(&mockPool{})
	coupon, err := repo.GetCouponForUpdate(context.Background(), mockTx, "NONEXISTENT")

	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrNotFound), "should return ErrNotFound")
	assert.Nil(t, coupon)
}

func TestCouponRepository_GetCouponForUpdate_DatabaseError(t *testing.T) {
	dbErr := errors.New("database connection failed")
	mockTx := &mockTxQuerier{
		queryRowFn: func(ctx context.Context, sql string, args ...any) pgx.Row {
			return &mockRow{scanFn: func(dest ...any) error { return dbErr }}
		},
	}

	repo := NewCouponRepository(&mockPool{})
	coupon, err := repo.GetCouponForUpdate(context.Background(), mockTx, "SAVE10")

	require.Error(t, err)
	assert.Nil(t, coupon)
	assert.Contains(t, err.Error(), "get coupon for update")
	assert.True(t, errors.Is(err, dbErr))
}

func TestCouponRepository_IncrementRedemptions_Success(t *testing.T) {
	var capturedSQL string
	var capturedArgs []any
	mockTx := &mockTxQuerier{
		execFn: func(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
			capturedSQL = sql
			capturedArgs = arguments
			return pgconn.NewCommandTag("UPDATE 1"), nil
		},
	}

	id := uuid.New()
	repo := NewCouponRepository(&mockPool{})
	err := repo.IncrementRedemptions(context.Background(), mockTx, id)

	require.NoError(t, err)
	assert.Contains(t, capturedSQL, "times_redeemed = times_redeemed + 1")
	assert.Equal(t, id, capturedArgs[0])
}

func TestCouponRepository_IncrementRedemptions_NoRows(t *testing.T) {
	mockTx := &mockTxQuerier{
		execFn: func(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
			return pgconn.NewCommandTag("UPDATE 0"), nil
		},
	}

	repo := NewCouponRepository(&mockPool{})
	err := repo.IncrementRedemptions(context.Background(), mockTx, uuid.New())

	assert.True(t, errors.Is(err, service.ErrNotFound))
}

func TestCouponRepository_IncrementRedemptions_DatabaseError(t *testing.T) {
	dbErr := errors.New("deadlock detected")
	mockTx := &mockTxQuerier{
		execFn: func(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
			return pgconn.CommandTag{}, dbErr
		},
	}

	repo := NewCouponRepository(&mockPool{})
	err := repo.IncrementRedemptions(context.Background(), mockTx, uuid.New())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "increment redemptions")
	assert.True(t, errors.Is(err, dbErr))
}

func TestCouponRepository_Deactivate(t *testing.T) {
	tests := []struct {
		name    string
		tag     string
		execErr error
		wantErr error
	}{
		{name: "updated", tag: "UPDATE 1"},
		{name: "missing", tag: "UPDATE 0", wantErr: service.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var capturedSQL string
			mock := &mockPool{
				execFn: func(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
					capturedSQL = sql
					return pgconn.NewCommandTag(tt.tag), tt.execErr
				},
			}

			err := NewCouponRepository(mock).Deactivate(context.Background(), "SAVE10")

			assert.Contains(t, capturedSQL, "active = FALSE")
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestCouponRepository_Delete(t *testing.T) {
	var capturedSQL string
	mock := &mockPool{
		execFn: func(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
			capturedSQL = sql
			return pgconn.NewCommandTag("DELETE 1"), nil
		},
	}

	err := NewCouponRepository(mock).Delete(context.Background(), "SAVE10")

	require.NoError(t, err)
	assert.Contains(t, capturedSQL, "DELETE FROM coupons")
}

func TestCouponRepository_Delete_NotFound(t *testing.T) {
	mock := &mockPool{
		execFn: func(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
			return pgconn.NewCommandTag("DELETE 0"), nil
		},
	}

	err := NewCouponRepository(mock).Delete(context.Background(), "NONEXISTENT")

	assert.True(t, errors.Is(err, service.ErrNotFound))
}

func TestCouponRepository_Delete_DatabaseError(t *testing.T) {
	dbErr := errors.New("connection reset")
	mock := &mockPool{
		execFn: func(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
			return pgconn.CommandTag{}, dbErr
		},
	}

	err := NewCouponRepository(mock).Delete(context.Background(), "SAVE10")

	require.Error(t, err)
	assert.True(t, errors.Is(err, dbErr))
	assert.False(t, errors.Is(err, service.ErrNotFound))
}
