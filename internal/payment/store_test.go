package payment

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openSQLite(t *testing.T) *SQLStore {
	t.Helper()
	s, err := OpenSQLStore(context.Background(), DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStores(t *testing.T) {
	stores := map[string]func(t *testing.T) Store{
		"memory": func(*testing.T) Store { return NewMemoryStore() },
		"sqlite": func(t *testing.T) Store { return openSQLite(t) },
	}

	for name, open := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open(t)

			items, err := s.List(ctx)
			require.NoError(t, err)
			assert.Empty(t, items)

			first := sampleDetail(0)
			require.NoError(t, s.Create(ctx, &first))
			assert.Equal(t, 1, first.PaymentDetailID)

			explicit := sampleDetail(10)
			require.NoError(t, s.Create(ctx, &explicit))
			assert.ErrorIs(t, s.Create(ctx, ptr(sampleDetail(10))), ErrConflict)

			second := sampleDetail(0)
			require.NoError(t, s.Create(ctx, &second))
			assert.NotContains(t, []int{0, 1, 10}, second.PaymentDetailID)

			items, err = s.List(ctx)
			require.NoError(t, err)
			require.Len(t, items, 3)
			for i := 1; i < len(items); i++ {
				assert.Less(t, items[i-1].PaymentDetailID, items[i].PaymentDetailID)
			}

			got, err := s.Get(ctx, 10)
			require.NoError(t, err)
			assert.Equal(t, sampleDetail(10), got)

			_, err = s.Get(ctx, 99)
			assert.ErrorIs(t, err, ErrNotFound)

			changed := sampleDetail(10)
			changed.SecurityCode = "999"
			require.NoError(t, s.Update(ctx, changed))
			got, err = s.Get(ctx, 10)
			require.NoError(t, err)
			assert.Equal(t, "999", got.SecurityCode)
			assert.ErrorIs(t, s.Update(ctx, sampleDetail(99)), ErrNotFound)

			require.NoError(t, s.Delete(ctx, 10))
			assert.ErrorIs(t, s.Delete(ctx, 10), ErrNotFound)
			_, err = s.Get(ctx, 10)
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestSQLStore_ConcurrentExplicitIDConflicts(t *testing.T) {
	s := openSQLite(t)
	ctx := context.Background()

	const writers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		ok        int
		conflicts int
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.Create(ctx, ptr(sampleDetail(5)))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, ErrConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, writers-1, conflicts)
}

func TestSQLStore_AutoIDAfterExplicitID(t *testing.T) {
	stores := map[string]func(t *testing.T) *SQLStore{"sqlite": openSQLite}
	if dsn := os.Getenv("PAYMENTAPI_TEST_POSTGRES_DSN"); dsn != "" {
		stores["postgres"] = func(t *testing.T) *SQLStore {
			s, err := OpenSQLStore(context.Background(), DriverPostgres, dsn)
			require.NoError(t, err)
			t.Cleanup(func() { _ = s.Close() })
			_, err = s.db.Exec(`TRUNCATE payment_details RESTART IDENTITY`)
			require.NoError(t, err)
			return s
		}
	}

	for name, open := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open(t)

			require.NoError(t, s.Create(ctx, ptr(sampleDetail(1))))
			require.NoError(t, s.Create(ctx, ptr(sampleDetail(2))))

			auto := sampleDetail(0)
			require.NoError(t, s.Create(ctx, &auto))
			assert.Equal(t, 3, auto.PaymentDetailID)
		})
	}
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(fmt.Errorf("insert: %w", &pq.Error{Code: "23505"})))
	assert.False(t, isUniqueViolation(&pq.Error{Code: "23502"}))
	assert.False(t, isUniqueViolation(errors.New("unique constraint")))
}

func TestOpenSQLStore_UnknownDriver(t *testing.T) {
	_, err := OpenSQLStore(context.Background(), "oracle", "x")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*PaymentDetail)
		ok     bool
	}{
		{"valid", func(*PaymentDetail) {}, true},
		{"negative id", func(d *PaymentDetail) { d.PaymentDetailID = -1 }, false},
		{"missing owner", func(d *PaymentDetail) { d.CardOwnerName = "" }, false},
		{"owner too long", func(d *PaymentDetail) { d.CardOwnerName = strings.Repeat("x", 101) }, false},
		{"short card", func(d *PaymentDetail) { d.CardNumber = "411111111111111" }, false},
		{"letters in card", func(d *PaymentDetail) { d.CardNumber = "41111111111111ab" }, false},
		{"non-ascii digits in card", func(d *PaymentDetail) { d.CardNumber = strings.Repeat("\u0663", 8) }, false},
		{"non-ascii digits in cvv", func(d *PaymentDetail) { d.SecurityCode = "1\u0663" }, false},
		{"long cvv", func(d *PaymentDetail) { d.SecurityCode = "1234" }, false},
		{"zero expiry", func(d *PaymentDetail) { d.ExpirationDate = time.Time{} }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := sampleDetail(1)
			tt.mutate(&d)
			err := d.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalid)
			}
		})
	}
}
