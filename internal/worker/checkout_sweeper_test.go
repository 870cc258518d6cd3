package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockOrderExpirer はOrderExpirerのモック
type MockOrderExpirer struct {
	mock.Mock
}

func (m *MockOrderExpirer) CancelExpiredOrders(ctx context.Context, batchSize int) (int, error) {
	args := m.Called(ctx, batchSize)
	return args.Int(0), args.Error(1)
}

// MockHoldPurger はHoldPurgerのモック
type MockHoldPurger struct {
	mock.Mock
}

func (m *MockHoldPurger) PurgeStaleHolds(ctx context.Context, retention time.Duration) (int, error) {
	args := m.Called(ctx, retention)
	return args.Int(0), args.Error(1)
}

func TestNewCheckoutSweeper(t *testing.T) {
	s := NewCheckoutSweeper(new(MockOrderExpirer), new(MockHoldPurger), time.Minute, 0, 24*time.Hour)

	assert.NotNil(t, s)
	assert.Equal(t, time.Minute, s.interval)
	assert.Equal(t, 100, s.batchSize)
	assert.Equal(t, 24*time.Hour, s.holdRetention)
	assert.NotNil(t, s.stopCh)
	assert.NotNil(t, s.doneCh)
}

func TestCheckoutSweeper_Sweep(t *testing.T) {
	t.Run("バッチが埋まる間は続けてキャンセルする", func(t *testing.T) {
		orders := new(MockOrderExpirer)
		orders.On("CancelExpiredOrders", mock.Anything, 2).Return(2, nil).Twice()
		orders.On("CancelExpiredOrders", mock.Anything, 2).Return(1, nil).Once()
		holds := new(MockHoldPurger)
		holds.On("PurgeStaleHolds", mock.Anything, time.Hour).Return(3, nil).Once()

		NewCheckoutSweeper(orders, holds, time.Minute, 2, time.Hour).sweep(context.Background())

		orders.AssertExpectations(t)
		orders.AssertNumberOfCalls(t, "CancelExpiredOrders", 3)
		holds.AssertExpectations(t)
	})

	t.Run("バッチ数の上限で止める", func(t *testing.T) {
		orders := new(MockOrderExpirer)
		orders.On("CancelExpiredOrders", mock.Anything, 1).Return(1, nil)

		NewCheckoutSweeper(orders, nil, time.Minute, 1, time.Hour).sweep(context.Background())

		orders.AssertNumberOfCalls(t, "CancelExpiredOrders", maxBatchesPerSweep)
	})

	t.Run("注文のエラーでも保留の削除は行う", func(t *testing.T) {
		orders := new(MockOrderExpirer)
		orders.On("CancelExpiredOrders", mock.Anything, 100).Return(0, assert.AnError).Once()
		holds := new(MockHoldPurger)
		holds.On("PurgeStaleHolds", mock.Anything, time.Hour).Return(0, assert.AnError).Once()

		// パニックしないことを確認
		NewCheckoutSweeper(orders, holds, time.Minute, 100, time.Hour).sweep(context.Background())

		orders.AssertExpectations(t)
		holds.AssertExpectations(t)
	})
}

func TestCheckoutSweeper_StartStop(t *testing.T) {
	t.Run("開始と停止が正常に動作する", func(t *testing.T) {
		orders := new(MockOrderExpirer)
		orders.On("CancelExpiredOrders", mock.Anything, mock.Anything).Return(0, nil).Maybe()
		holds := new(MockHoldPurger)
		holds.On("PurgeStaleHolds", mock.Anything, mock.Anything).Return(0, nil).Maybe()

		s := NewCheckoutSweeper(orders, holds, 50*time.Millisecond, 10, time.Hour)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		go s.Start(ctx)
		time.Sleep(120 * time.Millisecond)
		s.Stop()

		select {
		case <-s.doneCh:
		case <-time.After(1 * time.Second):
			t.Error("sweeper did not stop in time")
		}
	})

	t.Run("コンテキストキャンセルで停止する", func(t *testing.T) {
		orders := new(MockOrderExpirer)
		orders.On("CancelExpiredOrders", mock.Anything, mock.Anything).Return(0, nil).Maybe()

		s := NewCheckoutSweeper(orders, nil, 50*time.Millisecond, 10, time.Hour)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			s.Start(ctx)
			close(done)
		}()

		time.Sleep(80 * time.Millisecond)
		cancel()

		select {
		case <-done:
		case <-time.After(1 * time.Second):
			t.Error("sweeper did not stop after context cancel")
		}
	})
}
