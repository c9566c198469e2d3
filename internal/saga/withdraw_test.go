package saga

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"saldo/internal/model"
)

func TestWithdraw_Success(t *testing.T) {
	env := newTestEnv()
	env.users.add("u1", "u1@example.com")
	env.balances.set("u1", 100)

	res, err := env.coord.Withdraw(context.Background(), model.WithdrawRequest{UserID: "u1", Amount: 40})
	if err != nil {
		t.Fatalf("Withdraw: %v", err)
	}
	if res.Balance.TotalAmount != 60 {
		t.Errorf("balance = %d, want 60", res.Balance.TotalAmount)
	}
	if res.Balance.LastWithdrawAmount == nil || *res.Balance.LastWithdrawAmount != 40 {
		t.Errorf("last withdraw marker = %v, want 40", res.Balance.LastWithdrawAmount)
	}
	if env.withdraws.count() != 1 {
		t.Errorf("withdraw rows = %d, want 1", env.withdraws.count())
	}
	events := env.bus.events()
	if len(events) != 1 || events[0].topic != model.TopicWithdrawCompleted {
		t.Fatalf("events = %+v, want one on %s", events, model.TopicWithdrawCompleted)
	}
}

func TestWithdraw_ExactToZero(t *testing.T) {
	env := newTestEnv()
	env.users.add("u1", "u1@example.com")
	env.balances.set("u1", 100)

	res, err := env.coord.Withdraw(context.Background(), model.WithdrawRequest{UserID: "u1", Amount: 100})
	if err != nil {
		t.Fatalf("Withdraw to zero: %v", err)
	}
	if res.Balance.TotalAmount != 0 {
		t.Errorf("balance = %d, want 0", res.Balance.TotalAmount)
	}
}

func TestWithdraw_InsufficientFunds(t *testing.T) {
	env := newTestEnv()
	env.users.add("u1", "u1@example.com")
	env.balances.set("u1", 100)

	_, err := env.coord.Withdraw(context.Background(), model.WithdrawRequest{UserID: "u1", Amount: 150})
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("err = %v, want ErrInsufficientFunds", err)
	}
	if got := env.balances.total("u1"); got != 100 {
		t.Errorf("balance = %d, want untouched 100", got)
	}
	if env.withdraws.count() != 0 {
		t.Errorf("withdraw rows = %d, want 0", env.withdraws.count())
	}
}

func TestWithdraw_Validation(t *testing.T) {
	env := newTestEnv()

	if _, err := env.coord.Withdraw(context.Background(), model.WithdrawRequest{UserID: "u1", Amount: 0}); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("zero amount: err = %v, want ErrInvalidAmount", err)
	}
	if _, err := env.coord.Withdraw(context.Background(), model.WithdrawRequest{UserID: "ghost", Amount: 10}); !errors.Is(err, ErrBalanceNotFound) {
		t.Errorf("no balance: err = %v, want ErrBalanceNotFound", err)
	}
}

func TestWithdraw_RaceLossNeedsNoCompensation(t *testing.T) {
	env := newTestEnv()
	env.users.add("u1", "u1@example.com")
	env.balances.set("u1", 100)

	// Advisory check passes on 100, then a concurrent debit wins the race
	// and the conditional update rejects.
	env.balances.applyDeltaHook = func(string, int64) error { return ErrInsufficientFunds }

	_, err := env.coord.Withdraw(context.Background(), model.WithdrawRequest{UserID: "u1", Amount: 40})
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("err = %v, want ErrInsufficientFunds", err)
	}
	if len(env.balances.compKeys) != 0 {
		t.Errorf("compensation ran for a debit that never applied: %v", env.balances.compKeys)
	}
	if env.withdraws.count() != 0 {
		t.Errorf("withdraw rows = %d, want 0", env.withdraws.count())
	}
}

func TestWithdraw_CompensatesWhenRecordFails(t *testing.T) {
	env := newTestEnv()
	env.users.add("u1", "u1@example.com")
	env.balances.set("u1", 100)

	cause := fmt.Errorf("pg down")
	env.withdraws.createErr = cause

	_, err := env.coord.Withdraw(context.Background(), model.WithdrawRequest{UserID: "u1", Amount: 40})
	if !errors.Is(err, cause) {
		t.Fatalf("err = %v, want wrapped %v", err, cause)
	}
	var inc *InconsistentError
	if errors.As(err, &inc) {
		t.Fatalf("compensation succeeded, err must not be InconsistentError: %v", err)
	}
	if got := env.balances.total("u1"); got != 100 {
		t.Errorf("balance = %d, want restored 100", got)
	}
	if len(env.balances.compKeys) != 1 {
		t.Errorf("compensation keys = %v, want exactly one", env.balances.compKeys)
	}
	if len(env.bus.events()) != 0 {
		t.Errorf("no event may be emitted for a compensated saga")
	}
}

func TestWithdraw_InconsistentWhenCompensationFails(t *testing.T) {
	env := newTestEnv()
	env.users.add("u1", "u1@example.com")
	env.balances.set("u1", 100)

	env.withdraws.createErr = fmt.Errorf("pg down")
	env.balances.compensateHook = func(string, string) error { return fmt.Errorf("pg still down") }

	_, err := env.coord.Withdraw(context.Background(), model.WithdrawRequest{UserID: "u1", Amount: 40})
	var inc *InconsistentError
	if !errors.As(err, &inc) {
		t.Fatalf("err = %v, want InconsistentError", err)
	}
	if inc.Saga != "withdraw" {
		t.Errorf("saga = %q, want withdraw", inc.Saga)
	}
}

func TestWithdraw_ConcurrentDrain(t *testing.T) {
	const (
		workers = 5
		amount  = 25
	)
	env := newTestEnv()
	env.users.add("u1", "u1@example.com")
	env.balances.set("u1", (workers-1)*amount)

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.coord.Withdraw(context.Background(), model.WithdrawRequest{UserID: "u1", Amount: amount})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok, insufficient int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrInsufficientFunds):
			insufficient++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if ok != workers-1 || insufficient != 1 {
		t.Errorf("ok = %d, insufficient = %d, want %d and 1", ok, insufficient, workers-1)
	}
	if got := env.balances.total("u1"); got != 0 {
		t.Errorf("final balance = %d, want 0", got)
	}
	if env.withdraws.count() != workers-1 {
		t.Errorf("withdraw rows = %d, want %d", env.withdraws.count(), workers-1)
	}
}
