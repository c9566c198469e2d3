package saga

import (
	"context"
	"fmt"
	"sync"
	"time"

	"saldo/internal/model"
)

// In-memory stores with the same conditional semantics the pgx repositories
// enforce, so the compensation paths can be driven without a database.

type fakeUsers struct {
	mu    sync.Mutex
	users map[string]*model.User
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{users: make(map[string]*model.User)}
}

func (f *fakeUsers) add(id, email string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[id] = &model.User{UserID: id, Email: email, CreatedAt: time.Now()}
}

func (f *fakeUsers) Create(ctx context.Context, email, firstname, lastname string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := fmt.Sprintf("user-%d", len(f.users)+1)
	u := &model.User{UserID: id, Email: email, Firstname: firstname, Lastname: lastname, CreatedAt: time.Now()}
	f.users[id] = u
	return u, nil
}

func (f *fakeUsers) GetByID(ctx context.Context, userID string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

type fakeBalances struct {
	mu       sync.Mutex
	balances map[string]*model.Balance
	compKeys map[string]int

	// Hooks run before the real logic; a non-nil error short-circuits.
	applyDeltaHook func(userID string, delta int64) error
	createHook     func(userID string) error
	compensateHook func(key, userID string) error
}

func newFakeBalances() *fakeBalances {
	return &fakeBalances{
		balances: make(map[string]*model.Balance),
		compKeys: make(map[string]int),
	}
}

func (f *fakeBalances) set(userID string, amount int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balances[userID] = &model.Balance{
		BalanceID:   "bal-" + userID,
		UserID:      userID,
		TotalAmount: amount,
		UpdatedAt:   time.Now(),
	}
}

func (f *fakeBalances) total(userID string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.balances[userID]
	if !ok {
		return -1
	}
	return b.TotalAmount
}

func (f *fakeBalances) GetByUserID(ctx context.Context, userID string) (*model.Balance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.balances[userID]
	if !ok {
		return nil, ErrBalanceNotFound
	}
	cp := *b
	return &cp, nil
}

func (f *fakeBalances) Create(ctx context.Context, userID string, initial int64) (*model.Balance, error) {
	if f.createHook != nil {
		if err := f.createHook(userID); err != nil {
			return nil, err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.balances[userID]; ok {
		return nil, ErrBalanceExists
	}
	b := &model.Balance{BalanceID: "bal-" + userID, UserID: userID, TotalAmount: initial, UpdatedAt: time.Now()}
	f.balances[userID] = b
	cp := *b
	return &cp, nil
}

func (f *fakeBalances) apply(userID string, delta int64) (*model.Balance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.balances[userID]
	if !ok {
		return nil, ErrBalanceNotFound
	}
	if b.TotalAmount+delta < 0 {
		return nil, ErrInsufficientFunds
	}
	b.TotalAmount += delta
	b.UpdatedAt = time.Now()
	cp := *b
	return &cp, nil
}

func (f *fakeBalances) ApplyDelta(ctx context.Context, userID string, delta int64) (*model.Balance, error) {
	if f.applyDeltaHook != nil {
		if err := f.applyDeltaHook(userID, delta); err != nil {
			return nil, err
		}
	}
	return f.apply(userID, delta)
}

func (f *fakeBalances) ApplyWithdraw(ctx context.Context, userID string, amount int64, at time.Time) (*model.Balance, error) {
	if f.applyDeltaHook != nil {
		if err := f.applyDeltaHook(userID, -amount); err != nil {
			return nil, err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.balances[userID]
	if !ok {
		return nil, ErrBalanceNotFound
	}
	if b.TotalAmount < amount {
		return nil, ErrInsufficientFunds
	}
	b.TotalAmount -= amount
	b.LastWithdrawAmount = &amount
	b.LastWithdrawTime = &at
	b.UpdatedAt = time.Now()
	cp := *b
	return &cp, nil
}

func (f *fakeBalances) CompensateDelta(ctx context.Context, key, userID string, delta int64) (*model.Balance, error) {
	if f.compensateHook != nil {
		if err := f.compensateHook(key, userID); err != nil {
			return nil, err
		}
	}
	f.mu.Lock()
	seen := f.compKeys[key] > 0
	f.compKeys[key]++
	f.mu.Unlock()
	if seen {
		return f.GetByUserID(ctx, userID)
	}
	return f.apply(userID, delta)
}

type fakeTopups struct {
	mu     sync.Mutex
	topups map[string]*model.Topup

	createErr error
	deleteErr error
}

func newFakeTopups() *fakeTopups {
	return &fakeTopups{topups: make(map[string]*model.Topup)}
}

func (f *fakeTopups) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.topups)
}

func (f *fakeTopups) Create(ctx context.Context, userID string, amount int64, method string) (*model.Topup, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &model.Topup{
		TopupID:     fmt.Sprintf("topup-%d", len(f.topups)+1),
		UserID:      userID,
		Amount:      amount,
		Method:      method,
		RequestedAt: time.Now(),
	}
	f.topups[t.TopupID] = t
	return t, nil
}

func (f *fakeTopups) GetByID(ctx context.Context, topupID string) (*model.Topup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.topups[topupID]
	if !ok {
		return nil, ErrTopupNotFound
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTopups) Delete(ctx context.Context, topupID string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.topups, topupID)
	return nil
}

type fakeWithdraws struct {
	mu        sync.Mutex
	withdraws []*model.Withdraw

	createErr error
}

func newFakeWithdraws() *fakeWithdraws { return &fakeWithdraws{} }

func (f *fakeWithdraws) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.withdraws)
}

func (f *fakeWithdraws) Create(ctx context.Context, userID string, amount int64, at time.Time) (*model.Withdraw, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	w := &model.Withdraw{
		WithdrawID:  fmt.Sprintf("withdraw-%d", len(f.withdraws)+1),
		UserID:      userID,
		Amount:      amount,
		RequestedAt: at,
	}
	f.withdraws = append(f.withdraws, w)
	return w, nil
}

type fakeTransfers struct {
	mu        sync.Mutex
	transfers map[string]*model.Transfer
	seq       int

	createErr error
	updateErr error
	deleteErr error
}

func newFakeTransfers() *fakeTransfers {
	return &fakeTransfers{transfers: make(map[string]*model.Transfer)}
}

func (f *fakeTransfers) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.transfers)
}

func (f *fakeTransfers) Create(ctx context.Context, fromUserID, toUserID string, amount int64) (*model.Transfer, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	t := &model.Transfer{
		TransferID:  fmt.Sprintf("transfer-%d", f.seq),
		FromUserID:  fromUserID,
		ToUserID:    toUserID,
		Amount:      amount,
		RequestedAt: time.Now(),
	}
	f.transfers[t.TransferID] = t
	return t, nil
}

func (f *fakeTransfers) GetByID(ctx context.Context, transferID string) (*model.Transfer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.transfers[transferID]
	if !ok {
		return nil, ErrTransferNotFound
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTransfers) UpdateAmount(ctx context.Context, transferID string, amount int64) (*model.Transfer, error) {
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.transfers[transferID]
	if !ok {
		return nil, ErrTransferNotFound
	}
	t.Amount = amount
	cp := *t
	return &cp, nil
}

func (f *fakeTransfers) Delete(ctx context.Context, transferID string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.transfers, transferID)
	return nil
}

type fakeBus struct {
	mu        sync.Mutex
	published []publishedMsg
	failFirst int
	calls     int
}

type publishedMsg struct {
	topic string
	data  []byte
}

func (f *fakeBus) Publish(topic string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failFirst {
		return fmt.Errorf("bus unavailable")
	}
	f.published = append(f.published, publishedMsg{topic: topic, data: data})
	return nil
}

func (f *fakeBus) events() []publishedMsg {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]publishedMsg(nil), f.published...)
}

type testEnv struct {
	users     *fakeUsers
	balances  *fakeBalances
	topups    *fakeTopups
	withdraws *fakeWithdraws
	transfers *fakeTransfers
	bus       *fakeBus
	coord     *Coordinator
}

func newTestEnv() *testEnv {
	env := &testEnv{
		users:     newFakeUsers(),
		balances:  newFakeBalances(),
		topups:    newFakeTopups(),
		withdraws: newFakeWithdraws(),
		transfers: newFakeTransfers(),
		bus:       &fakeBus{},
	}
	stores := Stores{
		Users:     env.users,
		Balances:  env.balances,
		Topups:    env.topups,
		Withdraws: env.withdraws,
		Transfers: env.transfers,
	}
	env.coord = NewCoordinator(stores, NewEmitter(env.bus, 1), 50000)
	return env
}
