package vault

import (
	"errors"

	"stakevault/core/events"
	"stakevault/crypto"
)

var errMockInsufficient = errors.New("mock: insufficient balance")

// mockEngineState is the committed view; every Update works on a copy and
// replaces the committed view only on success.
type mockEngineState struct {
	vault    *StakeVault
	stakes   map[string]*UserStake
	balances map[string]uint64
	updates  int
}

func newMockEngineState() *mockEngineState {
	return &mockEngineState{
		stakes:   make(map[string]*UserStake),
		balances: make(map[string]uint64),
	}
}

func (m *mockEngineState) clone() *mockEngineState {
	out := newMockEngineState()
	out.vault = m.vault.Clone()
	for k, v := range m.stakes {
		out.stakes[k] = v.Clone()
	}
	for k, v := range m.balances {
		out.balances[k] = v
	}
	out.updates = m.updates
	return out
}

func balanceKey(asset string, addr crypto.Address) string {
	return NormalizeAsset(asset) + "/" + addr.String()
}

func (m *mockEngineState) credit(asset string, addr crypto.Address, amount uint64) {
	m.balances[balanceKey(asset, addr)] += amount
}

func (m *mockEngineState) balance(asset string, addr crypto.Address) uint64 {
	return m.balances[balanceKey(asset, addr)]
}

func (m *mockEngineState) Update(fn func(tx StateTx) error) error {
	work := &mockTx{state: m.clone()}
	if err := fn(work); err != nil {
		return err
	}
	work.state.updates++
	*m = *work.state
	return nil
}

func (m *mockEngineState) View(fn func(tx StateTx) error) error {
	return fn(&mockTx{state: m.clone(), readOnly: true})
}

type mockTx struct {
	state     *mockEngineState
	readOnly  bool
	transfers int
}

var errMockReadOnly = errors.New("mock: read-only")

func (tx *mockTx) GetVault() (*StakeVault, error) {
	return tx.state.vault.Clone(), nil
}

func (tx *mockTx) PutVault(vault *StakeVault) error {
	if tx.readOnly {
		return errMockReadOnly
	}
	tx.state.vault = vault.Clone()
	return nil
}

func (tx *mockTx) GetUserStake(owner crypto.Address) (*UserStake, error) {
	return tx.state.stakes[owner.String()].Clone(), nil
}

func (tx *mockTx) PutUserStake(stake *UserStake) error {
	if tx.readOnly {
		return errMockReadOnly
	}
	tx.state.stakes[stake.Owner.String()] = stake.Clone()
	return nil
}

func (tx *mockTx) Transfer(asset string, from, to crypto.Address, amount uint64) error {
	if tx.readOnly {
		return errMockReadOnly
	}
	tx.transfers++
	if tx.transfers > 1 {
		return errors.New("mock: more than one transfer in a single operation")
	}
	fromKey := balanceKey(asset, from)
	if tx.state.balances[fromKey] < amount {
		return errMockInsufficient
	}
	tx.state.balances[fromKey] -= amount
	tx.state.balances[balanceKey(asset, to)] += amount
	return nil
}

func (tx *mockTx) Balance(asset string, account crypto.Address) (uint64, error) {
	return tx.state.balances[balanceKey(asset, account)], nil
}

type stubPauseView struct {
	modules map[string]bool
}

func (s stubPauseView) IsPaused(module string) bool {
	if s.modules == nil {
		return false
	}
	return s.modules[module]
}

type recordingEmitter struct {
	events []events.Event
}

func (r *recordingEmitter) Emit(evt events.Event) {
	r.events = append(r.events, evt)
}

func (r *recordingEmitter) types() []string {
	out := make([]string, 0, len(r.events))
	for _, evt := range r.events {
		out = append(out, evt.EventType())
	}
	return out
}

func makeAddress(b byte) crypto.Address {
	raw := make([]byte, crypto.AddressLength)
	for i := range raw {
		raw[i] = b
	}
	return crypto.MustNewAddress(crypto.AccountPrefix, raw)
}

const testAsset = "STK"

type testClock struct {
	now int64
}

func (c *testClock) Now() int64         { return c.now }
func (c *testClock) Advance(secs int64) { c.now += secs }

type fixture struct {
	engine  *Engine
	state   *mockEngineState
	clock   *testClock
	events  *recordingEmitter
	admin   crypto.Address
	custody crypto.Address
}

// newFixture returns an initialized vault with the given vesting period and
// funded admin.
func newFixture(period uint64) *fixture {
	custody := crypto.ModuleAddress("vault-test")
	admin := makeAddress(0xAD)
	engine := NewEngine(custody)
	state := newMockEngineState()
	clock := &testClock{now: 1_700_000_000}
	emitter := &recordingEmitter{}
	engine.SetState(state)
	engine.SetNowFunc(clock.Now)
	engine.SetEmitter(emitter)
	ids := 0
	engine.newID = func() string {
		ids++
		return "req-" + string(rune('a'+ids-1))
	}
	if _, err := engine.Initialize(admin, InitParams{AssetID: testAsset, VestingPeriod: period}); err != nil {
		panic(err)
	}
	state.credit(testAsset, admin, 1_000_000)
	return &fixture{engine: engine, state: state, clock: clock, events: emitter, admin: admin, custody: custody}
}

func (f *fixture) fund(addr crypto.Address, amount uint64) {
	f.state.credit(testAsset, addr, amount)
}

func (f *fixture) vault() *StakeVault {
	return f.state.vault
}

func (f *fixture) stake(addr crypto.Address) *UserStake {
	return f.state.stakes[addr.String()]
}
