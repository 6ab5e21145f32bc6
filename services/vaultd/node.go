package vaultd

import (
	"errors"
	"fmt"
	"log/slog"

	"stakevault/config"
	"stakevault/core/events"
	"stakevault/core/state"
	nativecommon "stakevault/native/common"
	"stakevault/native/vault"
	"stakevault/storage"
)

// Node bundles the storage, state manager and engine behind vaultd.
type Node struct {
	DB     storage.Database
	State  *state.Manager
	Engine *vault.Engine
	Pauses *nativecommon.Pauses
	Config *config.Config
}

// OpenNode opens the configured backend and wires a vault engine to it. When
// the node config names an admin and the vault does not exist yet, the vault
// is initialized with the configured asset and vesting period.
func OpenNode(cfg *config.Config, emitter events.Emitter, logger *slog.Logger) (*Node, error) {
	if cfg == nil {
		return nil, errors.New("vaultd: node config required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	db, err := storage.Open(cfg.DBBackend, cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open %s storage: %w", cfg.DBBackend, err)
	}
	manager := state.NewManager(db)
	pauses := nativecommon.NewPauses(cfg.PausedModules...)

	engine := vault.NewEngine(cfg.CustodyAddress())
	engine.SetState(manager)
	engine.SetPauses(pauses)
	engine.SetEmitter(emitter)

	node := &Node{DB: db, State: manager, Engine: engine, Pauses: pauses, Config: cfg}
	if err := node.bootstrap(logger); err != nil {
		db.Close()
		return nil, err
	}
	return node, nil
}

func (n *Node) bootstrap(logger *slog.Logger) error {
	admin, ok, err := n.Config.AdminAddress()
	if err != nil || !ok {
		return err
	}
	_, err = n.Engine.Vault()
	switch {
	case err == nil:
		return nil
	case !errors.Is(err, vault.ErrNotInitialized):
		return fmt.Errorf("load vault: %w", err)
	}
	created, err := n.Engine.Initialize(admin, vault.InitParams{
		AssetID:       n.Config.AssetID,
		VestingPeriod: n.Config.VestingPeriodSeconds,
	})
	if err != nil {
		return fmt.Errorf("initialize vault: %w", err)
	}
	logger.Info("vault initialized", "admin", created.Admin.String(), "asset", created.AssetID,
		"custody", created.Custody.String(), "vesting_period", created.VestingPeriod)
	return nil
}

// Close releases the storage backend.
func (n *Node) Close() error {
	if n == nil || n.DB == nil {
		return nil
	}
	return n.DB.Close()
}
