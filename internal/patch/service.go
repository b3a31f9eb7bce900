// service.go assembles the patch subsystem for embedding and the CLI.
package patch

import (
	"fmt"
	"path/filepath"

	"strictpatch/internal/backup"
	"strictpatch/internal/config"
	"strictpatch/internal/logging"
	"strictpatch/internal/telemetry"
	"strictpatch/internal/typecheck"
	"strictpatch/internal/verify"
)

// Service bundles the serializer with the stores it owns.
type Service struct {
	Config     *config.Config
	Store      *backup.Store
	Serializer *Serializer
}

// Open wires the full subsystem for a workspace: config, logging,
// telemetry, backup store, verification pipeline and the serializer.
func Open(workspace string) (*Service, error) {
	cfg, err := config.LoadWorkspace(workspace)
	if err != nil {
		return nil, err
	}
	return OpenWithConfig(workspace, cfg)
}

// OpenWithConfig is Open with an explicit configuration (tests).
func OpenWithConfig(workspace string, cfg *config.Config) (*Service, error) {
	if err := logging.Initialize(workspace); err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}

	telemetry.Enable(telemetry.Config{
		Enabled:     cfg.Telemetry.Enabled,
		MetricsAddr: cfg.Telemetry.MetricsAddr,
	})

	backupDir := cfg.Backups.Dir
	if !filepath.IsAbs(backupDir) {
		backupDir = filepath.Join(workspace, backupDir)
	}
	store, err := backup.NewStore(backupDir)
	if err != nil {
		return nil, err
	}

	checker := typecheck.NewCommandChecker(cfg.Verification.TypeCheckers)
	pipeline := verify.NewPipeline(checker)
	exec := NewExecutor(cfg, store, pipeline)
	policy := backup.NewPolicy(store, cfg.GetMaxBackupAge(), cfg.Backups.MaxCount)

	return &Service{
		Config:     cfg,
		Store:      store,
		Serializer: NewSerializer(exec, policy, cfg.Patch.QueueDepth),
	}, nil
}

// ListBackups returns backup metadata, newest first.
func (s *Service) ListBackups() ([]backup.Meta, error) {
	return s.Store.List()
}

// Close drains the queue and releases the backup store.
func (s *Service) Close() error {
	s.Serializer.Close()
	logging.CloseAll()
	return s.Store.Close()
}
