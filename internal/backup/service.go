package backup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/JonMunkholm/fincore/internal/events"
	"github.com/JonMunkholm/fincore/internal/logging"
	"github.com/JonMunkholm/fincore/internal/snapshotstore"
)

// ErrNoSnapshotStore is returned by snapshot operations when no store is
// configured.
var ErrNoSnapshotStore = errors.New("snapshot store not configured")

// afterTimeout bounds audit and event writes that run after the operation's
// own context may have expired.
const afterTimeout = 5 * time.Second

// ServiceConfig tunes a Service. Zero values select defaults.
type ServiceConfig struct {
	MaxConcurrent  int
	MaxWaitTime    time.Duration
	ExportTimeout  time.Duration
	ImportTimeout  time.Duration
	SnapshotPrefix string
}

// Service is the entry point for backup operations. It wraps the Exporter
// and Importer with concurrency limits, operation ids, timeouts, audit
// records, events and snapshot storage.
type Service struct {
	registry *Registry
	exporter *Exporter
	importer *Importer
	limiter  *OperationLimiter
	audit    *AuditLog
	store    snapshotstore.Store
	events   events.Publisher
	cfg      ServiceConfig
}

// Option configures optional Service collaborators.
type Option func(*Service)

// WithAuditLog records operations in backup_audit_log.
func WithAuditLog(a *AuditLog) Option { return func(s *Service) { s.audit = a } }

// WithSnapshotStore enables the snapshot operations.
func WithSnapshotStore(store snapshotstore.Store) Option {
	return func(s *Service) { s.store = store }
}

// WithPublisher sends events after exports and imports.
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.events = p }
}

// NewService builds a Service over the tables of reg.
func NewService(reg *Registry, source ConnSource, cfg ServiceConfig, opts ...Option) *Service {
	if cfg.SnapshotPrefix == "" {
		cfg.SnapshotPrefix = "snapshots"
	}

	s := &Service{
		registry: reg,
		exporter: NewExporter(reg, source),
		importer: NewImporter(reg, source),
		limiter:  NewOperationLimiter(cfg.MaxConcurrent, cfg.MaxWaitTime),
		events:   events.Nop{},
		cfg:      cfg,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Registry returns the tables covered by this service.
func (s *Service) Registry() *Registry { return s.registry }

// begin takes a limiter slot, tags ctx with a fresh operation id and
// applies timeout. The returned func must be called when the operation ends.
func (s *Service) begin(ctx context.Context, timeout time.Duration) (context.Context, func(), error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, nil, err
	}

	ctx = logging.ContextWithOperationID(ctx, uuid.NewString())
	cancel := context.CancelFunc(func() {})
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
	}

	return ctx, func() {
		cancel()
		s.limiter.Release()
	}, nil
}

// detached returns a context for bookkeeping after the operation, keeping
// its values but not its deadline.
func detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), afterTimeout)
}

// Export reads every registry table.
func (s *Service) Export(ctx context.Context) (*Snapshot, error) {
	ctx, done, err := s.begin(ctx, s.cfg.ExportTimeout)
	if err != nil {
		return nil, err
	}
	defer done()

	snap, err := s.export(ctx, ActionExport, "")
	if err != nil {
		return nil, err
	}
	s.publishExported(ctx, snap, "")
	return snap, nil
}

func (s *Service) export(ctx context.Context, action AuditAction, key string) (*Snapshot, error) {
	snap, err := s.exporter.Export(ctx)

	bctx, cancel := detached(ctx)
	defer cancel()

	if err != nil {
		s.audit.Record(bctx, AuditLogParams{
			Action:      action,
			SnapshotKey: key,
			ErrorCount:  1,
			Detail:      map[string]any{"error": err.Error()},
		})
		return nil, err
	}

	s.audit.Record(bctx, AuditLogParams{
		Action:      action,
		Success:     true,
		Committed:   true,
		Tables:      len(snap.Tables),
		Rows:        snap.TotalRows(),
		SnapshotKey: key,
	})
	return snap, nil
}

// Import restores snap. Validation errors are returned before a limiter
// slot or connection is taken.
func (s *Service) Import(ctx context.Context, snap *Snapshot, opts ImportOptions) (*ImportReport, error) {
	if err := snap.Validate(); err != nil {
		return nil, err
	}
	mode, err := ParseImportMode(string(opts.Mode))
	if err != nil {
		return nil, err
	}
	opts.Mode = mode

	ctx, done, err := s.begin(ctx, s.cfg.ImportTimeout)
	if err != nil {
		return nil, err
	}
	defer done()

	return s.restore(ctx, snap, opts, ActionImport, "")
}

func (s *Service) restore(ctx context.Context, snap *Snapshot, opts ImportOptions, action AuditAction, key string) (*ImportReport, error) {
	report, err := s.importer.Import(ctx, snap, opts)

	bctx, cancel := detached(ctx)
	defer cancel()

	if err != nil {
		s.audit.Record(bctx, AuditLogParams{
			Action:      action,
			Mode:        opts.Mode,
			SnapshotKey: key,
			ErrorCount:  1,
			Detail:      map[string]any{"error": err.Error()},
		})
		return nil, err
	}

	s.audit.Record(bctx, AuditLogParams{
		Action:      action,
		Mode:        report.Mode,
		Success:     report.Success,
		Committed:   report.Committed,
		Tables:      len(report.Imported),
		Rows:        report.RowsImported(),
		ErrorCount:  len(report.Errors),
		SnapshotKey: key,
		Detail:      map[string]any{"atomic": report.Atomic},
	})

	s.publish(bctx, events.KeyImported, events.ImportedEvent{
		OperationID: logging.OperationID(ctx),
		Mode:        string(report.Mode),
		Success:     report.Success,
		Committed:   report.Committed,
		Rows:        report.RowsImported(),
		Errors:      len(report.Errors),
		SnapshotKey: key,
		ImportedAt:  time.Now().UTC(),
	})
	return report, nil
}

// TakeSnapshot exports every table and writes the result to the store.
func (s *Service) TakeSnapshot(ctx context.Context) (snapshotstore.ObjectInfo, error) {
	if s.store == nil {
		return snapshotstore.ObjectInfo{}, ErrNoSnapshotStore
	}

	ctx, done, err := s.begin(ctx, s.cfg.ExportTimeout)
	if err != nil {
		return snapshotstore.ObjectInfo{}, err
	}
	defer done()

	key := snapshotstore.NewKey(s.cfg.SnapshotPrefix, time.Now())
	snap, err := s.export(ctx, ActionSnapshotCreate, key)
	if err != nil {
		return snapshotstore.ObjectInfo{}, err
	}

	var buf bytes.Buffer
	if err := snap.Encode(&buf); err != nil {
		return snapshotstore.ObjectInfo{}, fmt.Errorf("encode snapshot: %w", err)
	}

	info, err := s.store.Put(ctx, key, &buf, int64(buf.Len()))
	if err != nil {
		return snapshotstore.ObjectInfo{}, fmt.Errorf("store snapshot: %w", err)
	}

	logging.FromContext(ctx).Info("snapshot stored",
		"key", info.Key,
		"size", humanize.Bytes(uint64(info.Size)),
		"rows", snap.TotalRows(),
	)

	s.publishExported(ctx, snap, info.Key)
	return info, nil
}

// ListSnapshots returns stored snapshots, oldest first.
func (s *Service) ListSnapshots(ctx context.Context) ([]snapshotstore.ObjectInfo, error) {
	if s.store == nil {
		return nil, ErrNoSnapshotStore
	}
	return s.store.List(ctx, s.cfg.SnapshotPrefix+"/")
}

// RestoreSnapshot loads key from the store and imports it.
func (s *Service) RestoreSnapshot(ctx context.Context, key string, opts ImportOptions) (*ImportReport, error) {
	if s.store == nil {
		return nil, ErrNoSnapshotStore
	}
	if err := snapshotstore.ValidateKey(key); err != nil {
		return nil, NewValidationError(err.Error())
	}
	mode, err := ParseImportMode(string(opts.Mode))
	if err != nil {
		return nil, err
	}
	opts.Mode = mode

	ctx, done, err := s.begin(ctx, s.cfg.ImportTimeout)
	if err != nil {
		return nil, err
	}
	defer done()

	rc, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	snap, err := DecodeSnapshot(rc)
	if err != nil {
		return nil, err
	}

	return s.restore(ctx, snap, opts, ActionSnapshotRestore, key)
}

// PruneSnapshots deletes all but the newest retain snapshots and returns
// how many were removed.
func (s *Service) PruneSnapshots(ctx context.Context, retain int) (int, error) {
	if s.store == nil {
		return 0, ErrNoSnapshotStore
	}
	if retain <= 0 {
		return 0, nil
	}

	list, err := s.ListSnapshots(ctx)
	if err != nil {
		return 0, err
	}
	if len(list) <= retain {
		return 0, nil
	}

	removed := 0
	for _, obj := range list[:len(list)-retain] {
		if err := s.store.Delete(ctx, obj.Key); err != nil {
			return removed, fmt.Errorf("delete %s: %w", obj.Key, err)
		}
		removed++
	}
	return removed, nil
}

// AuditLog returns the most recent audit entries.
func (s *Service) AuditLog(ctx context.Context, limit int) ([]AuditEntry, error) {
	return s.audit.List(ctx, limit)
}

// LimiterStatus reports how many operations are running.
func (s *Service) LimiterStatus() LimiterStatus { return s.limiter.Status() }

// WaitForOperations blocks until running operations finish or ctx ends.
func (s *Service) WaitForOperations(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

func (s *Service) publishExported(ctx context.Context, snap *Snapshot, key string) {
	bctx, cancel := detached(ctx)
	defer cancel()

	s.publish(bctx, events.KeyExported, events.ExportedEvent{
		OperationID: logging.OperationID(ctx),
		ExportedAt:  snap.ExportedAt,
		Tables:      len(snap.Tables),
		Rows:        snap.TotalRows(),
		SnapshotKey: key,
	})
}

func (s *Service) publish(ctx context.Context, key string, payload any) {
	if err := s.events.Publish(ctx, key, payload); err != nil {
		logging.FromContext(ctx).Warn("event publish failed", "routing_key", key, "error", err)
	}
}
