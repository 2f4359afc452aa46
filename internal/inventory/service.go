package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// Reader exposes the record reads used both outside and inside transactions.
type Reader interface {
	ListVouchers(ctx context.Context, owner string, filter Filter) ([]Voucher, error)
	ListProcesses(ctx context.Context, owner string, filter Filter) ([]Process, error)
	ListOutputs(ctx context.Context, owner string, filter Filter) ([]Output, error)
	ListSales(ctx context.Context, owner string, filter Filter) ([]Sale, error)
	GetVoucher(ctx context.Context, owner, id string) (Voucher, error)
	GetProcess(ctx context.Context, owner, id string) (Process, error)
	GetOutput(ctx context.Context, owner, id string) (Output, error)
	GetSale(ctx context.Context, owner, id string) (Sale, error)
}

// TxRepository exposes transactional operations used by service. Reads made
// through it observe the writes already made in the same transaction.
type TxRepository interface {
	Reader
	GetOutputByProcess(ctx context.Context, owner, processID string) (Output, error)
	InsertVoucher(ctx context.Context, v Voucher) error
	UpdateVoucher(ctx context.Context, v Voucher) error
	DeleteVoucher(ctx context.Context, owner, id string) error
	DeleteVouchersByProcess(ctx context.Context, owner, processID string) error
	InsertProcess(ctx context.Context, p Process) error
	UpdateProcess(ctx context.Context, p Process) error
	DeleteProcess(ctx context.Context, owner, id string) error
	InsertOutput(ctx context.Context, o Output) error
	UpdateOutput(ctx context.Context, o Output) error
	DeleteOutput(ctx context.Context, owner, id string) error
	InsertSale(ctx context.Context, s Sale) error
	UpdateSale(ctx context.Context, s Sale) error
	DeleteSale(ctx context.Context, owner, id string) error
}

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	Reader
	// WithTx runs fn in one transaction serialized per owner. Any error rolls back every write.
	WithTx(ctx context.Context, owner string, fn func(context.Context, TxRepository) error) error
	ListOwners(ctx context.Context) ([]string, error)
}

// SnapshotCache stores computed snapshots per owner.
type SnapshotCache interface {
	Fetch(ctx context.Context, owner string, load func(context.Context) (Snapshot, error)) (Snapshot, error)
	Refresh(ctx context.Context, owner string, load func(context.Context) (Snapshot, error)) (Snapshot, error)
	Invalidate(ctx context.Context, owner string) error
}

// IdempotencyPort guards create forms against double submission.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// MutationRecorder observes mutation outcomes.
type MutationRecorder interface {
	RecordMutation(entity, action string, err error)
}

// ServiceConfig groups optional collaborators.
type ServiceConfig struct {
	Logger   *slog.Logger
	Recorder MutationRecorder
}

// Outcome describes a successful mutation.
type Outcome struct {
	ID       string
	Warnings []string
}

// Result converts the outcome into the structured mutation result.
func (o Outcome) Result(message string) Result {
	return Result{Success: true, Message: message, ID: o.ID, Warnings: o.Warnings}
}

// Service is the mutation reconciler and read facade of the inventory engine.
type Service struct {
	repo        RepositoryPort
	cache       SnapshotCache
	idempotency IdempotencyPort
	recorder    MutationRecorder
	logger      *slog.Logger
	validate    *validator.Validate
	clock       func() time.Time
	newID       func() string
}

// NewService builds Service. cache and idem may be nil.
func NewService(repo RepositoryPort, cache SnapshotCache, idem IdempotencyPort, cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:        repo,
		cache:       cache,
		idempotency: idem,
		recorder:    cfg.Recorder,
		logger:      logger,
		validate:    validator.New(),
		clock:       func() time.Time { return time.Now().UTC() },
		newID:       uuid.NewString,
	}
}

const idempotencyModule = "inventory"

// mutate runs fn as one transaction and settles the side effects around it.
func (s *Service) mutate(ctx context.Context, entity, action, owner, submissionID string, fn func(context.Context, TxRepository) error) error {
	if owner == "" {
		return ErrNoOwner
	}
	key := ""
	if submissionID != "" && s.idempotency != nil {
		key = fmt.Sprintf("%s:%s:%s", entity, owner, submissionID)
		if err := s.idempotency.CheckAndInsert(ctx, key, idempotencyModule); err != nil {
			s.record(entity, action, err)
			return err
		}
	}
	err := s.repo.WithTx(ctx, owner, fn)
	if err != nil && key != "" {
		if delErr := s.idempotency.Delete(ctx, key); delErr != nil {
			s.logger.Warn("release idempotency key", slog.String("key", key), slog.Any("error", delErr))
		}
	}
	s.record(entity, action, err)
	if err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, owner); err != nil {
			s.logger.Warn("invalidate snapshot cache", slog.String("owner", owner), slog.Any("error", err))
		}
	}
	return nil
}

func (s *Service) record(entity, action string, err error) {
	if s.recorder != nil {
		s.recorder.RecordMutation(entity, action, err)
	}
}

func (s *Service) check(input any) error {
	return validationFromStruct(s.validate, input)
}

// Snapshot returns every raw-material and finished-good position of owner.
func (s *Service) Snapshot(ctx context.Context, owner string) (Snapshot, error) {
	if owner == "" {
		return Snapshot{}, ErrNoOwner
	}
	if s.cache == nil {
		return s.computeSnapshot(ctx, owner)
	}
	return s.cache.Fetch(ctx, owner, func(ctx context.Context) (Snapshot, error) {
		return s.computeSnapshot(ctx, owner)
	})
}

// Reconcile recomputes the snapshot from full history and refreshes the cache.
func (s *Service) Reconcile(ctx context.Context, owner string) (Snapshot, error) {
	if owner == "" {
		return Snapshot{}, ErrNoOwner
	}
	if s.cache == nil {
		return s.computeSnapshot(ctx, owner)
	}
	return s.cache.Refresh(ctx, owner, func(ctx context.Context) (Snapshot, error) {
		return s.computeSnapshot(ctx, owner)
	})
}

// Owners lists every owner holding inventory records.
func (s *Service) Owners(ctx context.Context) ([]string, error) {
	return s.repo.ListOwners(ctx)
}

func (s *Service) computeSnapshot(ctx context.Context, owner string) (Snapshot, error) {
	var (
		vouchers []Voucher
		outputs  []Output
		sales    []Sale
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		vouchers, err = s.repo.ListVouchers(gctx, owner, Filter{})
		return err
	})
	g.Go(func() error {
		var err error
		outputs, err = s.repo.ListOutputs(gctx, owner, Filter{})
		return err
	})
	g.Go(func() error {
		var err error
		sales, err = s.repo.ListSales(gctx, owner, Filter{})
		return err
	})
	if err := g.Wait(); err != nil {
		return Snapshot{}, fmt.Errorf("inventory: load snapshot: %w", err)
	}
	return Snapshot{
		Owner:         owner,
		RawMaterials:  RawMaterialPositions(vouchers),
		FinishedGoods: FinishedGoodPositions(outputs, sales),
		ComputedAt:    s.clock(),
	}, nil
}

// RawMaterials returns the raw-material positions of owner.
func (s *Service) RawMaterials(ctx context.Context, owner string) ([]RawMaterialStock, error) {
	snap, err := s.Snapshot(ctx, owner)
	if err != nil {
		return nil, err
	}
	return snap.RawMaterials, nil
}

// FinishedGoods returns the finished-good positions of owner.
func (s *Service) FinishedGoods(ctx context.Context, owner string) ([]FinishedGood, error) {
	snap, err := s.Snapshot(ctx, owner)
	if err != nil {
		return nil, err
	}
	return snap.FinishedGoods, nil
}

// ProductLedger builds the finished-goods ledger for filter.
func (s *Service) ProductLedger(ctx context.Context, owner string, filter Filter) (Ledger, error) {
	if owner == "" {
		return Ledger{}, ErrNoOwner
	}
	var (
		outputs []Output
		sales   []Sale
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		outputs, err = s.repo.ListOutputs(gctx, owner, filter)
		return err
	})
	g.Go(func() error {
		var err error
		sales, err = s.repo.ListSales(gctx, owner, filter)
		return err
	})
	if err := g.Wait(); err != nil {
		return Ledger{}, fmt.Errorf("inventory: load ledger: %w", err)
	}
	return BuildProductLedger(outputs, sales, filter), nil
}

// MaterialCard builds the stock card of filter.Name.
func (s *Service) MaterialCard(ctx context.Context, owner string, filter Filter) (StockCard, error) {
	if owner == "" {
		return StockCard{}, ErrNoOwner
	}
	if normalizeName(filter.Name) == "" {
		return StockCard{}, newValidationError("material", "wajib diisi")
	}
	// Dates are applied by the card builder so earlier vouchers reach the opening balance.
	vouchers, err := s.repo.ListVouchers(ctx, owner, Filter{Name: filter.Name})
	if err != nil {
		return StockCard{}, fmt.Errorf("inventory: load stock card: %w", err)
	}
	return BuildStockCard(vouchers, filter), nil
}

// ListVouchers lists vouchers of owner.
func (s *Service) ListVouchers(ctx context.Context, owner string, filter Filter) ([]Voucher, error) {
	if owner == "" {
		return nil, ErrNoOwner
	}
	return s.repo.ListVouchers(ctx, owner, filter)
}

// ListProcesses lists processes of owner; filter.Name matches the process name.
func (s *Service) ListProcesses(ctx context.Context, owner string, filter Filter) ([]Process, error) {
	if owner == "" {
		return nil, ErrNoOwner
	}
	return s.repo.ListProcesses(ctx, owner, filter)
}

// ListOutputs lists outputs of owner.
func (s *Service) ListOutputs(ctx context.Context, owner string, filter Filter) ([]Output, error) {
	if owner == "" {
		return nil, ErrNoOwner
	}
	return s.repo.ListOutputs(ctx, owner, filter)
}

// ListSales lists sales of owner.
func (s *Service) ListSales(ctx context.Context, owner string, filter Filter) ([]Sale, error) {
	if owner == "" {
		return nil, ErrNoOwner
	}
	return s.repo.ListSales(ctx, owner, filter)
}

// GetVoucher loads one voucher.
func (s *Service) GetVoucher(ctx context.Context, owner, id string) (Voucher, error) {
	if owner == "" {
		return Voucher{}, ErrNoOwner
	}
	return s.repo.GetVoucher(ctx, owner, id)
}

// GetProcess loads one process.
func (s *Service) GetProcess(ctx context.Context, owner, id string) (Process, error) {
	if owner == "" {
		return Process{}, ErrNoOwner
	}
	return s.repo.GetProcess(ctx, owner, id)
}

// GetOutput loads one output.
func (s *Service) GetOutput(ctx context.Context, owner, id string) (Output, error) {
	if owner == "" {
		return Output{}, ErrNoOwner
	}
	return s.repo.GetOutput(ctx, owner, id)
}

// GetSale loads one sale.
func (s *Service) GetSale(ctx context.Context, owner, id string) (Sale, error) {
	if owner == "" {
		return Sale{}, ErrNoOwner
	}
	return s.repo.GetSale(ctx, owner, id)
}

// exceeds reports requested > available without float noise.
func exceeds(requested, available float64) bool {
	return decimal.NewFromFloat(requested).GreaterThan(decimal.NewFromFloat(available))
}

func negativeWarning(name string, available float64) string {
	return fmt.Sprintf("stok %s menjadi negatif (%s)", name, formatQty(available))
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
