package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/insect-id/internal/identifier"
	"github.com/example/insect-id/internal/insect"
	"github.com/example/insect-id/internal/logging"
	"github.com/example/insect-id/internal/metrics"
	"github.com/example/insect-id/internal/store"
)

// HistoryStore is the persistence surface for one device.
type HistoryStore interface {
	SaveToHistory(ctx context.Context, record insect.IdentificationRecord, image string) (insect.StoredRecord, error)
	GetHistory(ctx context.Context) []insect.StoredRecord
	ClearHistory(ctx context.Context) error
	ToggleFavorite(ctx context.Context, id string) (bool, error)
	GetFavorites(ctx context.Context) []insect.StoredRecord
	Summary(ctx context.Context) store.Summary
}

// StoreFor resolves the store view of a device.
type StoreFor func(deviceID string) HistoryStore

// Status is the outcome shown to the user.
type Status string

const (
	StatusSuccess     Status = "success"
	StatusApproximate Status = "approximate"
	StatusNotInsect   Status = "not_insect"
	StatusSuperseded  Status = "superseded"
)

// ErrRecordNotFound is returned when a history id does not exist.
var ErrRecordNotFound = errors.New("record not found")

// Outcome is the resolved state of one identification request.
type Outcome struct {
	RequestID      string
	Status         Status
	Record         *insect.IdentificationRecord
	Stored         *insect.StoredRecord
	FallbackReason identifier.Kind
	Message        string
}

// IdentificationUseCase runs capture output through the identifier and writes
// successful results through to the device's history.
type IdentificationUseCase struct {
	identifier  identifier.Identifier
	stores      StoreFor
	generations *GenerationTracker
	metrics     metrics.Recorder
	logger      *zap.Logger
}

// NewIdentificationUseCase constructs a new use case instance.
func NewIdentificationUseCase(id identifier.Identifier, stores StoreFor, generations *GenerationTracker, recorder metrics.Recorder, logger *zap.Logger) *IdentificationUseCase {
	if recorder == nil {
		recorder = metrics.Noop{}
	}
	return &IdentificationUseCase{
		identifier:  id,
		stores:      stores,
		generations: generations,
		metrics:     recorder,
		logger:      logger.Named("identification_usecase"),
	}
}

// Identify resolves an encoded image to an Outcome. Model and fallback
// records are both persisted; a not-an-insect answer and a superseded request
// are not. A non-nil error means the record could not be saved.
func (uc *IdentificationUseCase) Identify(ctx context.Context, deviceID, encodedImage string) (*Outcome, error) {
	requestID := logging.RequestIDFromContext(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
		ctx = logging.ContextWithRequestID(ctx, requestID)
	}
	opLogger := logging.WithDevice(logging.WithOperation(uc.logger, "usecase.identify", requestID), deviceID)

	gen := uc.generations.Begin(deviceID)
	started := time.Now()
	result, err := uc.identifier.Identify(ctx, encodedImage)
	if err != nil {
		var classErr *identifier.ClassificationError
		if !errors.As(err, &classErr) || !errors.Is(err, identifier.ErrNotAnInsect) {
			wrapped := logging.NewOperationError("usecase.identify", requestID, err)
			opLogger.Error("identification failed", zap.Error(wrapped))
			return nil, wrapped
		}
		if !uc.generations.IsCurrent(deviceID, gen) {
			return uc.superseded(requestID, opLogger), nil
		}
		uc.metrics.ObserveIdentification(string(StatusNotInsect), string(identifier.SourceModel), time.Since(started))
		return &Outcome{RequestID: requestID, Status: StatusNotInsect, Message: classErr.Message()}, nil
	}

	if !uc.generations.IsCurrent(deviceID, gen) {
		return uc.superseded(requestID, opLogger), nil
	}

	status := StatusSuccess
	if result.Degraded() {
		status = StatusApproximate
	}

	stored, err := uc.stores(deviceID).SaveToHistory(ctx, result.Record, encodedImage)
	if err != nil {
		uc.metrics.IncStoreErrors("save_history")
		wrapped := logging.NewOperationError("usecase.save_history", requestID, err)
		opLogger.Error("failed to persist identification", zap.Error(wrapped))
		return nil, wrapped
	}

	uc.metrics.ObserveIdentification(string(status), string(result.Source), result.Latency)
	opLogger.Info("identification stored",
		zap.String("status", string(status)),
		zap.String("record_id", stored.ID),
		zap.String("common_name", stored.CommonName))

	record := result.Record
	return &Outcome{
		RequestID:      requestID,
		Status:         status,
		Record:         &record,
		Stored:         &stored,
		FallbackReason: result.FallbackReason,
	}, nil
}

func (uc *IdentificationUseCase) superseded(requestID string, opLogger *zap.Logger) *Outcome {
	uc.metrics.ObserveIdentification(string(StatusSuperseded), "", 0)
	opLogger.Info("discarding superseded identification")
	return &Outcome{RequestID: requestID, Status: StatusSuperseded, Message: "A newer identification request replaced this one."}
}

// History returns the device's history, newest first.
func (uc *IdentificationUseCase) History(ctx context.Context, deviceID string) []insect.StoredRecord {
	return uc.stores(deviceID).GetHistory(ctx)
}

// Favorites returns the device's favorites in insertion order.
func (uc *IdentificationUseCase) Favorites(ctx context.Context, deviceID string) []insect.StoredRecord {
	return uc.stores(deviceID).GetFavorites(ctx)
}

// ClearHistory empties the device's history.
func (uc *IdentificationUseCase) ClearHistory(ctx context.Context, deviceID string) error {
	if err := uc.stores(deviceID).ClearHistory(ctx); err != nil {
		uc.metrics.IncStoreErrors("clear_history")
		return logging.NewOperationError("usecase.clear_history", logging.RequestIDFromContext(ctx), err)
	}
	return nil
}

// ToggleFavorite flips the favorite flag of a history entry. It returns
// ErrRecordNotFound when id is not in the device's history.
func (uc *IdentificationUseCase) ToggleFavorite(ctx context.Context, deviceID, id string) (bool, error) {
	st := uc.stores(deviceID)

	found := false
	for _, r := range st.GetHistory(ctx) {
		if r.ID == id {
			found = true
			break
		}
	}
	if !found {
		return false, ErrRecordNotFound
	}

	on, err := st.ToggleFavorite(ctx, id)
	if err != nil {
		uc.metrics.IncStoreErrors("toggle_favorite")
		return false, logging.NewOperationError("usecase.toggle_favorite", logging.RequestIDFromContext(ctx), err)
	}
	return on, nil
}
