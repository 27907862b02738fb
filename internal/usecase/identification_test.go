package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/example/insect-id/internal/identifier"
	"github.com/example/insect-id/internal/insect"
	"github.com/example/insect-id/internal/logging"
	"github.com/example/insect-id/internal/repository"
	"github.com/example/insect-id/internal/store"
)

const testImage = "data:image/png;base64,QUJD"

type stubIdentifier struct {
	result *identifier.Identification
	err    error
	during func()
	calls  int
}

func (s *stubIdentifier) Identify(ctx context.Context, encodedImage string) (*identifier.Identification, error) {
	s.calls++
	if s.during != nil {
		s.during()
	}
	return s.result, s.err
}

type failingStore struct {
	HistoryStore
	saveErr error
}

func (f *failingStore) SaveToHistory(context.Context, insect.IdentificationRecord, string) (insect.StoredRecord, error) {
	return insect.StoredRecord{}, f.saveErr
}

func modelResult() *identifier.Identification {
	return &identifier.Identification{Record: identifier.FallbackCatalog()[1], Source: identifier.SourceModel}
}

func newUseCase(id identifier.Identifier) (*IdentificationUseCase, *store.Store) {
	st := store.New(repository.NewMemoryKV(), store.DefaultHistoryLimit, zap.NewNop())
	stores := func(deviceID string) HistoryStore { return st.ForDevice(deviceID) }
	return NewIdentificationUseCase(id, stores, NewGenerationTracker(time.Minute), nil, zap.NewNop()), st
}

func TestIdentifyPersistsSuccessfulResult(t *testing.T) {
	uc, st := newUseCase(&stubIdentifier{result: modelResult()})

	outcome, err := uc.Identify(context.Background(), "device-1", testImage)
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if outcome.Status != StatusSuccess {
		t.Fatalf("expected success status, got %s", outcome.Status)
	}
	if outcome.RequestID == "" {
		t.Fatal("expected a generated request id")
	}

	history := st.ForDevice("device-1").GetHistory(context.Background())
	if len(history) != 1 {
		t.Fatalf("expected one history entry, got %d", len(history))
	}
	if history[0].IdentificationRecord != *outcome.Record {
		t.Fatalf("stored record differs from identified record: %+v", history[0])
	}
	if history[0].Image != testImage {
		t.Fatalf("expected image to be stored, got %q", history[0].Image)
	}
	if outcome.Stored.ID != history[0].ID {
		t.Fatalf("expected outcome to reference stored id %s, got %s", history[0].ID, outcome.Stored.ID)
	}
}

func TestIdentifyKeepsRequestIDFromContext(t *testing.T) {
	uc, _ := newUseCase(&stubIdentifier{result: modelResult()})

	ctx := logging.ContextWithRequestID(context.Background(), "req-42")
	outcome, err := uc.Identify(ctx, "device-1", testImage)
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if outcome.RequestID != "req-42" {
		t.Fatalf("expected request id from context, got %s", outcome.RequestID)
	}
}

func TestIdentifyMarksFallbackAsApproximate(t *testing.T) {
	result := &identifier.Identification{
		Record:         identifier.FallbackCatalog()[0],
		Source:         identifier.SourceFallback,
		FallbackReason: identifier.KindTransport,
	}
	uc, st := newUseCase(&stubIdentifier{result: result})

	outcome, err := uc.Identify(context.Background(), "device-1", testImage)
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if outcome.Status != StatusApproximate || outcome.FallbackReason != identifier.KindTransport {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if len(st.ForDevice("device-1").GetHistory(context.Background())) != 1 {
		t.Fatal("expected approximate result to be stored")
	}
}

func TestIdentifyNotAnInsectIsNotPersisted(t *testing.T) {
	err := &identifier.ClassificationError{Kind: identifier.KindNotAnInsect, Detail: "This image appears to show a cat, not an insect"}
	uc, st := newUseCase(&stubIdentifier{err: err})

	outcome, identifyErr := uc.Identify(context.Background(), "device-1", testImage)
	if identifyErr != nil {
		t.Fatalf("expected outcome, got error: %v", identifyErr)
	}
	if outcome.Status != StatusNotInsect {
		t.Fatalf("expected not_insect, got %s", outcome.Status)
	}
	if outcome.Message != "This image appears to show a cat, not an insect" {
		t.Fatalf("unexpected message: %s", outcome.Message)
	}
	if len(st.ForDevice("device-1").GetHistory(context.Background())) != 0 {
		t.Fatal("not-an-insect results must not be stored")
	}
}

func TestIdentifySupersededResultIsDiscarded(t *testing.T) {
	stub := &stubIdentifier{result: modelResult()}
	uc, st := newUseCase(stub)
	stub.during = func() { uc.generations.Begin("device-1") }

	outcome, err := uc.Identify(context.Background(), "device-1", testImage)
	if err != nil {
		t.Fatalf("expected outcome, got error: %v", err)
	}
	if outcome.Status != StatusSuperseded {
		t.Fatalf("expected superseded, got %s", outcome.Status)
	}
	if len(st.ForDevice("device-1").GetHistory(context.Background())) != 0 {
		t.Fatal("superseded results must not be stored")
	}
}

func TestIdentifyOtherDevicesDoNotSupersede(t *testing.T) {
	stub := &stubIdentifier{result: modelResult()}
	uc, _ := newUseCase(stub)
	stub.during = func() { uc.generations.Begin("device-2") }

	outcome, err := uc.Identify(context.Background(), "device-1", testImage)
	if err != nil {
		t.Fatalf("expected outcome, got error: %v", err)
	}
	if outcome.Status != StatusSuccess {
		t.Fatalf("expected success, got %s", outcome.Status)
	}
}

func TestIdentifyReportsStorageFailure(t *testing.T) {
	stores := func(string) HistoryStore { return &failingStore{saveErr: store.ErrStorage} }
	uc := NewIdentificationUseCase(&stubIdentifier{result: modelResult()}, stores, NewGenerationTracker(time.Minute), nil, zap.NewNop())

	_, err := uc.Identify(context.Background(), "device-1", testImage)
	if !errors.Is(err, store.ErrStorage) {
		t.Fatalf("expected storage failure, got %v", err)
	}
	var opErr *logging.OperationError
	if !errors.As(err, &opErr) || opErr.Operation != "usecase.save_history" {
		t.Fatalf("expected OperationError for save_history, got %v", err)
	}
}

func TestToggleFavoriteUnknownID(t *testing.T) {
	uc, _ := newUseCase(&stubIdentifier{result: modelResult()})

	_, err := uc.ToggleFavorite(context.Background(), "device-1", "missing")
	if !errors.Is(err, ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestToggleFavoriteAndSummary(t *testing.T) {
	uc, _ := newUseCase(&stubIdentifier{result: modelResult()})
	ctx := context.Background()

	outcome, err := uc.Identify(ctx, "device-1", testImage)
	if err != nil {
		t.Fatalf("identify: %v", err)
	}

	on, err := uc.ToggleFavorite(ctx, "device-1", outcome.Stored.ID)
	if err != nil || !on {
		t.Fatalf("expected favorite on, got %v %v", on, err)
	}
	if got := uc.Favorites(ctx, "device-1"); len(got) != 1 {
		t.Fatalf("expected one favorite, got %d", len(got))
	}

	if err := uc.ClearHistory(ctx, "device-1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	summary := uc.GetSummary(ctx, "device-1")
	if summary.HistoryCount != 0 || summary.FavoritesCount != 1 || summary.DanglingFavorites != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}
