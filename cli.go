package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/example/insect-id/internal/capture"
	"github.com/example/insect-id/internal/config"
	"github.com/example/insect-id/internal/grpchealth"
	"github.com/example/insect-id/internal/metrics"
	"github.com/example/insect-id/internal/share"
	"github.com/example/insect-id/internal/store"
)

// cliDevice owns the history written by the identify command.
const cliDevice = "local"

var errUsage = errors.New("usage: insect-id [identify <image> | history | healthcheck [addr]]")

func runCommand(ctx context.Context, cfg *config.Config, logger *zap.Logger, args []string, out io.Writer) error {
	switch args[0] {
	case "identify":
		if len(args) != 2 {
			return errUsage
		}
		return runIdentify(ctx, cfg, logger, args[1], out)
	case "history":
		return runHistory(ctx, cfg, logger, out)
	case "healthcheck":
		addr := cfg.GRPCHealthAddr
		if len(args) > 1 {
			addr = args[1]
		}
		status, err := grpchealth.Check(ctx, addr, grpchealth.ServiceName, logger)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, status.String())
		return err
	}
	return errUsage
}

// runIdentify runs one image file through the full pipeline and stores the
// result under the local device.
func runIdentify(ctx context.Context, cfg *config.Config, logger *zap.Logger, path string, out io.Writer) error {
	image, err := capture.Capture(ctx, capture.FileSource{Path: path}, cfg.MaxUploadBytes)
	if err != nil {
		return err
	}

	kv, closeKV, err := openKV(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeKV()

	uc, err := buildUseCase(ctx, cfg, store.New(kv, cfg.HistoryLimit, logger), metrics.Noop{}, logger)
	if err != nil {
		return err
	}

	outcome, err := uc.Identify(ctx, cliDevice, image)
	if err != nil {
		return err
	}

	result := map[string]any{
		"status":    outcome.Status,
		"requestId": outcome.RequestID,
	}
	if outcome.Message != "" {
		result["message"] = outcome.Message
	}
	if outcome.Record != nil {
		result["record"] = outcome.Record
		result["shareText"] = share.Text(*outcome.Record)
	}
	if outcome.Stored != nil {
		result["id"] = outcome.Stored.ID
	}
	return writeJSON(out, result)
}

func runHistory(ctx context.Context, cfg *config.Config, logger *zap.Logger, out io.Writer) error {
	kv, closeKV, err := openKV(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeKV()

	st := store.New(kv, cfg.HistoryLimit, logger).ForDevice(cliDevice)
	history := st.GetHistory(ctx)
	for i := range history {
		history[i].Image = ""
	}
	return writeJSON(out, history)
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
