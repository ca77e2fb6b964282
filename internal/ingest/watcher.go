package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/alberthdev/fnet-billing/internal/service"
	"github.com/alberthdev/fnet-billing/pkg/logger"
)

const (
	watchInterval   = time.Minute
	processedSuffix = ".processed"
)

// ReportWatcher vigila una carpeta donde el operador deposita los
// reportes Excel de Yape y los ingiere automáticamente. Cada archivo
// procesado se renombra con el sufijo .processed para no repetirlo;
// la marca de agua protege igualmente contra cargas duplicadas.
type ReportWatcher struct {
	dir      string
	payments service.PaymentService
	reader   *YapeReader
	log      *logger.Logger

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewReportWatcher crea el vigilante de la carpeta de reportes
func NewReportWatcher(dir string, payments service.PaymentService, log *logger.Logger) *ReportWatcher {
	return &ReportWatcher{
		dir:      dir,
		payments: payments,
		reader:   NewYapeReader(log),
		log:      log,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start arranca la vigilancia periódica de la carpeta
func (w *ReportWatcher) Start(ctx context.Context) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		w.log.Errorw("Failed to create report directory, watcher disabled", "dir", w.dir, "error", err)
		close(w.doneCh)
		return
	}

	w.log.Infow("Report watcher started", "dir", w.dir, "interval", watchInterval.String())

	go func() {
		defer close(w.doneCh)
		ticker := time.NewTicker(watchInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				w.sweep(ctx)
			case <-w.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop detiene la vigilancia y espera a que termine la pasada en curso
func (w *ReportWatcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
	<-w.doneCh
}

func (w *ReportWatcher) sweep(ctx context.Context) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.log.Errorw("Failed to read report directory", "dir", w.dir, "error", err)
		return
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.EqualFold(filepath.Ext(name), ".xlsx") {
			continue
		}
		w.processFile(ctx, filepath.Join(w.dir, name), name)
	}
}

func (w *ReportWatcher) processFile(ctx context.Context, path, name string) {
	file, err := os.Open(path)
	if err != nil {
		w.log.Errorw("Failed to open report file", "file", name, "error", err)
		return
	}

	entries, err := w.reader.Read(file, name)
	file.Close()
	if err != nil {
		w.log.Warnw("Failed to parse report file, skipping", "file", name, "error", err)
		return
	}

	summary, err := w.payments.IngestReportEntries(ctx, entries, time.Now())
	if err != nil {
		w.log.Errorw("Failed to ingest report file", "file", name, "error", err)
		return
	}

	w.log.Infow("Report file ingested", "file", name,
		"total", summary.Total, "applied", summary.Applied,
		"stale", summary.Stale, "unmatched", summary.Unmatched)

	if err := os.Rename(path, path+processedSuffix); err != nil {
		w.log.Errorw("Failed to mark report file as processed", "file", name, "error", err)
	}
}
