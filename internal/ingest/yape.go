// Package ingest lee los reportes de transacciones de Yape (xlsx) y los
// convierte en entradas de pago para el repartidor.
package ingest

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/alberthdev/fnet-billing/internal/domain"
	"github.com/alberthdev/fnet-billing/pkg/logger"
)

// dniPattern ocho dígitos consecutivos dentro de la nota del pago
var dniPattern = regexp.MustCompile(`\b\d{8}\b`)

// Diseño de columnas del reporte exportado por Yape:
// A tipo de transacción, B origen, C destino, D monto, E mensaje, F fecha
const (
	colTxKind = iota
	colOrigin
	colDestination
	colAmount
	colMessage
	colDate
)

// dateLayouts formatos de fecha vistos en los reportes
var dateLayouts = []string{
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"02/01/2006",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// YapeReader lector del reporte de pagos de Yape
type YapeReader struct {
	log *logger.Logger
}

// NewYapeReader crea el lector
func NewYapeReader(log *logger.Logger) *YapeReader {
	return &YapeReader{log: log}
}

// ExtractDNI busca un DNI de ocho dígitos en la nota del pago.
// Devuelve cadena vacía si no hay ninguno.
func ExtractDNI(message string) string {
	return dniPattern.FindString(message)
}

// Read convierte la primera hoja del xlsx en entradas de pago.
// Solo toma las filas de pagos recibidos; las demás se ignoran.
// El rechazo por marca de agua no ocurre acá sino en el repartidor.
func (r *YapeReader) Read(src io.Reader, sourceLabel string) ([]domain.PaymentReportEntry, error) {
	book, err := excelize.OpenReader(src)
	if err != nil {
		return nil, fmt.Errorf("ingest: failed to open workbook: %w", err)
	}
	defer book.Close()

	sheets := book.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("ingest: workbook has no sheets")
	}

	rows, err := book.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("ingest: failed to read sheet %q: %w", sheets[0], err)
	}

	var entries []domain.PaymentReportEntry
	for i, row := range rows {
		if i == 0 {
			// Fila de encabezados
			continue
		}

		entry, ok := r.parseRow(row, sourceLabel)
		if !ok {
			continue
		}
		entries = append(entries, entry)
	}

	r.log.Infow("Yape report parsed", "source", sourceLabel, "rows", len(rows)-1, "payments", len(entries))
	return entries, nil
}

func (r *YapeReader) parseRow(row []string, sourceLabel string) (domain.PaymentReportEntry, bool) {
	cell := func(idx int) string {
		if idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	kind := strings.ToUpper(cell(colTxKind))
	if !strings.Contains(kind, "PAGO") && !strings.Contains(kind, "PAGASTE") {
		return domain.PaymentReportEntry{}, false
	}

	amount, err := parseAmount(cell(colAmount))
	if err != nil || amount <= 0 {
		r.log.Debugw("Skipping row with unparseable amount", "value", cell(colAmount))
		return domain.PaymentReportEntry{}, false
	}

	occurredAt, err := parseDate(cell(colDate))
	if err != nil {
		r.log.Debugw("Skipping row with unparseable date", "value", cell(colDate))
		return domain.PaymentReportEntry{}, false
	}

	message := cell(colMessage)

	return domain.PaymentReportEntry{
		TxKind:       kind,
		Counterparty: cell(colOrigin),
		Amount:       amount,
		Note:         message,
		DNI:          ExtractDNI(message),
		OccurredAt:   occurredAt,
		SourceLabel:  sourceLabel,
	}, true
}

func parseAmount(raw string) (float64, error) {
	cleaned := strings.NewReplacer("S/", "", "s/", "", ",", "", " ", "").Replace(raw)
	return strconv.ParseFloat(cleaned, 64)
}

func parseDate(raw string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, nil
		}
	}
	// excelize puede entregar el número de serie de Excel
	if serial, err := strconv.ParseFloat(raw, 64); err == nil {
		ts, err := excelize.ExcelDateToTime(serial, false)
		if err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("ingest: unrecognized date %q", raw)
}
