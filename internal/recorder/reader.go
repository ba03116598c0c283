package recorder

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/banshee-data/myolink/internal/classifier"
	"github.com/banshee-data/myolink/internal/features"
)

// ReadTimingLog parses a timing log. Header lines are skipped wherever they
// appear so logs concatenated from several runs parse cleanly.
func ReadTimingLog(r io.Reader) ([]TimingRecord, error) {
	rows, err := readRows(r, TimingHeader)
	if err != nil {
		return nil, err
	}

	out := make([]TimingRecord, 0, len(rows))
	for _, row := range rows {
		ts, err := time.Parse(time.RFC3339Nano, row.fields[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid time %q: %w", row.line, row.fields[0], err)
		}
		pred, err := strconv.Atoi(row.fields[1])
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid prediction %q: %w", row.line, row.fields[1], err)
		}
		ms, err := strconv.ParseFloat(row.fields[2], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid processing time %q: %w", row.line, row.fields[2], err)
		}
		out = append(out, TimingRecord{
			Time:           ts,
			Prediction:     classifier.Label(pred),
			ProcessingTime: time.Duration(ms * float64(time.Millisecond)),
		})
	}
	return out, nil
}

// ReadTrainingLog parses a training log.
func ReadTrainingLog(r io.Reader) ([]TrainingRecord, error) {
	rows, err := readRows(r, TrainingHeader)
	if err != nil {
		return nil, err
	}

	out := make([]TrainingRecord, 0, len(rows))
	for _, row := range rows {
		var v features.Vector
		for i := 0; i < features.Size; i++ {
			x, err := strconv.ParseFloat(row.fields[i], 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid %s %q: %w", row.line, features.Names[i], row.fields[i], err)
			}
			v[i] = x
		}
		label, err := strconv.Atoi(row.fields[features.Size])
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid label %q: %w", row.line, row.fields[features.Size], err)
		}
		out = append(out, TrainingRecord{Features: v, Label: classifier.Label(label)})
	}
	return out, nil
}

type csvRow struct {
	line   int
	fields []string
}

func readRows(r io.Reader, header []string) ([]csvRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(header)

	var rows []csvRow
	for {
		fields, err := cr.Read()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		if isHeader(fields, header) {
			continue
		}
		line, _ := cr.FieldPos(0)
		rows = append(rows, csvRow{line: line, fields: fields})
	}
}

func isHeader(fields, header []string) bool {
	for i := range header {
		if fields[i] != header[i] {
			return false
		}
	}
	return true
}
