package middleware

import (
	"encoding/csv"
	"encoding/json"
	"strings"

	"github.com/Roblox/rojo/internal/snapshot"
)

// localeRow is a single parsed row of a *.csv localization table.
type localeRow struct {
	Key     string            `json:"Key"`
	Context string            `json:"Context"`
	Example string            `json:"Example"`
	Source  string            `json:"Source"`
	Values  map[string]string `json:"Values"`
}

// snapshotCSV turns a *.csv file into a LocalizationTable instance: each row
// becomes a {key, context, example, source, values} entry, JSON-serialized
// as a single list in the Contents property (spec §4.E.3).
func snapshotCSV(ctx snapshot.InstanceContext, fs FileSystem, path, base string) (*snapshot.InstanceSnapshot, bool, error) {
	if !strings.HasSuffix(base, ".csv") {
		return nil, false, nil
	}

	data, err := fs.Read(path)
	if err != nil {
		return nil, true, err
	}

	rows, err := parseLocaleCSV(data)
	if err != nil {
		return nil, true, decodeErrorf(path, "parsing localization csv: %v", err)
	}

	contents, err := json.Marshal(rows)
	if err != nil {
		return nil, true, decodeErrorf(path, "serializing localization table: %v", err)
	}

	name := stem(base, ".csv")
	snap := snapshot.New(name, "LocalizationTable").
		WithProperty("Contents", snapshot.String(string(contents)))
	snap.Metadata = snap.Metadata.
		WithInstigatingSource(snapshot.NewPathSource(path)).
		WithRelevantPaths([]string{path}).
		WithContext(ctx)

	return snap, true, nil
}

// parseLocaleCSV expects a header row (Key,Source,Context,Example, then one
// column per locale code) followed by data rows, matching Rojo's
// localization table convention.
func parseLocaleCSV(data []byte) ([]localeRow, error) {
	r := csv.NewReader(strings.NewReader(string(data)))
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	header := records[0]
	colIndex := map[string]int{}
	var localeCols []string
	for i, col := range header {
		switch strings.ToLower(col) {
		case "key", "source", "context", "example":
			colIndex[strings.ToLower(col)] = i
		default:
			if col != "" {
				localeCols = append(localeCols, col)
				colIndex[col] = i
			}
		}
	}

	rows := make([]localeRow, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := localeRow{Values: map[string]string{}}
		if i, ok := colIndex["key"]; ok && i < len(rec) {
			row.Key = rec[i]
		}
		if i, ok := colIndex["context"]; ok && i < len(rec) {
			row.Context = rec[i]
		}
		if i, ok := colIndex["example"]; ok && i < len(rec) {
			row.Example = rec[i]
		}
		if i, ok := colIndex["source"]; ok && i < len(rec) {
			row.Source = rec[i]
		}
		for _, locale := range localeCols {
			if i := colIndex[locale]; i < len(rec) {
				row.Values[locale] = rec[i]
			}
		}
		rows = append(rows, row)
	}

	return rows, nil
}
