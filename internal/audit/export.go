package audit

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatXML  Format = "xml"
)

// ParseFormat accepts json, csv or xml in any case.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatJSON, FormatCSV, FormatXML:
		return f, nil
	default:
		return "", &Error{Kind: KindExportFailure, Err: fmt.Errorf("unsupported format %q", s)}
	}
}

// record fixes the exported field order.
type record struct {
	XMLName   xml.Name        `json:"-" xml:"entry"`
	ID        string          `json:"id" xml:"id"`
	Index     uint64          `json:"index" xml:"index"`
	EventType string          `json:"event_type" xml:"event_type"`
	Timestamp string          `json:"timestamp" xml:"timestamp"`
	PrevHash  string          `json:"prev_hash" xml:"prev_hash"`
	Hash      string          `json:"integrity_hash" xml:"integrity_hash"`
	Payload   json.RawMessage `json:"payload" xml:"-"`
	XMLData   string          `json:"-" xml:"payload"`
}

type xmlDocument struct {
	XMLName xml.Name `xml:"audit_log"`
	Entries []record `xml:"entry"`
}

var csvHeader = []string{"id", "index", "event_type", "timestamp", "prev_hash", "integrity_hash", "payload"}

func toRecord(e Entry) record {
	return record{
		ID:        e.ID.String(),
		Index:     e.Index,
		EventType: string(e.Type),
		Timestamp: e.Timestamp.UTC().Format(time.RFC3339Nano),
		PrevHash:  e.PrevHash,
		Hash:      e.Hash,
		Payload:   json.RawMessage(e.Payload),
		XMLData:   string(e.Payload),
	}
}

func fromRecord(r record, payload []byte) (Entry, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return Entry{}, fmt.Errorf("entry id: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, r.Timestamp)
	if err != nil {
		return Entry{}, fmt.Errorf("entry %s timestamp: %w", r.ID, err)
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, payload); err != nil {
		return Entry{}, fmt.Errorf("entry %s payload: %w", r.ID, err)
	}
	return Entry{
		ID:        id,
		Index:     r.Index,
		Type:      EventType(r.EventType),
		Payload:   compact.Bytes(),
		Timestamp: ts.UTC(),
		PrevHash:  r.PrevHash,
		Hash:      r.Hash,
	}, nil
}

// Export renders the entries matching filter.
func (l *Ledger) Export(ctx context.Context, format Format, filter Filter) ([]byte, error) {
	entries, err := l.Logs(ctx, filter)
	if err != nil {
		return nil, err
	}
	return Encode(format, entries)
}

// Encode serializes entries with a fixed field order: id, index, event_type,
// timestamp, prev_hash, integrity_hash, payload.
func Encode(format Format, entries []Entry) ([]byte, error) {
	records := make([]record, len(entries))
	for i, e := range entries {
		records[i] = toRecord(e)
	}

	var buf bytes.Buffer
	switch format {
	case FormatJSON:
		if err := json.NewEncoder(&buf).Encode(records); err != nil {
			return nil, &Error{Kind: KindExportFailure, Err: err}
		}
	case FormatCSV:
		w := csv.NewWriter(&buf)
		rows := make([][]string, 0, len(records)+1)
		rows = append(rows, csvHeader)
		for _, r := range records {
			rows = append(rows, []string{r.ID, strconv.FormatUint(r.Index, 10), r.EventType, r.Timestamp, r.PrevHash, r.Hash, string(r.Payload)})
		}
		if err := w.WriteAll(rows); err != nil {
			return nil, &Error{Kind: KindExportFailure, Err: err}
		}
	case FormatXML:
		buf.WriteString(xml.Header)
		enc := xml.NewEncoder(&buf)
		enc.Indent("", "  ")
		if err := enc.Encode(xmlDocument{Entries: records}); err != nil {
			return nil, &Error{Kind: KindExportFailure, Err: err}
		}
	default:
		return nil, &Error{Kind: KindExportFailure, Err: fmt.Errorf("unsupported format %q", format)}
	}
	return buf.Bytes(), nil
}

// Parse reads an export back into entries.
func Parse(format Format, data []byte) ([]Entry, error) {
	var entries []Entry
	switch format {
	case FormatJSON:
		var records []record
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, &Error{Kind: KindExportFailure, Err: err}
		}
		for _, r := range records {
			e, err := fromRecord(r, r.Payload)
			if err != nil {
				return nil, &Error{Kind: KindExportFailure, Err: err}
			}
			entries = append(entries, e)
		}
	case FormatCSV:
		rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
		if err != nil {
			return nil, &Error{Kind: KindExportFailure, Err: err}
		}
		if len(rows) == 0 || strings.Join(rows[0], ",") != strings.Join(csvHeader, ",") {
			return nil, &Error{Kind: KindExportFailure, Err: fmt.Errorf("missing csv header")}
		}
		for _, row := range rows[1:] {
			index, err := strconv.ParseUint(row[1], 10, 64)
			if err != nil {
				return nil, &Error{Kind: KindExportFailure, Err: err}
			}
			r := record{ID: row[0], Index: index, EventType: row[2], Timestamp: row[3], PrevHash: row[4], Hash: row[5]}
			e, err := fromRecord(r, []byte(row[6]))
			if err != nil {
				return nil, &Error{Kind: KindExportFailure, Err: err}
			}
			entries = append(entries, e)
		}
	case FormatXML:
		var doc xmlDocument
		if err := xml.Unmarshal(data, &doc); err != nil {
			return nil, &Error{Kind: KindExportFailure, Err: err}
		}
		for _, r := range doc.Entries {
			e, err := fromRecord(r, []byte(r.XMLData))
			if err != nil {
				return nil, &Error{Kind: KindExportFailure, Err: err}
			}
			entries = append(entries, e)
		}
	default:
		return nil, &Error{Kind: KindExportFailure, Err: fmt.Errorf("unsupported format %q", format)}
	}
	return entries, nil
}
