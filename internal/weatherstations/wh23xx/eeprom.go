package wh23xx

import (
	"context"
	"fmt"
	"time"
)

// Console memory map
//
//	0x0000-0x0258  system, max/min, alarms
//	0x0259-0x02c7  page flags: records per page, 0x01..0x20 or 0xff
//	0x02c8-0x063f  110 8-byte timestamp segments, one per page
//	0x0640-0xffff  3552 18-byte history records
const (
	PageFlagsAddr      = 0x0259
	TableAddr          = 0x02c8
	TableEntries       = 110
	TableEntrySize     = 8
	HistoryRecordsAddr = 0x0640
	HistoryRecords     = 3552
)

// TableEntry is the timestamp segment stored for a page of history records
type TableEntry struct {
	Valid    bool
	Time     time.Time
	Interval int // seconds between records
}

func (e TableEntry) String() string {
	if !e.Valid {
		return "(empty)"
	}
	return fmt.Sprintf("%s %ds", e.Time.Format("2006.01.02 15:04:05"), e.Interval)
}

// DecodeTableEntry decodes year, month, day, hour, minute, second and a
// little-endian interval. Erased or out-of-range segments decode as invalid.
func DecodeTableEntry(raw []byte, loc *time.Location) (TableEntry, error) {
	if len(raw) < TableEntrySize {
		return TableEntry{}, protoErr("decode table entry", ErrTruncated, "%d bytes, need %d", len(raw), TableEntrySize)
	}
	if loc == nil {
		loc = time.Local
	}
	year, month, day := int(raw[0]), int(raw[1]), int(raw[2])
	hour, minute, second := int(raw[3]), int(raw[4]), int(raw[5])
	if year > 99 || month < 1 || month > 12 || day < 1 || day > 31 || hour > 23 || minute > 59 || second > 59 {
		return TableEntry{}, nil
	}
	return TableEntry{
		Valid:    true,
		Time:     time.Date(2000+year, time.Month(month), day, hour, minute, second, 0, loc),
		Interval: le16(raw, 6),
	}, nil
}

// ReadTableEntry reads the timestamp segment for history page i
func (s *Station) ReadTableEntry(ctx context.Context, i int) (TableEntry, error) {
	if i < 0 || i >= TableEntries {
		return TableEntry{}, protoErr("read_table_entry", ErrBadRequest, "index %d out of range 0..%d", i, TableEntries-1)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.readEEPROMRetry(ctx, uint16(TableAddr+TableEntrySize*i), TableEntrySize)
	if err != nil {
		return TableEntry{}, err
	}
	return DecodeTableEntry(raw, s.opts.Location)
}

// ReadHistoryRecord reads the raw 18-byte history record i. Decode it with
// DecodeHistoryRecordWith and the station's UV scaling.
func (s *Station) ReadHistoryRecord(ctx context.Context, i int) ([]byte, error) {
	if i < 0 || i >= HistoryRecords {
		return nil, protoErr("read_history_record", ErrBadRequest, "index %d out of range 0..%d", i, HistoryRecords-1)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.readEEPROMRetry(ctx, uint16(HistoryRecordsAddr+HistoryRecordSize*i), HistoryRecordSize)
}

// ReadHistory reads and decodes history record i
func (s *Station) ReadHistory(ctx context.Context, i int) (Observations, error) {
	raw, err := s.ReadHistoryRecord(ctx, i)
	if err != nil {
		return nil, err
	}
	return DecodeHistoryRecordWith(s.opts.UVScaling, raw), nil
}
