package sorter

import "sync/atomic"

// Progress holds live counters updated by the walker and the file tasks.
// All fields are atomic so they can be written from task goroutines and read
// from the HTTP handler without locks.
type Progress struct {
	FilesDiscovered atomic.Int64
	FilesDone       atomic.Int64
	Copied          atomic.Int64
	Renamed         atomic.Int64
	Skipped         atomic.Int64
	Failed          atomic.Int64
	Warnings        atomic.Int64
	BytesHashed     atomic.Int64
	BytesCopied     atomic.Int64
}

// record counts a finished file.
func (p *Progress) record(e Entry) {
	p.FilesDone.Add(1)
	switch e.Disposition {
	case Copy:
		p.Copied.Add(1)
	case RenameAndCopy:
		p.Renamed.Add(1)
	case SkipDuplicate:
		p.Skipped.Add(1)
	case Failed:
		p.Failed.Add(1)
	}
}
