package aspike

import (
	"encoding/binary"

	"github.com/synnergy-kv/aspike/internal/codec"
)

// PartitionFilter scopes a Scan or Query to a subset of partitions: every
// partition, a single partition id, a contiguous range, a single partition
// resumed after a given digest, or a full PartitionsStatus resume blob.
type PartitionFilter struct {
	All         bool
	PartitionID int
	Count       int
	AfterDigest *[20]byte
	Resume      *PartitionsStatus
}

// AllPartitions scopes to every partition.
func AllPartitions() PartitionFilter { return PartitionFilter{All: true} }

// PartitionRange scopes to [begin, begin+count).
func PartitionRange(begin, count int) PartitionFilter {
	return PartitionFilter{PartitionID: begin, Count: count}
}

// SinglePartition scopes to exactly one partition id.
func SinglePartition(id int) PartitionFilter {
	return PartitionFilter{PartitionID: id, Count: 1}
}

// PartitionAfterDigest scopes to one partition, resuming after the given
// digest in digest order.
func PartitionAfterDigest(id int, digest [20]byte) PartitionFilter {
	return PartitionFilter{PartitionID: id, Count: 1, AfterDigest: &digest}
}

// ResumePartitions scopes to the partitions a previous scan/query left
// unfinished, as captured in its PartitionsStatus.
func ResumePartitions(s *PartitionsStatus) PartitionFilter {
	return PartitionFilter{Resume: s}
}

// partitionStatusEntry tracks one partition's scan/query progress.
type partitionStatusEntry struct {
	ID         uint16
	Retry      bool
	DigestInit bool
	Digest     [20]byte
	BVal       uint64
}

// PartitionsStatus is the caller-serializable resumption state for a
// truncated scan or query: which partitions are done, which need retry,
// and the last digest seen in each so a resumed stream can skip
// already-delivered records exactly once.
type PartitionsStatus struct {
	PartBegin uint16
	PartCount uint16
	Done      bool
	Retry     bool
	Entries   []partitionStatusEntry
}

// NewPartitionsStatus creates tracking state for [begin, begin+count).
func NewPartitionsStatus(begin, count int) *PartitionsStatus {
	entries := make([]partitionStatusEntry, count)
	for i := range entries {
		entries[i].ID = uint16(begin + i)
	}
	return &PartitionsStatus{PartBegin: uint16(begin), PartCount: uint16(count), Entries: entries}
}

// MarkDigest records the last digest delivered for a partition, so a
// resumed query can skip everything up to and including it.
func (s *PartitionsStatus) MarkDigest(partitionID int, digest [20]byte, bval uint64) {
	for i := range s.Entries {
		if int(s.Entries[i].ID) == partitionID {
			s.Entries[i].DigestInit = true
			s.Entries[i].Digest = digest
			s.Entries[i].BVal = bval
			return
		}
	}
}

// MarkRetry flags a partition that had not begun when max-records was
// exceeded, so the next resume retries it from scratch.
func (s *PartitionsStatus) MarkRetry(partitionID int) {
	for i := range s.Entries {
		if int(s.Entries[i].ID) == partitionID {
			s.Entries[i].Retry = true
			return
		}
	}
	s.Retry = true
}

// markResumeProgress records a delivered record's digest into the resume
// status, keyed by its partition id masked to the namespace's partition
// count, the same mapping the router uses to pick a node. No-op when no
// resume status is being tracked or the record carried no digest.
func markResumeProgress(st *PartitionsStatus, k *Key, numPartitions int) {
	if st == nil || !k.digestSet {
		return
	}
	st.MarkDigest(codec.PartitionID(k.digest, numPartitions), k.digest, 0)
}

// finishResumeTracking finalizes a resume status once a streamed command
// returns: a truncated stream marks every partition that never delivered a
// record for retry, so the next resume picks them up from scratch; a
// stream that ran to completion without error marks the status done.
func finishResumeTracking(st *PartitionsStatus, truncated bool, err error) {
	if st == nil {
		return
	}
	if truncated {
		for i := range st.Entries {
			if !st.Entries[i].DigestInit {
				st.Entries[i].Retry = true
			}
		}
		return
	}
	if err == nil {
		st.Done = true
	}
}

// partitionsStatusEntrySize is the fixed per-partition record size: id(2) +
// retry(1) + digest-init(1) + digest(20) + bval(8).
const partitionsStatusEntrySize = 2 + 1 + 1 + 20 + 8

// Serialize encodes a PartitionsStatus into its opaque blob layout:
// u16 part-begin, u16 part-count, u8 done, u8 retry, then per partition
// u16 id, u8 retry, u8 digest-init, 20B digest, u64 bval.
func (s *PartitionsStatus) Serialize() []byte {
	buf := make([]byte, 6+len(s.Entries)*partitionsStatusEntrySize)
	binary.BigEndian.PutUint16(buf[0:2], s.PartBegin)
	binary.BigEndian.PutUint16(buf[2:4], s.PartCount)
	buf[4] = boolByte(s.Done)
	buf[5] = boolByte(s.Retry)

	off := 6
	for _, e := range s.Entries {
		binary.BigEndian.PutUint16(buf[off:off+2], e.ID)
		buf[off+2] = boolByte(e.Retry)
		buf[off+3] = boolByte(e.DigestInit)
		copy(buf[off+4:off+24], e.Digest[:])
		binary.BigEndian.PutUint64(buf[off+24:off+32], e.BVal)
		off += partitionsStatusEntrySize
	}
	return buf
}

// DeserializePartitionsStatus decodes a blob produced by Serialize. It
// returns a client error if the blob's length doesn't match its own
// declared partition count, since a truncated or corrupted blob must not
// silently resume a wrong subset of partitions.
func DeserializePartitionsStatus(blob []byte) (*PartitionsStatus, error) {
	if len(blob) < 6 {
		return nil, newClientErr("partitions status blob too short")
	}
	s := &PartitionsStatus{
		PartBegin: binary.BigEndian.Uint16(blob[0:2]),
		PartCount: binary.BigEndian.Uint16(blob[2:4]),
		Done:      blob[4] != 0,
		Retry:     blob[5] != 0,
	}
	want := 6 + int(s.PartCount)*partitionsStatusEntrySize
	if len(blob) != want {
		return nil, newClientErr("partitions status blob length mismatch")
	}
	s.Entries = make([]partitionStatusEntry, s.PartCount)
	off := 6
	for i := range s.Entries {
		e := &s.Entries[i]
		e.ID = binary.BigEndian.Uint16(blob[off : off+2])
		e.Retry = blob[off+2] != 0
		e.DigestInit = blob[off+3] != 0
		copy(e.Digest[:], blob[off+4:off+24])
		e.BVal = binary.BigEndian.Uint64(blob[off+24 : off+32])
		off += partitionsStatusEntrySize
	}
	return s, nil
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
