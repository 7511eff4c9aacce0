package flbin

import "hash/crc32"

// castagnoliTable is the CRC-32C (Castagnoli, polynomial 0x1EDC6F41)
// table used for batch integrity checks. hash/crc32 ships this table
// directly; no example repo in this ecosystem reaches for a third-party
// CRC implementation; other_examples'
// lightkafka/internal/message/record_batch.go computes the same
// checksum the same way (crc32.MakeTable(crc32.Castagnoli)).
var castagnoliTable = crc32.MakeTable(crc32.Castagnoli)

// CRC32C computes the CRC-32C (Castagnoli) checksum of b.
func CRC32C(b []byte) uint32 {
	return crc32.Checksum(b, castagnoliTable)
}
