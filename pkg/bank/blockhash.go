package bank

import (
	"encoding/binary"

	"github.com/gagliardetto/solana-go"
	"github.com/minio/sha256-simd"
)

// MaxRecentBlockhashes is how many blockhashes stay valid for new transactions.
const MaxRecentBlockhashes = 300

var genesisSeed = []byte("bankrun genesis")

func nextBlockhash(prev solana.Hash, slot uint64) solana.Hash {
	var slotBytes [8]byte
	binary.LittleEndian.PutUint64(slotBytes[:], slot)

	hasher := sha256.New()
	hasher.Write(prev[:])
	hasher.Write(slotBytes[:])

	var hash solana.Hash
	copy(hash[:], hasher.Sum(nil))
	return hash
}

func genesisBlockhash(slot uint64) solana.Hash {
	return nextBlockhash(solana.HashFromBytes(sha256Sum(genesisSeed)), slot)
}

func sha256Sum(b []byte) []byte {
	sum := sha256.Sum256(b)
	return sum[:]
}

// blockhashQueue holds the recent blockhashes in age order, oldest first.
type blockhashQueue struct {
	hashes []solana.Hash
	slots  map[solana.Hash]uint64
}

func newBlockhashQueue() *blockhashQueue {
	return &blockhashQueue{slots: make(map[solana.Hash]uint64)}
}

func (q *blockhashQueue) push(hash solana.Hash, slot uint64) {
	q.hashes = append(q.hashes, hash)
	q.slots[hash] = slot
	if len(q.hashes) > MaxRecentBlockhashes {
		delete(q.slots, q.hashes[0])
		q.hashes = q.hashes[1:]
	}
}

func (q *blockhashQueue) isValid(hash solana.Hash) bool {
	_, ok := q.slots[hash]
	return ok
}

func (q *blockhashQueue) latest() solana.Hash {
	return q.hashes[len(q.hashes)-1]
}
