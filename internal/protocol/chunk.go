package protocol

// BlockSize is how many bytes the board ingests per paced write.
const BlockSize = 20

// Chunk splits payload into BlockSize blocks followed by a tail block.
//
// The tail is the last len(payload)%BlockSize bytes of payload. When the
// payload divides evenly and legacyTail is set, the tail is the whole
// payload, so it goes out twice; this is what deployed firmware has always
// received. Without legacyTail an even payload has no tail.
func Chunk(payload []byte, legacyTail bool) [][]byte {
	blocks := len(payload) / BlockSize
	surplus := len(payload) % BlockSize

	chunks := make([][]byte, 0, blocks+1)
	for i := 0; i < blocks; i++ {
		chunks = append(chunks, payload[i*BlockSize:(i+1)*BlockSize])
	}
	switch {
	case surplus > 0:
		chunks = append(chunks, payload[len(payload)-surplus:])
	case legacyTail:
		chunks = append(chunks, payload)
	}
	return chunks
}
