package game

import (
	crand "crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"sort"
	"strings"
)

// tilePalette supplies the pair symbols. The deck takes the first N; layout
// randomness comes from the shuffle, not the symbol choice.
var tilePalette = []string{
	"rose", "lily", "tulip", "orchid", "peony", "daisy",
	"iris", "lotus", "poppy", "aster", "dahlia", "violet",
	"jasmine", "marigold", "camellia", "freesia",
}

// Deck is one shuffled arrangement of paired tiles plus the fingerprint of
// its correct pairing. The server hands out the tiles and keeps nothing; the
// fingerprint travels inside the signed token.
type Deck struct {
	Tiles       []string
	Fingerprint string
}

// NewDeck builds a shuffled deck of pairs tiles-of-two and fingerprints the
// correct pairing bound to nonce. The shuffle draws from crypto/rand so the
// layout is unpredictable, not merely well mixed.
func NewDeck(pairs int, nonce string) (Deck, error) {
	if pairs < 2 || pairs > len(tilePalette) {
		return Deck{}, fmt.Errorf("deck pairs must be between 2 and %d", len(tilePalette))
	}

	tiles := make([]string, 0, pairs*2)
	for _, sym := range tilePalette[:pairs] {
		tiles = append(tiles, sym, sym)
	}
	if err := shuffle(tiles); err != nil {
		return Deck{}, err
	}

	positions := map[string][]int{}
	for i, sym := range tiles {
		positions[sym] = append(positions[sym], i)
	}
	solution := make([][2]int, 0, pairs)
	for _, pos := range positions {
		solution = append(solution, [2]int{pos[0], pos[1]})
	}

	return Deck{Tiles: tiles, Fingerprint: FingerprintPairs(nonce, solution)}, nil
}

// FingerprintPairs digests a claimed pairing under the same canonical form
// the generator used, salted with the session nonce so an identical layout in
// another session never shares a fingerprint.
func FingerprintPairs(nonce string, pairs [][2]int) string {
	canon := make([]string, 0, len(pairs))
	for _, p := range pairs {
		lo, hi := p[0], p[1]
		if lo > hi {
			lo, hi = hi, lo
		}
		canon = append(canon, fmt.Sprintf("%d:%d", lo, hi))
	}
	sort.Strings(canon)
	sum := sha256.Sum256([]byte(nonce + "|" + strings.Join(canon, ";")))
	return hex.EncodeToString(sum[:])
}

// shuffle is a Fisher-Yates pass with uniform crypto/rand draws, so every
// permutation is reachable with equal probability.
func shuffle(tiles []string) error {
	for i := len(tiles) - 1; i > 0; i-- {
		n, err := crand.Int(crand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return fmt.Errorf("shuffle draw: %w", err)
		}
		j := int(n.Int64())
		tiles[i], tiles[j] = tiles[j], tiles[i]
	}
	return nil
}
