package voice

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dl9xyz/dmrgateway/pkg/codec"
)

// Phrase is a pre-recorded word or tone: a sequence of AMBE-encoded
// voice frames (20ms each) as produced offline from an audio sample.
type Phrase []codec.AMBEFrame

// loadPhrase reads a phrase file: a flat sequence of 12-byte records,
// each three big-endian uint32 AMBE parameter groups (A, B, C). The
// on-disk format is this package's own; only the in-memory shape
// pkg/codec.EmbedVoiceSuperframe expects is load-bearing.
func loadPhrase(path string) (Phrase, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var phrase Phrase
	r := bufio.NewReader(f)
	for {
		var buf [12]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("voice: reading phrase %s: %w", path, err)
		}
		phrase = append(phrase, codec.AMBEFrame{
			A: binary.BigEndian.Uint32(buf[0:4]),
			B: binary.BigEndian.Uint32(buf[4:8]),
			C: binary.BigEndian.Uint32(buf[8:12]),
		})
	}
	return phrase, nil
}

// PhraseBook holds the decoded phrases for one voice language
// directory: the ten digits, and the fixed words the gateway
// concatenates into "linked to reflector NNNN" / "unlinked"
// announcements.
type PhraseBook struct {
	digit     [10]Phrase
	linked    Phrase
	unlinked  Phrase
	to        Phrase
	reflector Phrase
}

// loadPhraseBook loads every phrase under directory/language.
func loadPhraseBook(directory, language string) (*PhraseBook, error) {
	base := filepath.Join(directory, language)
	pb := &PhraseBook{}

	for i := 0; i < 10; i++ {
		p, err := loadPhrase(filepath.Join(base, fmt.Sprintf("%d.ambe", i)))
		if err != nil {
			return nil, err
		}
		pb.digit[i] = p
	}

	named := map[string]*Phrase{
		"linked.ambe":    &pb.linked,
		"unlinked.ambe":  &pb.unlinked,
		"to.ambe":        &pb.to,
		"reflector.ambe": &pb.reflector,
	}
	for file, dst := range named {
		p, err := loadPhrase(filepath.Join(base, file))
		if err != nil {
			return nil, err
		}
		*dst = p
	}

	return pb, nil
}

// digitsOf returns the phrases spelling out n's decimal digits, most
// significant first.
func (pb *PhraseBook) digitsOf(n uint32) []Phrase {
	s := fmt.Sprintf("%d", n)
	phrases := make([]Phrase, 0, len(s))
	for _, c := range s {
		phrases = append(phrases, pb.digit[c-'0'])
	}
	return phrases
}

// linkedToAnnouncement builds the phrase sequence for "linked to
// reflector NNNN".
func (pb *PhraseBook) linkedToAnnouncement(reflector uint32) []Phrase {
	phrases := []Phrase{pb.linked, pb.to, pb.reflector}
	return append(phrases, pb.digitsOf(reflector)...)
}

// unlinkedAnnouncement builds the phrase sequence for "unlinked".
func (pb *PhraseBook) unlinkedAnnouncement() []Phrase {
	return []Phrase{pb.unlinked}
}
