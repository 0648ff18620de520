package voice

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/dl9xyz/dmrgateway/pkg/protocol"
)

// writeTestPhrase writes n one-AMBE-frame records to path, each with a
// distinct, easily recognised A parameter so tests can tell phrases
// apart.
func writeTestPhrase(t *testing.T, path string, frameCount int, tag uint32) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	var buf [12]byte
	for i := 0; i < frameCount; i++ {
		binary.BigEndian.PutUint32(buf[0:4], tag)
		binary.BigEndian.PutUint32(buf[4:8], tag)
		binary.BigEndian.PutUint32(buf[8:12], tag)
		if _, err := f.Write(buf[:]); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
}

func writeTestPhraseBook(t *testing.T, directory, language string) {
	t.Helper()
	dir := filepath.Join(directory, language)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}

	for i := 0; i < 10; i++ {
		writeTestPhrase(t, filepath.Join(dir, string(rune('0'+i))+".ambe"), 3, uint32(i))
	}
	writeTestPhrase(t, filepath.Join(dir, "linked.ambe"), 3, 100)
	writeTestPhrase(t, filepath.Join(dir, "unlinked.ambe"), 3, 101)
	writeTestPhrase(t, filepath.Join(dir, "to.ambe"), 3, 102)
	writeTestPhrase(t, filepath.Join(dir, "reflector.ambe"), 3, 103)
}

func TestSource_OpenLoadsPhraseBook(t *testing.T) {
	dir := t.TempDir()
	writeTestPhraseBook(t, dir, "en_US")

	s := NewSource(dir, "en_US", 312000, 2, 9, nil)
	if err := s.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if s.book == nil {
		t.Fatal("expected phrase book to be loaded")
	}
}

func TestSource_OpenMissingDirectoryFails(t *testing.T) {
	s := NewSource(t.TempDir(), "missing", 312000, 2, 9, nil)
	if err := s.Open(); err == nil {
		t.Fatal("expected Open to fail for a missing phrase directory")
	}
}

func TestSource_LinkedToProducesVoiceSequence(t *testing.T) {
	dir := t.TempDir()
	writeTestPhraseBook(t, dir, "en_US")

	s := NewSource(dir, "en_US", 312000, 2, 9, nil)
	if err := s.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}

	s.LinkedTo(4005)

	var got []protocol.Frame
	for {
		f, ok, err := s.Read()
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		if !ok {
			break
		}
		got = append(got, f)
	}

	if len(got) < 2 {
		t.Fatalf("expected at least a header and terminator, got %d frames", len(got))
	}
	if got[0].DataType != protocol.VoiceLCHeader {
		t.Errorf("first frame DataType = %v, want VoiceLCHeader", got[0].DataType)
	}
	last := got[len(got)-1]
	if last.DataType != protocol.TerminatorWithLC {
		t.Errorf("last frame DataType = %v, want TerminatorWithLC", last.DataType)
	}

	for _, f := range got {
		if f.Slot != 2 {
			t.Errorf("frame slot = %d, want 2", f.Slot)
		}
		if f.DstID != 9 {
			t.Errorf("frame dst = %d, want 9", f.DstID)
		}
		if f.SrcID != 312000 {
			t.Errorf("frame src = %d, want 312000", f.SrcID)
		}
		if f.CallType != protocol.Group {
			t.Errorf("frame call type = %v, want Group", f.CallType)
		}
	}
}

func TestSource_UnlinkedThenDrainedQueueIsEmpty(t *testing.T) {
	dir := t.TempDir()
	writeTestPhraseBook(t, dir, "en_US")

	s := NewSource(dir, "en_US", 312000, 1, 8, nil)
	if err := s.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}

	s.Unlinked()

	count := 0
	for {
		_, ok, err := s.Read()
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		if !ok {
			break
		}
		count++
	}
	if count == 0 {
		t.Fatal("expected at least one frame from an unlinked announcement")
	}

	// The queue is now empty: another Read must report nothing available
	// without blocking or erroring, per the voice source polling contract.
	if _, ok, err := s.Read(); ok || err != nil {
		t.Fatalf("expected Read to report nothing available, got ok=%v err=%v", ok, err)
	}
}

func TestSource_ReadBeforeOpenIsEmpty(t *testing.T) {
	s := NewSource(t.TempDir(), "en_US", 312000, 1, 8, nil)
	if _, ok, err := s.Read(); ok || err != nil {
		t.Fatalf("expected Read to report nothing available before Open, got ok=%v err=%v", ok, err)
	}
}

func TestSource_StreamIDIncrementsPerAnnouncement(t *testing.T) {
	dir := t.TempDir()
	writeTestPhraseBook(t, dir, "en_US")

	s := NewSource(dir, "en_US", 312000, 1, 8, nil)
	if err := s.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}

	s.Unlinked()
	first, _, _ := s.Read()

	// Drain the rest of the first announcement.
	for {
		_, ok, _ := s.Read()
		if !ok {
			break
		}
	}

	s.Unlinked()
	second, _, _ := s.Read()

	if second.StreamID == first.StreamID {
		t.Errorf("expected distinct stream IDs per announcement, got %d twice", first.StreamID)
	}
}
