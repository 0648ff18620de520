package database

import (
	"os"
	"testing"
	"time"

	"github.com/dl9xyz/dmrgateway/pkg/logger"
	"github.com/dl9xyz/dmrgateway/pkg/protocol"
	"github.com/dl9xyz/dmrgateway/pkg/slot"
)

func claimFrame(streamID, radioID, talkgroupID, repeaterID uint32, timeslot int, dt protocol.DataType) protocol.Frame {
	return protocol.Frame{
		Slot:       timeslot,
		SrcID:      radioID,
		DstID:      talkgroupID,
		RepeaterID: repeaterID,
		StreamID:   streamID,
		DataType:   dt,
	}
}

func TestTransmissionLogger_SlotClaimedTracksAndFlushesOnTerminator(t *testing.T) {
	log := logger.New(logger.Config{Level: "error"})
	dbPath := "/tmp/test_tx_logger.db"
	defer func() {
		if err := os.Remove(dbPath); err != nil && !os.IsNotExist(err) {
			t.Fatalf("failed to remove db file %s: %v", dbPath, err)
		}
	}()

	db, err := NewDB(Config{Path: dbPath}, log)
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			t.Fatalf("failed to close db: %v", err)
		}
	}()

	repo := NewTransmissionRepository(db.GetDB())
	txLogger := NewTransmissionLogger(repo, log)

	streamID := uint32(12345)
	radioID := uint32(1234567)
	talkgroupID := uint32(91)
	timeslot := 1
	repeaterID := uint32(3001)

	txLogger.SlotClaimed(claimFrame(streamID, radioID, talkgroupID, repeaterID, timeslot, protocol.VoiceLCHeader), slot.DmrNet1)

	if count := txLogger.GetActiveStreamCount(); count != 1 {
		t.Errorf("expected 1 active stream, got %d", count)
	}

	time.Sleep(200 * time.Millisecond)
	txLogger.SlotClaimed(claimFrame(streamID, radioID, talkgroupID, repeaterID, timeslot, protocol.VoiceBurstA), slot.DmrNet1)
	time.Sleep(200 * time.Millisecond)
	txLogger.SlotClaimed(claimFrame(streamID, radioID, talkgroupID, repeaterID, timeslot, protocol.VoiceBurstB), slot.DmrNet1)

	time.Sleep(200 * time.Millisecond)
	txLogger.SlotClaimed(claimFrame(streamID, radioID, talkgroupID, repeaterID, timeslot, protocol.TerminatorWithLC), slot.DmrNet1)

	if count := txLogger.GetActiveStreamCount(); count != 0 {
		t.Errorf("expected 0 active streams after terminator, got %d", count)
	}

	transmissions, err := repo.GetRecent(1)
	if err != nil {
		t.Fatalf("failed to get transmissions: %v", err)
	}
	if len(transmissions) != 1 {
		t.Fatalf("expected 1 transmission, got %d", len(transmissions))
	}

	tx := transmissions[0]
	if tx.RadioID != radioID {
		t.Errorf("expected radio ID %d, got %d", radioID, tx.RadioID)
	}
	if tx.TalkgroupID != talkgroupID {
		t.Errorf("expected talkgroup ID %d, got %d", talkgroupID, tx.TalkgroupID)
	}
	if tx.Timeslot != timeslot {
		t.Errorf("expected timeslot %d, got %d", timeslot, tx.Timeslot)
	}
	if tx.StreamID != streamID {
		t.Errorf("expected stream ID %d, got %d", streamID, tx.StreamID)
	}
	if tx.PacketCount != 4 {
		t.Errorf("expected packet count 4, got %d", tx.PacketCount)
	}
	if tx.Duration <= 0 {
		t.Errorf("expected positive duration, got %f", tx.Duration)
	}
}

func TestTransmissionLogger_MultipleStreamsTrackedIndependently(t *testing.T) {
	log := logger.New(logger.Config{Level: "error"})
	dbPath := "/tmp/test_tx_logger_multi.db"
	defer func() {
		if err := os.Remove(dbPath); err != nil && !os.IsNotExist(err) {
			t.Fatalf("failed to remove db file %s: %v", dbPath, err)
		}
	}()

	db, err := NewDB(Config{Path: dbPath}, log)
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			t.Fatalf("failed to close db: %v", err)
		}
	}()

	repo := NewTransmissionRepository(db.GetDB())
	txLogger := NewTransmissionLogger(repo, log)

	stream1 := uint32(11111)
	stream2 := uint32(22222)

	txLogger.SlotClaimed(claimFrame(stream1, 1000001, 91, 3001, 1, protocol.VoiceLCHeader), slot.DmrNet1)
	txLogger.SlotClaimed(claimFrame(stream2, 1000002, 92, 3001, 2, protocol.VoiceLCHeader), slot.DmrNet2)

	if count := txLogger.GetActiveStreamCount(); count != 2 {
		t.Errorf("expected 2 active streams, got %d", count)
	}

	time.Sleep(600 * time.Millisecond)

	txLogger.SlotClaimed(claimFrame(stream1, 1000001, 91, 3001, 1, protocol.TerminatorWithLC), slot.DmrNet1)

	if count := txLogger.GetActiveStreamCount(); count != 1 {
		t.Errorf("expected 1 active stream after ending first, got %d", count)
	}

	txLogger.SlotClaimed(claimFrame(stream2, 1000002, 92, 3001, 2, protocol.TerminatorWithLC), slot.DmrNet2)

	if count := txLogger.GetActiveStreamCount(); count != 0 {
		t.Errorf("expected 0 active streams after ending both, got %d", count)
	}

	transmissions, err := repo.GetRecent(10)
	if err != nil {
		t.Fatalf("failed to get transmissions: %v", err)
	}
	if len(transmissions) != 2 {
		t.Fatalf("expected 2 transmissions, got %d", len(transmissions))
	}
}

func TestTransmissionLogger_CleanupStaleStreamsFlushesLostTerminator(t *testing.T) {
	log := logger.New(logger.Config{Level: "error"})
	dbPath := "/tmp/test_tx_logger_cleanup.db"
	defer func() {
		if err := os.Remove(dbPath); err != nil && !os.IsNotExist(err) {
			t.Fatalf("failed to remove db file %s: %v", dbPath, err)
		}
	}()

	db, err := NewDB(Config{Path: dbPath}, log)
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			t.Fatalf("failed to close db: %v", err)
		}
	}()

	repo := NewTransmissionRepository(db.GetDB())
	txLogger := NewTransmissionLogger(repo, log)

	streamID := uint32(99999)
	txLogger.SlotClaimed(claimFrame(streamID, 1000001, 91, 3001, 1, protocol.VoiceLCHeader), slot.DmrNet1)

	if count := txLogger.GetActiveStreamCount(); count != 1 {
		t.Errorf("expected 1 active stream, got %d", count)
	}

	time.Sleep(600 * time.Millisecond)
	txLogger.SlotClaimed(claimFrame(streamID, 1000001, 91, 3001, 1, protocol.VoiceBurstA), slot.DmrNet1)

	time.Sleep(100 * time.Millisecond)
	txLogger.CleanupStaleStreams(10 * time.Millisecond)

	if count := txLogger.GetActiveStreamCount(); count != 0 {
		t.Errorf("expected 0 active streams after cleanup, got %d", count)
	}

	transmissions, err := repo.GetRecent(1)
	if err != nil {
		t.Fatalf("failed to get transmissions: %v", err)
	}
	if len(transmissions) != 1 {
		t.Fatalf("expected 1 transmission after cleanup, got %d", len(transmissions))
	}
}
