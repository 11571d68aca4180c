package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/NeuronPulse/ChatPlus/pkg/errors"
)

func TestInitFileUploadValidation(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	mustLogin(t, svc, "c1", "alice")

	cases := []struct {
		name string
		in   InitUploadInput
		code apperrors.Code
	}{
		{"missing name", InitUploadInput{Size: 10, Target: Target{RoomID: DefaultRoomID}}, apperrors.CodeInvalidArgument},
		{"zero size", InitUploadInput{Name: "a.txt", Target: Target{RoomID: DefaultRoomID}}, apperrors.CodeInvalidArgument},
		{"blocked extension", InitUploadInput{Name: "setup.EXE", Size: 10, Target: Target{RoomID: DefaultRoomID}}, apperrors.CodeInvalidArgument},
		{"oversized", InitUploadInput{Name: "big.bin", Size: (100 << 20) + 1, Target: Target{RoomID: DefaultRoomID}}, apperrors.CodeInvalidArgument},
		{"no target", InitUploadInput{Name: "a.txt", Size: 10}, apperrors.CodeInvalidArgument},
		{"unknown room", InitUploadInput{Name: "a.txt", Size: 10, Target: Target{RoomID: "missing"}}, apperrors.CodeNotFound},
		{"not a friend", InitUploadInput{Name: "a.txt", Size: 10, Target: Target{UserID: "c9"}}, apperrors.CodePermissionDenied},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.InitFileUpload("c1", tc.in)
			require.Error(t, err)
			assert.Equal(t, tc.code, apperrors.CodeOf(err))
		})
	}
}

func TestInitFileUploadChecksFreeStorage(t *testing.T) {
	svc, _, store, _ := newTestService(t)
	mustLogin(t, svc, "c1", "alice")
	store.free = 5

	_, err := svc.InitFileUpload("c1", InitUploadInput{
		Name: "a.txt", Size: 10, Target: Target{RoomID: DefaultRoomID},
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeResourceExhausted, apperrors.CodeOf(err))
}

func TestUploadProgressStats(t *testing.T) {
	svc, sender, _, clock := newTestService(t)
	mustLogin(t, svc, "c1", "alice")

	transfer, err := svc.InitFileUpload("c1", InitUploadInput{
		Name: "a.bin", Size: 1000, Target: Target{RoomID: DefaultRoomID},
	})
	require.NoError(t, err)

	ack, ok := sender.lastFor("c1", EventUploadInitialized)
	require.True(t, ok)
	assert.Equal(t, transfer.ID, ack.Data.(UploadInitialized).UploadID)

	clock.Advance(2 * time.Second)
	stats, err := svc.UpdateUploadProgress("c1", transfer.ID, 500)
	require.NoError(t, err)
	assert.Equal(t, 50, stats.Percent)
	assert.InDelta(t, 250.0, stats.BytesPerSecond, 0.01)
	assert.Equal(t, int64(500), stats.Remaining)
	assert.Equal(t, 2, stats.ETASeconds)

	progress, ok := sender.lastFor("c1", EventUploadProgress)
	require.True(t, ok)
	assert.Equal(t, 50, progress.Data.(TransferProgress).Percent)

	stats, err = svc.UpdateUploadProgress("c1", transfer.ID, 1000)
	require.NoError(t, err)
	assert.Equal(t, 100, stats.Percent)
	assert.Equal(t, int64(0), stats.Remaining)
}

func TestProgressRejectsForeignTransfer(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	mustLogin(t, svc, "c1", "alice")
	mustLogin(t, svc, "c2", "bob")

	transfer, err := svc.InitFileUpload("c1", InitUploadInput{
		Name: "a.bin", Size: 100, Target: Target{RoomID: DefaultRoomID},
	})
	require.NoError(t, err)

	_, err = svc.UpdateUploadProgress("c2", transfer.ID, 10)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodePermissionDenied, apperrors.CodeOf(err))
}

func TestAbortTransferIsTerminal(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	mustLogin(t, svc, "c1", "alice")

	transfer, err := svc.InitFileUpload("c1", InitUploadInput{
		Name: "a.bin", Size: 100, Target: Target{RoomID: DefaultRoomID},
	})
	require.NoError(t, err)

	require.NoError(t, svc.AbortTransfer("c1", transfer.ID))

	_, err = svc.UpdateUploadProgress("c1", transfer.ID, 10)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeNotFound, apperrors.CodeOf(err))

	err = svc.AbortTransfer("c1", transfer.ID)
	assert.Equal(t, apperrors.CodeNotFound, apperrors.CodeOf(err))
}

func TestAbortTransferDiscardsAttachedBlob(t *testing.T) {
	svc, _, store, _ := newTestService(t)
	mustLogin(t, svc, "c1", "alice")

	transfer, err := svc.InitFileUpload("c1", InitUploadInput{
		Name: "a.bin", Size: 100, Target: Target{RoomID: DefaultRoomID},
	})
	require.NoError(t, err)
	require.NoError(t, svc.AttachUploadBlob(transfer.ID, StoredBlob{URL: "/uploads/a.bin", Size: 100}))

	require.NoError(t, svc.AbortTransfer("c1", transfer.ID))
	assert.Contains(t, store.deletedURLs(), "/uploads/a.bin")
}

func TestAbortTransferRequiresOwnership(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	mustLogin(t, svc, "c1", "alice")
	mustLogin(t, svc, "c2", "bob")

	transfer, err := svc.InitFileUpload("c1", InitUploadInput{
		Name: "a.bin", Size: 100, Target: Target{RoomID: DefaultRoomID},
	})
	require.NoError(t, err)

	err = svc.AbortTransfer("c2", transfer.ID)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodePermissionDenied, apperrors.CodeOf(err))
}

func TestDownloadLifecycle(t *testing.T) {
	svc, sender, _, clock := newTestService(t)
	mustLogin(t, svc, "c1", "alice")

	msg := completeUpload(t, svc, "c1",
		InitUploadInput{Name: "a.bin", Size: 100, Target: Target{RoomID: DefaultRoomID}},
		StoredBlob{URL: "/uploads/a.bin", Size: 100})

	download, err := svc.InitFileDownload("c1", msg.FileURL)
	require.NoError(t, err)

	ack, ok := sender.lastFor("c1", EventDownloadInitialized)
	require.True(t, ok)
	assert.Equal(t, download.ID, ack.Data.(DownloadInitialized).DownloadID)

	clock.Advance(time.Second)
	stats, err := svc.UpdateDownloadProgress("c1", download.ID, 100)
	require.NoError(t, err)
	assert.Equal(t, 100, stats.Percent)

	// A finished download no longer accepts progress, but the id stays
	// reserved for the grace window.
	_, err = svc.UpdateDownloadProgress("c1", download.ID, 100)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeNotFound, apperrors.CodeOf(err))

	assert.Equal(t, 0, svc.PurgeTransfers())

	// Both the finished upload and the finished download age out.
	clock.Advance(svc.cfg.TransferGrace)
	assert.Equal(t, 2, svc.PurgeTransfers())

	_, err = svc.UpdateDownloadProgress("c1", download.ID, 100)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeNotFound, apperrors.CodeOf(err))
}

func TestInitFileDownloadUnknownURL(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	mustLogin(t, svc, "c1", "alice")

	_, err := svc.InitFileDownload("c1", "/uploads/missing.bin")
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeNotFound, apperrors.CodeOf(err))
}

func TestAttachUploadBlobUnknownUpload(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	err := svc.AttachUploadBlob("missing", StoredBlob{URL: "/uploads/x", Size: 1})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeNotFound, apperrors.CodeOf(err))
}

func TestVoiceUploadGate(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	mustLogin(t, svc, "c1", "alice")
	svc.cfg.EnableVoice = false

	_, err := svc.InitVoiceUpload("c1", InitVoiceInput{
		DurationMillis: 3000, Size: 100, Target: Target{RoomID: DefaultRoomID},
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeInvalidArgument, apperrors.CodeOf(err))
}

func TestVoiceUploadSizeLimit(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	mustLogin(t, svc, "c1", "alice")

	_, err := svc.InitVoiceUpload("c1", InitVoiceInput{
		DurationMillis: 3000, Size: (10 << 20) + 1, Target: Target{RoomID: DefaultRoomID},
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeInvalidArgument, apperrors.CodeOf(err))
}
