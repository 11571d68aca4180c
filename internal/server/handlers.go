// Package server exposes the WebSocket gateway: connection upgrades, inbound
// event dispatch into the chat core, and the multipart upload endpoints.
package server

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/NeuronPulse/ChatPlus/internal/chat"
	"github.com/NeuronPulse/ChatPlus/internal/storage"
	apperrors "github.com/NeuronPulse/ChatPlus/pkg/errors"
)

var imageExtensions = map[string]struct{}{
	".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".webp": {}, ".bmp": {}, ".svg": {},
}

// Gateway ties the WebSocket transport to the chat core. It upgrades
// connections, translates inbound envelopes into service calls, and answers
// failures with the matching *Error event.
type Gateway struct {
	cfg      *Config
	svc      *chat.Service
	hub      *Hub
	store    *storage.DiskStore
	upgrader websocket.Upgrader
}

// NewGateway wires the gateway to its hub and service. The hub's lifecycle
// callbacks are claimed here: connect pushes the storage snapshot, disconnect
// tears down the user's state.
func NewGateway(cfg *Config, svc *chat.Service, hub *Hub, store *storage.DiskStore) *Gateway {
	policy := newOriginPolicy(cfg.AllowedOrigins)
	gw := &Gateway{
		cfg:   cfg,
		svc:   svc,
		hub:   hub,
		store: store,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if policy.allow(r) {
					return true
				}
				log.Printf("Blocked WebSocket connection from disallowed origin: %q", r.Header.Get("Origin"))
				return false
			},
		},
	}

	hub.OnConnect(func(connID string) {
		hub.Send(connID, chat.EventStorageInfo, svc.StorageSnapshot())
	})
	hub.OnDisconnect(svc.Disconnect)

	return gw
}

// ServeWS handles WebSocket upgrade requests. It upgrades the HTTP
// connection, creates a Client with a fresh connection id, and registers it
// with the hub, which launches the read/write pumps.
func (g *Gateway) ServeWS(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	client := NewClient(conn, g.hub, g, r.RemoteAddr, g.cfg)
	g.hub.register <- client
}

// Health provides a simple health check endpoint that returns server status.
func (g *Gateway) Health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprint(w, "ChatPlus server is running!")
}

// inbound payloads that have no dedicated input struct in the core.
type (
	loginPayload struct {
		Name string `json:"name"`
	}
	publicKeyPayload struct {
		PublicKey string `json:"publicKey"`
	}
	createRoomPayload struct {
		Name string `json:"name"`
	}
	joinRoomPayload struct {
		RoomID string `json:"roomId"`
	}
	roomResponsePayload struct {
		RequestID string `json:"requestId"`
		RoomID    string `json:"roomId"`
		Accepted  bool   `json:"accepted"`
	}
	friendRequestPayload struct {
		TargetUserID string `json:"targetUserId"`
	}
	friendResponsePayload struct {
		RequestID string `json:"requestId"`
		Accepted  bool   `json:"accepted"`
	}
	progressPayload struct {
		TransferID string `json:"transferId"`
		Bytes      int64  `json:"bytes"`
	}
	voiceCompletePayload struct {
		UploadID string `json:"uploadId"`
	}
	downloadPayload struct {
		FileURL string `json:"fileUrl"`
	}
	abortPayload struct {
		TransferID string `json:"transferId"`
	}
	expiryPayload struct {
		FileID     string `json:"fileId"`
		ExpiryTime int64  `json:"expiryTime"`
	}
	conversationFilesPayload struct {
		Type           string `json:"type"`
		ConversationID string `json:"conversationId"`
	}
)

// dispatch routes one inbound envelope to the matching service operation.
// Every failure is answered on the originating connection with the error
// event of the operation's family.
func (g *Gateway) dispatch(connID string, env Envelope) {
	var err error

	switch env.Event {
	case "login":
		var p loginPayload
		if err = g.decode(env.Data, &p); err == nil {
			_, err = g.svc.Login(connID, p.Name)
		}
		g.answer(connID, "loginError", err)

	case "publicKey":
		var p publicKeyPayload
		if err = g.decode(env.Data, &p); err == nil {
			err = g.svc.SetPublicKey(connID, p.PublicKey)
		}
		g.answer(connID, "loginError", err)

	case "createRoom":
		var p createRoomPayload
		if err = g.decode(env.Data, &p); err == nil {
			_, err = g.svc.CreateRoom(connID, p.Name)
		}
		g.answer(connID, "roomError", err)

	case "requestJoinRoom":
		var p joinRoomPayload
		if err = g.decode(env.Data, &p); err == nil {
			_, err = g.svc.RequestJoinRoom(connID, p.RoomID)
		}
		g.answer(connID, "roomError", err)

	case "respondRoomRequest":
		var p roomResponsePayload
		if err = g.decode(env.Data, &p); err == nil {
			err = g.svc.RespondJoinRoom(connID, p.RequestID, p.RoomID, p.Accepted)
		}
		g.answer(connID, "roomError", err)

	case "sendFriendRequest":
		var p friendRequestPayload
		if err = g.decode(env.Data, &p); err == nil {
			_, err = g.svc.SendFriendRequest(connID, p.TargetUserID)
		}
		g.answer(connID, "friendError", err)

	case "respondFriendRequest":
		var p friendResponsePayload
		if err = g.decode(env.Data, &p); err == nil {
			err = g.svc.RespondFriendRequest(connID, p.RequestID, p.Accepted)
		}
		g.answer(connID, "friendError", err)

	case "sendMessage":
		var p chat.SendMessageInput
		if err = g.decode(env.Data, &p); err == nil {
			_, err = g.svc.SendMessage(connID, p)
		}
		g.answer(connID, "messageError", err)

	case "initFileUpload":
		var p chat.InitUploadInput
		if err = g.decode(env.Data, &p); err == nil {
			_, err = g.svc.InitFileUpload(connID, p)
		}
		g.answer(connID, "uploadError", err)

	case "updateUploadProgress":
		var p progressPayload
		if err = g.decode(env.Data, &p); err == nil {
			_, err = g.svc.UpdateUploadProgress(connID, p.TransferID, p.Bytes)
		}
		g.answer(connID, "uploadError", err)

	case "completeFileUpload":
		var p chat.CompleteUploadInput
		if err = g.decode(env.Data, &p); err == nil {
			_, err = g.svc.CompleteFileUpload(connID, p)
		}
		g.answer(connID, "uploadError", err)

	case "initVoiceUpload":
		var p chat.InitVoiceInput
		if err = g.decode(env.Data, &p); err == nil {
			_, err = g.svc.InitVoiceUpload(connID, p)
		}
		g.answer(connID, "voiceError", err)

	case "updateVoiceUploadProgress":
		var p progressPayload
		if err = g.decode(env.Data, &p); err == nil {
			_, err = g.svc.UpdateUploadProgress(connID, p.TransferID, p.Bytes)
		}
		g.answer(connID, "voiceError", err)

	case "completeVoiceUpload":
		var p voiceCompletePayload
		if err = g.decode(env.Data, &p); err == nil {
			_, err = g.svc.CompleteVoiceUpload(connID, p.UploadID)
		}
		g.answer(connID, "voiceError", err)

	case "initFileDownload":
		var p downloadPayload
		if err = g.decode(env.Data, &p); err == nil {
			_, err = g.svc.InitFileDownload(connID, p.FileURL)
		}
		g.answer(connID, "downloadError", err)

	case "updateDownloadProgress":
		var p progressPayload
		if err = g.decode(env.Data, &p); err == nil {
			_, err = g.svc.UpdateDownloadProgress(connID, p.TransferID, p.Bytes)
		}
		g.answer(connID, "downloadError", err)

	case "abortTransfer":
		var p abortPayload
		if err = g.decode(env.Data, &p); err == nil {
			err = g.svc.AbortTransfer(connID, p.TransferID)
		}
		g.answer(connID, "uploadError", err)

	case "updateFileExpiry":
		var p expiryPayload
		if err = g.decode(env.Data, &p); err == nil {
			err = g.svc.UpdateFileExpiry(connID, p.FileID, p.ExpiryTime)
		}
		g.answer(connID, "fileError", err)

	case "getConversationFiles":
		var p conversationFilesPayload
		if err = g.decode(env.Data, &p); err == nil {
			_, err = g.svc.ConversationFiles(connID, chat.ConversationKind(p.Type), p.ConversationID)
		}
		g.answer(connID, "fileError", err)

	default:
		log.Printf("Unknown event %q from %s; discarding", env.Event, connID)
	}
}

func (g *Gateway) decode(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return apperrors.InvalidArg("missing event payload")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return apperrors.Wrap(apperrors.CodeInvalidArgument, "malformed event payload", err)
	}
	return nil
}

// answer sends the family error event when an operation failed; successes are
// announced by the core itself.
func (g *Gateway) answer(connID, errorEvent string, err error) {
	if err == nil {
		return
	}
	g.hub.Send(connID, errorEvent, errorPayload{
		Message: err.Error(),
		Code:    string(apperrors.CodeOf(err)),
	})
}

// HandleUpload accepts the bytes of an initialized file upload as a multipart
// form (fields: uploadId, file) and attaches the stored blob to the transfer.
// Completion stays on the WebSocket so progress and fan-out are ordered with
// the rest of the session's events.
func (g *Gateway) HandleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, g.cfg.Chat.MaxUploadBytes)

	uploadID := r.FormValue("uploadId")
	if uploadID == "" {
		http.Error(w, "uploadId is required", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "file field is required", http.StatusBadRequest)
		return
	}
	defer func() { _ = file.Close() }()

	url, size, err := g.store.Store(header.Filename, file)
	if err != nil {
		g.writeStoreError(w, err)
		return
	}

	blob := chat.StoredBlob{URL: url, Size: size, IsImage: isImageName(header.Filename)}
	if err := g.svc.AttachUploadBlob(uploadID, blob); err != nil {
		_ = g.store.Delete(url)
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	g.writeJSON(w, map[string]any{"url": url, "size": size})
}

// HandleVoiceUpload accepts the bytes of an initialized voice upload
// (fields: uploadId, audio).
func (g *Gateway) HandleVoiceUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, g.cfg.Chat.MaxVoiceUploadBytes)

	uploadID := r.FormValue("uploadId")
	if uploadID == "" {
		http.Error(w, "uploadId is required", http.StatusBadRequest)
		return
	}

	audio, _, err := r.FormFile("audio")
	if err != nil {
		http.Error(w, "audio field is required", http.StatusBadRequest)
		return
	}
	defer func() { _ = audio.Close() }()

	url, size, err := g.store.StoreVoice(audio)
	if err != nil {
		g.writeStoreError(w, err)
		return
	}

	blob := chat.StoredBlob{URL: url, Size: size}
	if err := g.svc.AttachUploadBlob(uploadID, blob); err != nil {
		_ = g.store.Delete(url)
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	g.writeJSON(w, map[string]any{"url": url, "size": size})
}

func (g *Gateway) writeStoreError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if apperrors.CodeOf(err) == apperrors.CodeResourceExhausted {
		status = http.StatusInsufficientStorage
	}
	http.Error(w, err.Error(), status)
}

func (g *Gateway) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error writing JSON response: %v", err)
	}
}

func isImageName(name string) bool {
	_, ok := imageExtensions[strings.ToLower(filepath.Ext(name))]
	return ok
}
