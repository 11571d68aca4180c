package chat

// Event names produced by the core for the transport layer. The gateway wraps
// each payload in an envelope carrying the event name.
const (
	EventUserList              = "userList"
	EventRoomList              = "roomList"
	EventFriendList            = "friendList"
	EventFriendRequests        = "friendRequests"
	EventNewFriendRequest      = "newFriendRequest"
	EventNewMessage            = "newMessage"
	EventSystemMessage         = "systemMessage"
	EventRoomCreated           = "roomCreated"
	EventRoomJoinRequest       = "roomJoinRequest"
	EventRoomRequestResponse   = "roomRequestResponse"
	EventFriendRequestResponse = "friendRequestResponse"
	EventRequestSent           = "requestSent"
	EventUploadInitialized     = "uploadInitialized"
	EventUploadProgress        = "uploadProgress"
	EventUploadComplete        = "uploadComplete"
	EventVoiceInitialized      = "voiceUploadInitialized"
	EventVoiceProgress         = "voiceUploadProgress"
	EventVoiceComplete         = "voiceUploadComplete"
	EventDownloadInitialized   = "downloadInitialized"
	EventDownloadProgress      = "downloadProgress"
	EventFileExpired           = "fileExpired"
	EventFileExpiryUpdated     = "fileExpiryUpdated"
	EventConversationFiles     = "conversationFiles"
	EventStorageInfo           = "storageInfo"
)

// Sender delivers events to connections. The hub implements it; tests use a
// recording fake. The core computes recipients itself, so the sender needs no
// knowledge of rooms or friendships.
type Sender interface {
	// Send delivers an event to a single connection. Delivery to an unknown
	// or closed connection is a silent no-op.
	Send(connID, event string, data any)
	// Broadcast delivers an event to every connection.
	Broadcast(event string, data any)
}

// UserEntry is one element of the userList broadcast.
type UserEntry struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	HasPublicKey bool   `json:"hasPublicKey"`
}

// RoomEntry is one element of a roomList payload. IsCreator is computed per
// recipient, so room lists are sent per connection rather than broadcast.
type RoomEntry struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	MemberCount int    `json:"memberCount"`
	IsCreator   bool   `json:"isCreator"`
}

// FriendEntry is one element of a friendList payload.
type FriendEntry struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SystemNotice is the payload of a systemMessage event.
type SystemNotice struct {
	Text   string `json:"text"`
	Time   string `json:"time"`
	RoomID string `json:"roomId,omitempty"`
}

// RoomCreated acknowledges a successful createRoom request.
type RoomCreated struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// JoinRequestNotice asks a room creator to approve a pending join request.
type JoinRequestNotice struct {
	RequestID string `json:"requestId"`
	RoomID    string `json:"roomId"`
	RoomName  string `json:"roomName"`
	From      string `json:"from"`
	FromName  string `json:"fromName"`
	Time      string `json:"time"`
}

// JoinResponse notifies a requester of the creator's decision.
type JoinResponse struct {
	Accepted bool   `json:"accepted"`
	RoomID   string `json:"roomId"`
	RoomName string `json:"roomName"`
}

// FriendResponse notifies a friend-request sender of the recipient's decision.
type FriendResponse struct {
	RequestID  string `json:"requestId"`
	Accepted   bool   `json:"accepted"`
	TargetName string `json:"targetName"`
}

// RequestAck confirms to the originator that a room or friend request went out.
type RequestAck struct {
	Type   string `json:"type"`
	Target string `json:"target"`
}

// UploadInitialized acknowledges an initFileUpload or initVoiceUpload.
type UploadInitialized struct {
	UploadID     string `json:"uploadId"`
	FileName     string `json:"fileName,omitempty"`
	FileSize     int64  `json:"fileSize"`
	ExpiryMillis *int64 `json:"expiryTime,omitempty"`
}

// TransferProgress carries the stats of one progress update.
type TransferProgress struct {
	TransferID string `json:"uploadId,omitempty"`
	DownloadID string `json:"downloadId,omitempty"`
	TransferStats
}

// UploadComplete acknowledges a finished upload with the stored location.
type UploadComplete struct {
	UploadID string `json:"uploadId"`
	FileURL  string `json:"fileUrl"`
	FileID   string `json:"fileId"`
}

// DownloadInitialized acknowledges an initFileDownload.
type DownloadInitialized struct {
	DownloadID string `json:"downloadId"`
	FileName   string `json:"fileName"`
	FileSize   int64  `json:"fileSize"`
	FileURL    string `json:"fileUrl"`
}

// FileExpired notifies a file's owner that the sweep removed it.
type FileExpired struct {
	FileID   string `json:"fileId"`
	FileName string `json:"fileName"`
}

// FileExpiryUpdated notifies a conversation that a file's expiry changed.
type FileExpiryUpdated struct {
	FileID          string `json:"fileId"`
	ExpiryMillis    *int64 `json:"expiryTime"`
	ExpiryFormatted string `json:"expiryTimeFormatted"`
}

// ConversationFilesList is the response to a getConversationFiles request.
type ConversationFilesList struct {
	Conversation   ConversationKind `json:"conversationType"`
	ConversationID string           `json:"conversationId"`
	Files          []*FileEntry     `json:"files"`
}

// StorageInfo reports the storage collaborator's capacity to clients.
type StorageInfo struct {
	Total          int64  `json:"total"`
	Free           int64  `json:"free"`
	TotalFormatted string `json:"totalFormatted"`
	FreeFormatted  string `json:"freeFormatted"`
	UsedPercentage int    `json:"usedPercentage"`
}
