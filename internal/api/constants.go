package api //nolint:revive // package name is intentional

// Route paths.
const (
	PathModels          = "/api/models"
	PathToolModel       = "/api/models/tool-capable"
	PathRAGStatus       = "/api/rag/status"
	PathRAGMemories     = "/api/rag/memories"
	PathRAGQuery        = "/api/rag/query"
	PathRAGAdd          = "/api/rag/add"
	PathRAGUpdate       = "/api/rag/update"
	PathRAGDelete       = "/api/rag/delete"
	PathRAGClear        = "/api/rag/clear"
	PathRAGExport       = "/api/rag/export"
	PathWebSearch       = "/api/tools/web_search"
	PathChat            = "/api/chat"
	PathHealthLive      = "/health/live"
	PathHealthReady     = "/health/ready"
	contentTypeJSON     = "application/json"
	chatCopyBufferBytes = 4096
)

// Flat error messages.
const (
	msgNotFound         = "Not Found"
	msgInvalidJSON      = "Invalid JSON"
	msgConnectionFailed = "Connection Failed"
	msgNoToolModel      = "No tool-capable model found"
	msgBackupDisabled   = "Backup export is not configured"
)
